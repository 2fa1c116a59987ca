package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/applet-tools/cardmeter/internal/catalog"
)

// fetchResult is one resolved artifact, in worklist order.
type fetchResult struct {
	entry    catalog.Entry
	artifact string
	err      error
}

// prefetcher downloads artifacts concurrently while the card is busy
// with earlier tuples. Results keep worklist order; the measurement
// loop blocks in wait until the artifact it needs has arrived.
type prefetcher struct {
	work    []catalog.Entry
	results []fetchResult
	ready   []chan struct{}
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// newPrefetcher starts fetching the worklist's artifacts with at most
// limit concurrent downloads.
func newPrefetcher(source catalog.Source, work []catalog.Entry, limit int) *prefetcher {
	ctx, cancel := context.WithCancel(context.Background())

	p := &prefetcher{
		work:    work,
		results: make([]fetchResult, len(work)),
		ready:   make([]chan struct{}, len(work)),
		cancel:  cancel,
	}
	for i := range p.ready {
		p.ready[i] = make(chan struct{})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	p.group = g

	for i, e := range work {
		g.Go(func() error {
			artifact, err := source.Fetch(ctx, e)
			p.results[i] = fetchResult{entry: e, artifact: artifact, err: err}
			close(p.ready[i])

			// Fetch errors are per-tuple; other downloads continue.
			return nil
		})
	}

	return p
}

// wait blocks until the i-th artifact is resolved or the caller's
// context is cancelled.
func (p *prefetcher) wait(ctx context.Context, i int) fetchResult {
	select {
	case <-p.ready[i]:
		return p.results[i]
	case <-ctx.Done():
		return fetchResult{entry: p.work[i], err: ctx.Err()}
	}
}

// stop cancels outstanding downloads and waits for workers to exit.
func (p *prefetcher) stop() {
	p.cancel()
	_ = p.group.Wait()
}
