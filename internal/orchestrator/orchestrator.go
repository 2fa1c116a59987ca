package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/applet-tools/cardmeter/internal/aggregate"
	"github.com/applet-tools/cardmeter/internal/card"
	"github.com/applet-tools/cardmeter/internal/catalog"
	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/installer"
	"github.com/applet-tools/cardmeter/internal/model"
	"github.com/applet-tools/cardmeter/internal/report"
)

// Session is the card session surface the orchestrator drives.
// *card.Session implements it.
type Session interface {
	// Install puts the package on the card and captures a storage baseline.
	Install(ctx context.Context, pkg model.PackageRef, artifact string) (installer.Outcome, error)

	// Measure returns the installed package's storage footprint.
	Measure(ctx context.Context) (model.StorageMeasurement, error)

	// Uninstall removes the package. A no-op when it is not installed.
	Uninstall(ctx context.Context, pkg model.PackageRef) error

	// Faulted reports whether the session can no longer reach the card.
	Faulted() bool

	// Close releases the session.
	Close() error
}

var _ Session = (*card.Session)(nil)

// Opener creates a fresh card session. It is called at run start and
// again whenever the current session faults.
type Opener func() (Session, error)

// Recorder is the measurement cache surface the orchestrator uses.
// *database.MeasureDB implements it.
type Recorder interface {
	// Has reports whether the key has already been measured.
	Has(ctx context.Context, key model.DedupKey) (bool, error)

	// Record stores a measurement. Re-recording a key keeps the first write.
	Record(ctx context.Context, rec model.MeasurementRecord) error

	// All returns every stored measurement.
	All(ctx context.Context) ([]model.MeasurementRecord, error)
}

// Cleaner removes leftover packages from the card before a run.
// *installer.Executor implements it.
type Cleaner interface {
	// ListCardApps returns the recipe identifiers installed on the card.
	ListCardApps(ctx context.Context) ([]string, error)

	// UninstallRecipe removes one installed recipe.
	UninstallRecipe(ctx context.Context, recipe string) error

	// MemoryAppletRecipe returns the recipe identifier of the probe
	// applet, which cleanup must leave on the card.
	MemoryAppletRecipe() string
}

// Stats summarizes a completed run.
type Stats struct {
	// Measured is the number of tuples measured and recorded this run.
	Measured int

	// Cached is the number of tuples skipped because an earlier run
	// already measured them.
	Cached int

	// Failed is the number of tuples abandoned after a per-tuple error.
	Failed int

	// Elapsed is the total run duration.
	Elapsed time.Duration
}

// Attempted returns the number of tuples the run touched.
func (s Stats) Attempted() int {
	return s.Measured + s.Cached + s.Failed
}

// Orchestrator runs the measurement loop for one catalog source.
type Orchestrator struct {
	source  catalog.Source
	open    Opener
	db      Recorder
	store   *report.Store
	cfg     *config.Config
	agg     *aggregate.Aggregator
	cleaner Cleaner
	logger  *slog.Logger
	printer *Printer

	// prefetch is the number of artifacts fetched ahead of the card.
	prefetch int

	session Session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithCleaner enables pre-run removal of leftover packages.
func WithCleaner(c Cleaner) Option {
	return func(o *Orchestrator) {
		o.cleaner = c
	}
}

// WithProgress enables per-tuple progress output on the given printer.
func WithProgress(p *Printer) Option {
	return func(o *Orchestrator) {
		o.printer = p
	}
}

// WithPrefetchLimit sets how many artifacts are fetched concurrently
// ahead of the measurement loop. Default is 2.
func WithPrefetchLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.prefetch = n
		}
	}
}

// New creates an Orchestrator for one source. The aggregate documents
// produced follow cfg.Mode.
func New(cfg *config.Config, source catalog.Source, open Opener, db Recorder, store *report.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:   source,
		open:     open,
		db:       db,
		store:    store,
		cfg:      cfg,
		agg:      aggregate.New(cfg.Mode),
		prefetch: 2,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// Run executes the measurement loop until the catalog is exhausted or
// the context is cancelled. Per-tuple failures are logged and skipped.
// The returned error is non-nil only when the run as a whole could not
// proceed.
func (o *Orchestrator) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	// Resume: aggregate documents are rebuilt from prior measurements
	// so a re-run emits complete files, not just this run's additions.
	prior, err := o.db.All(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load prior measurements: %w", err)
	}
	o.agg.Seed(prior)

	entries, err := o.source.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list %s catalog: %w", o.source.Name(), err)
	}
	o.logger.Info("catalog listed", "source", o.source.Name(), "entries", len(entries))

	work, err := o.filterEntries(ctx, entries, &stats)
	if err != nil {
		return stats, err
	}
	if len(work) == 0 {
		o.saveDocuments()
		stats.Elapsed = time.Since(start)
		o.printer.summary(stats)
		return stats, nil
	}

	if err := o.ensureSession(); err != nil {
		return stats, err
	}
	defer o.closeSession()

	o.cleanCard(ctx)

	fetches := newPrefetcher(o.source, work, o.prefetch)
	defer fetches.stop()

	for i := range work {
		select {
		case <-ctx.Done():
			stats.Elapsed = time.Since(start)
			return stats, ctx.Err()
		default:
		}

		f := fetches.wait(ctx, i)
		if f.err != nil {
			if ctx.Err() != nil {
				stats.Elapsed = time.Since(start)
				return stats, ctx.Err()
			}
			o.logger.Warn("artifact unavailable",
				"package", f.entry.Ref.String(),
				"error", f.err,
			)
			o.printer.failed(f.entry.Ref, f.err)
			stats.Failed++
			continue
		}

		if err := o.measureOne(ctx, f.entry, f.artifact, &stats); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}
	}

	o.saveDocuments()
	stats.Elapsed = time.Since(start)
	o.printer.summary(stats)
	return stats, nil
}

// filterEntries drops entries outside the app filter, entries the cache
// already holds, and repeats of a key within this listing. The cache
// check runs before any download or card work.
func (o *Orchestrator) filterEntries(ctx context.Context, entries []catalog.Entry, stats *Stats) ([]catalog.Entry, error) {
	work := make([]catalog.Entry, 0, len(entries))
	picked := make(map[model.DedupKey]struct{}, len(entries))
	for _, e := range entries {
		if o.cfg.App != "" && e.Ref.Name != o.cfg.App {
			continue
		}

		key := e.Ref.Key()
		if _, dup := picked[key]; dup {
			o.logger.Debug("duplicate catalog entry", "package", e.Ref.String())
			o.printer.cached(e.Ref)
			stats.Cached++
			continue
		}

		seen, err := o.db.Has(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check measurement cache: %w", err)
		}
		if seen {
			o.logger.Debug("already measured", "package", e.Ref.String())
			o.printer.cached(e.Ref)
			stats.Cached++
			continue
		}
		picked[key] = struct{}{}
		work = append(work, e)
	}
	return work, nil
}

// measureOne cycles a single tuple through install, probe, and
// uninstall, then persists the result. Tuple-level failures increment
// stats.Failed and return nil; only a failed session reopen is fatal.
func (o *Orchestrator) measureOne(ctx context.Context, e catalog.Entry, artifact string, stats *Stats) error {
	if err := o.ensureSession(); err != nil {
		return err
	}

	outcome, err := o.session.Install(ctx, e.Ref, artifact)
	if err != nil {
		o.logger.Warn("install failed",
			"package", e.Ref.String(),
			"status", outcome.Status.String(),
			"reason", outcome.Reason,
			"error", err,
		)
		o.printer.failed(e.Ref, err)
		stats.Failed++
		return nil
	}

	if outcome.Status == installer.StatusAlreadyInstalled {
		// The baseline was captured with the package already on the card,
		// so a probe would diff to nothing. Remove it and install again
		// from a clean baseline.
		o.logger.Info("package already on card, reinstalling",
			"package", e.Ref.String(),
			"existing_version", outcome.ExistingVersion,
		)
		if uerr := o.session.Uninstall(ctx, e.Ref); uerr != nil {
			o.logger.Warn("failed to remove pre-installed package",
				"package", e.Ref.String(),
				"error", uerr,
			)
			o.printer.failed(e.Ref, uerr)
			stats.Failed++
			return nil
		}
		outcome, err = o.session.Install(ctx, e.Ref, artifact)
		if err != nil {
			o.logger.Warn("reinstall failed", "package", e.Ref.String(), "error", err)
			o.printer.failed(e.Ref, err)
			stats.Failed++
			return nil
		}
	}

	if outcome.Status != installer.StatusOK {
		serr := outcomeError(outcome)
		o.logger.Warn("install failed",
			"package", e.Ref.String(),
			"status", outcome.Status.String(),
			"reason", outcome.Reason,
		)
		o.printer.failed(e.Ref, serr)
		stats.Failed++
		return nil
	}

	measurement, merr := o.session.Measure(ctx)

	// The package comes off the card whether or not the probe worked.
	if uerr := o.session.Uninstall(ctx, e.Ref); uerr != nil {
		o.logger.Warn("uninstall failed, card may hold a leftover package",
			"package", e.Ref.String(),
			"error", uerr,
		)
	}

	if merr != nil {
		o.logger.Warn("probe failed", "package", e.Ref.String(), "error", merr)
		o.printer.failed(e.Ref, merr)
		stats.Failed++
		return nil
	}

	measurement = o.applyOverhead(e.Ref.Name, measurement)

	rec := model.MeasurementRecord{
		Package:     e.Ref,
		Measurement: measurement,
		ReleaseID:   e.ReleaseID,
	}
	o.agg.Merge(rec)
	if err := o.db.Record(ctx, rec); err != nil {
		o.logger.Warn("failed to record measurement", "package", e.Ref.String(), "error", err)
	}
	o.saveDocuments()

	o.printer.measured(e.Ref, measurement)
	stats.Measured++

	o.logger.Info("measured",
		"package", e.Ref.String(),
		"persistent", measurement.PersistentBytes,
		"transient", measurement.TransientBytes,
	)
	return nil
}

// outcomeError turns a non-OK install classification into the error
// shown to the user, carrying the installer's own words when it gave any.
func outcomeError(out installer.Outcome) error {
	if out.Reason != "" {
		return fmt.Errorf("install %s: %s", out.Status, out.Reason)
	}
	return fmt.Errorf("install %s", out.Status)
}

// applyOverhead subtracts the configured container overhead from the
// persistent footprint, clamped at zero.
func (o *Orchestrator) applyOverhead(name string, m model.StorageMeasurement) model.StorageMeasurement {
	ac, ok := o.cfg.File.AppConfigFor(name)
	if !ok || ac.OverheadBytes == 0 {
		return m
	}
	if m.PersistentBytes <= ac.OverheadBytes {
		m.PersistentBytes = 0
	} else {
		m.PersistentBytes -= ac.OverheadBytes
	}
	return m
}

// ensureSession opens a session if none exists or the current one has
// faulted. A reopen failure means the reader or card is gone and the
// run cannot continue.
func (o *Orchestrator) ensureSession() error {
	if o.session != nil && !o.session.Faulted() {
		return nil
	}
	o.closeSession()

	s, err := o.open()
	if err != nil {
		if errors.Is(err, card.ErrReaderNotFound) || errors.Is(err, card.ErrCardNotPresent) {
			return err
		}
		return fmt.Errorf("failed to open card session: %w", err)
	}
	o.session = s
	return nil
}

func (o *Orchestrator) closeSession() {
	if o.session == nil {
		return
	}
	if err := o.session.Close(); err != nil {
		o.logger.Warn("failed to close card session", "error", err)
	}
	o.session = nil
}

// cleanCard removes packages left on the card by an interrupted earlier
// run, sparing the probe applet. Cleanup failures are logged only; a
// leftover package merely inflates that run's baseline.
func (o *Orchestrator) cleanCard(ctx context.Context) {
	if o.cleaner == nil {
		return
	}

	apps, err := o.cleaner.ListCardApps(ctx)
	if err != nil {
		o.logger.Warn("failed to list installed packages", "error", err)
		return
	}

	keep := o.cleaner.MemoryAppletRecipe()
	for _, app := range apps {
		if app == keep {
			continue
		}
		o.logger.Info("removing leftover package", "recipe", app)
		if err := o.cleaner.UninstallRecipe(ctx, app); err != nil {
			o.logger.Warn("failed to remove leftover package", "recipe", app, "error", err)
		}
	}
}

// saveDocuments persists the aggregate documents. Called after every
// measurement so an interrupted run leaves current files behind.
func (o *Orchestrator) saveDocuments() {
	if o.store == nil {
		return
	}
	if err := o.store.SaveApp(o.agg.ByApp()); err != nil {
		o.logger.Warn("failed to save app document", "error", err)
	}
	if err := o.store.SaveRelease(o.agg.ByRelease()); err != nil {
		o.logger.Warn("failed to save release document", "error", err)
	}
}
