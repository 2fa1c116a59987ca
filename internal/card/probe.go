package card

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/applet-tools/cardmeter/internal/model"
)

// Probe reads the card's free-memory reporting applet and parses its
// response into a MemorySnapshot.
//
// Contactless readers drop the field briefly after the external installer
// releases the card, so the first connect attempts after an install commonly
// fail. The probe retries transient transport errors a bounded number of
// times before reporting ErrProbeFailed.
type Probe struct {
	transport Transport
	reader    string
	retries   int
	delay     time.Duration
	logger    *slog.Logger
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithProbeRetries sets how many transient transport errors are retried.
func WithProbeRetries(n int) ProbeOption {
	return func(p *Probe) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithProbeRetryDelay sets the pause between retries.
func WithProbeRetryDelay(d time.Duration) ProbeOption {
	return func(p *Probe) {
		if d > 0 {
			p.delay = d
		}
	}
}

// WithProbeLogger sets a custom logger for APDU traces.
func WithProbeLogger(logger *slog.Logger) ProbeOption {
	return func(p *Probe) {
		p.logger = logger
	}
}

// NewProbe creates a Probe bound to one reader.
func NewProbe(transport Transport, reader string, opts ...ProbeOption) *Probe {
	p := &Probe{
		transport: transport,
		reader:    reader,
		retries:   10,
		delay:     100 * time.Millisecond,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot selects the memory applet and parses its report.
//
// The response layout is fixed: bytes 0-3 persistent free, 4-7 persistent
// total (both big-endian uint32), 8-9 clear-on-reset free, 10-11
// clear-on-deselect free (both big-endian uint16).
//
// Status word 6A82 means the memory applet is not installed; that is
// reported as ErrMemoryAppletMissing without retrying, since retrying
// cannot make an applet appear.
func (p *Probe) Snapshot(ctx context.Context) (model.MemorySnapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.MemorySnapshot{}, ctx.Err()
			case <-time.After(p.delay):
			}
		}

		snap, err := p.snapshotOnce()
		if err == nil {
			return snap, nil
		}
		if isPermanentProbeError(err) {
			return model.MemorySnapshot{}, err
		}

		p.logger.Debug("probe attempt failed",
			"reader", p.reader,
			"attempt", attempt,
			"error", err,
		)
		lastErr = err
	}
	return model.MemorySnapshot{}, fmt.Errorf("%w: %v", ErrProbeFailed, lastErr)
}

// snapshotOnce performs one connect-transmit-disconnect cycle.
func (p *Probe) snapshotOnce() (model.MemorySnapshot, error) {
	conn, err := p.transport.Connect(p.reader)
	if err != nil {
		return model.MemorySnapshot{}, err
	}
	defer conn.Close()

	data, sw1, sw2, err := conn.Transmit(apduSelectMemoryApplet)
	if err != nil {
		return model.MemorySnapshot{}, err
	}

	p.logger.Debug("memory applet selected",
		"reader", p.reader,
		"sw1", fmt.Sprintf("%02x", sw1),
		"sw2", fmt.Sprintf("%02x", sw2),
		"response", fmt.Sprintf("% X", data),
	)

	if swNotFound(sw1, sw2) {
		return model.MemorySnapshot{}, ErrMemoryAppletMissing
	}
	if !swOK(sw1, sw2) {
		return model.MemorySnapshot{}, fmt.Errorf("%w: status word %02x%02x", ErrProbeFailed, sw1, sw2)
	}
	return parseMemoryReport(data)
}

// parseMemoryReport decodes the memory applet response payload.
func parseMemoryReport(data []byte) (model.MemorySnapshot, error) {
	if len(data) < 12 {
		return model.MemorySnapshot{}, fmt.Errorf("%w: short memory report (%d bytes)", ErrProbeFailed, len(data))
	}
	return model.MemorySnapshot{
		PersistentFree:        uint64(binary.BigEndian.Uint32(data[0:4])),
		PersistentTotal:       uint64(binary.BigEndian.Uint32(data[4:8])),
		TransientResetFree:    uint64(binary.BigEndian.Uint16(data[8:10])),
		TransientDeselectFree: uint64(binary.BigEndian.Uint16(data[10:12])),
	}, nil
}

// isPermanentProbeError reports whether retrying cannot help.
func isPermanentProbeError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrMemoryAppletMissing), errors.Is(err, ErrProbeFailed):
		return true
	default:
		return false
	}
}
