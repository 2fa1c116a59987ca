package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/applet-tools/cardmeter/internal/installer"
	"github.com/applet-tools/cardmeter/internal/model"
)

// State is the session's position in the measurement cycle.
type State int

// Session states. Faulted is terminal: the session must be closed and a
// fresh one opened against the same reader.
const (
	StateIdle State = iota
	StateInstalling
	StateInstalled
	StateProbing
	StateUninstalling
	StateFaulted
)

// String returns the state name for log output.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateProbing:
		return "probing"
	case StateUninstalling:
		return "uninstalling"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Installer abstracts the external installer for the session.
// The production implementation is installer.Executor.
type Installer interface {
	// Install installs pkg from its artifact (or configured recipe) and
	// classifies the result.
	Install(ctx context.Context, pkg model.PackageRef, artifact string) (installer.Outcome, error)

	// Uninstall removes pkg and classifies the result.
	Uninstall(ctx context.Context, pkg model.PackageRef, artifact string) (installer.Outcome, error)

	// InstallMemoryApplet installs the free-memory reporting applet.
	InstallMemoryApplet(ctx context.Context) error
}

// Session owns the reader and the measurement slot for the duration of a
// run. At most one package occupies the slot at a time; installing a new
// package implicitly removes the previous occupant.
//
// The session connects to the card only for the duration of each APDU
// exchange, releasing the reader in between so the external installer can
// take its own connection.
type Session struct {
	transport Transport
	installer Installer
	probe     *Probe

	reader string
	uid    string

	installed *model.PackageRef
	artifact  string
	baseline  model.MemorySnapshot

	state  State
	closed bool
	logger *slog.Logger
}

// Option configures a Session during Open.
type Option func(*Session)

// WithLogger sets a custom logger for the session and its probe.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithProbe replaces the default probe. Used by tests and by callers that
// tune retry behavior.
func WithProbe(p *Probe) Option {
	return func(s *Session) {
		s.probe = p
	}
}

// Open locates a reader, verifies a measurable card is present, and returns
// a Session in StateIdle.
//
// readerSelector names a reader by substring match; when empty, the first
// reader reporting a present card is used. Open fails with ErrReaderNotFound
// when no reader matches, ErrCardNotPresent when the matched reader has no
// card (or no reader has one), and ErrNotSmartCard when the card does not
// answer a SELECT.
func Open(transport Transport, inst Installer, readerSelector string, opts ...Option) (*Session, error) {
	readers, err := transport.Readers()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReaderNotFound, err)
	}
	if len(readers) == 0 {
		return nil, ErrReaderNotFound
	}

	s := &Session{
		transport: transport,
		installer: inst,
		state:     StateIdle,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	reader, uid, err := matchReader(s.transport, readers, readerSelector)
	if err != nil {
		return nil, err
	}
	s.reader, s.uid = reader, uid
	if s.probe == nil {
		s.probe = NewProbe(transport, s.reader, WithProbeLogger(s.logger))
	}

	if err := s.verifyPlatform(); err != nil {
		return nil, err
	}

	s.logger.Info("card session opened", "reader", s.reader, "uid", s.uid)
	return s, nil
}

// FindReader resolves a selector to a reader with a present card, without
// opening a session. Callers that need the reader name up front (the
// external installer takes it as an argument) use this before Open.
func FindReader(transport Transport, selector string) (string, string, error) {
	readers, err := transport.Readers()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrReaderNotFound, err)
	}
	if len(readers) == 0 {
		return "", "", ErrReaderNotFound
	}
	return matchReader(transport, readers, selector)
}

// matchReader resolves the selector to a reader with a present card and
// returns the reader name and card UID.
func matchReader(transport Transport, readers []string, selector string) (string, string, error) {
	if selector != "" {
		for _, r := range readers {
			if !strings.Contains(r, selector) {
				continue
			}
			uid, err := readUID(transport, r)
			if err != nil {
				return "", "", fmt.Errorf("%w: reader %q", ErrCardNotPresent, r)
			}
			return r, uid, nil
		}
		return "", "", fmt.Errorf("%w: no reader matching %q", ErrReaderNotFound, selector)
	}

	for _, r := range readers {
		uid, err := readUID(transport, r)
		if err != nil {
			continue
		}
		return r, uid, nil
	}
	return "", "", ErrCardNotPresent
}

// verifyPlatform checks that the card answers a bare SELECT.
func (s *Session) verifyPlatform() error {
	conn, err := s.transport.Connect(s.reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCardNotPresent, err)
	}
	defer conn.Close()

	_, sw1, sw2, err := conn.Transmit(apduSelect)
	if err != nil || !swOK(sw1, sw2) {
		return ErrNotSmartCard
	}
	return nil
}

// readUID fetches the card UID through one short-lived connection.
func readUID(transport Transport, reader string) (string, error) {
	conn, err := transport.Connect(reader)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	data, sw1, sw2, err := conn.Transmit(apduGetUID)
	if err != nil {
		return "", err
	}
	if !swOK(sw1, sw2) {
		return "", fmt.Errorf("UID request failed: status word %02x%02x", sw1, sw2)
	}
	return fmt.Sprintf("% X", data), nil
}

// Reader returns the resolved reader name.
func (s *Session) Reader() string { return s.reader }

// UID returns the card UID read at open time.
func (s *Session) UID() string { return s.uid }

// State returns the session state.
func (s *Session) State() State { return s.state }

// Faulted reports whether the session hit a terminal fault.
func (s *Session) Faulted() bool { return s.state == StateFaulted }

// Installed returns a copy of the package currently occupying the
// measurement slot, or nil.
func (s *Session) Installed() *model.PackageRef {
	if s.installed == nil {
		return nil
	}
	cp := *s.installed
	return &cp
}

// Install puts pkg into the measurement slot. A previous occupant is
// removed first; failure to remove it aborts this install with
// ErrPriorUninstall and no retry.
//
// The memory baseline is captured before the installer runs, bootstrapping
// the free-memory applet if the card lacks it. The returned Outcome carries
// the installer's classification; an error is returned only when the attempt
// could not meaningfully run (session state, baseline, process spawn).
func (s *Session) Install(ctx context.Context, pkg model.PackageRef, artifact string) (installer.Outcome, error) {
	if err := s.usable(); err != nil {
		return installer.Outcome{}, err
	}

	if s.installed != nil {
		if err := s.Uninstall(ctx, *s.installed); err != nil {
			return installer.Outcome{}, fmt.Errorf("%w: %v", ErrPriorUninstall, err)
		}
	}

	baseline, err := s.baselineSnapshot(ctx)
	if err != nil {
		return installer.Outcome{}, err
	}
	s.baseline = baseline

	s.state = StateInstalling
	out, err := s.installer.Install(ctx, pkg, artifact)
	if err != nil {
		s.state = StateIdle
		return out, err
	}

	switch out.Status {
	case installer.StatusOK, installer.StatusAlreadyInstalled:
		s.installed = &pkg
		s.artifact = artifact
		s.state = StateInstalled
	case installer.StatusTimeout, installer.StatusReaderBusy:
		// Card state unknown; nothing further can run on this session.
		s.state = StateFaulted
	default:
		s.state = StateIdle
	}
	return out, nil
}

// Measure probes the installed package's footprint: the difference between
// the baseline captured at install time and the card's current report.
func (s *Session) Measure(ctx context.Context) (model.StorageMeasurement, error) {
	if err := s.usable(); err != nil {
		return model.StorageMeasurement{}, err
	}
	if s.installed == nil {
		return model.StorageMeasurement{}, ErrNoInstalledPackage
	}

	s.state = StateProbing
	post, err := s.probe.Snapshot(ctx)
	s.state = StateInstalled
	if err != nil {
		return model.StorageMeasurement{}, err
	}
	return s.baseline.Diff(post), nil
}

// Uninstall removes pkg from the measurement slot. Removing a package that
// is not currently installed is a no-op success.
func (s *Session) Uninstall(ctx context.Context, pkg model.PackageRef) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.installed == nil || s.installed.Key() != pkg.Key() {
		return nil
	}

	s.state = StateUninstalling
	out, err := s.installer.Uninstall(ctx, pkg, s.artifact)
	if err != nil {
		s.state = StateInstalled
		return fmt.Errorf("%w: %v", ErrUninstallFailed, err)
	}

	switch out.Status {
	case installer.StatusOK:
		s.installed = nil
		s.artifact = ""
		s.state = StateIdle
		return nil
	case installer.StatusTimeout, installer.StatusReaderBusy:
		s.state = StateFaulted
		return fmt.Errorf("%w: %s", ErrUninstallFailed, out.Reason)
	default:
		s.state = StateInstalled
		return fmt.Errorf("%w: %s", ErrUninstallFailed, out.Reason)
	}
}

// Close releases the session. The transport stays open; it belongs to the
// caller, which may open a fresh session after a fault.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("card session closed", "reader", s.reader, "state", s.state)
	return nil
}

// baselineSnapshot reads the pre-install memory state, installing the
// free-memory applet first when the card lacks it.
func (s *Session) baselineSnapshot(ctx context.Context) (model.MemorySnapshot, error) {
	snap, err := s.probe.Snapshot(ctx)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrMemoryAppletMissing) {
		return model.MemorySnapshot{}, err
	}

	s.logger.Info("free-memory applet missing, installing it", "reader", s.reader)
	if err := s.installer.InstallMemoryApplet(ctx); err != nil {
		return model.MemorySnapshot{}, fmt.Errorf("%w: %v", ErrMemoryAppletMissing, err)
	}
	return s.probe.Snapshot(ctx)
}

// usable rejects operations on closed or faulted sessions.
func (s *Session) usable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state == StateFaulted {
		return ErrSessionFaulted
	}
	return nil
}
