package card

import "errors"

// Reader and session errors. Open-time errors (reader, card presence,
// platform check) are fatal for a run; the rest surface as per-package
// failures that the orchestrator recovers from.
var (
	// ErrReaderNotFound is returned when no reader matches the selector,
	// or no reader is attached at all.
	ErrReaderNotFound = errors.New("no matching smart-card reader found")

	// ErrCardNotPresent is returned when the selected reader reports no
	// card in the field.
	ErrCardNotPresent = errors.New("no card present in reader")

	// ErrNotSmartCard is returned when the card does not answer the basic
	// SELECT, meaning it is not a programmable platform we can measure.
	ErrNotSmartCard = errors.New("card did not answer SELECT: not a measurable smart card")

	// ErrProbeFailed is returned when the memory applet cannot be read
	// after exhausting retries.
	ErrProbeFailed = errors.New("storage probe failed")

	// ErrMemoryAppletMissing is returned when the free-memory applet is not
	// installed on the card (status word 6A82 on SELECT).
	ErrMemoryAppletMissing = errors.New("free-memory applet not installed on card")

	// ErrNoInstalledPackage is returned when Measure is called while no
	// package occupies the measurement slot.
	ErrNoInstalledPackage = errors.New("no package installed to measure")

	// ErrPriorUninstall is returned when installing a package required
	// removing the previous occupant first and that removal failed.
	ErrPriorUninstall = errors.New("failed to uninstall previously installed package")

	// ErrUninstallFailed is returned when the installer could not remove
	// the currently installed package.
	ErrUninstallFailed = errors.New("uninstall failed")

	// ErrSessionFaulted is returned for operations on a faulted session.
	// A faulted session must be closed and a fresh one opened.
	ErrSessionFaulted = errors.New("card session faulted")

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("card session closed")
)
