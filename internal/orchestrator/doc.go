// Package orchestrator drives a full measurement run: it enumerates
// catalog entries, skips already-measured tuples, cycles each remaining
// tuple through install, probe, and uninstall on the card session, and
// persists results after every measurement.
//
// A single card serializes the measurement loop, but artifact downloads
// are independent of the card, so a prefetcher fetches upcoming
// artifacts concurrently while the current tuple occupies the reader.
//
// Per-tuple failures (install, probe, uninstall, malformed artifact)
// are logged and skipped without recording anything, so a later run
// retries them. Only an unusable environment (no reader, no card, no
// catalog) aborts the run.
package orchestrator
