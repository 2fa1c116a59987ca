// Package log provides logging for card measurement runs, built on top
// of the standard slog package.
//
// This package extends slog to provide:
//   - Truncation of oversized wire payloads (APDUs, installer output)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// Verbose traces include raw APDU exchanges and captured installer
// output. A single CAP file transfer can produce hundreds of kilobytes
// of hex, so the TraceHandler caps payload attributes at a fixed length
// before they reach the underlying handler.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Debug("apdu exchange",
//	    "apdu", "00 A4 04 00 ...",   // truncated if oversized
//	    "reader", "ACS ACR1252",
//	)
package log
