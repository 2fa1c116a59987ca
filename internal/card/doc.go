// Package card owns the physical reader and the measurement session.
//
// A Session is opened against one PC/SC reader with a present card and is
// the only component that talks to the reader directly. It drives the
// install → probe → uninstall cycle for a single package at a time, keeping
// the state machine Idle → Installing → Installed → Probing → Uninstalling →
// Idle, with Faulted as a terminal state when the installer times out or the
// card leaves the field mid-operation.
//
// The Probe reads the card's free-memory reporting applet. The platform does
// not account storage per applet, so a package footprint is the difference
// between the snapshot taken before its install and the one taken after.
//
// Transport abstracts the PC/SC layer so tests can run against an in-memory
// fake; SCardTransport is the production implementation.
package card
