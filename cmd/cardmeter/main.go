// Package main provides the entry point for the cardmeter CLI.
//
// Cardmeter measures the storage footprint of smart-card applets. It
// installs each applet on a card, reads the free-memory delta, removes
// the applet again, and aggregates the results into JSON documents.
//
// Usage:
//
//	cardmeter store
//	cardmeter releases --owner example --repo applets
//
// See --help for all available options.
package main

// main is the entry point for cardmeter.
func main() {
	Execute()
}
