// Package model defines the core data structures used throughout cardmeter.
//
// This package contains the following main types:
//   - PackageRef: Identity of an installable applet artifact
//   - StorageMeasurement: Persistent/transient footprint of one package
//   - MemorySnapshot: Raw free-memory readings taken from the card
//   - MeasurementRecord: The unit stored in the cache and merged into documents
//   - AggregateDocument: Nested mapping serialized as the tool's JSON output
//
// The models are designed to be serializable to JSON for report output and
// database storage. They are plain values with no behavior beyond derived
// accessors, so every package (catalog, card, aggregate, report) can share
// them without import cycles.
package model
