// Package database provides SQLite-based storage for cardmeter.
//
// The MeasureDB is the persistent memoization table behind the dedup cache:
// one row per measured (name, version) pair. Because it survives across
// runs, re-invoking the tool resumes where the previous run stopped instead
// of re-measuring, and the aggregate documents are rebuilt from it at
// startup so output always reflects everything ever measured.
//
// SQLite (via modernc.org/sqlite) keeps the store a single CGO-free file
// under the XDG data directory.
package database
