// Package report renders aggregate measurement documents in several
// output formats.
//
// Writers implement the Writer interface so they can be composed for
// multi-format output. Store persists the JSON documents to disk with
// atomic replacement so a crash mid-run never leaves a truncated file.
package report
