// Package aggregate folds measurement records into the output documents.
//
// The two output groupings are not separate pipelines: one measurement pass
// feeds an Aggregator configured with one or both grouping strategies. A
// merge is commutative and idempotent per (name, version) key, so arrival
// order never changes a document.
package aggregate

import (
	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/model"
)

// Aggregator accumulates measurement records into aggregate documents.
// It is not safe for concurrent use; the orchestrator owns it and merges
// from a single goroutine.
type Aggregator struct {
	mode      config.Mode
	byApp     model.AggregateDocument
	byRelease model.AggregateDocument
}

// New creates an Aggregator producing the documents the mode selects.
func New(mode config.Mode) *Aggregator {
	a := &Aggregator{mode: mode}
	if mode.App() {
		a.byApp = make(model.AggregateDocument)
	}
	if mode.Release() {
		a.byRelease = make(model.AggregateDocument)
	}
	return a
}

// Merge folds one record into the enabled documents.
//
// App grouping: package name → version → measurement.
// Release grouping: release id → package name → measurement.
//
// Records without a release id only appear in the app document.
func (a *Aggregator) Merge(rec model.MeasurementRecord) {
	if a.byApp != nil {
		a.byApp.Set(rec.Package.Name, rec.Package.Version, rec.Measurement)
	}
	if a.byRelease != nil && rec.ReleaseID != "" {
		a.byRelease.Set(rec.ReleaseID, rec.Package.Name, rec.Measurement)
	}
}

// Seed merges a batch of previously persisted records, used at startup to
// rebuild the documents from the measurement database.
func (a *Aggregator) Seed(recs []model.MeasurementRecord) {
	for _, rec := range recs {
		a.Merge(rec)
	}
}

// ByApp returns the app-grouped document, or nil when the mode does not
// produce one.
func (a *Aggregator) ByApp() model.AggregateDocument {
	return a.byApp
}

// ByRelease returns the release-grouped document, or nil when the mode does
// not produce one.
func (a *Aggregator) ByRelease() model.AggregateDocument {
	return a.byRelease
}

// Has reports whether the record's key is already present in every document
// its grouping would touch.
func (a *Aggregator) Has(rec model.MeasurementRecord) bool {
	if a.byApp != nil && !a.byApp.Has(rec.Package.Name, rec.Package.Version) {
		return false
	}
	if a.byRelease != nil && rec.ReleaseID != "" && !a.byRelease.Has(rec.ReleaseID, rec.Package.Name) {
		return false
	}
	return true
}
