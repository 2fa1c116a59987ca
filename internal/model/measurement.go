package model

// StorageMeasurement is the measured footprint of one installed package.
// Values are approximate by construction: the card platform reports pool
// totals rather than per-applet accounting, so callers must not assume
// monotonicity across versions of the same package.
type StorageMeasurement struct {
	// PersistentBytes is the persistent (EEPROM/flash) storage the package
	// consumes once installed.
	PersistentBytes uint64 `json:"persistent"`

	// TransientBytes is the transient (RAM) storage the package consumes,
	// summed over the reset and deselect pools.
	TransientBytes uint64 `json:"transient"`
}

// MemorySnapshot is one raw reading of the card's free-memory report.
// Two snapshots bracket an install; their difference is the package footprint.
type MemorySnapshot struct {
	// PersistentFree is the free persistent memory in bytes.
	PersistentFree uint64

	// PersistentTotal is the total persistent memory in bytes.
	PersistentTotal uint64

	// TransientResetFree is the free clear-on-reset transient memory in bytes.
	TransientResetFree uint64

	// TransientDeselectFree is the free clear-on-deselect transient memory
	// in bytes.
	TransientDeselectFree uint64
}

// PersistentUsed returns the occupied persistent memory in bytes.
func (s MemorySnapshot) PersistentUsed() uint64 {
	if s.PersistentFree > s.PersistentTotal {
		return 0
	}
	return s.PersistentTotal - s.PersistentFree
}

// transientFree returns the combined free transient memory across both pools.
func (s MemorySnapshot) transientFree() uint64 {
	return s.TransientResetFree + s.TransientDeselectFree
}

// Diff returns the storage consumed between this snapshot (taken before an
// install) and post (taken after). Underflow clamps to zero: the platform's
// readings are approximate and garbage collection between snapshots can make
// a pool appear to grow.
func (s MemorySnapshot) Diff(post MemorySnapshot) StorageMeasurement {
	var m StorageMeasurement
	if used := post.PersistentUsed(); used > s.PersistentUsed() {
		m.PersistentBytes = used - s.PersistentUsed()
	}
	if free := s.transientFree(); free > post.transientFree() {
		m.TransientBytes = free - post.transientFree()
	}
	return m
}

// MeasurementRecord pairs a package with its measurement and the release it
// was published in. It is the unit stored in the dedup cache and merged into
// aggregate documents. ReleaseID is empty for store-sourced packages.
type MeasurementRecord struct {
	// Package identifies the measured artifact.
	Package PackageRef `json:"package"`

	// Measurement is the measured footprint.
	Measurement StorageMeasurement `json:"measurement"`

	// ReleaseID names the release the artifact belongs to, when the catalog
	// source groups packages into releases.
	ReleaseID string `json:"release_id,omitempty"`
}
