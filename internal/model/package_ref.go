package model

import "fmt"

// PackageRef identifies an installable smart-card applet artifact.
// Name is stable across versions; Version is an opaque token compared only
// for equality (no ordering is assumed between version strings).
// Location is an opaque handle that the catalog source resolves to a local
// artifact, typically a download URL or a recipe identifier.
//
// A PackageRef is immutable once produced by a catalog source.
type PackageRef struct {
	// Name is the package name, stable across all versions.
	Name string `json:"name"`

	// Version is the package version token. Treated as opaque: two refs
	// are the same version iff the strings are equal.
	Version string `json:"version"`

	// Location is the artifact handle resolved by the catalog source.
	// It does not participate in identity.
	Location string `json:"location,omitempty"`
}

// String returns "name version" for progress lines and log output.
func (p PackageRef) String() string {
	if p.Version == "" {
		return p.Name
	}
	return fmt.Sprintf("%s %s", p.Name, p.Version)
}

// DedupKey uniquely identifies a measured (name, version) pair.
// At most one MeasurementRecord exists per DedupKey; re-encountering a key
// is a skip, never a re-measurement.
type DedupKey struct {
	// Name is the package name component of the key.
	Name string

	// Version is the package version component of the key.
	Version string
}

// Key returns the DedupKey for this package reference.
func (p PackageRef) Key() DedupKey {
	return DedupKey{Name: p.Name, Version: p.Version}
}

// String returns "name@version" for log output.
func (k DedupKey) String() string {
	return k.Name + "@" + k.Version
}
