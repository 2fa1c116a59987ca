package catalog

import (
	"context"
	"errors"

	"github.com/applet-tools/cardmeter/internal/model"
)

// Catalog errors.
var (
	// ErrCatalogUnavailable is returned when the remote catalog cannot be
	// listed. Fatal at startup: a run without a catalog has nothing to do.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrMalformedArtifact is returned when an artifact's identity cannot
	// be extracted from its manifest.
	ErrMalformedArtifact = errors.New("malformed artifact")

	// ErrArtifactUnavailable is returned when an artifact download fails.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
)

// Entry is one (package, release, artifact) tuple yielded by a source.
type Entry struct {
	// Ref identifies the package. Ref.Location is the source-specific
	// artifact handle Fetch resolves.
	Ref model.PackageRef

	// ReleaseID names the release the artifact belongs to; empty for
	// sources without release grouping.
	ReleaseID string
}

// Source enumerates catalog entries and resolves their artifacts.
type Source interface {
	// Name identifies the source in logs and progress output.
	Name() string

	// List returns all entries in the remote source's order. The listing
	// is finite and fetched fresh on every call.
	List(ctx context.Context) ([]Entry, error)

	// Fetch resolves an entry's artifact to a local file path. Sources
	// whose packages install by recipe rather than artifact return an
	// empty path.
	Fetch(ctx context.Context, e Entry) (string, error)
}
