package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/model"
)

// ReleaseSource lists CAP assets attached to repository releases.
//
// Each CAP asset is one package: its name is the asset filename stem and
// its version is the release tag. The release tag also serves as the
// release grouping key. The dedup key must exist before any download
// happens, so identity comes from the listing; the CAP manifest is read
// after download only to flag identity mismatches (renamed assets), never
// to change the key.
type ReleaseSource struct {
	baseURL string
	repos   []config.RepoRef
	client  *http.Client
	logger  *slog.Logger

	// appFilter restricts the listing to assets whose stem matches.
	appFilter string

	// downloadDir receives fetched artifacts. Defaults to a fresh temp dir.
	downloadDir string
}

// ghRelease is the subset of the releases API response we consume.
type ghRelease struct {
	TagName string    `json:"tag_name"`
	Assets  []ghAsset `json:"assets"`
}

// ghAsset is one release asset.
type ghAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// ReleaseOption configures a ReleaseSource.
type ReleaseOption func(*ReleaseSource)

// WithReleaseAppFilter restricts the listing to one named package.
func WithReleaseAppFilter(name string) ReleaseOption {
	return func(r *ReleaseSource) {
		r.appFilter = name
	}
}

// WithReleaseHTTPClient replaces the default HTTP client.
func WithReleaseHTTPClient(client *http.Client) ReleaseOption {
	return func(r *ReleaseSource) {
		r.client = client
	}
}

// WithReleaseDownloadDir sets the artifact download directory.
func WithReleaseDownloadDir(dir string) ReleaseOption {
	return func(r *ReleaseSource) {
		r.downloadDir = dir
	}
}

// WithReleaseLogger sets a custom logger.
func WithReleaseLogger(logger *slog.Logger) ReleaseOption {
	return func(r *ReleaseSource) {
		r.logger = logger
	}
}

// NewReleaseSource creates a releases catalog source over the given repos.
func NewReleaseSource(baseURL string, repos []config.RepoRef, timeout time.Duration, opts ...ReleaseOption) *ReleaseSource {
	r := &ReleaseSource{
		baseURL: baseURL,
		repos:   repos,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name identifies the source.
func (r *ReleaseSource) Name() string { return "releases" }

// List walks every configured repository's releases in API order and yields
// one entry per CAP asset.
func (r *ReleaseSource) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	for _, repo := range r.repos {
		u := fmt.Sprintf("%s/repos/%s/%s/releases", r.baseURL, repo.Owner, repo.Repo)

		var releases []ghRelease
		if err := r.getJSON(ctx, u, &releases); err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", ErrCatalogUnavailable, repo.Owner, repo.Repo, err)
		}

		for _, rel := range releases {
			for _, asset := range rel.Assets {
				if !strings.EqualFold(path.Ext(asset.Name), ".cap") {
					continue
				}
				name := strings.TrimSuffix(asset.Name, path.Ext(asset.Name))
				if r.appFilter != "" && name != r.appFilter {
					continue
				}
				entries = append(entries, Entry{
					Ref: model.PackageRef{
						Name:     name,
						Version:  rel.TagName,
						Location: asset.DownloadURL,
					},
					ReleaseID: rel.TagName,
				})
			}
		}
	}
	return entries, nil
}

// Fetch downloads the entry's CAP asset and verifies its manifest identity
// against the listing-derived identity. A mismatch is logged, not fatal:
// the dedup key stays asset-derived so cached entries never change key.
func (r *ReleaseSource) Fetch(ctx context.Context, e Entry) (string, error) {
	dir := r.downloadDir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "cardmeter-artifacts-")
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
		}
		r.downloadDir = dir
	}

	dest := filepath.Join(dir, fmt.Sprintf("%s-%s.cap", e.Ref.Name, sanitize(e.Ref.Version)))
	if err := r.download(ctx, e.Ref.Location, dest); err != nil {
		return "", err
	}

	id, err := ExtractIdentity(dest)
	if err != nil {
		return "", err
	}
	if id.Name != "" && !strings.EqualFold(id.Name, e.Ref.Name) {
		r.logger.Warn("artifact manifest identity differs from asset identity",
			"asset", e.Ref.Name,
			"assetVersion", e.Ref.Version,
			"manifestName", id.Name,
			"manifestVersion", id.Version,
		)
	}
	return dest, nil
}

// download streams a URL to a local file.
func (r *ReleaseSource) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s", ErrArtifactUnavailable, resp.Status)
	}

	f, err := os.Create(dest) //nolint:gosec // Destination is built from sanitized entry fields
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	return nil
}

// getJSON fetches a URL and decodes its JSON body into v.
func (r *ReleaseSource) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s for %s", resp.Status, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// sanitize makes a version token safe for use in a filename.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
