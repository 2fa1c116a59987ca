package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/applet-tools/cardmeter/internal/model"
)

// StoreSource lists apps and versions from a package store API.
//
// The store publishes two endpoints: GET /apps returning the app listing,
// and GET /apps/{name}/versions returning the published versions of one
// app. Store apps install through installer recipes, so entries carry the
// recipe identifier as their location and Fetch returns no local artifact.
type StoreSource struct {
	baseURL string
	client  *http.Client

	// appFilter restricts the listing to one named app when non-empty.
	appFilter string
}

// storeApp is the store's app listing shape.
type storeApp struct {
	Name   string `json:"name"`
	Recipe string `json:"recipe"`
}

// storeVersion is the store's version listing shape.
type storeVersion struct {
	Version string `json:"version"`
}

// StoreOption configures a StoreSource.
type StoreOption func(*StoreSource)

// WithStoreAppFilter restricts the listing to one named app.
func WithStoreAppFilter(name string) StoreOption {
	return func(s *StoreSource) {
		s.appFilter = name
	}
}

// WithStoreHTTPClient replaces the default HTTP client.
func WithStoreHTTPClient(client *http.Client) StoreOption {
	return func(s *StoreSource) {
		s.client = client
	}
}

// NewStoreSource creates a store catalog source rooted at baseURL.
func NewStoreSource(baseURL string, timeout time.Duration, opts ...StoreOption) *StoreSource {
	s := &StoreSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the source.
func (s *StoreSource) Name() string { return "store" }

// List walks the app listing and each app's versions, in store order.
func (s *StoreSource) List(ctx context.Context) ([]Entry, error) {
	var apps []storeApp
	if err := s.getJSON(ctx, s.baseURL+"/apps", &apps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	var entries []Entry
	for _, app := range apps {
		if s.appFilter != "" && app.Name != s.appFilter {
			continue
		}

		var versions []storeVersion
		u := fmt.Sprintf("%s/apps/%s/versions", s.baseURL, url.PathEscape(app.Name))
		if err := s.getJSON(ctx, u, &versions); err != nil {
			return nil, fmt.Errorf("%w: versions of %s: %v", ErrCatalogUnavailable, app.Name, err)
		}

		for _, v := range versions {
			entries = append(entries, Entry{
				Ref: model.PackageRef{
					Name:     app.Name,
					Version:  v.Version,
					Location: app.Recipe,
				},
			})
		}
	}
	return entries, nil
}

// Fetch returns no artifact: store apps install by recipe.
func (s *StoreSource) Fetch(context.Context, Entry) (string, error) {
	return "", nil
}

// getJSON fetches a URL and decodes its JSON body into v.
func (s *StoreSource) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s for %s", resp.Status, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
