package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/model"
)

// Store persists aggregate documents as JSON files in an output
// directory. Each save writes to a temporary file first and renames it
// into place, so readers never observe a partially written document.
type Store struct {
	outputDir string
}

// NewStore creates a Store rooted at the given output directory.
// The directory is created if it does not exist.
func NewStore(outputDir string) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Store{outputDir: outputDir}, nil
}

// AppPath returns the path of the app-grouped document file.
func (s *Store) AppPath() string {
	return filepath.Join(s.outputDir, config.OutputFilePrefix+"_app.json")
}

// ReleasePath returns the path of the release-grouped document file.
func (s *Store) ReleasePath() string {
	return filepath.Join(s.outputDir, config.OutputFilePrefix+"_release.json")
}

// SaveApp writes the app-grouped document. A nil document is a no-op.
func (s *Store) SaveApp(doc model.AggregateDocument) error {
	if doc == nil {
		return nil
	}
	return s.save(s.AppPath(), doc)
}

// SaveRelease writes the release-grouped document. A nil document is a
// no-op.
func (s *Store) SaveRelease(doc model.AggregateDocument) error {
	if doc == nil {
		return nil
	}
	return s.save(s.ReleasePath(), doc)
}

// save writes the document to path via a temporary file and rename.
func (s *Store) save(path string, doc model.AggregateDocument) error {
	tmp, err := os.CreateTemp(s.outputDir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	w := NewJSONWriter(tmp, WithPrettyPrint())
	if _, err := w.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
