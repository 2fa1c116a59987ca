package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These mirror the behavior of the measurement rig the tool was built for:
// a single PC/SC reader, the fdsm installer, and a package store catalog.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "cardmeter"

	// DefaultStoreBaseURL is the package store API queried by the store
	// catalog source. Endpoints under it list apps and their versions.
	DefaultStoreBaseURL = "https://api.fidesmo.com"

	// DefaultReleasesBaseURL is the repository hosting API queried by the
	// releases catalog source.
	DefaultReleasesBaseURL = "https://api.github.com"

	// DefaultInstallerCommand launches the external installer. The installer
	// ships as a jar, so the command is the JVM.
	DefaultInstallerCommand = "java"

	// DefaultInstallerJar is the installer jar invoked for every install and
	// uninstall. Looked up relative to the working directory unless the
	// config file overrides it with an absolute path.
	DefaultInstallerJar = "fdsm.jar"

	// DefaultOutputDir is where the aggregate JSON documents are written.
	DefaultOutputDir = "."

	// DefaultCatalogTimeout bounds each catalog HTTP request. Store and
	// release listings are small JSON responses; a minute is generous.
	DefaultCatalogTimeout = time.Minute

	// DefaultProbeRetries is how many times the memory probe retries a
	// transient reader error before giving up. Contactless readers drop the
	// field briefly after an installer run, so the first transmissions after
	// an install routinely fail.
	DefaultProbeRetries = 10

	// DefaultProbeRetryDelay is the pause between probe retries.
	DefaultProbeRetryDelay = 100 * time.Millisecond

	// OutputFilePrefix is the stem of the aggregate document filenames:
	// <prefix>_app.json and <prefix>_release.json.
	OutputFilePrefix = "applet_storage_by"
)

// Mode selects which aggregate documents a run produces.
type Mode string

// Output grouping modes. ModeApp groups measurements by package name with
// versions nested under it; ModeRelease groups by release identifier with
// package names nested under it; ModeBoth produces both documents from the
// same measurement pass.
const (
	ModeApp     Mode = "app"
	ModeRelease Mode = "release"
	ModeBoth    Mode = "both"
)

// App reports whether the app-grouped document should be produced.
func (m Mode) App() bool { return m == ModeApp || m == ModeBoth }

// Release reports whether the release-grouped document should be produced.
func (m Mode) Release() bool { return m == ModeRelease || m == ModeBoth }

// Valid reports whether m is one of the recognized modes.
func (m Mode) Valid() bool {
	return m == ModeApp || m == ModeRelease || m == ModeBoth
}

// Config holds all options for a measurement run. It is populated from CLI
// flags and the optional .cardmeter file, then passed through the application
// by value reference rather than global state.
type Config struct {
	// ReaderSelector filters readers by substring match. Empty picks the
	// first reader reporting a present card.
	ReaderSelector string

	// App restricts the run to a single named package. Empty measures all
	// packages the catalog yields.
	App string

	// Mode selects which aggregate documents are produced. The store catalog
	// has no release grouping, so the store command always runs ModeApp.
	Mode Mode

	// Owner and Repo override the configured repository set with exactly one
	// target. Both must be set together or both left empty.
	Owner string
	Repo  string

	// OutputDir is the directory receiving the aggregate JSON documents.
	OutputDir string

	// ConfigFilePath is an explicit .cardmeter path. Empty triggers the
	// search order: current directory, then home directory.
	ConfigFilePath string

	// InstallerCommand and InstallerJar define the external installer
	// invocation: <command> -jar <jar> --reader <reader> <action args>.
	InstallerCommand string
	InstallerJar     string

	// StoreBaseURL is the package store API root.
	StoreBaseURL string

	// ReleasesBaseURL is the repository hosting API root.
	ReleasesBaseURL string

	// CatalogTimeout bounds each catalog HTTP request.
	CatalogTimeout time.Duration

	// DBDir is the directory holding the measurement database.
	DBDir string

	// Verbose enables slog.LevelDebug output, including APDU traces.
	Verbose bool

	// File holds the parsed .cardmeter file contents (app recipes,
	// repository list, installer overrides). Never nil after loading.
	File *File
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Mode:             ModeApp,
		OutputDir:        DefaultOutputDir,
		InstallerCommand: DefaultInstallerCommand,
		InstallerJar:     DefaultInstallerJar,
		StoreBaseURL:     DefaultStoreBaseURL,
		ReleasesBaseURL:  DefaultReleasesBaseURL,
		CatalogTimeout:   DefaultCatalogTimeout,
		DBDir:            XDGDataDir(),
		File:             NewFile(),
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return ErrInvalidMode
	}
	if (c.Owner == "") != (c.Repo == "") {
		return ErrOwnerRepoPair
	}
	if c.CatalogTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	return nil
}

// XDGDataDir returns the XDG data directory for cardmeter.
// On Linux: ~/.local/share/cardmeter
// On macOS: ~/Library/Application Support/cardmeter
// On Windows: %LOCALAPPDATA%\cardmeter
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for cardmeter.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
