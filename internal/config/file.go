package config

// AppConfig holds per-app installer settings from the .cardmeter file.
// Apps published in the package store install via named recipes rather than
// raw CAP files; the recipe argument lists here are passed verbatim to the
// external installer.
type AppConfig struct {
	// InstallArgs are the installer arguments that install this app,
	// e.g. ["--run", "cc68e88c/install"].
	InstallArgs []string `yaml:"installArgs,omitempty"`

	// UninstallArgs are the installer arguments that remove this app.
	UninstallArgs []string `yaml:"uninstallArgs,omitempty"`

	// OverheadBytes is subtracted from the measured persistent footprint.
	// Some install recipes allocate containers (an NDEF container, for
	// example) whose size is a recipe parameter, not part of the applet.
	OverheadBytes uint64 `yaml:"overheadBytes,omitempty"`
}

// RepoRef names one repository whose releases are measured.
type RepoRef struct {
	// Owner is the repository owner or organization.
	Owner string `yaml:"owner"`

	// Repo is the repository name.
	Repo string `yaml:"repo"`
}

// File represents the structure of the .cardmeter configuration file.
type File struct {
	// Installer overrides the default installer invocation.
	Installer InstallerConfig `yaml:"installer,omitempty"`

	// Apps maps app names to their install recipes and adjustments.
	Apps map[string]AppConfig `yaml:"apps,omitempty"`

	// MemoryApp names the entry in Apps whose recipe installs the
	// free-memory reporting applet the probe depends on.
	MemoryApp string `yaml:"memoryApp,omitempty"`

	// Repos lists the repositories the releases command measures when
	// --owner/--repo are not given.
	Repos []RepoRef `yaml:"repos,omitempty"`

	// Store overrides the package store API settings.
	Store StoreConfig `yaml:"store,omitempty"`
}

// InstallerConfig overrides the external installer invocation.
type InstallerConfig struct {
	// Command is the executable launched for each install/uninstall.
	Command string `yaml:"command,omitempty"`

	// Jar is the installer jar path.
	Jar string `yaml:"jar,omitempty"`
}

// StoreConfig overrides the package store API settings.
type StoreConfig struct {
	// BaseURL is the store API root.
	BaseURL string `yaml:"baseURL,omitempty"`
}

// NewFile returns an empty File with initialized maps.
func NewFile() *File {
	return &File{Apps: make(map[string]AppConfig)}
}

// AppConfigFor returns the recipe configuration for the named app and
// whether one exists.
func (f *File) AppConfigFor(name string) (AppConfig, bool) {
	ac, ok := f.Apps[name]
	return ac, ok
}
