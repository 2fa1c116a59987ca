package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"time"

	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/model"
)

// ErrNoMemoryApplet is returned when the free-memory applet must be
// installed but no recipe for it is configured.
var ErrNoMemoryApplet = errors.New("no memory applet recipe configured (set memoryApp in .cardmeter)")

// cardAppRe extracts installed recipe identifiers from --card-apps output.
var cardAppRe = regexp.MustCompile(`([a-f0-9]{8}) -`)

// Result is the raw outcome of one installer process invocation.
type Result struct {
	// ExitCode is the process exit code; 0 means the installer believes
	// the operation succeeded.
	ExitCode int

	// Stdout and Stderr are the captured process output.
	Stdout string
	Stderr string

	// Elapsed is the wall time the invocation took.
	Elapsed time.Duration
}

// Executor shells out to the installer jar for installs and uninstalls.
// One Executor is bound to one reader for the duration of a run.
type Executor struct {
	command string
	jar     string
	reader  string
	apps    map[string]config.AppConfig
	memApp  string
	verbose bool
	logger  *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithVerboseTracing appends the installer's APDU tracing flags to every
// invocation.
func WithVerboseTracing(verbose bool) ExecutorOption {
	return func(e *Executor) {
		e.verbose = verbose
	}
}

// WithExecutorLogger sets a custom logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor from the run configuration, bound to the
// named reader.
func NewExecutor(cfg *config.Config, reader string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		command: cfg.InstallerCommand,
		jar:     cfg.InstallerJar,
		reader:  reader,
		apps:    cfg.File.Apps,
		memApp:  cfg.File.MemoryApp,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs one installer invocation with the given action arguments.
// The process blocks until the installer returns; a hang is left visible
// to the operator rather than silently killed, so the only way out early
// is context cancellation.
func (e *Executor) Run(ctx context.Context, args ...string) (Result, error) {
	full := []string{"-jar", e.jar, "--reader", e.reader}
	if e.verbose {
		full = append(full, "--verbose", "--trace-apdu")
	}
	full = append(full, args...)

	e.logger.Debug("running installer", "command", e.command, "args", full)

	cmd := exec.CommandContext(ctx, e.command, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The process never ran (missing jar, missing JVM, cancelled).
			return res, fmt.Errorf("installer did not run: %w", err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	if res.Stderr != "" {
		e.logger.Debug("installer stderr", "stderr", res.Stderr)
	}
	return res, nil
}

// Install installs pkg and classifies the result. Apps with a configured
// recipe install by recipe; everything else installs from its CAP artifact.
func (e *Executor) Install(ctx context.Context, pkg model.PackageRef, artifact string) (Outcome, error) {
	args, err := e.installArgs(pkg, artifact)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}, err
	}
	res, err := e.Run(ctx, args...)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}, err
	}
	return ClassifyInstall(res), nil
}

// Uninstall removes pkg and classifies the result.
func (e *Executor) Uninstall(ctx context.Context, pkg model.PackageRef, artifact string) (Outcome, error) {
	args, err := e.uninstallArgs(pkg, artifact)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}, err
	}
	res, err := e.Run(ctx, args...)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}, err
	}
	return ClassifyUninstall(res), nil
}

// InstallMemoryApplet installs the free-memory reporting applet the probe
// depends on, using the configured recipe.
func (e *Executor) InstallMemoryApplet(ctx context.Context) error {
	if e.memApp == "" {
		return ErrNoMemoryApplet
	}
	ac, ok := e.apps[e.memApp]
	if !ok || len(ac.InstallArgs) == 0 {
		return ErrNoMemoryApplet
	}
	res, err := e.Run(ctx, ac.InstallArgs...)
	if err != nil {
		return err
	}
	if out := ClassifyInstall(res); out.Status != StatusOK && out.Status != StatusAlreadyInstalled {
		return fmt.Errorf("memory applet install failed: %s", out.Reason)
	}
	return nil
}

// ListCardApps returns the recipe identifiers of everything currently
// installed on the card.
func (e *Executor) ListCardApps(ctx context.Context) ([]string, error) {
	res, err := e.Run(ctx, "--card-apps")
	if err != nil {
		return nil, err
	}
	var apps []string
	for _, m := range cardAppRe.FindAllStringSubmatch(res.Stdout, -1) {
		apps = append(apps, m[1])
	}
	return apps, nil
}

// UninstallRecipe removes an app by its recipe identifier. Used during
// pre-run cleanup of leftovers from interrupted runs.
func (e *Executor) UninstallRecipe(ctx context.Context, recipe string) error {
	res, err := e.Run(ctx, "--run", recipe+"/destroy")
	if err != nil {
		return err
	}
	if out := ClassifyUninstall(res); out.Status != StatusOK {
		return fmt.Errorf("%s: %s", out.Status, out.Reason)
	}
	return nil
}

// MemoryAppletRecipe returns the recipe identifier of the memory applet's
// install recipe, when one is configured. The pre-run cleanup must not
// remove it.
func (e *Executor) MemoryAppletRecipe() string {
	ac, ok := e.apps[e.memApp]
	if !ok || len(ac.InstallArgs) == 0 {
		return ""
	}
	return recipeID(ac.InstallArgs)
}

// installArgs builds the action arguments for installing pkg.
func (e *Executor) installArgs(pkg model.PackageRef, artifact string) ([]string, error) {
	if ac, ok := e.apps[pkg.Name]; ok && len(ac.InstallArgs) > 0 {
		return ac.InstallArgs, nil
	}
	if artifact == "" {
		return nil, fmt.Errorf("no install recipe and no artifact for %s", pkg)
	}
	return []string{"--install", artifact}, nil
}

// uninstallArgs builds the action arguments for removing pkg.
func (e *Executor) uninstallArgs(pkg model.PackageRef, artifact string) ([]string, error) {
	if ac, ok := e.apps[pkg.Name]; ok && len(ac.UninstallArgs) > 0 {
		return ac.UninstallArgs, nil
	}
	if artifact == "" {
		return nil, fmt.Errorf("no uninstall recipe and no artifact for %s", pkg)
	}
	return []string{"--uninstall", artifact}, nil
}

// recipeID extracts the recipe identifier from a "--run <id>/<action>"
// argument list, or returns empty when the args are not recipe-shaped.
func recipeID(args []string) string {
	for i, a := range args {
		if a == "--run" && i+1 < len(args) {
			run := args[i+1]
			for j := 0; j < len(run); j++ {
				if run[j] == '/' {
					return run[:j]
				}
			}
			return run
		}
	}
	return ""
}
