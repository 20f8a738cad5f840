// Package commands implements the pharmgo subcommands.
package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pharmgo/pharmgo/internal/cli/config"
	"github.com/pharmgo/pharmgo/internal/cli/output"
	"github.com/pharmgo/pharmgo/internal/state"
)

// CommandContext bundles what every command needs.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the command context from the loaded config.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// OpenStore opens the run history database, creating its directory.
func (c *CommandContext) OpenStore() (*state.Store, error) {
	dir := filepath.Dir(c.Cfg.StatePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	return state.Open(c.Cfg.StatePath, c.Logger)
}

// getConfig returns the loaded configuration, falling back to the
// environment so commands keep working when called outside the root
// command.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	threads := config.DefaultThreads
	if v := os.Getenv("PHARMGO_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			threads = n
		}
	}
	return &config.Config{
		ModelsDir:    getEnvOrDefault("PHARMGO_MODELS_DIR", config.DefaultModelsDir),
		DataDir:      getEnvOrDefault("PHARMGO_DATA_DIR", config.DefaultDataDir),
		RunsDir:      getEnvOrDefault("PHARMGO_RUNS_DIR", config.DefaultRunsDir),
		StatePath:    getEnvOrDefault("PHARMGO_STATE_PATH", config.DefaultStateFile),
		Runner:       os.Getenv("PHARMGO_RUNNER"),
		Threads:      threads,
		OutputFormat: getEnvOrDefault("PHARMGO_OUTPUT", config.DefaultOutput),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// writeGuard refuses to overwrite an existing file without --force.
func writeGuard(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return &ExistsError{Path: path}
	}
	return nil
}

// ExistsError reports a refused overwrite.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return "file exists: " + e.Path + " (use --force to overwrite)"
}
