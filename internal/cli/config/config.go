// Package config loads CLI configuration from defaults, pharmgo.yaml,
// PHARMGO_* environment variables and flags, in rising precedence.
package config

// Config holds all CLI configuration options.
type Config struct {
	ModelsDir    string `koanf:"models_dir"`
	DataDir      string `koanf:"data_dir"`
	RunsDir      string `koanf:"runs_dir"`
	StatePath    string `koanf:"state_path"`
	Runner       string `koanf:"runner"` // estimation command template
	Threads      int    `koanf:"threads"`
	OutputFormat string `koanf:"output"`
	Verbose      int    `koanf:"verbose"`

	// ProjectRoot anchors relative paths. Set during loading, not a
	// config key.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultModelsDir = "models"
	DefaultDataDir   = "data"
	DefaultRunsDir   = "runs"
	DefaultStateFile = ".pharmgo/state.db"
	DefaultThreads   = 4
	DefaultOutput    = "auto"
)
