package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey stores the logger in the command context. Shared with the
// cli package through LoggerKey.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the tree the config search
// goes.
const maxUpwardSearchLevels = 10

var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// ResetConfig clears loader state. Used by tests.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func configExistsIn(dir string) string {
	for _, name := range []string{"pharmgo.yaml", "pharmgo.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a pharmgo
// config file. Empty when none is found within the search limit.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root. Priority: the explicit
// config file's directory, then an upward search from the working
// directory, then the working directory itself.
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
		return cwd
	}
	return "."
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment and flags.
// Precedence (highest to lowest): flags > env > config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	projectRoot := inferProjectRoot(cfgFile)

	// Flag paths are relative to the working directory, not the project
	// root, so pin them before resolution.
	flagPaths := map[string]string{}
	if flags != nil {
		for flagName, key := range map[string]string{
			"models-dir": "models_dir",
			"data-dir":   "data_dir",
			"runs-dir":   "runs_dir",
			"state":      "state_path",
		} {
			if flags.Changed(flagName) {
				if v, _ := flags.GetString(flagName); v != "" {
					abs, err := filepath.Abs(v)
					if err != nil {
						abs = filepath.Clean(v)
					}
					flagPaths[key] = abs
				}
			}
		}
	}

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"models_dir": DefaultModelsDir,
		"data_dir":   DefaultDataDir,
		"runs_dir":   DefaultRunsDir,
		"state_path": DefaultStateFile,
		"runner":     "",
		"threads":    DefaultThreads,
		"output":     DefaultOutput,
		"verbose":    0,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// PHARMGO_MODELS_DIR -> models_dir
	if err := k.Load(env.Provider("PHARMGO_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PHARMGO_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// the CLI uses --state, the config key is state_path
			if key == "state" {
				key = "state_path"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	for key, target := range map[string]*string{
		"models_dir": &cfg.ModelsDir,
		"data_dir":   &cfg.DataDir,
		"runs_dir":   &cfg.RunsDir,
		"state_path": &cfg.StatePath,
	} {
		if abs, ok := flagPaths[key]; ok {
			*target = abs
		} else {
			*target = resolvePathRelativeTo(*target, projectRoot)
		}
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the config file path in effect, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key for the logger, letting the
// commands package read it without importing the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
