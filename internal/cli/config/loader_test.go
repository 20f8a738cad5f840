package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("models-dir", "", "")
	flags.String("data-dir", "", "")
	flags.String("runs-dir", "", "")
	flags.String("state", "", "")
	flags.String("runner", "", "")
	flags.Int("threads", 0, "")
	flags.String("output", "", "")
	return flags
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DefaultModelsDir), cfg.ModelsDir)
	assert.Equal(t, filepath.Join(dir, DefaultRunsDir), cfg.RunsDir)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultThreads, cfg.Threads)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfigFile(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "models_dir: mods\nthreads: 8\nrunner: nmfe75 {model}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pharmgo.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "mods"), cfg.ModelsDir)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, "nmfe75 {model}", cfg.Runner)
	assert.Equal(t, filepath.Join(dir, "pharmgo.yaml"), GetConfigFileUsed())
}

func TestLoadConfigUpwardSearch(t *testing.T) {
	t.Cleanup(ResetConfig)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pharmgo.yaml"), []byte("threads: 2\n"), 0o644))
	sub := filepath.Join(root, "models", "phase1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	chdir(t, sub)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, root, cfg.ProjectRoot)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pharmgo.yaml"), []byte("threads: 2\n"), 0o644))
	t.Setenv("PHARMGO_THREADS", "6")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Threads)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("PHARMGO_THREADS", "6")

	flags := testFlags()
	require.NoError(t, flags.Set("threads", "3"))
	require.NoError(t, flags.Set("state", "history.db"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Threads)
	// --state is relative to the working directory
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.StatePath)
}

func TestLoadConfigExplicitFileSetsRoot(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	other := t.TempDir()
	chdir(t, other)
	cfgPath := filepath.Join(dir, "pharmgo.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("models_dir: m\n"), 0o644))

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "m"), cfg.ModelsDir)
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pharmgo.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(":\tnot yaml"), 0o644))

	_, err := LoadConfig(cfgPath, nil)
	assert.ErrorContains(t, err, "error reading config file")
}
