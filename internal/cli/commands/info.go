package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/pharmgo/pharmgo/internal/cli/config"
	"github.com/pharmgo/pharmgo/internal/cli/output"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			cfg := cmdCtx.Cfg
			r := cmdCtx.Renderer

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{
					"version":      version,
					"go":           runtime.Version(),
					"config_file":  config.GetConfigFileUsed(),
					"project_root": cfg.ProjectRoot,
					"models_dir":   cfg.ModelsDir,
					"data_dir":     cfg.DataDir,
					"runs_dir":     cfg.RunsDir,
					"state_path":   cfg.StatePath,
					"runner":       cfg.Runner,
					"threads":      cfg.Threads,
				})
			}

			r.KeyValue("Version", version)
			r.KeyValue("Go", runtime.Version())
			if f := config.GetConfigFileUsed(); f != "" {
				r.KeyValue("Config", f)
			}
			r.KeyValue("Project root", cfg.ProjectRoot)
			r.KeyValue("Models dir", cfg.ModelsDir)
			r.KeyValue("Data dir", cfg.DataDir)
			r.KeyValue("Runs dir", cfg.RunsDir)
			r.KeyValue("State", cfg.StatePath)
			if cfg.Runner != "" {
				r.KeyValue("Runner", cfg.Runner)
			}
			r.KeyValue("Threads", cfg.Threads)
			return nil
		},
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, buildDate, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			r := NewCommandContext(cmd).Renderer
			r.Printf("pharmgo v%s\n", version)
			if buildDate != "unknown" {
				r.KeyValue("Built", buildDate)
			}
			if gitCommit != "unknown" {
				r.KeyValue("Commit", gitCommit)
			}
		},
	}
}
