package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pharmgo/pharmgo/internal/cli/output"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded tool runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(runs)
			}

			var rows [][]string
			for _, run := range runs {
				completed := ""
				if run.CompletedAt != nil {
					completed = run.CompletedAt.Format(time.DateTime)
				}
				rows = append(rows, []string{
					run.ID[:8],
					run.Tool,
					run.Model,
					string(run.Status),
					run.StartedAt.Format(time.DateTime),
					completed,
				})
			}
			r.Table([]string{"ID", "Tool", "Model", "Status", "Started", "Completed"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "runs to show")
	return cmd
}
