package commands

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pharmgo/pharmgo/internal/cli/output"
	"github.com/pharmgo/pharmgo/internal/rundir"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/results"
)

// NewResultsCommand creates the results command.
func NewResultsCommand() *cobra.Command {
	var follow bool
	var jsonOut bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "results MODEL",
		Short: "Summarize estimation results for a model",
		Long: `Read the output files next to a model's control stream and summarize
the final estimation step. With --follow the command first waits for the
.lst file to appear and settle, for watching a run in progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			m, err := model.ReadModel(args[0])
			if err != nil {
				return err
			}

			if follow {
				dir, err := rundir.Open(filepath.Dir(m.Path()))
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				lst := strings.TrimSuffix(filepath.Base(m.Path()), filepath.Ext(m.Path())) + ".lst"
				if _, err := dir.WaitForFile(ctx, lst, 0, cmdCtx.Logger); err != nil {
					return fmt.Errorf("waiting for %s: %w", lst, err)
				}
			}

			res, err := results.Read(m)
			if err != nil {
				return err
			}
			if jsonOut || cmdCtx.Renderer.EffectiveMode() == output.ModeJSON {
				return renderResultsJSON(cmdCtx.Renderer, m, res)
			}
			renderResultsText(cmdCtx.Renderer, m, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "wait for the .lst file before reading")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up following after this long")
	return cmd
}

type resultsSummary struct {
	Model        string             `json:"model"`
	Method       string             `json:"method,omitempty"`
	OFV          *float64           `json:"ofv,omitempty"`
	Minimization string             `json:"minimization,omitempty"`
	Estimates    map[string]float64 `json:"estimates,omitempty"`
	Errors       map[string]float64 `json:"standard_errors,omitempty"`
	Runtime      float64            `json:"runtime_seconds,omitempty"`
	Log          []string           `json:"log,omitempty"`
}

func renderResultsJSON(r *output.Renderer, m *model.Model, res *results.ModelfitResults) error {
	s := resultsSummary{Model: m.Name(), Log: res.Log}
	if f := res.Final(); f != nil {
		s.Method = f.Method
		v := f.OFV
		s.OFV = &v
		s.Minimization = minimizationText(f)
		s.Estimates = f.ParameterEstimates
		s.Errors = f.StandardErrors
		s.Runtime = f.EstimationRuntime
	}
	return r.JSON(s)
}

func renderResultsText(r *output.Renderer, m *model.Model, res *results.ModelfitResults) {
	r.Header(m.Name())
	f := res.Final()
	if f == nil {
		r.Println("no estimation results found")
		return
	}
	r.KeyValue("Method", f.Method)
	r.KeyValue("OFV", fmt.Sprintf("%.6g", f.OFV))
	r.KeyValue("Minimization", minimizationText(f))
	if f.CovarianceStepOK {
		r.KeyValue("Covariance", "ok")
	}
	if f.EstimationRuntime > 0 {
		r.KeyValue("Runtime", fmt.Sprintf("%.1fs", f.EstimationRuntime))
	}

	names := make([]string, 0, len(f.ParameterEstimates))
	for name := range f.ParameterEstimates {
		names = append(names, name)
	}
	sort.Strings(names)
	var rows [][]string
	for _, name := range names {
		se := ""
		if v, ok := f.StandardErrors[name]; ok && !math.IsNaN(v) {
			se = fmt.Sprintf("%.6g", v)
		}
		rows = append(rows, []string{name, fmt.Sprintf("%.6g", f.ParameterEstimates[name]), se})
	}
	r.Table([]string{"Parameter", "Estimate", "SE"}, rows)

	for _, line := range res.Log {
		r.Errorf("note: %s\n", line)
	}
}

func minimizationText(f *results.EstimationResult) string {
	if f.MinimizationFailure {
		return "failed"
	}
	if f.Termination != nil && !f.Termination.MinimizationSuccessful {
		return "terminated"
	}
	return "successful"
}
