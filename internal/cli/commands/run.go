package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pharmgo/pharmgo/internal/cli/output"
	"github.com/pharmgo/pharmgo/internal/tools"
	"github.com/pharmgo/pharmgo/internal/tools/allometry"
	"github.com/pharmgo/pharmgo/internal/tools/covsearch"
	"github.com/pharmgo/pharmgo/internal/tools/iivsearch"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/modeling"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		alpha        float64
		skipBlock    bool
		observations int
		covariate    string
		reference    float64
		parameters   []string
		fixed        bool
		effects      []string
		backward     bool
		pForward     float64
		pBackward    float64
		maxSteps     int
	)
	cmd := &cobra.Command{
		Use:   "run TOOL MODEL",
		Short: "Run a model-search tool",
		Long: `Run a model-search tool on a base model, fitting candidates through
the configured estimation runner. Results are written to a numbered run
directory and recorded in the run history.

Tools: allometry, iivsearch, covsearch`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"allometry", "iivsearch", "covsearch"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			if cmdCtx.Cfg.Runner == "" {
				return fmt.Errorf("no estimation runner configured (set runner in pharmgo.yaml or --runner)")
			}
			m, err := model.ReadModel(args[1])
			if err != nil {
				return err
			}
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := os.MkdirAll(cmdCtx.Cfg.RunsDir, 0o750); err != nil {
				return err
			}
			runner := tools.NewExternalRunner(cmdCtx.Cfg.Runner, cmdCtx.Logger)
			ctx := cmd.Context()

			var res *tools.Results
			switch args[0] {
			case "allometry":
				res, err = allometry.Run(ctx, allometry.Options{
					Model:      m,
					Covariate:  covariate,
					Reference:  reference,
					Parameters: parameters,
					Fixed:      fixed,
					Alpha:      alpha,
					Runner:     runner,
					Workers:    cmdCtx.Cfg.Threads,
					Parent:     cmdCtx.Cfg.RunsDir,
					Store:      store,
					Logger:     cmdCtx.Logger,
				})
			case "iivsearch":
				res, err = iivsearch.Run(ctx, iivsearch.Options{
					Model:        m,
					Alpha:        alpha,
					Observations: observations,
					SkipBlock:    skipBlock,
					Runner:       runner,
					Workers:      cmdCtx.Cfg.Threads,
					Parent:       cmdCtx.Cfg.RunsDir,
					Store:        store,
					Logger:       cmdCtx.Logger,
				})
			case "covsearch":
				var effs []covsearch.Effect
				effs, err = parseEffects(effects)
				if err != nil {
					return err
				}
				res, err = covsearch.Run(ctx, covsearch.Options{
					Model:     m,
					Effects:   effs,
					PForward:  pForward,
					PBackward: pBackward,
					MaxSteps:  maxSteps,
					Backward:  backward,
					Runner:    runner,
					Workers:   cmdCtx.Cfg.Threads,
					Parent:    cmdCtx.Cfg.RunsDir,
					Store:     store,
					Logger:    cmdCtx.Logger,
				})
			default:
				return fmt.Errorf("unknown tool %q", args[0])
			}
			if err != nil {
				return err
			}
			renderToolResults(cmdCtx.Renderer, res)
			return nil
		},
	}
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "significance level (default 0.05)")
	cmd.Flags().BoolVar(&skipBlock, "skip-block", false, "iivsearch: skip the joint block step")
	cmd.Flags().IntVar(&observations, "observations", 0, "iivsearch: dataset observation count for BIC")
	cmd.Flags().StringVar(&covariate, "covariate", "", "allometry: size column (default WT)")
	cmd.Flags().Float64Var(&reference, "reference", 0, "allometry: reference value (default 70)")
	cmd.Flags().StringSliceVar(&parameters, "parameters", nil, "allometry: parameters to scale")
	cmd.Flags().BoolVar(&fixed, "fixed", false, "allometry: fix the exponents")
	cmd.Flags().StringArrayVar(&effects, "effect", nil, "covsearch: candidate effect PARAM:COV:TYPE[:+]")
	cmd.Flags().BoolVar(&backward, "backward", false, "covsearch: backward elimination after the forward search")
	cmd.Flags().Float64Var(&pForward, "p-forward", 0, "covsearch: forward inclusion level (default 0.05)")
	cmd.Flags().Float64Var(&pBackward, "p-backward", 0, "covsearch: backward retention level (default 0.01)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "covsearch: forward step limit (default 5)")
	return cmd
}

func parseEffects(raw []string) ([]covsearch.Effect, error) {
	var effs []covsearch.Effect
	for _, s := range raw {
		parts := strings.Split(s, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("cannot parse effect %q, want PARAM:COV:TYPE", s)
		}
		eff := covsearch.Effect{
			Parameter: parts[0],
			Covariate: parts[1],
			Type:      parts[2],
		}
		switch eff.Type {
		case modeling.EffectLinear, modeling.EffectExponential, modeling.EffectPower, modeling.EffectCategorical:
		default:
			return nil, fmt.Errorf("unknown effect type %q", eff.Type)
		}
		if len(parts) > 3 {
			eff.Operation = parts[3]
		}
		effs = append(effs, eff)
	}
	return effs, nil
}

func renderToolResults(r *output.Renderer, res *tools.Results) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(res)
		return
	}
	r.Header(res.Tool)
	r.KeyValue("Base", res.BaseModel)
	if res.BaseOFV != nil {
		r.KeyValue("Base OFV", fmt.Sprintf("%.6g", *res.BaseOFV))
	}
	r.KeyValue("Best", res.BestModel)

	var rows [][]string
	for _, c := range res.Candidates {
		rows = append(rows, []string{
			c.Name,
			c.Description,
			formatOptFloat(c.OFV),
			formatOptFloat(c.PValue),
			boolMark(c.Selected),
		})
	}
	r.Table([]string{"Candidate", "Description", "OFV", "p-value", "Selected"}, rows)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.4g", *v)
}
