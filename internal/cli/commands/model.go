package commands

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pharmgo/pharmgo/internal/cli/output"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/modeling"
)

// NewModelCommand creates the model command group.
func NewModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect and transform models",
	}
	cmd.AddCommand(newModelPrintCommand())
	cmd.AddCommand(newModelTransformCommand())
	return cmd
}

func newModelPrintCommand() *cobra.Command {
	var showParams, showData, showAll bool
	cmd := &cobra.Command{
		Use:   "print FILE...",
		Short: "Print model parameters, random variables and data columns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			for _, path := range args {
				m, err := model.ReadModel(path)
				if err != nil {
					return err
				}
				if err := printModel(cmdCtx.Renderer, m, showParams, showData, showAll); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showParams, "parameters", false, "only parameters")
	cmd.Flags().BoolVar(&showData, "data", false, "only data columns")
	cmd.Flags().BoolVar(&showAll, "all", false, "everything")
	return cmd
}

type modelSummary struct {
	Name       string         `json:"name"`
	Parameters []paramSummary `json:"parameters,omitempty"`
	Etas       []string       `json:"etas,omitempty"`
	Epsilons   []string       `json:"epsilons,omitempty"`
	DataPath   string         `json:"data_path,omitempty"`
	Columns    []string       `json:"columns,omitempty"`
}

type paramSummary struct {
	Name  string   `json:"name"`
	Init  float64  `json:"init"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
	Fix   bool     `json:"fix,omitempty"`
}

func printModel(r *output.Renderer, m *model.Model, showParams, showData, showAll bool) error {
	if !showParams && !showData {
		showAll = true
	}

	if r.EffectiveMode() == output.ModeJSON {
		s := modelSummary{Name: m.Name()}
		if showParams || showAll {
			for _, p := range m.Parameters().All() {
				ps := paramSummary{Name: p.Name, Init: p.Init, Fix: p.Fix}
				if !math.IsInf(p.Lower, -1) {
					v := p.Lower
					ps.Lower = &v
				}
				if !math.IsInf(p.Upper, 1) {
					v := p.Upper
					ps.Upper = &v
				}
				s.Parameters = append(s.Parameters, ps)
			}
			s.Etas = m.RandomVariables().EtaNames()
			for _, d := range m.RandomVariables().Epsilons() {
				s.Epsilons = append(s.Epsilons, d.Names()...)
			}
		}
		if showData || showAll {
			s.DataPath = m.DataInfo().Path
			s.Columns = m.DataInfo().Names()
		}
		return r.JSON(s)
	}

	r.Header(m.Name())
	if showParams || showAll {
		var rows [][]string
		for _, p := range m.Parameters().All() {
			rows = append(rows, []string{p.Name, formatFloat(p.Init),
				formatBound(p.Lower), formatBound(p.Upper), boolMark(p.Fix)})
		}
		r.Table([]string{"Parameter", "Init", "Lower", "Upper", "Fix"}, rows)

		var rvRows [][]string
		for _, d := range m.RandomVariables().Distributions() {
			rvRows = append(rvRows, []string{
				strings.Join(d.Names(), ", "),
				string(d.Level()),
				strings.Join(d.ParameterNames(), ", "),
			})
		}
		r.Table([]string{"Variable", "Level", "Parameters"}, rvRows)
	}
	if showData || showAll {
		r.KeyValue("Dataset", m.DataInfo().Path)
		var rows [][]string
		for _, c := range m.DataInfo().Columns() {
			rows = append(rows, []string{c.Name, boolMark(c.Drop)})
		}
		r.Table([]string{"Column", "Drop"}, rows)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBound(v float64) string {
	if math.IsInf(v, -1) || math.IsInf(v, 1) {
		return ""
	}
	return formatFloat(v)
}

func boolMark(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func newModelTransformCommand() *cobra.Command {
	var ops []string
	var outPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "transform FILE --op NAME",
		Short: "Apply named transformations and write the result",
		Long: `Apply one or more transformations to a model and write the result to a
new file. Without -o the model number in the file name is bumped.

Operations:
  absorption-bolus | absorption-fo | absorption-zo | absorption-seq-zofo
  lagtime | remove-lagtime
  peripheral | remove-peripheral
  transits=N
  elimination-fo | elimination-mm | elimination-zo | elimination-mixed-mm-fo
  error-additive | error-proportional | error-combined | remove-error
  iiv=SYMBOL:exp|prop|add[:INIT] | remove-iiv=ETA(n) | boxcox[=ETA(n),...]
  join-etas[=ETA(n),...] | split-etas[=ETA(n),...]
  covariate=PARAM:COV:lin|exp|pow|cat[:+]  | remove-covariate=PARAM:COV
  allometry[=COV:REF]
  fix=NAME | unfix=NAME`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			if len(ops) == 0 {
				return fmt.Errorf("no --op given")
			}
			m, err := model.ReadModel(args[0])
			if err != nil {
				return err
			}
			for _, op := range ops {
				if err := applyOp(m, op); err != nil {
					return fmt.Errorf("op %s: %w", op, err)
				}
			}

			dest := outPath
			if dest == "" {
				dest = bumpModelPath(args[0])
			}
			if err := writeGuard(dest, force); err != nil {
				return err
			}
			if err := m.WriteModel(dest); err != nil {
				return err
			}
			cmdCtx.Renderer.Println("wrote", dest)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&ops, "op", nil, "transformation to apply (repeatable)")
	cmd.Flags().StringVarP(&outPath, "output-file", "o", "", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func applyOp(m *model.Model, op string) error {
	name, arg, _ := strings.Cut(op, "=")
	switch name {
	case "absorption-bolus":
		return modeling.SetBolusAbsorption(m)
	case "absorption-fo":
		return modeling.SetFirstOrderAbsorption(m)
	case "absorption-zo":
		return modeling.SetZeroOrderAbsorption(m)
	case "absorption-seq-zofo":
		return modeling.SetSeqZOFOAbsorption(m)
	case "lagtime":
		return modeling.AddLagTime(m)
	case "remove-lagtime":
		return modeling.RemoveLagTime(m)
	case "peripheral":
		return modeling.AddPeripheralCompartment(m)
	case "remove-peripheral":
		return modeling.RemovePeripheralCompartment(m)
	case "transits":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("transits needs a count: %w", err)
		}
		return modeling.SetTransitCompartments(m, n)
	case "elimination-fo":
		return modeling.SetFirstOrderElimination(m)
	case "elimination-mm":
		return modeling.SetMichaelisMentenElimination(m)
	case "elimination-zo":
		return modeling.SetZeroOrderElimination(m)
	case "elimination-mixed-mm-fo":
		return modeling.SetCombinedMMFOElimination(m)
	case "error-additive":
		return modeling.SetAdditiveErrorModel(m)
	case "error-proportional":
		return modeling.SetProportionalErrorModel(m)
	case "error-combined":
		return modeling.SetCombinedErrorModel(m)
	case "remove-error":
		return modeling.RemoveErrorModel(m)
	case "iiv":
		parts := strings.Split(arg, ":")
		if len(parts) < 2 {
			return fmt.Errorf("iiv needs SYMBOL:kind")
		}
		init := 0.09
		if len(parts) > 2 {
			v, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return fmt.Errorf("iiv init: %w", err)
			}
			init = v
		}
		return modeling.AddIIV(m, parts[0], parts[1], init)
	case "remove-iiv":
		if arg == "" {
			return modeling.RemoveIIV(m)
		}
		return modeling.RemoveIIV(m, strings.Split(arg, ",")...)
	case "boxcox":
		if arg == "" {
			return modeling.TransformEtasBoxcox(m)
		}
		return modeling.TransformEtasBoxcox(m, strings.Split(arg, ",")...)
	case "join-etas":
		if arg == "" {
			return modeling.CreateJointDistribution(m)
		}
		return modeling.CreateJointDistribution(m, strings.Split(arg, ",")...)
	case "split-etas":
		if arg == "" {
			return modeling.SplitJointDistribution(m)
		}
		return modeling.SplitJointDistribution(m, strings.Split(arg, ",")...)
	case "covariate":
		parts := strings.Split(arg, ":")
		if len(parts) < 3 {
			return fmt.Errorf("covariate needs PARAM:COV:effect")
		}
		operation := ""
		if len(parts) > 3 {
			operation = parts[3]
		}
		return modeling.AddCovariateEffect(m, parts[0], parts[1], parts[2], operation)
	case "remove-covariate":
		parts := strings.Split(arg, ":")
		if len(parts) != 2 {
			return fmt.Errorf("remove-covariate needs PARAM:COV")
		}
		return modeling.RemoveCovariateEffect(m, parts[0], parts[1])
	case "allometry":
		opts := modeling.AllometryOptions{}
		if arg != "" {
			parts := strings.Split(arg, ":")
			opts.Covariate = parts[0]
			if len(parts) > 1 {
				ref, err := strconv.ParseFloat(parts[1], 64)
				if err != nil {
					return fmt.Errorf("allometry reference: %w", err)
				}
				opts.Reference = ref
			}
		}
		return modeling.AddAllometry(m, opts)
	case "fix":
		return modeling.FixParameters(m, strings.Split(arg, ",")...)
	case "unfix":
		return modeling.UnfixParameters(m, strings.Split(arg, ",")...)
	}
	return fmt.Errorf("unknown operation %q", name)
}

var modelNumberRe = regexp.MustCompile(`^(.*?)(\d+)$`)

// bumpModelPath derives the next model file name: run1.mod -> run2.mod.
// Without a trailing number the stem gets "_2".
func bumpModelPath(path string) string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	if match := modelNumberRe.FindStringSubmatch(stem); match != nil {
		n, _ := strconv.Atoi(match[2])
		return filepath.Join(dir, fmt.Sprintf("%s%d%s", match[1], n+1, ext))
	}
	return filepath.Join(dir, stem+"_2"+ext)
}
