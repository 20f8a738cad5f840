package commands

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pharmgo/pharmgo/pkg/dataset"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/modeling"
	"github.com/pharmgo/pharmgo/pkg/parser"
	"github.com/pharmgo/pharmgo/pkg/token"
)

// NewDataCommand creates the data command group.
func NewDataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Work with model datasets",
	}
	cmd.AddCommand(newDataWriteCommand())
	cmd.AddCommand(newDataFilterCommand())
	cmd.AddCommand(newDataResampleCommand())
	cmd.AddCommand(newDataAnonymizeCommand())
	return cmd
}

func newDataWriteCommand() *cobra.Command {
	var outPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "write MODEL",
		Short: "Write the model dataset as CSV, filters applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			ds, err := loadDataset(args[0])
			if err != nil {
				return err
			}
			dest := dataDest(outPath, args[0], "")
			if err := writeDataset(dest, ds, force); err != nil {
				return err
			}
			cmdCtx.Renderer.Println("wrote", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output-file", "o", "", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func newDataFilterCommand() *cobra.Command {
	var outPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "filter MODEL EXPR...",
		Short: "Keep rows matching NM-TRAN style conditions",
		Long: `Keep only data rows matching every condition. Conditions use the
NM-TRAN operators, e.g. APGR.GT.5 or ID.EQ.2.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			ds, err := loadDataset(args[0])
			if err != nil {
				return err
			}
			var accept []parser.Filter
			for _, expr := range args[1:] {
				f, err := parseCondition(expr)
				if err != nil {
					return err
				}
				accept = append(accept, f)
			}
			filtered, err := dataset.Filter(ds, nil, accept)
			if err != nil {
				return err
			}
			dest := dataDest(outPath, args[0], "_filtered")
			if err := writeDataset(dest, filtered, force); err != nil {
				return err
			}
			cmdCtx.Renderer.Println("wrote", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output-file", "o", "", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func newDataResampleCommand() *cobra.Command {
	var outPath, group, stratify string
	var force, replace bool
	var samples int
	var seed int64
	cmd := &cobra.Command{
		Use:   "resample MODEL",
		Short: "Resample dataset groups, optionally stratified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			ds, err := loadDataset(args[0])
			if err != nil {
				return err
			}
			opts := dataset.ResampleOptions{
				Group:    group,
				Replace:  replace,
				Stratify: stratify,
				Seed:     seed,
			}
			if samples > 0 {
				opts.SampleSize = map[string]int{"": samples}
			}
			resampled, err := dataset.Resample(ds, opts)
			if err != nil {
				return err
			}
			dest := dataDest(outPath, args[0], "_resampled")
			if err := writeDataset(dest, resampled, force); err != nil {
				return err
			}
			cmdCtx.Renderer.Println("wrote", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output-file", "o", "", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().StringVar(&group, "group", "ID", "grouping column")
	cmd.Flags().BoolVar(&replace, "replace", false, "sample with replacement")
	cmd.Flags().StringVar(&stratify, "stratify", "", "stratification column")
	cmd.Flags().IntVar(&samples, "samples", 0, "groups to draw (default all)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	return cmd
}

func newDataAnonymizeCommand() *cobra.Command {
	var outPath, group string
	var force bool
	var seed int64
	cmd := &cobra.Command{
		Use:   "anonymize MODEL",
		Short: "Shuffle and renumber subjects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			ds, err := loadDataset(args[0])
			if err != nil {
				return err
			}
			anon, err := dataset.Anonymize(ds, group, seed)
			if err != nil {
				return err
			}
			dest := dataDest(outPath, args[0], "_anon")
			if err := writeDataset(dest, anon, force); err != nil {
				return err
			}
			cmdCtx.Renderer.Println("wrote", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output-file", "o", "", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().StringVar(&group, "group", "ID", "grouping column")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	return cmd
}

func loadDataset(modelPath string) (*dataset.Dataset, error) {
	m, err := model.ReadModel(modelPath)
	if err != nil {
		return nil, err
	}
	return modeling.LoadDataset(m)
}

func writeDataset(dest string, ds *dataset.Dataset, force bool) error {
	if err := writeGuard(dest, force); err != nil {
		return err
	}
	return dataset.WriteFile(dest, ds)
}

// dataDest picks the output path: the -o flag, or the model stem with a
// suffix and .csv next to the model.
func dataDest(outPath, modelPath, suffix string) string {
	if outPath != "" {
		return outPath
	}
	stem := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	return stem + suffix + ".csv"
}

var conditionRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)\.(EQ|NE|EQN|NEN|LT|GT|LE|GE)\.(\S+)$`)

var conditionOps = map[string]token.Type{
	"EQ":  token.OpStrEq,
	"NE":  token.OpStrNe,
	"EQN": token.OpEq,
	"NEN": token.OpNe,
	"LT":  token.OpLt,
	"GT":  token.OpGt,
	"LE":  token.OpLe,
	"GE":  token.OpGe,
}

func parseCondition(expr string) (parser.Filter, error) {
	match := conditionRe.FindStringSubmatch(strings.ToUpper(expr))
	if match == nil {
		return parser.Filter{}, fmt.Errorf("cannot parse condition %q, want COLUMN.OP.VALUE", expr)
	}
	return parser.Filter{
		Column: match[1],
		Op:     conditionOps[match[2]],
		Value:  match[3],
	}, nil
}
