// Package allometry scales structural parameters by a size covariate,
// fits the scaled model next to the base and reports whether the scaling
// pays for itself.
package allometry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pharmgo/pharmgo/internal/rundir"
	"github.com/pharmgo/pharmgo/internal/state"
	"github.com/pharmgo/pharmgo/internal/tools"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/modeling"
)

const defaultAlpha = 0.05

// Options configures an allometry run.
type Options struct {
	Model      *model.Model
	Covariate  string  // default WT
	Reference  float64 // default 70
	Parameters []string
	Fixed      bool // fix the exponents instead of estimating them

	Runner  tools.Runner
	Workers int
	Parent  string // where the run directory is created
	Alpha   float64
	Store   *state.Store
	Logger  *slog.Logger
}

// Run executes the tool and writes results.yaml into the run directory.
func Run(ctx context.Context, opts Options) (*tools.Results, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("allometry needs a base model")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("allometry needs a fit runner")
	}
	if opts.Alpha == 0 {
		opts.Alpha = defaultAlpha
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := rundir.New(opts.Parent, "allometry")
	if err != nil {
		return nil, err
	}
	var runID string
	if opts.Store != nil {
		run, err := opts.Store.CreateRun("allometry", opts.Model.Name(), dir.Path())
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}

	res, err := run(ctx, opts, dir, logger)
	if opts.Store != nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		} else {
			tools.RecordCandidates(opts.Store, runID, res)
		}
		if cerr := opts.Store.CompleteRun(runID, msg); cerr != nil {
			logger.Warn("completing run failed", "error", cerr)
		}
	}
	if err != nil {
		return nil, err
	}
	if werr := tools.WriteResults(dir.Join("results.yaml"), res); werr != nil {
		return nil, werr
	}
	return res, nil
}

func run(ctx context.Context, opts Options, dir *rundir.Directory, logger *slog.Logger) (*tools.Results, error) {
	base, err := tools.CopyModel(opts.Model, opts.Model.Name())
	if err != nil {
		return nil, err
	}
	scaled, err := tools.CopyModel(opts.Model, "candidate1")
	if err != nil {
		return nil, err
	}
	err = modeling.AddAllometry(scaled, modeling.AllometryOptions{
		Covariate:      opts.Covariate,
		Reference:      opts.Reference,
		Parameters:     opts.Parameters,
		FixedExponents: opts.Fixed,
	})
	if err != nil {
		return nil, err
	}

	fits, err := tools.RunFits(ctx, opts.Runner, dir, opts.Workers, logger, base, scaled)
	if err != nil {
		return nil, err
	}
	baseOFV, err := tools.OFVOf(fits[base.Name()])
	if err != nil {
		return nil, fmt.Errorf("base model: %w", err)
	}

	out := &tools.Results{
		Tool:      "allometry",
		BaseModel: base.Name(),
		BaseOFV:   tools.Float(baseOFV),
		BestModel: base.Name(),
	}
	cand := tools.Candidate{
		Name:        "candidate1",
		Description: describeScaling(opts),
	}

	scaledOFV, serr := tools.OFVOf(fits["candidate1"])
	if serr != nil {
		logger.Warn("scaled model unusable", "error", serr)
		out.Candidates = append(out.Candidates, cand)
		return out, nil
	}
	cand.OFV = tools.Float(scaledOFV)
	cand.DF = modeling.DegreesOfFreedom(base, scaled)

	better := scaledOFV < baseOFV
	if cand.DF > 0 {
		p, err := modeling.LRTPValue(baseOFV, scaledOFV, cand.DF)
		if err != nil {
			return nil, err
		}
		cand.PValue = tools.Float(p)
		better = p < opts.Alpha
	}
	if better {
		cand.Selected = true
		out.BestModel = "candidate1"
	}
	out.Candidates = append(out.Candidates, cand)
	logger.Info("allometry finished", "best", out.BestModel,
		"base_ofv", baseOFV, "scaled_ofv", scaledOFV)
	return out, nil
}

func describeScaling(opts Options) string {
	cov := opts.Covariate
	if cov == "" {
		cov = "WT"
	}
	ref := opts.Reference
	if ref == 0 {
		ref = 70
	}
	return fmt.Sprintf("allometric scaling by %s ref %g", cov, ref)
}
