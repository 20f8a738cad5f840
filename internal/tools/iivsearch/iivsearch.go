// Package iivsearch searches the inter-individual variability structure:
// it brute-forces which etas to keep, then whether the kept etas should
// covary in a joint block.
package iivsearch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pharmgo/pharmgo/internal/rundir"
	"github.com/pharmgo/pharmgo/internal/state"
	"github.com/pharmgo/pharmgo/internal/tools"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/modeling"
)

const defaultAlpha = 0.05

// Options configures an iivsearch run.
type Options struct {
	Model        *model.Model
	Alpha        float64
	Observations int // dataset observation count for BIC, 0 skips BIC
	SkipBlock    bool

	Runner  tools.Runner
	Workers int
	Parent  string
	Store   *state.Store
	Logger  *slog.Logger
}

// Run executes the search and writes results.yaml into the run
// directory.
func Run(ctx context.Context, opts Options) (*tools.Results, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("iivsearch needs a base model")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("iivsearch needs a fit runner")
	}
	if opts.Alpha == 0 {
		opts.Alpha = defaultAlpha
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := rundir.New(opts.Parent, "iivsearch")
	if err != nil {
		return nil, err
	}
	var runID string
	if opts.Store != nil {
		run, err := opts.Store.CreateRun("iivsearch", opts.Model.Name(), dir.Path())
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

// candidate pairs a transformed model with what was done to it.
type candidate struct {
	model       *model.Model
	description string
	removed     int
}

func run(ctx context.Context, opts Options, dir *rundir.Directory, logger *slog.Logger) (*tools.Results, error) {
	base, err := tools.CopyModel(opts.Model, opts.Model.Name())
	if err != nil {
		return nil, err
	}
	etas := base.RandomVariables().EtaNames()
	if len(etas) < 2 {
		return nil, fmt.Errorf("iivsearch needs at least two etas, model has %d", len(etas))
	}

	cands, err := removalCandidates(opts.Model, etas)
	if err != nil {
		return nil, err
	}

	models := []*model.Model{base}
	for _, c := range cands {
		models = append(models, c.model)
	}
	fits, err := tools.RunFits(ctx, opts.Runner, dir, opts.Workers, logger, models...)
	if err != nil {
		return nil, err
	}
	baseOFV, err := tools.OFVOf(fits[base.Name()])
	if err != nil {
		return nil, fmt.Errorf("base model: %w", err)
	}

	out := &tools.Results{
		Tool:      "iivsearch",
		BaseModel: base.Name(),
		BaseOFV:   tools.Float(baseOFV),
		BestModel: base.Name(),
	}

	best := base
	bestOFV := baseOFV
	bestRemoved := 0
	for _, c := range cands {
		summary := tools.Candidate{Name: c.model.Name(), Description: c.description}
		ofv, ferr := tools.OFVOf(fits[c.model.Name()])
		if ferr != nil {
			logger.Warn("candidate unusable", "candidate", c.model.Name(), "error", ferr)
			out.Candidates = append(out.Candidates, summary)
			continue
		}
		summary.OFV = tools.Float(ofv)
		summary.DF = c.removed
		if opts.Observations > 0 {
			summary.BIC = tools.Float(modeling.BIC(ofv,
				len(c.model.Parameters().Nonfixed()), opts.Observations))
		}

		// the reduced model survives when the full one is not a
		// significant improvement over it
		p, perr := modeling.LRTPValue(ofv, baseOFV, c.removed)
		if perr != nil {
			return nil, perr
		}
		summary.PValue = tools.Float(p)
		out.Candidates = append(out.Candidates, summary)

		if p < opts.Alpha {
			continue
		}
		if c.removed > bestRemoved || c.removed == bestRemoved && ofv < bestOFV {
			best = c.model
			bestOFV = ofv
			bestRemoved = c.removed
		}
	}
	out.BestModel = best.Name()

	if !opts.SkipBlock && len(best.RandomVariables().EtaNames()) >= 2 {
		if err := blockStep(ctx, opts, dir, logger, out, best, bestOFV, len(cands)); err != nil {
			return nil, err
		}
	}
	markSelected(out)
	logger.Info("iivsearch finished", "best", out.BestModel, "candidates", len(out.Candidates))
	return out, nil
}

// removalCandidates builds one model per non-empty subset of removable
// etas, keeping at least one.
func removalCandidates(base *model.Model, etas []string) ([]candidate, error) {
	var cands []candidate
	n := len(etas)
	num := 0
	for mask := 1; mask < 1<<n-1; mask++ {
		var remove []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				remove = append(remove, etas[i])
			}
		}
		num++
		cp, err := tools.CopyModel(base, fmt.Sprintf("candidate%d", num))
		if err != nil {
			return nil, err
		}
		if err := modeling.RemoveIIV(cp, remove...); err != nil {
			return nil, err
		}
		cands = append(cands, candidate{
			model:       cp,
			description: "remove " + strings.Join(remove, ", "),
			removed:     len(remove),
		})
	}
	return cands, nil
}

// blockStep tries a full joint block over the surviving etas.
func blockStep(ctx context.Context, opts Options, dir *rundir.Directory, logger *slog.Logger,
	out *tools.Results, best *model.Model, bestOFV float64, numbered int) error {
	name := fmt.Sprintf("candidate%d", numbered+1)
	blocked, err := tools.CopyModel(best, name)
	if err != nil {
		return err
	}
	if err := modeling.CreateJointDistribution(blocked); err != nil {
		return err
	}
	df := modeling.DegreesOfFreedom(best, blocked)

	fits, err := tools.RunFits(ctx, opts.Runner, dir, opts.Workers, logger, blocked)
	if err != nil {
		return err
	}
	summary := tools.Candidate{
		Name:        name,
		Description: "joint block over " + strings.Join(best.RandomVariables().EtaNames(), ", "),
		DF:          df,
	}
	ofv, ferr := tools.OFVOf(fits[name])
	if ferr != nil {
		logger.Warn("block candidate unusable", "error", ferr)
		out.Candidates = append(out.Candidates, summary)
		return nil
	}
	summary.OFV = tools.Float(ofv)
	if opts.Observations > 0 {
		summary.BIC = tools.Float(modeling.BIC(ofv,
			len(blocked.Parameters().Nonfixed()), opts.Observations))
	}
	p, perr := modeling.LRTPValue(bestOFV, ofv, df)
	if perr != nil {
		return perr
	}
	summary.PValue = tools.Float(p)
	out.Candidates = append(out.Candidates, summary)
	if p < opts.Alpha {
		out.BestModel = name
	}
	return nil
}

func markSelected(out *tools.Results) {
	for i := range out.Candidates {
		out.Candidates[i].Selected = out.Candidates[i].Name == out.BestModel
	}
}
