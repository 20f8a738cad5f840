// Package covsearch does stepwise covariate model building: a forward
// search that adds the most significant candidate effect each step,
// optionally followed by backward elimination at a stricter level.
package covsearch

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

const (
	defaultPForward  = 0.05
	defaultPBackward = 0.01
	defaultMaxSteps  = 5
)

// Effect is one candidate covariate effect to try.
type Effect struct {
	Parameter string
	Covariate string
	Type      string // modeling.EffectLinear etc.
	Operation string // "*" or "+"
}

func (e Effect) String() string {
	return fmt.Sprintf("%s-%s-%s", e.Parameter, e.Covariate, e.Type)
}

// Options configures a covsearch run.
type Options struct {
	Model     *model.Model
	Effects   []Effect
	PForward  float64
	PBackward float64
	MaxSteps  int
	Backward  bool

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
		return nil, fmt.Errorf("covsearch needs a base model")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("covsearch needs a fit runner")
	}
	if len(opts.Effects) == 0 {
		return nil, fmt.Errorf("covsearch needs candidate effects")
	}
	if opts.PForward == 0 {
		opts.PForward = defaultPForward
	}
	if opts.PBackward == 0 {
		opts.PBackward = defaultPBackward
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := rundir.New(opts.Parent, "covsearch")
	if err != nil {
		return nil, err
	}
	var runID string
	if opts.Store != nil {
		run, err := opts.Store.CreateRun("covsearch", opts.Model.Name(), dir.Path())
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

type search struct {
	opts   Options
	dir    *rundir.Directory
	logger *slog.Logger
	out    *tools.Results

	current    *model.Model
	currentOFV float64
	included   []Effect
	num        int
}

func run(ctx context.Context, opts Options, dir *rundir.Directory, logger *slog.Logger) (*tools.Results, error) {
	base, err := tools.CopyModel(opts.Model, opts.Model.Name())
	if err != nil {
		return nil, err
	}
	fits, err := tools.RunFits(ctx, opts.Runner, dir, opts.Workers, logger, base)
	if err != nil {
		return nil, err
	}
	baseOFV, err := tools.OFVOf(fits[base.Name()])
	if err != nil {
		return nil, fmt.Errorf("base model: %w", err)
	}

	s := &search{
		opts:   opts,
		dir:    dir,
		logger: logger,
		out: &tools.Results{
			Tool:      "covsearch",
			BaseModel: base.Name(),
			BaseOFV:   tools.Float(baseOFV),
			BestModel: base.Name(),
		},
		current:    base,
		currentOFV: baseOFV,
	}

	if err := s.forward(ctx); err != nil {
		return nil, err
	}
	if opts.Backward && len(s.included) > 0 {
		if err := s.backward(ctx); err != nil {
			return nil, err
		}
	}
	s.out.BestModel = s.current.Name()
	for i := range s.out.Candidates {
		s.out.Candidates[i].Selected = s.out.Candidates[i].Name == s.out.BestModel
	}
	logger.Info("covsearch finished", "best", s.out.BestModel,
		"included", len(s.included), "steps", len(s.out.Candidates))
	return s.out, nil
}

// forward adds the best significant remaining effect until none
// qualifies or the step limit is reached.
func (s *search) forward(ctx context.Context) error {
	remaining := append([]Effect(nil), s.opts.Effects...)
	for step := 0; step < s.opts.MaxSteps && len(remaining) > 0; step++ {
		type tried struct {
			effect Effect
			model  *model.Model
			df     int
		}
		var cands []tried
		var models []*model.Model
		for _, eff := range remaining {
			s.num++
			cp, err := tools.CopyModel(s.current, fmt.Sprintf("candidate%d", s.num))
			if err != nil {
				return err
			}
			err = modeling.AddCovariateEffect(cp, eff.Parameter, eff.Covariate, eff.Type, eff.Operation)
			if err != nil {
				return fmt.Errorf("effect %s: %w", eff, err)
			}
			cands = append(cands, tried{
				effect: eff,
				model:  cp,
				df:     modeling.DegreesOfFreedom(s.current, cp),
			})
			models = append(models, cp)
		}

		fits, err := tools.RunFits(ctx, s.opts.Runner, s.dir, s.opts.Workers, s.logger, models...)
		if err != nil {
			return err
		}

		bestIdx := -1
		bestOFV := 0.0
		for i, c := range cands {
			summary := tools.Candidate{
				Name:        c.model.Name(),
				Description: "add " + c.effect.String(),
				DF:          c.df,
			}
			ofv, ferr := tools.OFVOf(fits[c.model.Name()])
			if ferr != nil {
				s.logger.Warn("candidate unusable", "candidate", c.model.Name(), "error", ferr)
				s.out.Candidates = append(s.out.Candidates, summary)
				continue
			}
			summary.OFV = tools.Float(ofv)
			p, perr := modeling.LRTPValue(s.currentOFV, ofv, c.df)
			if perr != nil {
				return perr
			}
			summary.PValue = tools.Float(p)
			s.out.Candidates = append(s.out.Candidates, summary)

			if p < s.opts.PForward && (bestIdx < 0 || ofv < bestOFV) {
				bestIdx = i
				bestOFV = ofv
			}
		}
		if bestIdx < 0 {
			return nil
		}

		chosen := cands[bestIdx]
		s.logger.Info("forward step", "effect", chosen.effect.String(),
			"ofv", bestOFV, "was", s.currentOFV)
		s.current = chosen.model
		s.currentOFV = bestOFV
		s.included = append(s.included, chosen.effect)
		remaining = removeEffect(remaining, chosen.effect)
	}
	return nil
}

// backward drops included effects whose loss does not significantly
// worsen the fit, one per pass, most defensible first.
func (s *search) backward(ctx context.Context) error {
	for len(s.included) > 0 {
		type tried struct {
			effect Effect
			model  *model.Model
			df     int
		}
		var cands []tried
		var models []*model.Model
		for _, eff := range s.included {
			s.num++
			cp, err := tools.CopyModel(s.current, fmt.Sprintf("candidate%d", s.num))
			if err != nil {
				return err
			}
			if err := modeling.RemoveCovariateEffect(cp, eff.Parameter, eff.Covariate); err != nil {
				return fmt.Errorf("effect %s: %w", eff, err)
			}
			cands = append(cands, tried{
				effect: eff,
				model:  cp,
				df:     modeling.DegreesOfFreedom(cp, s.current),
			})
			models = append(models, cp)
		}

		fits, err := tools.RunFits(ctx, s.opts.Runner, s.dir, s.opts.Workers, s.logger, models...)
		if err != nil {
			return err
		}

		dropIdx := -1
		dropP := 0.0
		dropOFV := 0.0
		for i, c := range cands {
			summary := tools.Candidate{
				Name:        c.model.Name(),
				Description: "remove " + c.effect.String(),
				DF:          c.df,
			}
			ofv, ferr := tools.OFVOf(fits[c.model.Name()])
			if ferr != nil {
				s.logger.Warn("candidate unusable", "candidate", c.model.Name(), "error", ferr)
				s.out.Candidates = append(s.out.Candidates, summary)
				continue
			}
			summary.OFV = tools.Float(ofv)
			// the effect stays only if losing it significantly hurts
			p, perr := modeling.LRTPValue(ofv, s.currentOFV, c.df)
			if perr != nil {
				return perr
			}
			summary.PValue = tools.Float(p)
			s.out.Candidates = append(s.out.Candidates, summary)

			if p >= s.opts.PBackward && p > dropP {
				dropIdx = i
				dropP = p
				dropOFV = ofv
			}
		}
		if dropIdx < 0 {
			return nil
		}

		dropped := cands[dropIdx]
		s.logger.Info("backward step", "effect", dropped.effect.String(), "pvalue", dropP)
		s.current = dropped.model
		s.currentOFV = dropOFV
		s.included = removeEffect(s.included, dropped.effect)
	}
	return nil
}

func removeEffect(effects []Effect, e Effect) []Effect {
	var out []Effect
	for _, eff := range effects {
		if eff != e {
			out = append(out, eff)
		}
	}
	return out
}
