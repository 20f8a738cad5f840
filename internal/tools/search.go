package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pharmgo/pharmgo/internal/rundir"
	"github.com/pharmgo/pharmgo/internal/state"
	"github.com/pharmgo/pharmgo/internal/workflow"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/results"
)

// RunFits estimates the given models in parallel inside one run
// directory and returns results keyed by model name.
func RunFits(ctx context.Context, r Runner, dir *rundir.Directory, workers int,
	logger *slog.Logger, models ...*model.Model) (map[string]*results.ModelfitResults, error) {
	w := workflow.New()
	for _, m := range models {
		m := m
		err := w.Add(m.Name(), func(in []any) (any, error) {
			return r.Fit(ctx, m, dir)
		})
		if err != nil {
			return nil, err
		}
	}
	raw, err := workflow.NewRunner(workers, logger).Run(ctx, w)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*results.ModelfitResults, len(raw))
	for name, v := range raw {
		res, ok := v.(*results.ModelfitResults)
		if !ok || res == nil {
			return nil, fmt.Errorf("no results for %s", name)
		}
		out[name] = res
	}
	return out, nil
}

// OFVOf extracts the final objective function value or reports the model
// as unusable.
func OFVOf(res *results.ModelfitResults) (float64, error) {
	ofv, ok := res.OFV()
	if !ok {
		return 0, fmt.Errorf("run produced no objective function value")
	}
	if f := res.Final(); f != nil && f.MinimizationFailure {
		return ofv, fmt.Errorf("minimization failed")
	}
	return ofv, nil
}

// RecordCandidates mirrors a tool's candidate list into the state store.
// A nil store is a no-op so tools work without persistence.
func RecordCandidates(store *state.Store, runID string, r *Results) {
	if store == nil {
		return
	}
	for _, c := range r.Candidates {
		_, err := store.AddCandidate(state.Candidate{
			RunID:       runID,
			Name:        c.Name,
			Description: c.Description,
			OFV:         c.OFV,
			BIC:         c.BIC,
			DF:          c.DF,
			PValue:      c.PValue,
			Selected:    c.Selected,
		})
		if err != nil {
			slog.Warn("recording candidate failed", "candidate", c.Name, "error", err)
		}
	}
}
