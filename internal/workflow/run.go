package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner executes workflows level by level with bounded parallelism.
type Runner struct {
	workers int
	logger  *slog.Logger
}

// NewRunner creates a runner. workers caps how many tasks run at once;
// zero or negative means unbounded.
func NewRunner(workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{workers: workers, logger: logger}
}

// Run executes every task and returns the results by task name. The
// first task error cancels the remaining tasks through the context.
func (r *Runner) Run(ctx context.Context, w *Workflow) (map[string]any, error) {
	levels, err := w.levels()
	if err != nil {
		return nil, err
	}

	results := make(map[string]any, w.Len())
	var mu sync.Mutex

	for _, names := range levels {
		eg, egctx := errgroup.WithContext(ctx)
		if r.workers > 0 {
			eg.SetLimit(r.workers)
		}
		for _, name := range names {
			task := w.tasks[name]
			eg.Go(func() error {
				if err := egctx.Err(); err != nil {
					return err
				}
				in := make([]any, len(task.deps))
				mu.Lock()
				for i, d := range task.deps {
					in[i] = results[d]
				}
				mu.Unlock()

				start := time.Now()
				r.logger.Debug("task started", "task", task.Name)
				out, err := task.Run(in)
				if err != nil {
					r.logger.Error("task failed", "task", task.Name, "error", err)
					return fmt.Errorf("task %s: %w", task.Name, err)
				}
				r.logger.Debug("task finished", "task", task.Name,
					"elapsed", time.Since(start).Round(time.Millisecond))

				mu.Lock()
				results[task.Name] = out
				mu.Unlock()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
