// Package tools holds the shared plumbing of the model-search tools:
// the fit runner abstraction, candidate bookkeeping and results files.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pharmgo/pharmgo/internal/rundir"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/results"
)

// Runner estimates a model inside a run directory and returns its
// results. Implementations decide how estimation actually happens.
type Runner interface {
	Fit(ctx context.Context, m *model.Model, dir *rundir.Directory) (*results.ModelfitResults, error)
}

// ExternalRunner shells out to an estimation command built from a
// template. {model} expands to the written control stream path, {dir}
// to the run directory and {name} to the model name.
type ExternalRunner struct {
	Template string
	Settle   time.Duration
	Logger   *slog.Logger
}

// NewExternalRunner creates a runner from a command template, e.g.
// "nmfe75 {model} {name}.lst".
func NewExternalRunner(template string, logger *slog.Logger) *ExternalRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExternalRunner{Template: template, Logger: logger}
}

// Fit writes the model, runs the command and reads the output files.
func (r *ExternalRunner) Fit(ctx context.Context, m *model.Model, dir *rundir.Directory) (*results.ModelfitResults, error) {
	if r.Template == "" {
		return nil, fmt.Errorf("no estimation command configured")
	}
	path := dir.Join(m.Name() + ".mod")
	if err := m.UpdateSource(); err != nil {
		return nil, err
	}
	if err := m.WriteModel(path); err != nil {
		return nil, err
	}

	args := strings.Fields(r.Template)
	for i, a := range args {
		a = strings.ReplaceAll(a, "{model}", path)
		a = strings.ReplaceAll(a, "{dir}", dir.Path())
		a = strings.ReplaceAll(a, "{name}", m.Name())
		args[i] = a
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir.Path()
	r.Logger.Info("estimating model", "model", m.Name(), "command", strings.Join(args, " "))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("estimation of %s failed: %w: %s", m.Name(), err, firstLine(out))
	}

	lst := m.Name() + ".lst"
	if _, err := dir.WaitForFile(ctx, lst, r.Settle, r.Logger); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", lst, err)
	}
	return results.ReadPath(path, fixedParameters(m))
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func fixedParameters(m *model.Model) map[string]bool {
	fixed := make(map[string]bool)
	for _, p := range m.Parameters().All() {
		if p.Fix {
			fixed[p.Name] = true
		}
	}
	return fixed
}

// CopyModel clones a model under a new name, detached from the original
// so transformations do not leak between candidates.
func CopyModel(m *model.Model, name string) (*model.Model, error) {
	if err := m.UpdateSource(); err != nil {
		return nil, err
	}
	cp, err := model.ParseModel(name, m.String())
	if err != nil {
		return nil, err
	}
	// keep dataset resolution anchored to the original location
	if m.Path() != "" {
		cp.SetPath(filepath.Join(filepath.Dir(m.Path()), name+".mod"))
	}
	return cp, nil
}
