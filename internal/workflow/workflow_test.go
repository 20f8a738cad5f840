package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(in []any) (any, error) { return nil, nil }

func TestAddRejectsBadTasks(t *testing.T) {
	w := New()
	require.NoError(t, w.Add("a", noop))
	assert.Error(t, w.Add("a", noop))
	assert.Error(t, w.Add("", noop))
	assert.Error(t, w.Add("b", noop, "missing"))
}

func TestLevels(t *testing.T) {
	w := New()
	require.NoError(t, w.Add("base", noop))
	require.NoError(t, w.Add("cand1", noop, "base"))
	require.NoError(t, w.Add("cand2", noop, "base"))
	require.NoError(t, w.Add("rank", noop, "cand1", "cand2"))

	levels, err := w.levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"base"},
		{"cand1", "cand2"},
		{"rank"},
	}, levels)
}

func TestMergeCycleDetected(t *testing.T) {
	w := New()
	require.NoError(t, w.Add("a", noop))
	require.NoError(t, w.Add("b", noop, "a"))

	other := New()
	other.tasks["c"] = &Task{Name: "c", Run: noop, deps: []string{"d"}}
	other.tasks["d"] = &Task{Name: "d", Run: noop, deps: []string{"c"}}
	other.children["d"] = []string{"c"}
	other.children["c"] = []string{"d"}
	require.NoError(t, w.Merge(other))

	_, err := w.levels()
	assert.ErrorContains(t, err, "cycle")
}

func TestRunPassesResults(t *testing.T) {
	w := New()
	require.NoError(t, w.Add("base", func(in []any) (any, error) {
		return 10, nil
	}))
	require.NoError(t, w.Add("double", func(in []any) (any, error) {
		return in[0].(int) * 2, nil
	}, "base"))
	require.NoError(t, w.Add("triple", func(in []any) (any, error) {
		return in[0].(int) * 3, nil
	}, "base"))
	require.NoError(t, w.Add("sum", func(in []any) (any, error) {
		return in[0].(int) + in[1].(int), nil
	}, "double", "triple"))

	results, err := NewRunner(2, nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 50, results["sum"])
}

func TestRunParallelLevel(t *testing.T) {
	w := New()
	var mu sync.Mutex
	seen := map[string]bool{}
	mark := func(name string) TaskFunc {
		return func(in []any) (any, error) {
			mu.Lock()
			seen[name] = true
			mu.Unlock()
			return name, nil
		}
	}
	require.NoError(t, w.Add("a", mark("a")))
	require.NoError(t, w.Add("b", mark("b")))
	require.NoError(t, w.Add("c", mark("c")))

	results, err := NewRunner(0, nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Len(t, seen, 3)
}

func TestRunErrorStopsDependents(t *testing.T) {
	w := New()
	boom := errors.New("boom")
	var ran atomic.Bool
	require.NoError(t, w.Add("fail", func(in []any) (any, error) {
		return nil, boom
	}))
	require.NoError(t, w.Add("after", func(in []any) (any, error) {
		ran.Store(true)
		return nil, nil
	}, "fail"))

	_, err := NewRunner(1, nil).Run(context.Background(), w)
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "task fail")
	assert.False(t, ran.Load())
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New()
	require.NoError(t, w.Add("a", noop))
	_, err := NewRunner(1, nil).Run(ctx, w)
	assert.ErrorIs(t, err, context.Canceled)
}
