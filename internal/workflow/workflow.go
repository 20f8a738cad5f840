// Package workflow provides the task graph behind the model-search tools.
// Tasks form a DAG; independent tasks run in parallel and results flow
// from a task to its dependents.
package workflow

import (
	"fmt"
	"sort"
)

// TaskFunc is the work of one task. in holds the results of its
// dependencies in declaration order.
type TaskFunc func(in []any) (any, error)

// Task is a node in the workflow graph.
type Task struct {
	Name string
	Run  TaskFunc
	deps []string
}

// Workflow is a directed acyclic graph of named tasks.
type Workflow struct {
	tasks    map[string]*Task
	children map[string][]string
}

// New creates an empty workflow.
func New() *Workflow {
	return &Workflow{
		tasks:    make(map[string]*Task),
		children: make(map[string][]string),
	}
}

// Add registers a task that runs after its dependencies. Dependencies
// must already be registered.
func (w *Workflow) Add(name string, fn TaskFunc, deps ...string) error {
	if name == "" {
		return fmt.Errorf("task name must not be empty")
	}
	if _, dup := w.tasks[name]; dup {
		return fmt.Errorf("duplicate task %q", name)
	}
	for _, d := range deps {
		if _, ok := w.tasks[d]; !ok {
			return fmt.Errorf("task %q depends on unknown task %q", name, d)
		}
	}
	w.tasks[name] = &Task{Name: name, Run: fn, deps: append([]string(nil), deps...)}
	for _, d := range deps {
		w.children[d] = append(w.children[d], name)
	}
	return nil
}

// Len returns the number of tasks.
func (w *Workflow) Len() int { return len(w.tasks) }

// Names returns all task names sorted.
func (w *Workflow) Names() []string {
	names := make([]string, 0, len(w.tasks))
	for name := range w.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns the dependency names of a task.
func (w *Workflow) Dependencies(name string) []string {
	t, ok := w.tasks[name]
	if !ok {
		return nil
	}
	return append([]string(nil), t.deps...)
}

// Merge copies another workflow's tasks and edges in. Unlike Add it
// accepts edges to tasks that arrive later in the merge, so the
// combined graph is checked for cycles before running.
func (w *Workflow) Merge(other *Workflow) error {
	for name := range other.tasks {
		if _, dup := w.tasks[name]; dup {
			return fmt.Errorf("duplicate task %q", name)
		}
	}
	for name, t := range other.tasks {
		w.tasks[name] = &Task{Name: name, Run: t.Run, deps: append([]string(nil), t.deps...)}
		for _, d := range t.deps {
			w.children[d] = append(w.children[d], name)
		}
	}
	return nil
}

// cycle reports a dependency cycle with its path, if any. Add rejects
// forward references so cycles cannot normally form, but a workflow
// assembled by Merge still gets checked before running.
func (w *Workflow) cycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	parent := make(map[string]string)

	var cyclePath []string
	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true
		for _, child := range w.children[name] {
			if !visited[child] {
				parent[child] = name
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				cyclePath = []string{child}
				for curr := name; curr != child; curr = parent[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{child}, cyclePath...)
				return true
			}
		}
		onStack[name] = false
		return false
	}

	for _, name := range w.Names() {
		if !visited[name] {
			if dfs(name) {
				return cyclePath
			}
		}
	}
	return nil
}

// levels groups task names by execution level: tasks at level n depend
// only on tasks in earlier levels.
func (w *Workflow) levels() ([][]string, error) {
	for _, name := range w.Names() {
		for _, d := range w.tasks[name].deps {
			if _, ok := w.tasks[d]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", name, d)
			}
		}
	}
	if path := w.cycle(); path != nil {
		return nil, fmt.Errorf("dependency cycle: %v", path)
	}

	assigned := make(map[string]int)
	var level func(name string) int
	level = func(name string) int {
		if l, ok := assigned[name]; ok {
			return l
		}
		max := -1
		for _, d := range w.tasks[name].deps {
			if l := level(d); l > max {
				max = l
			}
		}
		assigned[name] = max + 1
		return max + 1
	}

	deepest := 0
	for name := range w.tasks {
		if l := level(name); l > deepest {
			deepest = l
		}
	}

	out := make([][]string, deepest+1)
	for name, l := range assigned {
		out[l] = append(out[l], name)
	}
	for i := range out {
		sort.Strings(out[i])
	}
	return out, nil
}
