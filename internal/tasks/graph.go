// Package tasks provides a small named task graph: tasks are registered by
// name and kind, may depend on other tasks and may carry execution-time
// predicates that skip them.
package tasks

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

// Kind groups tasks that are configured together.
type Kind string

// Task kinds used by the publishing conventions.
const (
	KindPublishMaven      Kind = "publishMaven"
	KindPublishMavenLocal Kind = "publishMavenLocal"
	KindSign              Kind = "sign"
	KindRequireClean      Kind = "requireClean"
	KindLifecycle         Kind = "lifecycle"
)

// Action is the work a task performs.
type Action func(ctx context.Context, t *Task) error

// Task is a node of the graph.
type Task struct {
	name        string
	kind        Kind
	description string

	mu     sync.Mutex
	deps   []string
	onlyIf []func() bool
	action Action
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Kind returns the task kind.
func (t *Task) Kind() Kind { return t.kind }

// Description returns the task description.
func (t *Task) Description() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.description
}

// Describe sets the task description.
func (t *Task) Describe(description string) *Task {
	t.mu.Lock()
	t.description = description
	t.mu.Unlock()
	return t
}

// DependsOn adds dependencies by task name. Unknown names are reported when
// the graph is planned, not here.
func (t *Task) DependsOn(names ...string) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		if !contains(t.deps, name) {
			t.deps = append(t.deps, name)
		}
	}
	return t
}

// Dependencies returns the declared dependency names.
func (t *Task) Dependencies() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.deps...)
}

// OnlyIf adds a predicate evaluated immediately before the task would run.
// The task is skipped if any predicate returns false.
func (t *Task) OnlyIf(pred func() bool) *Task {
	t.mu.Lock()
	t.onlyIf = append(t.onlyIf, pred)
	t.mu.Unlock()
	return t
}

// Do sets the task action, replacing any previous one.
func (t *Task) Do(action Action) *Task {
	t.mu.Lock()
	t.action = action
	t.mu.Unlock()
	return t
}

func (t *Task) shouldRun() bool {
	t.mu.Lock()
	preds := append([]func() bool{}, t.onlyIf...)
	t.mu.Unlock()
	for _, pred := range preds {
		if !pred() {
			return false
		}
	}
	return true
}

func (t *Task) run(ctx context.Context) error {
	t.mu.Lock()
	action := t.action
	t.mu.Unlock()
	if action == nil {
		return nil
	}
	return action(ctx, t)
}

// Graph holds registered tasks.
type Graph struct {
	mu            sync.Mutex
	tasks         map[string]*Task
	order         []string
	configurators map[Kind][]func(*Task)
	logger        *log.Logger
}

// NewGraph creates an empty graph. A nil logger discards output.
func NewGraph(logger *log.Logger) *Graph {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Graph{
		tasks:         make(map[string]*Task),
		configurators: make(map[Kind][]func(*Task)),
		logger:        logger,
	}
}

// Register adds a task. Configuration registered with ConfigureEach for its
// kind is applied before Register returns.
func (g *Graph) Register(name string, kind Kind) (*Task, error) {
	const op = "tasks.Graph.Register"

	if name == "" {
		return nil, ierrors.Config(op, "task name is required")
	}

	g.mu.Lock()
	if _, exists := g.tasks[name]; exists {
		g.mu.Unlock()
		return nil, ierrors.Config(op, fmt.Sprintf("task %s is already registered", name))
	}
	t := &Task{name: name, kind: kind}
	g.tasks[name] = t
	g.order = append(g.order, name)
	configure := append([]func(*Task){}, g.configurators[kind]...)
	g.mu.Unlock()

	for _, fn := range configure {
		fn(t)
	}
	return t, nil
}

// ConfigureEach applies fn to every task of kind, both those already
// registered and those registered later.
func (g *Graph) ConfigureEach(kind Kind, fn func(*Task)) {
	g.mu.Lock()
	g.configurators[kind] = append(g.configurators[kind], fn)
	var existing []*Task
	for _, name := range g.order {
		if t := g.tasks[name]; t.kind == kind {
			existing = append(existing, t)
		}
	}
	g.mu.Unlock()

	for _, t := range existing {
		fn(t)
	}
}

// Named looks a task up by name.
func (g *Graph) Named(name string) (*Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tasks[name]
	return t, ok
}

// OfKind returns the tasks of kind in registration order.
func (g *Graph) OfKind(kind Kind) []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*Task
	for _, name := range g.order {
		if t := g.tasks[name]; t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Names returns all task names sorted.
func (g *Graph) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := append([]string{}, g.order...)
	sort.Strings(names)
	return names
}

// Plan returns targets and their transitive dependencies ordered so that
// every task follows its dependencies. With no targets the whole graph is
// planned. Ties keep registration order.
func (g *Graph) Plan(targets ...string) ([]*Task, error) {
	const op = "tasks.Graph.Plan"

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(targets) == 0 {
		targets = append([]string{}, g.order...)
	}

	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(g.tasks))
	var plan []*Task

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		t, ok := g.tasks[name]
		if !ok {
			if len(path) == 0 {
				return ierrors.NotFound(op, fmt.Sprintf("task %s is not registered", name))
			}
			return ierrors.NotFound(op, fmt.Sprintf("task %s depends on unknown task %s", path[len(path)-1], name))
		}
		switch marks[name] {
		case done:
			return nil
		case visiting:
			return ierrors.Validation(op, fmt.Sprintf("dependency cycle: %v", append(path, name)))
		}
		marks[name] = visiting
		for _, dep := range t.Dependencies() {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		marks[name] = done
		plan = append(plan, t)
		return nil
	}

	for _, name := range targets {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
