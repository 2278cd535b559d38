package tasks

import (
	"context"
	"fmt"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

// Status is the outcome of a planned task.
type Status int

const (
	// StatusNotRun means execution stopped before the task was reached.
	StatusNotRun Status = iota
	// StatusExecuted means the task action ran and succeeded.
	StatusExecuted
	// StatusSkipped means an OnlyIf predicate returned false.
	StatusSkipped
	// StatusFailed means the task action returned an error.
	StatusFailed
)

var statusNames = map[Status]string{
	StatusNotRun:   "not run",
	StatusExecuted: "executed",
	StatusSkipped:  "skipped",
	StatusFailed:   "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result records what happened to one task.
type Result struct {
	Task   string `json:"task"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	DryRun bool   `json:"dry_run,omitempty"`
	Err    error  `json:"-"`
}

// ExecuteOption configures Execute.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	dryRun bool
}

// WithDryRun evaluates predicates but does not invoke actions.
func WithDryRun(enabled bool) ExecuteOption {
	return func(o *executeOptions) { o.dryRun = enabled }
}

// Execute plans targets and runs them in order. Predicates are evaluated
// immediately before each task, so state changed by earlier tasks is seen by
// later ones. Execution stops at the first failure; the remaining tasks are
// reported as not run.
func (g *Graph) Execute(ctx context.Context, targets []string, opts ...ExecuteOption) ([]Result, error) {
	const op = "tasks.Graph.Execute"

	var o executeOptions
	for _, opt := range opts {
		opt(&o)
	}

	plan, err := g.Plan(targets...)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(plan))
	lifecycles := make([]*lifecycle, len(plan))
	for i, t := range plan {
		lc, err := newLifecycle()
		if err != nil {
			return nil, ierrors.Wrap(err, ierrors.KindInternal, op, "failed to start task lifecycle")
		}
		lifecycles[i] = lc
		results[i] = Result{Task: t.Name(), Kind: t.Kind(), DryRun: o.dryRun}
	}
	finish := func() []Result {
		for i := range results {
			results[i].Status = lifecycles[i].status()
		}
		return results
	}

	for i, t := range plan {
		lc := lifecycles[i]
		if err := ctx.Err(); err != nil {
			return finish(), ierrors.Wrap(err, ierrors.KindState, op, "execution cancelled")
		}

		if !t.shouldRun() {
			g.logger.Info("task skipped", "task", t.Name(), "reason", "onlyIf predicate returned false")
			lc.send(eventSkip)
			continue
		}

		lc.send(eventRun)
		if o.dryRun {
			g.logger.Info("task would run", "task", t.Name(), "kind", t.Kind())
			lc.send(eventSucceed)
			continue
		}

		g.logger.Debug("running task", "task", t.Name(), "kind", t.Kind())
		if err := t.run(ctx); err != nil {
			g.logger.Error("task failed", "task", t.Name(), "error", err)
			lc.send(eventFail)
			results[i].Err = err
			return finish(), ierrors.Wrap(err, ierrors.GetKind(err), op, fmt.Sprintf("task %s failed", t.Name()))
		}
		lc.send(eventSucceed)
	}
	return finish(), nil
}
