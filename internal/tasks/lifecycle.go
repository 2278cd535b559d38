package tasks

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// Lifecycle events of a task execution.
const (
	eventRun     statekit.EventType = "RUN"
	eventSkip    statekit.EventType = "SKIP"
	eventSucceed statekit.EventType = "SUCCEED"
	eventFail    statekit.EventType = "FAIL"
)

// Lifecycle states of a task execution.
const (
	stateIDPending  statekit.StateID = "pending"
	stateIDRunning  statekit.StateID = "running"
	stateIDExecuted statekit.StateID = "executed"
	stateIDSkipped  statekit.StateID = "skipped"
	stateIDFailed   statekit.StateID = "failed"
)

// lifecycleContext is the machine context. The lifecycle has no guards.
type lifecycleContext struct{}

// interpreterFactory builds the lifecycle machine once and hands out fresh
// interpreters for it.
var interpreterFactory = sync.OnceValues(func() (func() *statekit.Interpreter[lifecycleContext], error) {
	machine, err := statekit.NewMachine[lifecycleContext]("task").
		WithInitial(stateIDPending).
		State(stateIDPending).
		On(eventRun).Target(stateIDRunning).
		On(eventSkip).Target(stateIDSkipped).
		Done().
		State(stateIDRunning).
		On(eventSucceed).Target(stateIDExecuted).
		On(eventFail).Target(stateIDFailed).
		Done().
		State(stateIDExecuted).
		Final().
		Done().
		State(stateIDSkipped).
		Final().
		Done().
		State(stateIDFailed).
		Final().
		Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build task lifecycle: %w", err)
	}
	return func() *statekit.Interpreter[lifecycleContext] {
		return statekit.NewInterpreter(machine)
	}, nil
})

// lifecycle tracks one task through pending, running and a final state.
type lifecycle struct {
	interpreter *statekit.Interpreter[lifecycleContext]
}

func newLifecycle() (*lifecycle, error) {
	factory, err := interpreterFactory()
	if err != nil {
		return nil, err
	}
	interp := factory()
	interp.Start()
	return &lifecycle{interpreter: interp}, nil
}

func (l *lifecycle) send(event statekit.EventType) {
	l.interpreter.Send(statekit.Event{Type: event})
}

// status maps the current state to a Status.
func (l *lifecycle) status() Status {
	switch l.interpreter.State().Value {
	case stateIDExecuted:
		return StatusExecuted
	case stateIDSkipped:
		return StatusSkipped
	case stateIDFailed:
		return StatusFailed
	default:
		return StatusNotRun
	}
}
