package runtime

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Contexts: one logical thread of control within an environment
// ---------------------------------------------------------------------------

// Context identifies one logical thread of control within an environment.
// Exactly one context is running at a time: the main context created with
// the environment, or a coroutine. The main context can never suspend; a
// coroutine suspends through Globals.Yield.
type Context interface {
	isContext()
}

// MainContext is the root context of an environment. It carries no state of
// its own; its identity is what matters to the yield bridge.
type MainContext struct{}

func (*MainContext) isContext() {}

// Status describes a coroutine's lifecycle state.
type Status int

const (
	// StatusSuspended means the coroutine has not started yet, or is parked
	// in a yield waiting to be resumed.
	StatusSuspended Status = iota

	// StatusRunning means the coroutine is the environment's running context.
	StatusRunning

	// StatusDead means the body returned or failed; the coroutine cannot be
	// resumed again.
	StatusDead
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusDead:
		return "dead"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// ErrDeadCoroutine is returned by Resume once the body has finished.
var ErrDeadCoroutine = errors.New("cannot resume dead coroutine")

// transfer carries values from the coroutine goroutine back to the resumer.
// done marks body completion; err is the body's error, if any.
type transfer struct {
	values []Value
	err    error
	done   bool
}

// Coroutine is a suspendable context. The two-state suspend/resume machine
// lives here, not on Globals: the body runs on its own goroutine, and a pair
// of unbuffered channels makes every handoff synchronous. The resumer blocks
// until the body yields or finishes; a yielding body blocks until resumed.
// At no point do both sides run at once, so a coroutine adds no concurrency
// to the environment, only a second stack.
type Coroutine struct {
	g       *Globals
	body    Function
	status  Status
	started bool
	caller  Context // context to reinstall when control comes back

	resume chan []Value  // resumer -> body
	yield  chan transfer // body -> resumer
}

// NewCoroutine creates a coroutine that will run body inside g when first
// resumed. The coroutine starts suspended; no goroutine exists until the
// first Resume.
func NewCoroutine(g *Globals, body Function) *Coroutine {
	return &Coroutine{
		g:      g,
		body:   body,
		status: StatusSuspended,
		resume: make(chan []Value),
		yield:  make(chan transfer),
	}
}

func (*Coroutine) isContext() {}

// Status returns the coroutine's lifecycle state.
func (co *Coroutine) Status() Status { return co.status }

// Resume transfers control to the coroutine. On the first resume the values
// become the body's arguments; afterwards they become the return values of
// the yield the body is parked in. Resume blocks until the coroutine yields
// or finishes, then returns the values handed back. Once the body has
// returned, its results are delivered with that Resume and the coroutine is
// dead; the body's error, if any, is returned as-is.
//
// Resume is the only place the environment's running-context reference
// switches, and it must be called from the context that currently owns the
// environment's thread of control.
func (co *Coroutine) Resume(values ...Value) ([]Value, error) {
	switch co.status {
	case StatusDead:
		return nil, ErrDeadCoroutine
	case StatusRunning:
		return nil, errors.New("cannot resume running coroutine")
	}

	co.caller = co.g.running
	co.g.running = co
	co.status = StatusRunning

	if !co.started {
		co.started = true
		go co.run(values)
	} else {
		co.resume <- values
	}

	t := <-co.yield
	co.g.running = co.caller
	if t.done {
		co.status = StatusDead
		return t.values, t.err
	}
	co.status = StatusSuspended
	return t.values, nil
}

// run executes the body on the coroutine goroutine and reports completion.
func (co *Coroutine) run(args []Value) {
	values, err := co.body.Call(args...)
	co.yield <- transfer{values: values, err: err, done: true}
}

// suspend parks the calling goroutine until the next Resume, handing values
// to the resumer. Reached only through Globals.Yield while this coroutine is
// the running context.
func (co *Coroutine) suspend(values []Value) ([]Value, error) {
	co.yield <- transfer{values: values}
	return <-co.resume, nil
}
