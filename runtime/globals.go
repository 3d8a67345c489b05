package runtime

import (
	"io"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// Globals: the per-environment state container
// ---------------------------------------------------------------------------

// Globals holds the global state of one execution environment: the strategy
// slots the embedding application installs, the environment's I/O channel
// handles, and the currently running context.
//
// A Globals instance is designed for isolation, not for locking: it belongs
// to a single logical thread of control at a time. Separate OS threads
// should use separate environments, sharing only strategy implementations
// that are themselves safe for concurrent read-only use.
type Globals struct {
	// Strategy slots, installed by assignment, typically once at setup. A
	// nil slot means "not configured"; every load entry point checks and
	// fails with a typed error rather than dereferencing.
	Compiler Compiler
	Undumper Undumper
	Binder   Binder
	Finder   ResourceFinder

	// I/O channel handles for the benefit of library code loaded into the
	// environment. The loading layer itself never reads or writes them.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	main    *MainContext
	running Context // never nil; the main context until a coroutine resumes
}

// NewGlobals creates an environment with default stdio channels and a fresh
// main context installed as the running context. Strategies start
// unconfigured.
func NewGlobals() *Globals {
	g := &Globals{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		main:   &MainContext{},
	}
	g.running = g.main
	return g
}

// Running returns the currently running context.
func (g *Globals) Running() Context { return g.running }

// Main returns the environment's root context.
func (g *Globals) Main() *MainContext { return g.main }

// LoadFile resolves name through the installed resource finder and loads the
// result with mode "bt", binding against this environment. The chunk is
// named "@"+name so diagnostics can tell file chunks from in-memory source.
// Every failure, including a missing finder or an unresolvable name, comes
// back as an *Error value; LoadFile never panics.
func (g *Globals) LoadFile(name string) (Function, error) {
	if g.Finder == nil {
		return nil, &Error{Kind: ErrResolution, Chunk: name, Msg: "no resource finder configured"}
	}
	src, err := g.Finder.FindResource(name)
	if err != nil {
		return nil, &Error{Kind: ErrResolution, Chunk: name, Msg: "cannot open resource", Cause: err}
	}
	defer src.Close()
	return g.Load(src, "@"+name, ModeBinary|ModeText, g)
}

// LoadString compiles source text and binds it against this environment.
func (g *Globals) LoadString(source, chunkName string) (Function, error) {
	return g.LoadStringIn(source, chunkName, g)
}

// LoadStringIn compiles source text and binds it against env.
func (g *Globals) LoadStringIn(source, chunkName string, env *Globals) (Function, error) {
	return g.LoadReaderIn(strings.NewReader(source), chunkName, env)
}

// LoadReader transcodes a character source to UTF-8, compiles it, and binds
// the result against this environment.
func (g *Globals) LoadReader(source io.RuneReader, chunkName string) (Function, error) {
	return g.LoadReaderIn(source, chunkName, g)
}

// LoadReaderIn transcodes a character source to UTF-8 and loads it
// text-only, binding against env.
func (g *Globals) LoadReaderIn(source io.RuneReader, chunkName string, env *Globals) (Function, error) {
	return g.Load(NewUTF8Stream(source), chunkName, ModeText, env)
}

// Yield suspends the currently running coroutine, handing values to its
// resumer, and returns the values supplied at the next resume. Globals holds
// no suspend state itself; the call is routed to the running context. If the
// main context is running the call fails immediately, before any state
// changes: the root context cannot suspend.
func (g *Globals) Yield(values ...Value) ([]Value, error) {
	switch c := g.running.(type) {
	case *Coroutine:
		return c.suspend(values)
	default:
		return nil, &Error{Kind: ErrYield, Msg: "attempt to yield from outside a coroutine"}
	}
}
