package runtime

import "io"

// Value is a runtime value exchanged between the embedding application and
// loaded code. The loading layer treats values as opaque.
type Value = interface{}

// Prototype is the compiled-but-unbound representation of a chunk, produced
// by a Compiler or an Undumper. The loading layer never inspects it. A
// single prototype may be bound against any number of environments, so
// binding must not consume or mutate it.
type Prototype interface{}

// Function is an executable unit: a prototype bound to a specific global
// environment, ready to be invoked. It references the environment it was
// bound against; it does not copy it.
type Function interface {
	Call(args ...Value) ([]Value, error)
}

// FunctionFunc adapts an ordinary Go function to the Function interface.
type FunctionFunc func(args ...Value) ([]Value, error)

// Call invokes the function.
func (f FunctionFunc) Call(args ...Value) ([]Value, error) { return f(args...) }

// Compiler translates textual source into a prototype. The pipeline always
// hands it UTF-8-normalized bytes. Malformed source is a compilation error.
type Compiler interface {
	Compile(source io.Reader, chunkName string) (Prototype, error)
}

// Undumper reconstructs a prototype from a serialized binary chunk. A return
// of (nil, nil) means "not a recognized binary chunk"; it is the contractual
// trigger for the pipeline's reset-and-fallback path. Errors are never
// swallowed by the pipeline. The undumper decides yes or no within the
// 4-byte lookahead window the pipeline marks before calling it.
type Undumper interface {
	Undump(source io.Reader, chunkName string) (Prototype, error)
}

// Binder closes a prototype over a global environment, producing the
// invocable Function. Implementations must treat the prototype as read-only
// so it can be rebound against other environments.
type Binder interface {
	Bind(proto Prototype, chunkName string, env *Globals) (Function, error)
}

// ResourceFinder maps a logical resource name to a byte source. A miss is
// reported with an error satisfying errors.Is(err, fs.ErrNotExist); any
// other error is a resolution failure.
type ResourceFinder interface {
	FindResource(name string) (io.ReadCloser, error)
}
