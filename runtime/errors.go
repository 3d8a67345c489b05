package runtime

import "fmt"

// ErrorKind classifies an Error produced at the loading layer's boundary.
type ErrorKind int

const (
	// ErrResolution indicates the resource finder is missing or the name
	// could not be resolved to a byte source.
	ErrResolution ErrorKind = iota

	// ErrLoad indicates a compiler failure, a missing strategy, or another
	// unexpected failure during loading.
	ErrLoad

	// ErrModeExhaustion indicates neither the binary nor the text path was
	// permitted or produced a result.
	ErrModeExhaustion

	// ErrBinding indicates the binder rejected the intermediate unit.
	ErrBinding

	// ErrIO indicates an I/O failure on the underlying byte or character
	// source.
	ErrIO

	// ErrYield indicates a yield was attempted while the main context was
	// running.
	ErrYield
)

// String returns a human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrResolution:
		return "resolution"
	case ErrLoad:
		return "load"
	case ErrModeExhaustion:
		return "mode exhaustion"
	case ErrBinding:
		return "binding"
	case ErrIO:
		return "io"
	case ErrYield:
		return "yield"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is the uniform error value surfaced by the load entry points and the
// yield bridge. Callers receive this one type regardless of which internal
// stage failed; the chunk name and the original cause are preserved for
// diagnostics. Inner stages return their natural errors and the pipeline
// boundary performs the single normalization step, so an Error is never
// wrapped in another Error.
type Error struct {
	Kind  ErrorKind
	Chunk string // chunk or resource name, when known
	Mode  string // requested mode descriptor, set for mode exhaustion
	Msg   string // short summary of the failure
	Cause error  // underlying cause, nil when Msg stands alone
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := e.Msg
	if e.Chunk != "" {
		s = e.Chunk + ": " + s
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap exposes the cause for errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// readError tags a failure of the underlying byte or character source so
// the pipeline boundary classifies it as ErrIO no matter which strategy
// surfaced it. End-of-data is never tagged; io.EOF keeps its identity.
type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }
func (e *readError) Unwrap() error { return e.err }
