package runtime

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// ---------------------------------------------------------------------------
// Load pipeline: byte source -> prototype -> bound function
// ---------------------------------------------------------------------------

// Mode controls which input forms a load call accepts.
type Mode uint8

const (
	// ModeBinary permits serialized binary chunks.
	ModeBinary Mode = 1 << iota

	// ModeText permits textual source.
	ModeText
)

// ParseMode parses a mode descriptor string: 'b' permits binary, 't' permits
// text, order-insensitive and case-sensitive. An empty descriptor, or one
// with any other character, is a call-time configuration error.
func ParseMode(s string) (Mode, error) {
	var m Mode
	for _, c := range s {
		switch c {
		case 'b':
			m |= ModeBinary
		case 't':
			m |= ModeText
		default:
			return 0, fmt.Errorf("invalid load mode %q", s)
		}
	}
	if m == 0 {
		return 0, fmt.Errorf("empty load mode")
	}
	return m, nil
}

// String returns the descriptor form of the mode.
func (m Mode) String() string {
	var s []byte
	if m&ModeBinary != 0 {
		s = append(s, 'b')
	}
	if m&ModeText != 0 {
		s = append(s, 't')
	}
	if len(s) == 0 {
		return "none"
	}
	return string(s)
}

// signatureLookahead is the mark window within which the undumper must
// decide whether the input is a binary chunk.
const signatureLookahead = 4

// LoadPrototype produces an intermediate (unbound) unit from a byte source.
//
// If mode permits binary and an undumper is installed, the source is wrapped
// in a BufferedStream when it is not one already, marked for the signature
// lookahead, and handed to the undumper. An undumper error propagates; a
// (nil, nil) answer rewinds the stream and falls through to the text path,
// which hands the same bytes to the compiler. Strategy errors are returned
// untouched here: Load is the normalization boundary.
//
// Advanced embedders can call LoadPrototype directly and bind the resulting
// prototype against several environments without recompiling.
func (g *Globals) LoadPrototype(source io.Reader, chunkName string, mode Mode) (Prototype, error) {
	if mode&ModeBinary != 0 && g.Undumper != nil {
		bs, ok := source.(*BufferedStream)
		if !ok {
			bs = NewBufferedStream(source)
		}
		bs.Mark(signatureLookahead)
		proto, err := g.Undumper.Undump(bs, chunkName)
		if err != nil {
			return nil, err
		}
		if proto != nil {
			return proto, nil
		}
		if err := bs.Reset(); err != nil {
			return nil, err
		}
		source = bs
	} else if mode == ModeBinary && g.Undumper == nil {
		return nil, &Error{Kind: ErrLoad, Chunk: chunkName, Msg: "no undumper configured"}
	}

	if mode&ModeText != 0 {
		if g.Compiler == nil {
			return nil, &Error{Kind: ErrLoad, Chunk: chunkName, Msg: "no compiler configured"}
		}
		return g.Compiler.Compile(source, chunkName)
	}

	return nil, &Error{
		Kind:  ErrModeExhaustion,
		Chunk: chunkName,
		Mode:  mode.String(),
		Msg:   fmt.Sprintf("no input form accepted in mode %q", mode.String()),
	}
}

// Load produces an executable unit bound against env. It runs LoadPrototype
// and then the installed binder, normalizing every failure into a single
// *Error value: typed errors pass through unchanged, I/O failures on the
// underlying source wrap as ErrIO, binder failures as ErrBinding, and
// anything else as ErrLoad. The chunk name and the original cause are always
// preserved.
func (g *Globals) Load(source io.Reader, chunkName string, mode Mode, env *Globals) (Function, error) {
	proto, err := g.LoadPrototype(source, chunkName, mode)
	if err != nil {
		return nil, normalizeLoadError(chunkName, err)
	}
	if g.Binder == nil {
		return nil, &Error{Kind: ErrLoad, Chunk: chunkName, Msg: "no binder configured"}
	}
	fn, err := g.Binder.Bind(proto, chunkName, env)
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, &Error{Kind: ErrBinding, Chunk: chunkName, Msg: "bind failed", Cause: err}
	}
	return fn, nil
}

// normalizeLoadError applies the single wrapping step at the pipeline
// boundary. Errors that are already typed pass through; failures of the
// underlying source, tagged by the stream layer or recognizable as
// filesystem and I/O errors, become ErrIO; everything else becomes ErrLoad.
func normalizeLoadError(chunkName string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	var src *readError
	var pathErr *fs.PathError
	if errors.As(err, &src) || errors.As(err, &pathErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &Error{Kind: ErrIO, Chunk: chunkName, Msg: "read failed", Cause: err}
	}
	return &Error{Kind: ErrLoad, Chunk: chunkName, Msg: "load failed", Cause: err}
}
