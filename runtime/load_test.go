package runtime

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// testSignature marks binary input for the stub undumper.
var testSignature = []byte{0x1b, 'T', 'S', 'T'}

type textProto struct {
	source string
	name   string
}

type binProto struct {
	payload []byte
	name    string
}

// captureCompiler records what it was fed and produces textProto units.
type captureCompiler struct {
	calls int
	got   string
}

func (c *captureCompiler) Compile(source io.Reader, chunkName string) (Prototype, error) {
	c.calls++
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, err
	}
	c.got = string(data)
	return &textProto{source: string(data), name: chunkName}, nil
}

// sigUndumper recognizes input starting with testSignature; anything else is
// "not a binary chunk".
type sigUndumper struct {
	calls int
}

func (u *sigUndumper) Undump(source io.Reader, chunkName string) (Prototype, error) {
	u.calls++
	sig := make([]byte, len(testSignature))
	if _, err := io.ReadFull(source, sig); err != nil {
		return nil, nil
	}
	if !bytes.Equal(sig, testSignature) {
		return nil, nil
	}
	payload, err := io.ReadAll(source)
	if err != nil {
		return nil, err
	}
	return &binProto{payload: payload, name: chunkName}, nil
}

type errUndumper struct{ err error }

func (u errUndumper) Undump(io.Reader, string) (Prototype, error) { return nil, u.err }

type errCompiler struct{ err error }

func (c errCompiler) Compile(io.Reader, string) (Prototype, error) { return nil, c.err }

// recordBinder produces functions that remember their prototype and
// environment.
type recordBinder struct{}

type boundFunction struct {
	proto Prototype
	name  string
	env   *Globals
}

func (f *boundFunction) Call(args ...Value) ([]Value, error) { return nil, nil }

func (recordBinder) Bind(proto Prototype, chunkName string, env *Globals) (Function, error) {
	return &boundFunction{proto: proto, name: chunkName, env: env}, nil
}

type errBinder struct{ err error }

func (b errBinder) Bind(Prototype, string, *Globals) (Function, error) { return nil, b.err }

func newTestGlobals() (*Globals, *captureCompiler, *sigUndumper) {
	g := NewGlobals()
	compiler := &captureCompiler{}
	undumper := &sigUndumper{}
	g.Compiler = compiler
	g.Undumper = undumper
	g.Binder = recordBinder{}
	return g, compiler, undumper
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"b", ModeBinary, true},
		{"t", ModeText, true},
		{"bt", ModeBinary | ModeText, true},
		{"tb", ModeBinary | ModeText, true},
		{"", 0, false},
		{"B", 0, false},
		{"bx", 0, false},
	}
	for _, c := range cases {
		got, err := ParseMode(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("ParseMode(%q) = (%v, %v), want (%v, nil)", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseMode(%q) succeeded, want error", c.in)
		}
	}
}

func TestModeString(t *testing.T) {
	if got := (ModeBinary | ModeText).String(); got != "bt" {
		t.Errorf("mode string = %q, want %q", got, "bt")
	}
	if got := Mode(0).String(); got != "none" {
		t.Errorf("zero mode string = %q, want %q", got, "none")
	}
}

func TestLoadBinaryChunkSkipsCompiler(t *testing.T) {
	g, compiler, _ := newTestGlobals()
	input := append(append([]byte(nil), testSignature...), []byte("compiled body")...)

	fn, err := g.Load(bytes.NewReader(input), "chunk", ModeBinary|ModeText, g)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	bf := fn.(*boundFunction)
	bp, ok := bf.proto.(*binProto)
	if !ok {
		t.Fatalf("prototype = %T, want *binProto", bf.proto)
	}
	if string(bp.payload) != "compiled body" {
		t.Errorf("payload = %q, want %q", bp.payload, "compiled body")
	}
	if compiler.calls != 0 {
		t.Errorf("compiler invoked %d times, want 0", compiler.calls)
	}
}

func TestLoadTextFallbackRestoresBytes(t *testing.T) {
	src := "print 'hello'"
	readers := map[string]io.Reader{
		"all at once":        strings.NewReader(src),
		"one byte at a time": iotest.OneByteReader(strings.NewReader(src)),
	}
	for name, r := range readers {
		g, compiler, undumper := newTestGlobals()
		fn, err := g.Load(r, "chunk", ModeBinary|ModeText, g)
		if err != nil {
			t.Fatalf("%s: Load: %v", name, err)
		}
		if undumper.calls != 1 {
			t.Errorf("%s: undumper invoked %d times, want 1", name, undumper.calls)
		}
		if compiler.got != src {
			t.Errorf("%s: compiler saw %q, want %q", name, compiler.got, src)
		}
		if _, ok := fn.(*boundFunction).proto.(*textProto); !ok {
			t.Errorf("%s: prototype = %T, want *textProto", name, fn.(*boundFunction).proto)
		}
	}
}

func TestLoadBinaryOnlyRejectsText(t *testing.T) {
	g, _, _ := newTestGlobals()
	_, err := g.Load(strings.NewReader("just text"), "chunk", ModeBinary, g)
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if typed.Kind != ErrModeExhaustion {
		t.Errorf("kind = %v, want mode exhaustion", typed.Kind)
	}
	if typed.Chunk != "chunk" || typed.Mode != "b" {
		t.Errorf("error names (%q, %q), want (chunk, b)", typed.Chunk, typed.Mode)
	}
}

func TestLoadZeroMode(t *testing.T) {
	g, _, _ := newTestGlobals()
	_, err := g.Load(strings.NewReader("x"), "chunk", 0, g)
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != ErrModeExhaustion {
		t.Errorf("error = %v, want mode exhaustion *Error", err)
	}
}

func TestLoadMissingStrategies(t *testing.T) {
	g := NewGlobals()
	g.Binder = recordBinder{}

	_, err := g.Load(strings.NewReader("x"), "chunk", ModeText, g)
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != ErrLoad {
		t.Fatalf("no compiler: error = %v, want load *Error", err)
	}

	_, err = g.Load(strings.NewReader("x"), "chunk", ModeBinary, g)
	if !errors.As(err, &typed) || typed.Kind != ErrLoad {
		t.Fatalf("no undumper: error = %v, want load *Error", err)
	}

	g2, _, _ := newTestGlobals()
	g2.Binder = nil
	_, err = g2.Load(strings.NewReader("x"), "chunk", ModeText, g2)
	if !errors.As(err, &typed) || typed.Kind != ErrLoad {
		t.Fatalf("no binder: error = %v, want load *Error", err)
	}
}

func TestLoadMissingUndumperFallsThroughToText(t *testing.T) {
	g, compiler, _ := newTestGlobals()
	g.Undumper = nil
	fn, err := g.Load(strings.NewReader("src"), "chunk", ModeBinary|ModeText, g)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if compiler.calls != 1 {
		t.Errorf("compiler invoked %d times, want 1", compiler.calls)
	}
	if fn == nil {
		t.Error("Load returned nil function")
	}
}

func TestUndumperErrorPropagates(t *testing.T) {
	g, compiler, _ := newTestGlobals()
	boom := errors.New("corrupt chunk")
	g.Undumper = errUndumper{err: boom}

	_, err := g.Load(strings.NewReader("x"), "chunk", ModeBinary|ModeText, g)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want cause %v", err, boom)
	}
	if compiler.calls != 0 {
		t.Errorf("compiler invoked after undumper error")
	}
}

func TestLoadNormalizesCompilerError(t *testing.T) {
	g, _, _ := newTestGlobals()
	boom := errors.New("syntax error near 'end'")
	g.Compiler = errCompiler{err: boom}

	_, err := g.Load(strings.NewReader("x"), "chunk", ModeText, g)
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if typed.Kind != ErrLoad || typed.Chunk != "chunk" || !errors.Is(err, boom) {
		t.Errorf("normalized error = %+v, want load kind with cause preserved", typed)
	}
}

func TestLoadPassesTypedErrorUnchanged(t *testing.T) {
	g, _, _ := newTestGlobals()
	inner := &Error{Kind: ErrLoad, Chunk: "chunk", Msg: "compile failed"}
	g.Compiler = errCompiler{err: inner}

	_, err := g.Load(strings.NewReader("x"), "chunk", ModeText, g)
	var typed *Error
	if !errors.As(err, &typed) || typed != inner {
		t.Errorf("error = %v, want the inner *Error unwrapped", err)
	}
	if typed.Cause != nil {
		t.Errorf("typed error was double-wrapped: cause = %v", typed.Cause)
	}
}

// failReader fails every read with a fixed error.
type failReader struct{ err error }

func (r failReader) Read([]byte) (int, error) { return 0, r.err }

type failRuneReader struct{ err error }

func (r failRuneReader) ReadRune() (rune, int, error) { return 0, 0, r.err }

func TestLoadClassifiesSourceFailureAsIO(t *testing.T) {
	g, _, _ := newTestGlobals()
	boom := errors.New("read tcp 10.0.0.1:443: i/o timeout")

	_, err := g.Load(failReader{err: boom}, "chunk", ModeBinary|ModeText, g)
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if typed.Kind != ErrIO {
		t.Errorf("kind = %v, want io", typed.Kind)
	}
	if !errors.Is(err, boom) {
		t.Error("cause lost in normalization")
	}
}

func TestLoadReaderSourceFailureIsIO(t *testing.T) {
	g, _, _ := newTestGlobals()
	boom := errors.New("device not configured")

	_, err := g.LoadReader(failRuneReader{err: boom}, "chunk")
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != ErrIO || !errors.Is(err, boom) {
		t.Errorf("error = %v, want io *Error wrapping the source failure", err)
	}
}

func TestLoadNormalizesBinderError(t *testing.T) {
	g, _, _ := newTestGlobals()
	boom := errors.New("bad upvalue count")
	g.Binder = errBinder{err: boom}

	_, err := g.Load(strings.NewReader("x"), "chunk", ModeText, g)
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if typed.Kind != ErrBinding || !errors.Is(err, boom) {
		t.Errorf("error = %+v, want binding kind with cause preserved", typed)
	}
}

func TestLoadPrototypeReuse(t *testing.T) {
	g, _, _ := newTestGlobals()
	proto, err := g.LoadPrototype(strings.NewReader("shared source"), "chunk", ModeText)
	if err != nil {
		t.Fatalf("LoadPrototype: %v", err)
	}

	env1 := NewGlobals()
	env2 := NewGlobals()
	fn1, err := g.Binder.Bind(proto, "chunk", env1)
	if err != nil {
		t.Fatalf("bind env1: %v", err)
	}
	fn2, err := g.Binder.Bind(proto, "chunk", env2)
	if err != nil {
		t.Fatalf("bind env2: %v", err)
	}

	b1, b2 := fn1.(*boundFunction), fn2.(*boundFunction)
	if b1.proto != b2.proto {
		t.Error("binding copied the prototype instead of sharing it")
	}
	if b1.env != env1 || b2.env != env2 {
		t.Error("bound functions reference the wrong environments")
	}
}

func TestLoadAcceptsPrewrappedStream(t *testing.T) {
	g, _, undumper := newTestGlobals()
	input := append(append([]byte(nil), testSignature...), 'x')
	bs := NewBufferedStream(bytes.NewReader(input))

	fn, err := g.Load(bs, "chunk", ModeBinary|ModeText, g)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if undumper.calls != 1 {
		t.Errorf("undumper invoked %d times, want 1", undumper.calls)
	}
	if _, ok := fn.(*boundFunction).proto.(*binProto); !ok {
		t.Errorf("prototype = %T, want *binProto", fn.(*boundFunction).proto)
	}
}
