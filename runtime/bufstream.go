package runtime

import (
	"errors"
	"io"
)

// defaultBufferSize holds the signature lookahead comfortably. The buffer
// grows only when Mark asks for more.
const defaultBufferSize = 64

// ErrResetWithoutMark is returned by Reset when no mark is in effect.
var ErrResetWithoutMark = errors.New("reset without a preceding mark")

// BufferedStream is a byte source supporting speculative reads: Mark
// declares how far ahead the caller intends to read, Reset rewinds to the
// marked position. The load pipeline uses it so the undumper can sniff a
// binary signature and the compiler can still see the same bytes, none
// lost and none duplicated.
//
// Mark and Reset are not reentrant: a second Mark discards the ability to
// rewind to the first.
type BufferedStream struct {
	src    io.Reader
	buf    []byte
	pos    int // next unread byte
	fill   int // one past the last valid byte; pos <= fill <= len(buf)
	marked bool
}

// NewBufferedStream wraps src with the default buffer capacity.
func NewBufferedStream(src io.Reader) *BufferedStream {
	return NewBufferedStreamSize(src, defaultBufferSize)
}

// NewBufferedStreamSize wraps src with a specific initial capacity.
func NewBufferedStreamSize(src io.Reader, size int) *BufferedStream {
	if size < 1 {
		size = 1
	}
	return &BufferedStream{src: src, buf: make([]byte, size)}
}

// Mark prepares the stream for up to lookahead bytes of speculative reading
// followed by a Reset. Unread bytes are compacted to the front of the buffer
// so the marked position is stable across refills; if lookahead exceeds the
// current capacity the buffer is reallocated to exactly lookahead bytes with
// the unread window carried over. That reallocation is the only point after
// construction where the buffer changes size.
func (s *BufferedStream) Mark(lookahead int) {
	if s.pos > 0 {
		copy(s.buf, s.buf[s.pos:s.fill])
		s.fill -= s.pos
		s.pos = 0
	}
	if lookahead > len(s.buf) {
		grown := make([]byte, lookahead)
		copy(grown, s.buf[:s.fill])
		s.buf = grown
	}
	s.marked = true
}

// Reset rewinds the read cursor to the position captured by the last Mark.
// It fails if no mark exists. A mark survives only until reads run past the
// buffer's capacity; after that the window restarts and the mark is gone.
func (s *BufferedStream) Reset() error {
	if !s.marked {
		return ErrResetWithoutMark
	}
	s.pos = 0
	return nil
}

// Read implements io.Reader. It blocks when the underlying source blocks.
func (s *BufferedStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.fillBuffer(); err != nil {
		return 0, err
	}
	n := copy(p, s.buf[s.pos:s.fill])
	s.pos += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (s *BufferedStream) ReadByte() (byte, error) {
	if err := s.fillBuffer(); err != nil {
		return 0, err
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}

// fillBuffer ensures at least one unread byte is buffered. While a mark is
// live, new bytes accumulate after the existing window so Reset can replay
// them; once the window has outgrown the buffer the mark is abandoned and
// the window starts over. A source that answers a block read with (0, nil)
// is retried with a single-byte read: some sources legitimately decline
// buffered reads without being exhausted.
func (s *BufferedStream) fillBuffer() error {
	if s.pos < s.fill {
		return nil
	}
	if s.fill >= len(s.buf) {
		s.pos, s.fill = 0, 0
		s.marked = false
	}
	n, err := s.src.Read(s.buf[s.fill:])
	if n == 0 && err == nil {
		n, err = s.src.Read(s.buf[s.fill : s.fill+1])
	}
	if n > 0 {
		s.fill += n
		return nil
	}
	if err == nil {
		return io.EOF
	}
	if err != io.EOF {
		err = &readError{err: err}
	}
	return err
}
