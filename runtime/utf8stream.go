package runtime

import (
	"io"
	"unicode/utf8"
)

// runeBatch is the number of characters pulled from the source per refill.
const runeBatch = 48

// UTF8Stream presents a character source as a UTF-8 byte source. Each refill
// reads a batch of runes and encodes the whole batch into the buffer before
// any byte of it is served, so a consumer never observes a torn multi-byte
// sequence. Characters in the ASCII range pass through as single bytes;
// everything above encodes to the standard multi-byte form. End-of-data on
// the character source propagates as end-of-data on the byte stream.
type UTF8Stream struct {
	src  io.RuneReader
	buf  []byte
	pos  int
	fill int
	err  error // deferred source error, delivered once the buffer drains
}

// NewUTF8Stream wraps a character source.
func NewUTF8Stream(src io.RuneReader) *UTF8Stream {
	return &UTF8Stream{src: src, buf: make([]byte, runeBatch*utf8.UTFMax)}
}

// Read implements io.Reader.
func (s *UTF8Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.fill {
		if err := s.fillBuffer(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.buf[s.pos:s.fill])
	s.pos += n
	return n, nil
}

// fillBuffer encodes the next batch of runes into the buffer. A source that
// reports a zero-size read without an error still hands back a character;
// the batch stops there so such sources degrade to character-at-a-time
// progress instead of being treated as exhausted.
func (s *UTF8Stream) fillBuffer() error {
	if s.err != nil {
		return s.err
	}
	s.pos, s.fill = 0, 0
	for i := 0; i < runeBatch; i++ {
		r, size, err := s.src.ReadRune()
		if err != nil {
			if err != io.EOF {
				err = &readError{err: err}
			}
			s.err = err
			break
		}
		s.fill += utf8.EncodeRune(s.buf[s.fill:], r)
		if size == 0 {
			break
		}
	}
	if s.fill == 0 {
		return s.err
	}
	return nil
}
