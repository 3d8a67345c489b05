// Package bytecode defines the serialized container for compiled Fen chunks
// and the undumper strategy the load pipeline uses to recognize them.
//
// The wire format is a fixed header followed by a CBOR body:
//
//	[magic:4] [version:2 BE] [flags:2 BE] [body: canonical CBOR]
//
// The magic opens with an escape byte, keeping compiled chunks out of the
// space of plausible source text so a 4-byte sniff is decisive. The header
// flags mirror the root chunk's flags for tools that classify a chunk
// without decoding the body. The body carries per-chunk flags, code,
// constants, parameter and local metadata, nested prototypes, and optional
// debug information. Code bytes are opaque here; the instruction set
// belongs to the execution engine.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ChunkVersion is the current chunk format version. Increment on
// incompatible format changes.
const ChunkVersion uint16 = 1

// ChunkMagic is the four-byte signature opening every serialized chunk.
var ChunkMagic = []byte{0x1b, 'F', 'B', 'C'}

// ChunkFlags contains compilation flags for a chunk.
type ChunkFlags uint16

const (
	// ChunkFlagDebug indicates debug information is present.
	ChunkFlagDebug ChunkFlags = 1 << 0

	// ChunkFlagVararg indicates the chunk accepts arguments beyond its
	// declared parameters.
	ChunkFlagVararg ChunkFlags = 1 << 1
)

// SourceLocation maps a code offset back to a source position for debugging.
type SourceLocation struct {
	CodeOffset uint32 `cbor:"1,keyasint"`
	Line       uint32 `cbor:"2,keyasint"`
	Column     uint16 `cbor:"3,keyasint"`
}

// Chunk is a compiled-but-unbound unit: the prototype produced by the binary
// load path and expected from text compilers. Binding never mutates a chunk,
// so one chunk may be bound against any number of environments.
type Chunk struct {
	// Version applies to the serialized container as a whole and travels
	// in its header, outside the CBOR body; nested prototypes decode with
	// Version 0.
	Version uint16 `cbor:"-"`

	// Flags travel inside the body so nested prototypes keep theirs on a
	// round trip. The container header mirrors the root chunk's flags.
	Flags ChunkFlags `cbor:"10,keyasint,omitempty"`

	Name       string   `cbor:"1,keyasint,omitempty"`
	Code       []byte   `cbor:"2,keyasint"`
	Constants  []string `cbor:"3,keyasint,omitempty"`
	ParamCount uint8    `cbor:"4,keyasint,omitempty"`
	ParamNames []string `cbor:"5,keyasint,omitempty"`
	LocalCount uint8    `cbor:"6,keyasint,omitempty"`

	// Nested function prototypes, in declaration order.
	Protos []*Chunk `cbor:"7,keyasint,omitempty"`

	// Debug information, present when ChunkFlagDebug is set.
	SourceMap []SourceLocation `cbor:"8,keyasint,omitempty"`
	VarNames  []string         `cbor:"9,keyasint,omitempty"`
}

// NewChunk creates an empty chunk at the current version.
func NewChunk(name string) *Chunk {
	return &Chunk{
		Version: ChunkVersion,
		Name:    name,
		Code:    make([]byte, 0, 64),
	}
}

// AddConstant adds a string constant to the pool and returns its index,
// reusing an existing entry when the value is already present.
func (c *Chunk) AddConstant(value string) uint16 {
	for i, s := range c.Constants {
		if s == value {
			return uint16(i)
		}
	}
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, value)
	return idx
}

// AddSourceLocation adds a debug source mapping and sets the debug flag.
func (c *Chunk) AddSourceLocation(codeOffset uint32, line uint32, column uint16) {
	c.Flags |= ChunkFlagDebug
	c.SourceMap = append(c.SourceMap, SourceLocation{
		CodeOffset: codeOffset,
		Line:       line,
		Column:     column,
	})
}

// SourceLocationAt returns the source position for a code offset, using the
// nearest mapping at or before it. Returns (0, 0) if no mapping exists.
func (c *Chunk) SourceLocationAt(offset uint32) (line uint32, column uint16) {
	for i := len(c.SourceMap) - 1; i >= 0; i-- {
		if c.SourceMap[i].CodeOffset <= offset {
			return c.SourceMap[i].Line, c.SourceMap[i].Column
		}
	}
	return 0, 0
}

// cborEncMode encodes chunk bodies in canonical mode so the same chunk
// always serializes to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Dump serializes the chunk to w.
func Dump(c *Chunk, w io.Writer) error {
	var header [8]byte
	copy(header[:4], ChunkMagic)
	binary.BigEndian.PutUint16(header[4:6], c.Version)
	binary.BigEndian.PutUint16(header[6:8], uint16(c.Flags))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("bytecode: write chunk header: %w", err)
	}
	body, err := cborEncMode.Marshal(c)
	if err != nil {
		return fmt.Errorf("bytecode: marshal chunk body: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("bytecode: write chunk body: %w", err)
	}
	return nil
}

// DumpBytes serializes the chunk to a byte slice.
func DumpBytes(c *Chunk) ([]byte, error) {
	var buf bytes.Buffer
	if err := Dump(c, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Undump reads one chunk from r. If the input does not open with the chunk
// signature, or ends before the signature completes, Undump returns
// (nil, nil): "not a binary chunk", leaving the fallback decision to the
// caller. A signature match followed by malformed content is an error.
func Undump(r io.Reader, chunkName string) (*Chunk, error) {
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, fmt.Errorf("bytecode: %s: read signature: %w", chunkName, err)
	}
	if !bytes.Equal(sig[:], ChunkMagic) {
		return nil, nil
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("bytecode: %s: truncated chunk header: %w", chunkName, err)
	}
	version := binary.BigEndian.Uint16(hdr[0:2])
	if version > ChunkVersion {
		return nil, fmt.Errorf("bytecode: %s: chunk version %d is newer than supported version %d",
			chunkName, version, ChunkVersion)
	}

	var c Chunk
	if err := cbor.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("bytecode: %s: decode chunk body: %w", chunkName, err)
	}
	c.Version = version
	return &c, nil
}
