package bytecode

import (
	"io"

	"github.com/fenlang/fen/runtime"
)

// Undumper is the runtime.Undumper strategy for the chunk format. Install it
// on an environment to make the binary load path recognize serialized
// chunks:
//
//	g := runtime.NewGlobals()
//	g.Undumper = bytecode.Undumper{}
type Undumper struct{}

// Undump implements runtime.Undumper. A signature mismatch reports
// (nil, nil), which tells the load pipeline to rewind the sniffing stream
// and try the compiler on the same bytes.
func (Undumper) Undump(source io.Reader, chunkName string) (runtime.Prototype, error) {
	c, err := Undump(source, chunkName)
	if err != nil {
		return nil, err
	}
	if c == nil {
		// Return an untyped nil: a typed nil *Chunk inside the interface
		// would defeat the pipeline's no-result check.
		return nil, nil
	}
	return c, nil
}
