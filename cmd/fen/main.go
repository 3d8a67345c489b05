// Fen CLI - tooling for compiled Fen chunks and the chunk cache.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/fenlang/fen/bytecode"
	"github.com/fenlang/fen/manifest"
	"github.com/fenlang/fen/resolver"
	"github.com/fenlang/fen/runtime"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("fen")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fen [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  inspect <file.fbc>        Print the metadata of a compiled chunk\n")
		fmt.Fprintf(os.Stderr, "  sniff <file>              Report whether a file is a compiled chunk or source text\n")
		fmt.Fprintf(os.Stderr, "  cache put <name> <file>   Store a compiled chunk in the cache\n")
		fmt.Fprintf(os.Stderr, "  cache ls                  List cached chunks with their content hashes\n")
		fmt.Fprintf(os.Stderr, "  cache rm <name>           Remove a chunk from the cache\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nThe cache commands read the cache location from fen.toml in the\n")
		fmt.Fprintf(os.Stderr, "current directory, falling back to .fen/chunks.db.\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "inspect":
		err = cmdInspect(args[1:])
	case "sniff":
		err = cmdSniff(args[1:])
	case "cache":
		err = cmdCache(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// --- inspect ---

func cmdInspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: fen inspect <file.fbc>")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	chunk, err := bytecode.Undump(file, args[0])
	if err != nil {
		return fmt.Errorf("undumping %s: %w", args[0], err)
	}
	if chunk == nil {
		return fmt.Errorf("%s is not a compiled chunk", args[0])
	}

	printChunk(chunk, 0)
	return nil
}

func printChunk(c *bytecode.Chunk, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%schunk %q (version %d)\n", indent, c.Name, c.Version)
	fmt.Printf("%s  params:    %d", indent, c.ParamCount)
	if c.Flags&bytecode.ChunkFlagVararg != 0 {
		fmt.Printf(" (vararg)")
	}
	fmt.Println()
	fmt.Printf("%s  locals:    %d\n", indent, c.LocalCount)
	fmt.Printf("%s  code:      %d bytes\n", indent, len(c.Code))
	fmt.Printf("%s  constants: %d\n", indent, len(c.Constants))
	if c.Flags&bytecode.ChunkFlagDebug != 0 {
		fmt.Printf("%s  debug:     %d source locations\n", indent, len(c.SourceMap))
	}
	for _, proto := range c.Protos {
		printChunk(proto, depth+1)
	}
}

// --- sniff ---

func cmdSniff(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: fen sniff <file>")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	bs := runtime.NewBufferedStream(file)
	bs.Mark(len(bytecode.ChunkMagic))
	chunk, err := bytecode.Undump(bs, args[0])
	if err != nil {
		return fmt.Errorf("sniffing %s: %w", args[0], err)
	}
	if chunk != nil {
		fmt.Printf("%s: compiled chunk %q (version %d)\n", args[0], chunk.Name, chunk.Version)
		return nil
	}

	if err := bs.Reset(); err != nil {
		return err
	}
	head := make([]byte, 64)
	n, err := bs.Read(head)
	if err != nil && err != io.EOF {
		return err
	}
	fmt.Printf("%s: source text, starts %q\n", args[0], head[:n])
	return nil
}

// --- cache ---

const defaultCachePath = ".fen/chunks.db"

func openCache() (*resolver.Cache, error) {
	path := defaultCachePath
	if m, err := manifest.LoadDir("."); err == nil {
		if p := m.CachePath(); p != "" {
			path = p
		}
	} else {
		log.Infof("no fen.toml, using %s: %v", path, err)
	}
	log.Infof("opening chunk cache at %s", path)
	return resolver.OpenCache(path)
}

func cmdCache(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: fen cache <put|ls|rm> [args...]")
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	switch args[0] {
	case "put":
		if len(args) != 3 {
			return fmt.Errorf("usage: fen cache put <name> <file>")
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		if err := cache.Put(args[1], data); err != nil {
			return err
		}
		log.Infof("stored %s (%d bytes)", args[1], len(data))
		return nil

	case "ls":
		names, err := cache.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			hash, err := cache.Hash(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", hash[:12], name)
		}
		return nil

	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: fen cache rm <name>")
		}
		return cache.Delete(args[1])

	default:
		return fmt.Errorf("unknown cache command %q", args[0])
	}
}
