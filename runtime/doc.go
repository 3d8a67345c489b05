// Package runtime provides the bootstrap and loading layer of the Fen
// execution environment.
//
// A Globals value is the per-environment state container: it holds the
// strategy slots the embedding application installs (compiler, undumper,
// binder, resource finder), the environment's I/O channel handles, and the
// reference to the currently running context. Environments are independent;
// an application embeds as many as it likes, one per logical thread of
// control.
//
// The loading pipeline turns externally supplied input, either textual
// source or a previously serialized binary chunk, into a Function bound to a
// chosen environment:
//
//	caller -> Globals.LoadFile / LoadString -> Load -> LoadPrototype
//	       -> Undumper or Compiler -> Binder -> Function
//
// Two stream types support the pipeline. BufferedStream lets the binary path
// sniff a chunk signature speculatively and rewind so the text path sees the
// same bytes. UTF8Stream normalizes a character source into UTF-8 bytes for
// the compiler.
//
// Coroutines provide the single suspension point of the layer: code running
// inside a coroutine calls Globals.Yield, which routes to the running
// context's suspend primitive. The main context cannot suspend.
//
// Everything downstream of the produced Function (the instruction set, the
// evaluator, the builtin library) lives outside this package and is reached
// only through the collaborator interfaces defined here.
package runtime
