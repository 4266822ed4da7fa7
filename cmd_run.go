package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/google/subcommands"

	"parens/arena"
	"parens/compiler"
	"parens/lexer"
	"parens/parser"
	"parens/vm"
)

// runCmd implements the "run" subcommand: compile a source file and execute
// it on a fresh VM.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Compile and run a source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile <file> to bytecode and execute it.
`
}
func (*runCmd) SetFlags(f *flag.FlagSet) {}

func (*runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	bytecode, a, err := compileSource(string(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitFailure
	}
	// The AST nodes the arena handed out are reachable only through raw
	// unsafe.Pointer casts, invisible to the garbage collector: it cannot
	// discover that bytecode's constants pool still points at arena-backed
	// symbol/string objects, so the arena itself is the only thing keeping
	// that memory from being reclaimed out from under a running VM.
	defer runtime.KeepAlive(a)

	machine := vm.New()
	if err := machine.Run(bytecode); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}

// compileSource runs source through the full tokenizer -> parser -> bytecode
// generator pipeline on a fresh arena, returning the compiled program, the
// arena that backs its AST and constant objects, or the first error raised
// along the way. Callers must keep the returned arena reachable (e.g. via
// runtime.KeepAlive) for as long as the bytecode or anything derived from it
// is still in use.
func compileSource(source string) (*compiler.Bytecode, arena.Allocator, error) {
	a := arena.NewBump(4096, 4)
	tokens := lexer.Scan(source)
	p := parser.Make(tokens, a)
	root, err := p.Parse()
	if err != nil {
		return nil, a, err
	}
	bc, err := compiler.Generate(root)
	return bc, a, err
}
