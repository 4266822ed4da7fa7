package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/google/subcommands"

	"parens/compiler"
)

// emitCmd implements the "emit" subcommand: compile a source file and write
// out its bytecode (.pbc) and, optionally, a disassembly listing (.dpbc).
type emitCmd struct {
	diassemble bool
	filePath   string
}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "Emit the bytecode representation of a source file" }
func (*emitCmd) Usage() string {
	return `emit <file>:
  Compile <file> and write its bytecode to a .pbc file.
`
}

func (cmd *emitCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.diassemble, "diassemble", true, "also write a human-readable .dpbc disassembly listing")
	f.StringVar(&cmd.filePath, "out", "", "output file path stem; defaults to the source file's path with its extension stripped")
}

func (cmd *emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	defer runtime.KeepAlive(a)

	stem := cmd.filePath
	if stem == "" {
		stem = strings.TrimSuffix(args[0], filepathExt(args[0]))
	}

	// Hex-encoded text, not raw binary, matching the teacher's DumpBytecode
	// convention.
	dump := hex.EncodeToString(bytecode.Instructions)
	if err := os.WriteFile(stem+".pbc", []byte(dump), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to write bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}

	if cmd.diassemble {
		text, err := diassembleBytecode(bytecode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 Bytecode diassemble error:\n\t%s\n", err.Error())
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(stem+".dpbc", []byte(text), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "💥 Failed to write disassembly file: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	return subcommands.ExitSuccess
}

func diassembleBytecode(bytecode *compiler.Bytecode) (string, error) {
	return compiler.DiassembleAll(bytecode.Instructions)
}

func filepathExt(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}
