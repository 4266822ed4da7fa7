package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
	"golang.org/x/sys/unix"

	"parens/arena"
	"parens/compiler"
	"parens/lexer"
	"parens/parser"
	"parens/token"
	"parens/vm"
)

const banner = `
  ___  __ _ _ __ ___ _ __  ___
 / _ \/ _` + "`" + ` | '__/ _ \ '_ \/ __|
|  __/ (_| | | |  __/ | | \__ \
 \___|\__,_|_|  \___|_| |_|___/
`

// replCmd implements the "repl" subcommand: an interactive read-compile-run
// loop over the bytecode pipeline, one VM and global table per session.
type replCmd struct {
	diassemble bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive read-compile-run loop.
`
}

func (cmd *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.diassemble, "diassemble", false, "print the disassembled bytecode for each evaluated form")
}

func (cmd *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if isTTY(int(os.Stdin.Fd())) {
		fmt.Print(banner)
		fmt.Println("Welcome to the parens REPL. Type \"exit\" to quit.")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to start the line editor: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	machine := vm.New()
	var buffer strings.Builder

	for {
		if buffer.Len() > 0 {
			rl.SetPrompt("... ")
		} else {
			rl.SetPrompt(">>> ")
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 %v\n", err)
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		tokens := lexer.Scan(source)
		if !isInputReady(tokens) {
			continue
		}

		a := arena.NewBump(4096, 4)
		// machine.globals can retain arena-backed symbol/string objects for
		// the rest of the session, invisibly to the garbage collector (see
		// cmd_run.go's compileSource), so every form's arena is kept
		// reachable until the REPL itself exits rather than just until this
		// iteration ends.
		defer runtime.KeepAlive(a)
		p := parser.Make(tokens, a)
		root, parseErr := p.Parse()
		if parseErr != nil {
			fmt.Fprintln(os.Stderr, parseErr)
			buffer.Reset()
			continue
		}

		bytecode, genErr := compiler.Generate(root)
		if genErr != nil {
			fmt.Fprintln(os.Stderr, genErr.Error())
			buffer.Reset()
			continue
		}

		if cmd.diassemble {
			text, err := compiler.DiassembleAll(bytecode.Instructions)
			if err != nil {
				fmt.Fprintf(os.Stderr, "💥 Bytecode diassemble error:\n\t%s\n", err.Error())
			} else {
				fmt.Fprint(os.Stdout, text)
			}
		}

		if runErr := machine.Run(bytecode); runErr != nil {
			fmt.Fprintln(os.Stderr, runErr.Error())
			buffer.Reset()
			continue
		}

		if stack := machine.Stack(); len(stack) > 0 {
			fmt.Println(stack[len(stack)-1].String())
		}
		buffer.Reset()
	}
}

// isInputReady reports whether tokens form a balanced, complete expression —
// an unterminated list at end of input means the REPL should keep reading
// rather than report an error.
func isInputReady(tokens []token.Token) bool {
	balance := 0
	for _, tok := range tokens {
		switch tok.Kind {
		case token.ParenStart:
			balance++
		case token.ParenEnd:
			balance--
		}
	}
	return balance <= 0
}

// isTTY reports whether fd is attached to a terminal.
func isTTY(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.parens_history"
}
