// Package repl implements Blade's interactive line-based REPL:
// read a line, keep reading continuation lines while any bracket or
// string quote is left open, compile the completed input as a
// top-level script against a shared `<repl>` module, and run it in the
// same VM so later entries see earlier definitions.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/blade-lang/blade/internal/compiler"
	"github.com/blade-lang/blade/internal/lexer"
	"github.com/blade-lang/blade/internal/module"
	"github.com/blade-lang/blade/internal/value"
	"github.com/blade-lang/blade/internal/vm"
)

// REPL owns the shared VM and module the whole session runs against.
type REPL struct {
	Trace  bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	machine *vm.VM
	mod     *value.Module
	isTTY   bool
}

func New(reg *module.Registry) *REPL {
	mod := &value.Module{Name: "<repl>", Path: "<repl>", Values: value.NewTable()}
	return &REPL{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		machine: vm.New(reg),
		mod:     mod,
		isTTY:   isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// Run drives the read-eval-print loop until exit()/EOF and returns the
// process exit code (0 normally; the REPL only ever aborts on a
// genuine I/O failure reading stdin).
func (r *REPL) Run() int {
	r.machine.Trace = r.Trace
	r.machine.SetScriptPath("<repl>")

	in := bufio.NewReader(r.Stdin)
	r.printBanner()
	defer r.machine.Shutdown()

	for {
		source, ok := r.readStatement(in)
		if !ok {
			return 0
		}
		trimmed := strings.TrimSpace(source)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit()" || trimmed == "exit" {
			return 0
		}
		r.eval(source)
	}
}

func (r *REPL) printBanner() {
	if r.isTTY {
		fmt.Fprintln(r.Stdout, "Blade REPL. Type exit() or press Ctrl-D to quit.")
	}
}

// readStatement reads lines until every `{`, `(`, `[`, `'`, and `"` is
// matched, re-lexing the accumulated buffer after each line to decide
// whether more input is needed. The lexer's own string-interpolation
// handling means a quote only counts as "open" when it genuinely
// produced an unterminated-string error, not while inside a balanced
// string literal.
func (r *REPL) readStatement(in *bufio.Reader) (string, bool) {
	var buf strings.Builder
	first := true
	for {
		if r.isTTY {
			if first {
				fmt.Fprint(r.Stdout, ">>> ")
			} else {
				fmt.Fprint(r.Stdout, "... ")
			}
		}
		line, err := in.ReadString('\n')
		if line == "" && err != nil {
			return "", false
		}
		buf.WriteString(line)
		if err != nil {
			// EOF with a trailing partial line: treat what we have as
			// the final statement.
			return buf.String(), true
		}
		if !r.needsContinuation(buf.String()) {
			return buf.String(), true
		}
		first = false
	}
}

func (r *REPL) needsContinuation(src string) bool {
	sc := lexer.New(src)
	depth := 0
	for {
		tok := sc.Next()
		switch tok.Type {
		case lexer.TokEOF:
			return depth > 0
		case lexer.TokError:
			for _, e := range sc.Errors() {
				if strings.Contains(e, "unterminated string") {
					return true
				}
			}
			return false
		case lexer.TokLParen, lexer.TokLBrace, lexer.TokLBracket:
			depth++
		case lexer.TokRParen, lexer.TokRBrace, lexer.TokRBracket:
			depth--
		}
	}
}

func (r *REPL) eval(source string) {
	fn, errs := compiler.Compile(source, "<repl>", r.mod)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(r.Stderr, e)
		}
		return
	}
	result, err := r.machine.Interpret(fn)
	if err != nil {
		fmt.Fprintln(r.Stderr, err)
		return
	}
	if !result.IsNil() {
		fmt.Fprintln(r.Stdout, value.ToString(result))
	}
}
