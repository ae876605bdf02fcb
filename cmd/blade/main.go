// Command blade is the Blade language CLI: compile-and-run a script
// file, or fall back to the line-based REPL when given none. This
// binary is intentionally thin: all of compiling, GC, and
// dispatch lives in internal/compiler and internal/vm; main only wires
// flags, native modules, and exit codes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/blade-lang/blade/internal/compiler"
	bladeerrors "github.com/blade-lang/blade/internal/errors"
	"github.com/blade-lang/blade/internal/module"
	"github.com/blade-lang/blade/internal/natives"
	"github.com/blade-lang/blade/internal/repl"
	"github.com/blade-lang/blade/internal/value"
	"github.com/blade-lang/blade/internal/vm"
)

const version = "0.1.0"

// Exit codes: 0 success, 10 compile error, 11 runtime error,
// 12 terminal abort.
const (
	exitOK      = 0
	exitCompile = 10
	exitRuntime = 11
	exitAbort   = 12
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("blade", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		showHelp    = fs.Bool("h", false, "show this help message")
		showVersion = fs.Bool("v", false, "show version")
		bufferOut   = fs.Bool("b", false, "buffer stdout")
		disassemble = fs.Bool("d", false, "print compiled bytecode")
		trace       = fs.Bool("j", false, "trace stack during execution")
		minHeapKB   = fs.Int("g", 0, "minimum heap in KB before first GC")
	)
	fs.Usage = func() { printUsage(fs) }
	if err := fs.Parse(args); err != nil {
		return exitAbort
	}

	if *showHelp {
		printUsage(fs)
		return exitOK
	}
	if *showVersion {
		fmt.Printf("blade %s\n", version)
		return exitOK
	}

	rest := fs.Args()

	reg := module.NewRegistry()
	natives.RegisterAll(reg)

	if len(rest) == 0 {
		return runREPL(reg, *trace)
	}

	return runFile(rest[0], reg, runOpts{
		buffer:      *bufferOut,
		disassemble: *disassemble,
		trace:       *trace,
		minHeapKB:   *minHeapKB,
	})
}

type runOpts struct {
	buffer      bool
	disassemble bool
	trace       bool
	minHeapKB   int
}

func runFile(path string, reg *module.Registry, opts runOpts) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blade: %s\n", err)
		return exitAbort
	}

	mod := &value.Module{Name: "main", Path: path, Values: value.NewTable()}
	fn, errs := compiler.Compile(string(src), "main", mod)
	if len(errs) > 0 {
		cerr := bladeerrors.NewCompileErrorList(errs, path)
		fmt.Fprint(os.Stderr, cerr.Error())
		return exitCompile
	}

	if opts.disassemble {
		fmt.Fprint(os.Stderr, fn.Blob.Disassemble(path))
	}

	machine := vm.NewWithGC(reg, int64(opts.minHeapKB)*1024)
	machine.Trace = opts.trace
	machine.SetScriptPath(path)
	defer machine.Shutdown()

	if opts.buffer {
		buffered := bufio.NewWriter(os.Stdout)
		machine.Stdout = buffered
		defer buffered.Flush()
	}

	_, err = machine.Interpret(fn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitRuntime
	}
	return exitOK
}

func runREPL(reg *module.Registry, trace bool) int {
	r := repl.New(reg)
	r.Trace = trace
	return r.Run()
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: blade [options] [script.b]")
	fmt.Fprintln(os.Stderr, "options:")
	fs.PrintDefaults()
}
