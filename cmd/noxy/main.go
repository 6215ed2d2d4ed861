// Command noxy is the CLI front-end for the compiler and VM: a REPL
// when invoked with no arguments, a single-file runner when given one
// path, per spec.md §6.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"noxy-vm/internal/chunk"
	"noxy-vm/internal/compiler"
	"noxy-vm/internal/diagnostics"
	"noxy-vm/internal/lexer"
	"noxy-vm/internal/parser"
	"noxy-vm/internal/replhistory"
	"noxy-vm/internal/vm"
)

const Version = "v0.1.0"

// Exit codes per spec.md §6.
const (
	exitOK           = 0
	exitUsage        = 64
	exitStaticError  = 65
	exitRuntimeError = 70
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("noxy", flag.ContinueOnError)
	showDisassembly := flags.Bool("disassembly", false, "show bytecode disassembly before running")
	showVersion := flags.Bool("version", false, "show version information")
	showHelp := flags.Bool("help", false, "show this help message")
	historyPath := flags.String("history", "", "persist REPL input history to this SQLite file")
	traceErrors := flags.String("trace-errors", "", "ship runtime error reports to dynamo:<table>")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: noxy [options] [file]\n\nOptions:\n")
		flags.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  --%s\n\t%s\n", f.Name, f.Usage)
		})
	}

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	if *showHelp {
		flags.Usage()
		return exitOK
	}
	if *showVersion {
		fmt.Printf("noxy %s\n", Version)
		return exitOK
	}

	sink := maybeDiagnosticsSink(*traceErrors)

	positional := flags.Args()
	switch len(positional) {
	case 0:
		return startREPL(*showDisassembly, *historyPath, sink)
	case 1:
		return runFile(positional[0], *showDisassembly, sink)
	default:
		fmt.Fprintln(os.Stderr, "Usage: noxy [options] [file]")
		return exitUsage
	}
}

func maybeDiagnosticsSink(dest string) diagnostics.Sink {
	if dest == "" {
		return nil
	}
	table, ok := strings.CutPrefix(dest, "dynamo:")
	if !ok {
		fmt.Fprintf(os.Stderr, "--trace-errors: unrecognized destination %q (expected dynamo:<table>)\n", dest)
		return nil
	}
	sink, err := diagnostics.NewDynamoSink(context.Background(), table)
	if err != nil {
		fmt.Fprintf(os.Stderr, "--trace-errors: %s (continuing without it)\n", err)
		return nil
	}
	return sink
}

func runFile(path string, showDisasm bool, sink diagnostics.Sink) int {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %s\n", err)
		return exitUsage
	}

	runID := diagnostics.NewRunID()
	machine := vm.New()
	code, _ := execute(machine, path, string(content), showDisasm, runID, sink)
	return code
}

func startREPL(showDisasm bool, historyPath string, sink diagnostics.Sink) int {
	fmt.Printf("noxy %s\n", Version)
	fmt.Println("Type 'exit' to quit, or ':stats', ':time', ':history [n]'.")

	var hist *replhistory.History
	if historyPath != "" {
		h, err := replhistory.Open(historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--history: %s (continuing without persistence)\n", err)
		} else {
			hist = h
			defer hist.Close()
		}
	}

	machine := vm.New()
	runID := diagnostics.NewRunID()
	interactive := isatty.IsTerminal(os.Stdin.Fd())

	var lastReport diagnostics.Report
	haveReport := false

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			runMetaCommand(line, hist, lastReport, haveReport)
			continue
		}

		if hist != nil {
			if err := hist.Append(line); err != nil {
				fmt.Fprintf(os.Stderr, "--history: %s\n", err)
			}
		}

		// spec.md §6: "reads a line, injects a trailing ';' if
		// missing, wraps it as `print <line>;`, and runs it" —
		// implemented by stripping any trailing ';' the line already
		// has before wrapping, so the wrap never produces `;;`.
		wrapped := "print " + strings.TrimSuffix(line, ";") + ";"
		_, report := execute(machine, "repl", wrapped, showDisasm, runID, sink)
		lastReport = report
		haveReport = true
	}
	return exitOK
}

// runMetaCommand dispatches the REPL-only `:stats`, `:time`, and
// `:history` commands. They are CLI tooling, not language syntax: none
// of them reach the compiler or VM.
func runMetaCommand(line string, hist *replhistory.History, lastReport diagnostics.Report, haveReport bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":stats":
		if !haveReport {
			fmt.Println("no input evaluated yet")
			return
		}
		fmt.Println(diagnostics.Summarize(lastReport))
	case ":time":
		fmt.Println(diagnostics.FormatTimestamp(time.Now()))
	case ":history":
		n := 10
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
				n = v
			}
		}
		if hist == nil {
			fmt.Println("no history: pass --history <path> to enable it")
			return
		}
		lines, err := hist.Recent(n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--history: %s\n", err)
			return
		}
		for _, l := range lines {
			fmt.Println(l)
		}
	default:
		fmt.Printf("unknown command %q (try :stats, :time, :history)\n", fields[0])
	}
}

// execute runs one compilation unit against machine and returns the
// exit code spec.md §6 assigns to its outcome, plus a Report describing
// what happened — the REPL feeds it to `:stats`, the
// `--trace-errors` sink ships it on a runtime error. The REPL ignores
// the exit code itself (it keeps prompting regardless); the file
// runner propagates it.
func execute(machine *vm.VM, file string, source string, showDisasm bool, runID diagnostics.RunID, sink diagnostics.Sink) (int, diagnostics.Report) {
	start := time.Now()
	report := diagnostics.Report{RunID: runID, File: file, Timestamp: time.Now()}

	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, msg := range errs {
			fmt.Fprintln(os.Stderr, msg)
		}
		report.Message = strings.Join(errs, "; ")
		fmt.Sscanf(errs[0], "[line %d]", &report.Line)
		report.Elapsed = time.Since(start)
		return exitStaticError, report
	}

	c := compiler.New(file)
	fn, err := c.Compile(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compiler error: %s\n", err)
		report.Message = err.Error()
		fmt.Sscanf(report.Message, "[line %d]", &report.Line)
		report.Elapsed = time.Since(start)
		return exitStaticError, report
	}

	if showDisasm {
		fn.Chunk.(*chunk.Chunk).DisassembleAll(displayName(fn.Name))
	}

	if err := machine.Interpret(fn); err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %s\n", err)
		report.Message = err.Error()
		fmt.Sscanf(report.Message, "[line %d]", &report.Line)
		report.Frames = frameLines(err.Error())
		report.Elapsed = time.Since(start)
		if sink != nil {
			if sinkErr := sink.Record(context.Background(), report); sinkErr != nil {
				fmt.Fprintf(os.Stderr, "--trace-errors: failed to record report: %s\n", sinkErr)
			}
		}
		return exitRuntimeError, report
	}

	report.Message = "ok"
	report.Elapsed = time.Since(start)
	return exitOK, report
}

func displayName(name string) string {
	if name == "" {
		return "script"
	}
	return name
}

// frameLines pulls the "  in NAME" lines out of a VM runtime-error
// message (see internal/vm's runtimeError) so a Report can carry the
// frame chain as a slice instead of one opaque string.
func frameLines(msg string) []string {
	var frames []string
	for _, line := range strings.Split(msg, "\n") {
		if trimmed, ok := strings.CutPrefix(line, "  in "); ok {
			frames = append(frames, trimmed)
		}
	}
	return frames
}
