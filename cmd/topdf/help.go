package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alnah/go-topdf/internal/format"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: topdf <command> [flags] [args]")
	fmt.Fprintln(w, "       topdf [flags] <file|dir>...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert    Convert files to PDF (default)")
	fmt.Fprintln(w, "  doctor     Check fonts and system readiness")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'topdf help <command>' for details on a specific command.")
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: topdf convert <file|dir>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert documents, data files, source code, and images to PDF.")
	fmt.Fprintln(w, "Directories are searched recursively for supported files.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported extensions:")
	fmt.Fprintln(w, "  "+strings.Join(format.Extensions(), " "))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default: beside each source)")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel workers (0 = auto)")
	fmt.Fprintln(w, "      --on-collision <s>    Existing outputs: overwrite (default), suffix")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Page:")
	fmt.Fprintln(w, "  -p, --page-size <s>       Page size: letter, a4, legal")
	fmt.Fprintln(w, "      --orientation <s>     Orientation: portrait, landscape")
	fmt.Fprintln(w, "      --margin <f>          Margin in inches (0.25-3.0)")
	fmt.Fprintln(w, "      --page-numbers        Page numbers in the footer")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fonts:")
	fmt.Fprintln(w, "      --font-dir <dir>      Extra font directory, searched first (repeatable)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show timings and debug logs")
	fmt.Fprintln(w, "      --log-format <s>      Diagnostic log format: text, json")
	fmt.Fprintln(w, "      --status-addr <addr>  Serve /jobs and /events (websocket) on addr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  TOPDF_OUTPUT, TOPDF_WORKERS, TOPDF_PAGE_SIZE, TOPDF_FONT_DIRS, TOPDF_LOG_FORMAT")
	fmt.Fprintln(w, "  Flags override environment variables, which override the config file.")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: topdf doctor [--json] [--font-dir <dir>]...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Report discovered fonts, CJK availability, temp directory access,")
	fmt.Fprintln(w, "and the result of a probe render.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "convert":
		printConvertUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: topdf version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: topdf help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
