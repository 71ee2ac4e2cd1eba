package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	os.Exit(runMain(os.Args, DefaultEnv()))
}

// runMain dispatches a command line and returns the process exit code.
// Arguments that are not a command name are treated as convert inputs.
func runMain(args []string, env *Environment) int {
	if env.Getenv == nil {
		env.Getenv = func(string) string { return "" }
	}
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[1], args[2:]
	switch cmd {
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "topdf %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "convert":
		return runConvertCmd(rest, env)
	}

	if !looksLikeInput(cmd) {
		fmt.Fprintf(env.Stderr, "unknown command: %s\n", cmd)
		printUsage(env.Stderr)
		return ExitUsage
	}
	return runConvertCmd(args[1:], env)
}

// runConvertCmd runs convert under a context cancelled by interrupt signals.
func runConvertCmd(args []string, env *Environment) int {
	ctx, stop := interruptContext(context.Background())
	defer stop()

	err := runConvert(ctx, args, env)
	if err != nil {
		fmt.Fprintf(env.Stderr, "topdf: %v\n", err)
	}
	return exitCodeFor(err)
}

// looksLikeInput reports whether arg is a flag or a path rather than a
// mistyped command name.
func looksLikeInput(arg string) bool {
	if strings.HasPrefix(arg, "-") || strings.ContainsAny(arg, `./\`) {
		return true
	}
	_, err := os.Stat(arg)
	return err == nil
}
