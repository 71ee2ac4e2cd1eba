package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// pageFlags holds page layout flags.
type pageFlags struct {
	size        string
	orientation string
	margin      float64
	pageNumbers bool
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common     commonFlags
	output     string
	workers    int
	page       pageFlags
	collision  string
	fontDirs   []string
	logFormat  string
	statusAddr string

	// changed reports whether a flag was set on the command line, so that
	// only explicit flags override config and environment values.
	changed func(name string) bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show timings, warnings, and debug logs")
}

// addPageFlags adds page layout flags to a FlagSet.
func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.size, "page-size", "p", "", "page size: letter, a4, legal")
	fs.StringVar(&f.orientation, "orientation", "", "page orientation: portrait, landscape")
	fs.Float64Var(&f.margin, "margin", 0, "page margin in inches (0.25-3.0)")
	fs.BoolVar(&f.pageNumbers, "page-numbers", false, "print page numbers in the footer")
}

// newConvertFlagSet registers every convert flag into f.
func newConvertFlagSet(f *convertFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output directory (default: beside each source)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
	fs.StringVar(&f.collision, "on-collision", "", "existing output files: overwrite, suffix")

	addCommonFlags(fs, &f.common)
	addPageFlags(fs, &f.page)

	fs.StringArrayVar(&f.fontDirs, "font-dir", nil, "extra font directory (repeatable)")
	fs.StringVar(&f.logFormat, "log-format", "", "diagnostic log format: text, json")
	fs.StringVar(&f.statusAddr, "status-addr", "", "serve job status on this address (e.g. 127.0.0.1:8080)")

	f.changed = fs.Changed
	return fs
}

// parseConvertFlags parses convert command flags and returns positional args.
func parseConvertFlags(args []string) (*convertFlags, []string, error) {
	f := &convertFlags{}
	fs := newConvertFlagSet(f)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}
