package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	topdf "github.com/alnah/go-topdf"
	"github.com/alnah/go-topdf/internal/config"
	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/fontres"
	"github.com/alnah/go-topdf/internal/format"
	"github.com/alnah/go-topdf/internal/hints"
	"github.com/alnah/go-topdf/internal/statusfeed"
)

// Sentinel errors for CLI operations.
var (
	ErrUsage            = errors.New("invalid usage")
	ErrNoInput          = errors.New("no input specified")
	ErrNoFiles          = errors.New("no supported files found")
	ErrConversionFailed = errors.New("conversion failed")
)

// runConvert converts every file named or found under args.
// Flags override environment variables, which override the config file.
func runConvert(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseConvertFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printConvertUsage(env.Stdout)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if err := validateWorkers(flags.workers); err != nil {
		return err
	}

	cfg, err := loadConfig(flags.common.config, env)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(env.Getenv); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	mergeFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := logLevel(cfg.Log.Level, flags.common.quiet, flags.common.verbose)
	logger := newLogger(env.Stderr, cfg.Log.Format, level)

	if len(positional) == 0 {
		return ErrNoInput
	}
	files, err := discoverFiles(positional)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w in %s%s", ErrNoFiles, strings.Join(positional, ", "), hints.ForUnsupported(format.Extensions()))
	}

	policy, err := topdf.ParseCollisionPolicy(cfg.Collision)
	if err != nil {
		return err
	}
	conv, err := topdf.NewConverter(
		topdf.WithFontResolver(newResolver(cfg, logger)),
		topdf.WithPageSettings(pageSettings(cfg)),
		topdf.WithLogger(logger),
		topdf.WithClock(env.Now),
	)
	if err != nil {
		return err
	}

	logger.Debug("starting batch", "files", len(files), "workers", topdf.ResolvePoolSize(cfg.Workers, len(files)))
	session := topdf.Submit(files,
		topdf.WithConverter(conv),
		topdf.WithOutputDir(cfg.Output.Dir),
		topdf.WithConcurrency(cfg.Workers),
		topdf.WithCollisionPolicy(policy),
		topdf.WithContext(ctx),
	)

	if flags.statusAddr != "" {
		feed, err := statusfeed.Start(flags.statusAddr, session, logger)
		if err != nil {
			session.Cancel()
			session.Wait()
			return fmt.Errorf("starting status feed: %w", err)
		}
		if !flags.common.quiet {
			fmt.Fprintf(env.Stderr, "Status feed on http://%s/jobs\n", feed.Addr())
		}
		defer func() {
			if err := feed.Close(); err != nil {
				logger.Warn("closing status feed", "error", err)
			}
		}()
	}

	printProgress(session, flags.common, env)
	jobs := session.Wait()
	summary := session.Summary()
	printWarnings(jobs, flags.common.quiet, env)

	if !flags.common.quiet && len(jobs) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed", summary.Succeeded, summary.Failed)
		if summary.Cancelled > 0 {
			fmt.Fprintf(env.Stdout, " (%d cancelled)", summary.Cancelled)
		}
		fmt.Fprintln(env.Stdout)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrConversionFailed, summary.Failed, summary.Total)
	}
	return nil
}

// loadConfig returns the named config, or a copy of the environment's base
// config when name is empty.
func loadConfig(name string, env *Environment) (*config.Config, error) {
	if name == "" {
		if env.Config == nil {
			return config.DefaultConfig(), nil
		}
		cfg := *env.Config
		return &cfg, nil
	}
	cfg, err := config.LoadConfig(name)
	if err != nil {
		hint := ""
		if errors.Is(err, config.ErrConfigNotFound) {
			hint = hints.ForConfigNotFound(config.SearchPaths(name))
		}
		return nil, fmt.Errorf("loading config: %w%s", err, hint)
	}
	return cfg, nil
}

// mergeFlags copies explicitly set flags into cfg.
func mergeFlags(flags *convertFlags, cfg *config.Config) {
	if flags.changed("output") {
		cfg.Output.Dir = flags.output
	}
	if flags.changed("workers") {
		cfg.Workers = flags.workers
	}
	if flags.changed("page-size") {
		cfg.Page.Size = flags.page.size
	}
	if flags.changed("orientation") {
		cfg.Page.Orientation = flags.page.orientation
	}
	if flags.changed("margin") {
		cfg.Page.Margin = flags.page.margin
	}
	if flags.changed("page-numbers") {
		cfg.Page.PageNumbers = flags.page.pageNumbers
	}
	if flags.changed("on-collision") {
		cfg.Collision = flags.collision
	}
	if flags.changed("font-dir") {
		cfg.Fonts.Dirs = slices.Concat(flags.fontDirs, cfg.Fonts.Dirs)
	}
	if flags.changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
}

// pageSettings fills unset page fields with the library defaults.
func pageSettings(cfg *config.Config) topdf.PageSettings {
	ps := topdf.DefaultPageSettings()
	if cfg.Page.Size != "" {
		ps.Size = cfg.Page.Size
	}
	if cfg.Page.Orientation != "" {
		ps.Orientation = cfg.Page.Orientation
	}
	if cfg.Page.Margin != 0 {
		ps.Margin = cfg.Page.Margin
	}
	ps.PageNumbers = cfg.Page.PageNumbers
	return ps
}

// newResolver builds the font resolver described by cfg.Fonts.
func newResolver(cfg *config.Config, logger *slog.Logger) *fontres.Resolver {
	extra := map[document.Script][]string{}
	if len(cfg.Fonts.Latin) > 0 {
		extra[document.Latin] = cfg.Fonts.Latin
	}
	if len(cfg.Fonts.CJK) > 0 {
		extra[document.CJK] = cfg.Fonts.CJK
	}
	logger.Debug("font options", "dirs", cfg.Fonts.Dirs, "fallback", cfg.Fonts.Fallback)
	return fontres.New(fontres.Options{
		Dirs:      cfg.Fonts.Dirs,
		Preferred: fontres.Prefer(extra),
		Fallback:  cfg.Fonts.Fallback,
		Logger:    logger,
	})
}

// printProgress follows the session's events until every job is terminal.
// Failures go to stderr; successes to stdout unless quiet.
func printProgress(s *topdf.Session, common commonFlags, env *Environment) {
	started := make(map[string]time.Time)
	for ev := range s.Subscribe() {
		switch ev.Status {
		case topdf.StatusRunning:
			started[ev.JobID] = ev.Time
		case topdf.StatusFailed:
			fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", ev.Source, ev.Err, hintFor(ev.Err))
		case topdf.StatusSucceeded:
			switch {
			case common.quiet:
			case common.verbose:
				fmt.Fprintf(env.Stdout, "%s -> %s (%v)\n", ev.Source, ev.Output, ev.Time.Sub(started[ev.JobID]).Round(time.Millisecond))
			default:
				fmt.Fprintf(env.Stdout, "Created %s\n", ev.Output)
			}
		}
	}
}

// printWarnings reports non-fatal problems of finished jobs.
func printWarnings(jobs []topdf.Job, quiet bool, env *Environment) {
	if quiet {
		return
	}
	missingCJK := false
	for _, j := range jobs {
		for _, w := range j.Warnings {
			fmt.Fprintf(env.Stderr, "WARN %s: %v\n", j.Source, w)
			var fe *topdf.FontResolutionError
			if errors.As(w, &fe) && fe.Script == document.CJK {
				missingCJK = true
			}
		}
	}
	if missingCJK {
		fmt.Fprintln(env.Stderr, "CJK text was rendered with a fallback font"+hints.ForCJKFont())
	}
}

// hintFor returns an actionable hint for a job failure, or "".
func hintFor(err error) string {
	var ioe *topdf.IOError
	switch {
	case errors.Is(err, topdf.ErrUnsupportedFormat):
		return hints.ForUnsupported(format.Extensions())
	case errors.Is(err, topdf.ErrCancelled):
		return hints.ForCancelled()
	case errors.As(err, &ioe) && ioe.Op == "write":
		return hints.ForOutputDirectory()
	}
	return ""
}
