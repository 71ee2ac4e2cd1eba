package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	topdf "github.com/alnah/go-topdf"
	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/fileutil"
	"github.com/alnah/go-topdf/internal/fontres"
	"github.com/alnah/go-topdf/internal/hints"
	"github.com/alnah/go-topdf/internal/pdfcheck"
)

// maxListedFamilies bounds the family list in text output.
const maxListedFamilies = 12

// probeDocument exercises headings, a table, and code in the probe render.
const probeDocument = "# topdf probe\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n```go\nfunc main() {}\n```\n"

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Fonts    fontInfo   `json:"fonts"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Probe    probeInfo  `json:"probe"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// fontInfo holds font discovery results.
type fontInfo struct {
	Faces    int      `json:"faces"`
	Families []string `json:"families,omitempty"`
	Latin    string   `json:"latin"`
	CJK      bool     `json:"cjk"`
	CJKFont  string   `json:"cjk_font,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	CPUs          int    `json:"cpus"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// probeInfo holds the result of rendering a small document.
type probeInfo struct {
	OK         bool  `json:"ok"`
	Pages      int   `json:"pages,omitempty"`
	Bytes      int   `json:"bytes,omitempty"`
	DurationMS int64 `json:"duration_ms"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad flags.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOutput := fs.Bool("json", false, "print results as JSON")
	fontDirs := fs.StringArray("font-dir", nil, "extra font directory (repeatable)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printDoctorUsage(env.Stdout)
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		printDoctorUsage(env.Stderr)
		return ExitUsage
	}

	resolver := fontres.New(fontres.Options{Dirs: *fontDirs, Logger: newLogger(io.Discard, "", 0)})
	result := runDoctor(resolver, env)

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(resolver *fontres.Resolver, env *Environment) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
			CPUs: runtime.NumCPU(),
		},
	}

	checkFonts(result, resolver)
	checkEnvironment(result, env.Getenv)
	checkSystem(result)
	checkProbe(result, resolver, env)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	return result
}

// checkFonts reports what the resolver found and which faces it would use.
func checkFonts(result *doctorResult, resolver *fontres.Resolver) {
	faces := resolver.Faces()
	result.Fonts.Faces = len(faces)
	for _, f := range faces {
		if !slices.Contains(result.Fonts.Families, f.Family) {
			result.Fonts.Families = append(result.Fonts.Families, f.Family)
		}
	}
	slices.Sort(result.Fonts.Families)

	latin, err := resolver.Resolve(document.Latin)
	result.Fonts.Latin = latin.Family
	switch {
	case err != nil || latin.IsCore():
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("No TrueType font for Latin text; using built-in %s (limited to Western European characters)", latin.Family))
	case !resolver.HasScript(document.Latin):
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("No installed font for Latin text; using embedded %s", latin.Family))
	}

	result.Fonts.CJK = resolver.HasScript(document.CJK)
	if result.Fonts.CJK {
		if p, err := resolver.Resolve(document.CJK); err == nil {
			result.Fonts.CJKFont = p.Family
		}
	} else {
		result.Warnings = append(result.Warnings,
			"No CJK font found; CJK text will not render"+hints.ForCJKFont())
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, getenv func(string) string) {
	result.Env.Container, result.Env.ContainerHint = isContainer(getenv)

	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer(getenv func(string) string) (bool, string) {
	if getenv("TOPDF_CONTAINER") == "1" {
		return true, "TOPDF_CONTAINER=1"
	}
	if hints.IsInContainer() {
		return true, "/.dockerenv"
	}
	if v := getenv("container"); v != "" {
		return true, "container=" + v
	}
	if getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies that atomic writes can create temp files.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	if err := fileutil.DirWritable(tmpDir); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Temp directory not writable: %s", tmpDir))
		return
	}
	result.System.TempWritable = true
}

// checkProbe renders a small document with the discovered fonts and
// validates the output.
func checkProbe(result *doctorResult, resolver *fontres.Resolver, env *Environment) {
	conv, err := topdf.NewConverter(
		topdf.WithFontResolver(resolver),
		topdf.WithLogger(newLogger(io.Discard, "", 0)),
		topdf.WithClock(env.Now),
	)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Probe setup failed: %v", err))
		return
	}

	start := time.Now()
	pdf, _, err := conv.Convert("probe.md", []byte(probeDocument))
	result.Probe.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Probe render failed: %v", err))
		return
	}
	info, err := pdfcheck.Validate(pdf)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Probe output invalid: %v", err))
		return
	}
	result.Probe = probeInfo{OK: true, Pages: info.Pages, Bytes: len(pdf), DurationMS: result.Probe.DurationMS}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "topdf doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Fonts")
	fmt.Fprintf(w, "  [OK] Faces found: %d\n", r.Fonts.Faces)
	if n := len(r.Fonts.Families); n > 0 {
		shown := r.Fonts.Families[:min(n, maxListedFamilies)]
		more := ""
		if n > len(shown) {
			more = fmt.Sprintf(" and %d more", n-len(shown))
		}
		fmt.Fprintf(w, "  [OK] Families: %s%s\n", strings.Join(shown, ", "), more)
	}
	fmt.Fprintf(w, "  [OK] Latin: %s\n", r.Fonts.Latin)
	if r.Fonts.CJK {
		fmt.Fprintf(w, "  [OK] CJK: %s\n", r.Fonts.CJKFont)
	} else {
		fmt.Fprintln(w, "  [WARN] CJK: not available")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s (%d CPUs)\n", r.Env.OS, r.Env.Arch, r.Env.CPUs)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	if r.Probe.OK {
		fmt.Fprintf(w, "  [OK] Probe render: %d page(s), %d bytes in %dms\n", r.Probe.Pages, r.Probe.Bytes, r.Probe.DurationMS)
	} else {
		fmt.Fprintln(w, "  [ERROR] Probe render: failed")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to convert")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
