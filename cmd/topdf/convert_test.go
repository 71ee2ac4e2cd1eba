package main

// Notes:
// - End-to-end runs use the host's fonts; assertions stick to file
//   existence, PDF validity, and CLI output so they hold on any host.
// - mergeFlags and pageSettings are tested directly for precedence.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/alnah/go-topdf/internal/config"
	"github.com/alnah/go-topdf/internal/pdfcheck"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func assertValidPDF(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if _, err := pdfcheck.Validate(data); err != nil {
		t.Errorf("%s: %v", path, err)
	}
}

// ---------------------------------------------------------------------------
// TestRunConvert - End-to-end batches
// ---------------------------------------------------------------------------

func TestRunConvert_MixedBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csv := writeFile(t, dir, "report.csv", "name,qty\napples,3\npears,5\n")
	md := writeFile(t, dir, "notes.md", "# Notes\n\nShip on *Friday*.\n")
	docx := writeFile(t, dir, "broken.docx", "not a zip archive")

	env, stdout, stderr := testEnv(nil)
	err := runConvert(context.Background(), []string{csv, md, docx}, env)

	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("error = %v, want ErrConversionFailed", err)
	}
	if code := exitCodeFor(err); code != ExitConversion {
		t.Errorf("exit code = %d, want %d", code, ExitConversion)
	}
	assertValidPDF(t, filepath.Join(dir, "report.pdf"))
	assertValidPDF(t, filepath.Join(dir, "notes.pdf"))
	if _, err := os.Stat(filepath.Join(dir, "broken.pdf")); !os.IsNotExist(err) {
		t.Error("broken.pdf should not exist")
	}

	out := stdout.String()
	for _, want := range []string{"Created " + filepath.Join(dir, "report.pdf"), "2 succeeded, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout should contain %q, got %q", want, out)
		}
	}
	if !strings.Contains(stderr.String(), "FAILED "+docx) {
		t.Errorf("stderr should report the docx failure, got %q", stderr.String())
	}
}

func TestRunConvert_Directory(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeFile(t, in, "a.txt", "alpha")
	writeFile(t, in, "sub/b.json", `{"b": 1}`)
	writeFile(t, in, "sub/skip.xyz", "ignored")
	writeFile(t, in, ".hidden/c.txt", "hidden")
	out := filepath.Join(t.TempDir(), "pdf")

	env, stdout, _ := testEnv(nil)
	if err := runConvert(context.Background(), []string{"-q", "-o", out, in}, env); err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if !slices.Equal(names, []string{"a.pdf", "b.pdf"}) {
		t.Errorf("outputs = %v, want [a.pdf b.pdf]", names)
	}
	if stdout.Len() != 0 {
		t.Errorf("quiet run wrote to stdout: %q", stdout.String())
	}
}

func TestRunConvert_Collision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantFile string
		keepOld  bool
	}{
		{name: "overwrite by default", wantFile: "a.pdf"},
		{name: "suffix keeps existing", args: []string{"--on-collision", "suffix"}, wantFile: "a-2.pdf", keepOld: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			src := writeFile(t, dir, "a.txt", "alpha")
			old := writeFile(t, dir, "a.pdf", "old")

			env, _, _ := testEnv(nil)
			if err := runConvert(context.Background(), append(slices.Clone(tt.args), "-q", src), env); err != nil {
				t.Fatalf("runConvert() error = %v", err)
			}
			assertValidPDF(t, filepath.Join(dir, tt.wantFile))

			data, err := os.ReadFile(old)
			if err != nil {
				t.Fatal(err)
			}
			if kept := string(data) == "old"; kept != tt.keepOld {
				t.Errorf("existing a.pdf kept = %v, want %v", kept, tt.keepOld)
			}
		})
	}
}

func TestRunConvert_EnvOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "a.md", "# A\n")
	envOut := filepath.Join(dir, "from-env")
	flagOut := filepath.Join(dir, "from-flag")

	env, _, _ := testEnv(map[string]string{config.EnvOutput: envOut})
	if err := runConvert(context.Background(), []string{"-q", src}, env); err != nil {
		t.Fatal(err)
	}
	assertValidPDF(t, filepath.Join(envOut, "a.pdf"))

	env, _, _ = testEnv(map[string]string{config.EnvOutput: envOut})
	if err := runConvert(context.Background(), []string{"-q", "-o", flagOut, src}, env); err != nil {
		t.Fatal(err)
	}
	assertValidPDF(t, filepath.Join(flagOut, "a.pdf"))
}

func TestRunConvert_ConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "alpha")
	cfgPath := writeFile(t, dir, "topdf.yaml", "output:\n  dir: "+filepath.Join(dir, "cfg-out")+"\npage:\n  size: letter\n  pageNumbers: true\n")

	env, _, _ := testEnv(nil)
	if err := runConvert(context.Background(), []string{"-q", "-c", cfgPath, src}, env); err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}
	assertValidPDF(t, filepath.Join(dir, "cfg-out", "a.pdf"))
}

func TestRunConvert_CancelledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var args []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		args = append(args, writeFile(t, dir, name, name))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env, stdout, stderr := testEnv(nil)
	err := runConvert(ctx, append([]string{"-w", "1"}, args...), env)

	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("error = %v, want ErrConversionFailed", err)
	}
	if !strings.Contains(stderr.String(), "hint: run again") {
		t.Errorf("stderr should carry the cancel hint, got %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "cancelled)") {
		t.Errorf("summary should count cancelled jobs, got %q", stdout.String())
	}
}

func TestRunConvert_NoSupportedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "data.xyz", "x")

	env, _, _ := testEnv(nil)
	err := runConvert(context.Background(), []string{dir}, env)
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("error = %v, want ErrNoFiles", err)
	}
	if !strings.Contains(err.Error(), "hint: supported:") {
		t.Errorf("error %q should list supported extensions", err)
	}
}

// ---------------------------------------------------------------------------
// TestMergeFlags - Flag precedence over config values
// ---------------------------------------------------------------------------

func TestMergeFlags(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.Output.Dir = "file-out"
		cfg.Workers = 3
		cfg.Fonts.Dirs = []string{"/cfg/fonts"}
		return cfg
	}

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "unset flags keep config",
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Output.Dir != "file-out" || cfg.Workers != 3 || cfg.Page.Size != "a4" {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
		{
			name: "explicit zero workers wins",
			args: []string{"-w", "0"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Workers != 0 {
					t.Errorf("Workers = %d, want 0", cfg.Workers)
				}
			},
		},
		{
			name: "page flags",
			args: []string{"--page-size", "legal", "--orientation", "landscape", "--margin", "1.5", "--page-numbers"},
			check: func(t *testing.T, cfg *config.Config) {
				want := config.PageConfig{Size: "legal", Orientation: "landscape", Margin: 1.5, PageNumbers: true}
				if cfg.Page != want {
					t.Errorf("Page = %+v, want %+v", cfg.Page, want)
				}
			},
		},
		{
			name: "font dirs are searched before config dirs",
			args: []string{"--font-dir", "/a", "--font-dir", "/b"},
			check: func(t *testing.T, cfg *config.Config) {
				if !slices.Equal(cfg.Fonts.Dirs, []string{"/a", "/b", "/cfg/fonts"}) {
					t.Errorf("Fonts.Dirs = %v", cfg.Fonts.Dirs)
				}
			},
		},
		{
			name: "output collision and log format",
			args: []string{"-o", "flag-out", "--on-collision", "suffix", "--log-format", "json"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Output.Dir != "flag-out" || cfg.Collision != "suffix" || cfg.Log.Format != "json" {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags, _, err := parseConvertFlags(tt.args)
			if err != nil {
				t.Fatal(err)
			}
			cfg := base()
			mergeFlags(flags, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestPageSettings(t *testing.T) {
	t.Parallel()

	ps := pageSettings(&config.Config{})
	if ps.Size != "a4" || ps.Orientation != "portrait" || ps.Margin != 0.5 || ps.PageNumbers {
		t.Errorf("zero config = %+v, want library defaults", ps)
	}

	ps = pageSettings(&config.Config{Page: config.PageConfig{Size: "letter", Margin: 1, PageNumbers: true}})
	if ps.Size != "letter" || ps.Orientation != "portrait" || ps.Margin != 1 || !ps.PageNumbers {
		t.Errorf("partial config = %+v", ps)
	}
	if err := ps.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
