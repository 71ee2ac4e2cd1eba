package hints

// Notes:
// - ForCJKFont tests cannot use t.Parallel() because they modify the
//   package-level IsInContainer variable.

import (
	"strings"
	"testing"
)

func TestForCJKFont(t *testing.T) {
	orig := IsInContainer
	defer func() { IsInContainer = orig }()

	IsInContainer = func() bool { return false }
	hint := ForCJKFont()
	if !strings.HasPrefix(hint, "\n  hint: ") {
		t.Errorf("hint %q lacks prefix", hint)
	}
	if !strings.Contains(hint, "--font-dir") {
		t.Error("expected --font-dir suggestion")
	}
	if strings.Contains(hint, "apt-get") {
		t.Error("unexpected package hint outside a container")
	}

	IsInContainer = func() bool { return true }
	if hint := ForCJKFont(); !strings.Contains(hint, "fonts-noto-cjk") {
		t.Errorf("hint %q should suggest the package in a container", hint)
	}
}

func TestForConfigNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		paths    []string
		contains string
		excludes string
	}{
		{
			name:     "suggests user config path",
			paths:    []string{"./foo.yaml", "/home/u/.config/go-topdf/foo.yaml"},
			contains: "or create /home/u/.config/go-topdf/foo.yaml",
		},
		{
			name:     "no user path",
			paths:    []string{"./foo.yaml"},
			contains: "--config",
			excludes: "or create",
		},
		{
			name:     "nil paths",
			contains: "--config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hint := ForConfigNotFound(tt.paths)
			if !strings.Contains(hint, tt.contains) {
				t.Errorf("hint %q should contain %q", hint, tt.contains)
			}
			if tt.excludes != "" && strings.Contains(hint, tt.excludes) {
				t.Errorf("hint %q should not contain %q", hint, tt.excludes)
			}
		})
	}
}

func TestForUnsupported(t *testing.T) {
	t.Parallel()

	if got := ForUnsupported(nil); got != "" {
		t.Errorf("ForUnsupported(nil) = %q, want empty", got)
	}
	if got := ForUnsupported([]string{".csv", ".md"}); got != "\n  hint: supported: .csv .md" {
		t.Errorf("ForUnsupported() = %q", got)
	}
}

func TestSimpleHints(t *testing.T) {
	t.Parallel()

	for _, hint := range []string{ForOutputDirectory(), ForCancelled()} {
		if !strings.HasPrefix(hint, "\n  hint: ") || len(hint) <= len("\n  hint: ") {
			t.Errorf("hint %q is malformed", hint)
		}
	}
}

func TestFormatHints(t *testing.T) {
	t.Parallel()

	if got := formatHints(nil); got != "" {
		t.Errorf("formatHints(nil) = %q, want empty", got)
	}
	if got := formatHints([]string{"a", "b"}); got != "\n  hint: a; b" {
		t.Errorf("formatHints() = %q", got)
	}
	if got := format(""); got != "" {
		t.Errorf("format(\"\") = %q, want empty", got)
	}
}
