package fontres

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/alnah/go-topdf/internal/document"
)

// systemDirs returns the conventional font directories for the host.
func systemDirs() []string {
	home := homeDir()
	join := func(parts ...string) string {
		if parts[0] == "" {
			return ""
		}
		return filepath.Join(parts...)
	}

	switch runtime.GOOS {
	case "windows":
		windir := os.Getenv("WINDIR")
		if windir == "" {
			windir = `C:\Windows`
		}
		return []string{
			filepath.Join(windir, "Fonts"),
			join(os.Getenv("LOCALAPPDATA"), "Microsoft", "Windows", "Fonts"),
		}
	case "darwin":
		return []string{
			"/System/Library/Fonts",
			"/Library/Fonts",
			join(home, "Library", "Fonts"),
		}
	default:
		return []string{
			"/usr/share/fonts",
			"/usr/local/share/fonts",
			"/system/fonts",
			join(home, ".local", "share", "fonts"),
			join(home, ".fonts"),
		}
	}
}

// defaultPreferred lists the families tried first on each platform. Only
// families commonly shipped as single .ttf files are worth naming.
func defaultPreferred() map[document.Script][]string {
	switch runtime.GOOS {
	case "windows":
		return map[document.Script][]string{
			document.Latin: {"Arial", "Segoe UI", "Calibri", "Verdana"},
			document.CJK:   {"SimHei", "Microsoft YaHei", "Malgun Gothic", "SimSun"},
		}
	case "darwin":
		return map[document.Script][]string{
			document.Latin: {"Arial", "Helvetica", "Verdana"},
			document.CJK:   {"Arial Unicode MS", "STHeiti", "Hiragino Sans GB", "PingFang SC"},
		}
	default:
		return map[document.Script][]string{
			document.Latin: {"DejaVu Sans", "Liberation Sans", "Noto Sans", "FreeSans"},
			document.CJK:   {"Droid Sans Fallback", "WenQuanYi Micro Hei", "WenQuanYi Zen Hei", "Noto Sans CJK SC", "AR PL UMing CN"},
		}
	}
}

// Prefer returns the platform defaults with extra families tried first for
// each script present in extra.
func Prefer(extra map[document.Script][]string) map[document.Script][]string {
	out := defaultPreferred()
	for s, families := range extra {
		out[s] = append(slices.Clone(families), out[s]...)
	}
	return out
}
