package fontres

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-topdf/internal/document"
)

// scan walks the font directories and parses every TrueType file. Files
// that fail to parse are skipped. The face list is sorted by path so
// resolution does not depend on directory iteration order.
func (r *Resolver) scan() {
	dirs := slices.Clone(r.opts.Dirs)
	if !r.opts.SkipSystem {
		dirs = append(dirs, systemDirs()...)
	}

	paths := collectFontFiles(dirs)
	faces := make([]*Face, len(paths))

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			face, err := loadFace(path)
			if err != nil {
				r.opts.Logger.Debug("skipping font", "path", path, "error", err)
				return nil
			}
			faces[i] = face
			return nil
		})
	}
	_ = g.Wait()

	r.faces = slices.DeleteFunc(faces, func(f *Face) bool { return f == nil })

	switch {
	case len(r.opts.FallbackData) > 0:
		face, err := parseFace("embedded", r.opts.FallbackData)
		if err != nil {
			r.opts.Logger.Warn("fallback font unusable", "path", "embedded", "error", err)
		} else {
			r.fallback = face
		}
		if len(r.opts.FallbackBoldData) > 0 {
			bold, err := parseFace("embedded-bold", r.opts.FallbackBoldData)
			if err != nil {
				r.opts.Logger.Warn("fallback font unusable", "path", "embedded-bold", "error", err)
			} else {
				r.fallbackBold = bold
			}
		}
	case r.opts.Fallback != "":
		face, err := loadFace(r.opts.Fallback)
		if err != nil {
			r.opts.Logger.Warn("fallback font unusable", "path", r.opts.Fallback, "error", err)
		} else {
			r.fallback = face
		}
	}

	var cjk int
	for _, f := range r.faces {
		if f.Scripts.Has(document.CJK) {
			cjk++
		}
	}
	r.opts.Logger.Info("font scan complete", "dirs", len(dirs), "faces", len(r.faces), "cjk", cjk)
}

// collectFontFiles returns the sorted, de-duplicated .ttf paths under dirs.
// Collections (.ttc) are not embeddable and are left out.
func collectFontFiles(dirs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".ttf") {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
			return nil
		})
	}
	slices.Sort(out)
	return out
}

// homeDir returns the user's home directory or "" when unknown.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
