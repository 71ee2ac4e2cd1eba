// Package fontres finds TrueType faces on the host and picks one per
// script for rendering.
//
// The first lookup scans the font directories once; the resulting face
// list is immutable and shared by every render in the process. When no
// installed face covers a script the resolver substitutes a fallback (the
// embedded Go fonts unless configured otherwise) and reports a
// *ResolutionError, which callers treat as a warning.
package fontres

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/alnah/go-topdf/internal/document"
)

// CoreFallback is the built-in PDF font used when no TrueType face can be
// embedded. It covers Windows-1252 only.
const CoreFallback = "Helvetica"

// ErrResolution is matched by every *ResolutionError.
var ErrResolution = errors.New("font resolution failed")

// ResolutionError reports that no face covering Script was found and
// Substitute was used instead. Text in that script renders with missing
// glyphs.
type ResolutionError struct {
	Script     document.Script
	Substitute string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no %s font found, substituting %s", e.Script, e.Substitute)
}

// Is lets errors.Is(err, ErrResolution) match.
func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// Profile is the face chosen for one script. A nil Face means the core
// fallback font.
type Profile struct {
	Family  string
	Scripts document.Script
	Face    *Face
	Bold    *Face
}

// IsCore reports whether the profile uses the built-in PDF font.
func (p Profile) IsCore() bool { return p.Face == nil }

// Covers reports whether the profile has glyphs for s.
func (p Profile) Covers(s document.Script) bool { return p.Scripts.Has(s) }

func coreProfile() Profile {
	return Profile{Family: CoreFallback, Scripts: document.Latin}
}

// ProfileSet holds one profile per script.
type ProfileSet struct {
	Latin Profile
	CJK   Profile
}

// For returns the profile for script s.
func (ps ProfileSet) For(s document.Script) Profile {
	if s == document.CJK {
		return ps.CJK
	}
	return ps.Latin
}

// CoreSet is a profile set that embeds no fonts.
func CoreSet() ProfileSet {
	return ProfileSet{Latin: coreProfile(), CJK: coreProfile()}
}

// Options configures a Resolver.
type Options struct {
	// Dirs are scanned before the platform font directories.
	Dirs []string
	// SkipSystem disables the platform font directories.
	SkipSystem bool
	// Preferred lists family names per script, tried in order before any
	// other covering face. Nil uses the platform defaults.
	Preferred map[document.Script][]string
	// Fallback is a TrueType file used when nothing installed covers a
	// script. With neither Fallback nor FallbackData set, the embedded Go
	// fonts are used. The core font is the last resort when the fallback
	// cannot be parsed.
	Fallback string
	// FallbackData is an in-memory TrueType font that takes precedence
	// over Fallback.
	FallbackData []byte
	// FallbackBoldData is the bold face paired with FallbackData.
	FallbackBoldData []byte
	// Workers bounds parallel parsing during the scan.
	Workers int
	Logger  *slog.Logger
}

// Resolver picks faces for scripts. It is safe for concurrent use.
type Resolver struct {
	opts Options

	once         sync.Once
	faces        []*Face
	fallback     *Face
	fallbackBold *Face
}

// New creates a resolver. No I/O happens until the first lookup.
func New(opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Preferred == nil {
		opts.Preferred = defaultPreferred()
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.Fallback == "" && len(opts.FallbackData) == 0 {
		opts.FallbackData = goregular.TTF
		if len(opts.FallbackBoldData) == 0 {
			opts.FallbackBoldData = gobold.TTF
		}
	}
	return &Resolver{opts: opts}
}

var defaultResolver = sync.OnceValue(func() *Resolver {
	return New(Options{})
})

// Default returns the process-wide resolver over the platform font
// directories.
func Default() *Resolver { return defaultResolver() }

// Faces returns every usable face found, in scan order.
func (r *Resolver) Faces() []*Face {
	r.once.Do(r.scan)
	return r.faces
}

// Resolve picks a profile for script s: a preferred family first, then
// any covering face, then the fallback. A non-nil error is always a
// *ResolutionError and the returned profile is still usable.
func (r *Resolver) Resolve(s document.Script) (Profile, error) {
	faces := r.Faces()

	for _, family := range r.opts.Preferred[s] {
		if p, ok := pick(faces, s, func(f *Face) bool { return strings.EqualFold(f.Family, family) }); ok {
			return p, nil
		}
	}
	if p, ok := pick(faces, s, func(*Face) bool { return true }); ok {
		return p, nil
	}

	if r.fallback != nil {
		p := profileFor(r.fallback, faces)
		if p.Bold == nil {
			p.Bold = r.fallbackBold
		}
		if p.Covers(s) {
			return p, nil
		}
		return p, &ResolutionError{Script: s, Substitute: p.Family}
	}
	p := coreProfile()
	if p.Covers(s) {
		return p, nil
	}
	return p, &ResolutionError{Script: s, Substitute: p.Family}
}

// ResolveAll resolves every script in scripts. When CJK is not needed the
// CJK slot reuses the Latin profile.
func (r *Resolver) ResolveAll(scripts document.Script) (ProfileSet, []error) {
	var (
		set  ProfileSet
		errs []error
	)
	latin, err := r.Resolve(document.Latin)
	if err != nil {
		errs = append(errs, err)
	}
	set.Latin, set.CJK = latin, latin

	if scripts.Has(document.CJK) && !latin.Covers(document.CJK) {
		cjk, err := r.Resolve(document.CJK)
		if err != nil {
			errs = append(errs, err)
		}
		set.CJK = cjk
	}
	return set, errs
}

// HasScript reports whether any scanned face covers s.
func (r *Resolver) HasScript(s document.Script) bool {
	for _, f := range r.Faces() {
		if f.Scripts.Has(s) {
			return true
		}
	}
	return false
}

// pick returns the first matching face covering s, preferring the regular
// style within a family.
func pick(faces []*Face, s document.Script, match func(*Face) bool) (Profile, bool) {
	var first *Face
	for _, f := range faces {
		if !f.Scripts.Has(s) || !match(f) {
			continue
		}
		if f.IsRegular() {
			return profileFor(f, faces), true
		}
		if first == nil {
			first = f
		}
	}
	if first != nil {
		return profileFor(first, faces), true
	}
	return Profile{}, false
}

// profileFor attaches the bold face of the same family when one exists.
func profileFor(f *Face, faces []*Face) Profile {
	p := Profile{Family: f.Family, Scripts: f.Scripts, Face: f}
	for _, o := range faces {
		if o != f && o.IsBold() && strings.EqualFold(o.Family, f.Family) {
			p.Bold = o
			break
		}
	}
	return p
}
