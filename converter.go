package topdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-topdf/internal/adapter"
	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/fileutil"
	"github.com/alnah/go-topdf/internal/fontres"
	"github.com/alnah/go-topdf/internal/format"
	"github.com/alnah/go-topdf/internal/render"
)

// Compile-time interface implementation checks.
var (
	_ fontResolver     = (*fontres.Resolver)(nil)
	_ documentRenderer = (*render.Renderer)(nil)
)

// fontResolver picks faces for the scripts a document uses.
type fontResolver interface {
	ResolveAll(scripts document.Script) (fontres.ProfileSet, []error)
}

// documentRenderer lays out a document as PDF.
type documentRenderer interface {
	Render(doc *document.Document, fonts fontres.ProfileSet) ([]byte, []error, error)
}

const outputPerm = 0o644

// Converter runs one file through detection, parsing, font resolution and
// rendering. It holds no per-file state and is safe for concurrent use.
type Converter struct {
	fonts    fontResolver
	renderer documentRenderer
	logger   *slog.Logger
	page     PageSettings
	now      func() time.Time
}

// Option configures a Converter.
type Option func(*Converter)

// WithFontResolver sets the font resolver. The default is the process-wide
// resolver over the platform font directories; nil keeps it.
func WithFontResolver(r *fontres.Resolver) Option {
	return func(c *Converter) {
		if r != nil {
			c.fonts = r
		}
	}
}

// WithPageSettings sets page size, orientation, margin and numbering.
func WithPageSettings(p PageSettings) Option {
	return func(c *Converter) {
		c.page = p
	}
}

// WithLogger sets the logger. The default is slog.Default(); nil keeps it.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the clock used for PDF creation dates and job times.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewConverter creates a Converter. Returns an error if the page settings
// are invalid.
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{
		page:   DefaultPageSettings(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.page.Validate(); err != nil {
		return nil, err
	}
	if c.fonts == nil {
		c.fonts = fontres.Default()
	}
	if c.renderer == nil {
		c.renderer = render.New(render.Settings{
			Size:        strings.ToLower(c.page.Size),
			Landscape:   strings.EqualFold(c.page.Orientation, OrientationLandscape),
			Margin:      c.page.Margin * 72,
			PageNumbers: c.page.PageNumbers,
			Creator:     "go-topdf",
			Now:         c.now,
		}, c.logger)
	}
	return c, nil
}

// Result describes a successful conversion.
type Result struct {
	Format   Format
	Warnings []error // *FontResolutionError values
	Bytes    int
}

// ConvertFile converts src and atomically writes the PDF to dst. The
// context is checked once before any work starts; a conversion in
// progress runs to completion.
func (c *Converter) ConvertFile(ctx context.Context, src, dst string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(src) // #nosec G304 -- caller-chosen input
	if err != nil {
		return Result{}, &IOError{Op: "read", Path: src, Err: err}
	}

	pdf, res, err := c.Convert(src, data)
	if err != nil {
		return res, err
	}

	if err := fileutil.WriteFileAtomic(dst, pdf, outputPerm); err != nil {
		return res, &IOError{Op: "write", Path: dst, Err: err}
	}
	res.Bytes = len(pdf)
	return res, nil
}

// Convert turns the contents of a file named name into PDF bytes. The name
// drives format detection and supplies the title when the document has
// none.
func (c *Converter) Convert(name string, data []byte) ([]byte, Result, error) {
	var res Result

	kind, err := format.Detect(name, data[:min(len(data), format.SniffSize)])
	if err != nil {
		return nil, res, err
	}
	res.Format = kind

	doc, err := adapter.Parse(kind, data)
	if err != nil {
		return nil, res, err
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	fonts, warnings := c.fonts.ResolveAll(document.Scripts(doc))
	pdf, lossy, err := c.renderer.Render(doc, fonts)
	if err != nil {
		res.Warnings = warnings
		return nil, res, err
	}
	res.Warnings = mergeFontWarnings(warnings, lossy)
	for _, w := range res.Warnings {
		c.logger.Warn("font substitution", "source", name, "error", w)
	}
	c.logger.Debug("converted", "source", name, "format", kind, "blocks", len(doc.Blocks), "bytes", len(pdf))
	return pdf, res, nil
}

// mergeFontWarnings appends the renderer's warnings for scripts the
// resolver has not already reported.
func mergeFontWarnings(resolved, rendered []error) []error {
	var seen document.Script
	for _, w := range resolved {
		var re *fontres.ResolutionError
		if errors.As(w, &re) {
			seen |= re.Script
		}
	}
	out := resolved
	for _, w := range rendered {
		var re *fontres.ResolutionError
		if errors.As(w, &re) && seen.Has(re.Script) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// internalError wraps a recovered panic.
func internalError(v any) error {
	return fmt.Errorf("%w: %v", ErrInternal, v)
}
