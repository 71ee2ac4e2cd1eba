// Package render lays out a document on fixed-size pages and writes it as
// PDF.
//
// Layout is done by hand rather than through the writer's flowing cells:
// text is split into script segments, each measured with the font resolved
// for its script, and lines are filled greedily. A line, table row or image
// that does not fit the remaining space starts a new page.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/fontres"
)

// Page sizes in points, portrait.
var pageSizes = map[string]gofpdf.SizeType{
	"letter": {Wd: 612, Ht: 792},
	"a4":     {Wd: 595.28, Ht: 841.89},
	"legal":  {Wd: 612, Ht: 1008},
}

// DefaultTitle is used when neither the document nor the settings name one.
const DefaultTitle = "Converted Document"

// Typography in points.
const (
	bodySize    = 11.0
	codeSize    = 9.0
	tableSize   = 10.0
	footerSize  = 8.0
	lineFactor  = 1.2
	indentStep  = 18.0
	cellPadding = 4.0
	codePadding = 6.0
	minColWidth = 30.0
	pxToPt      = 0.75 // 96 dpi
)

var headingSizes = [...]float64{20, 18, 16, 14, 12, 12}

// ErrRender is matched by every *Error.
var ErrRender = errors.New("render failed")

// Error reports a failure of the PDF writer.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "rendering PDF: " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRender) match.
func (e *Error) Is(target error) bool { return target == ErrRender }

// Settings controls page geometry and metadata.
type Settings struct {
	Size        string  // "letter", "a4" or "legal"
	Landscape   bool
	Margin      float64 // points, all sides
	PageNumbers bool
	Title       string // used when the document has none
	Creator     string
	Now         func() time.Time
}

// DefaultSettings returns A4 portrait with 10 mm margins.
func DefaultSettings() Settings {
	return Settings{
		Size:    "a4",
		Margin:  28.35,
		Creator: "go-topdf",
		Now:     time.Now,
	}
}

// Renderer turns documents into PDF bytes. It holds no per-document state
// and is safe for concurrent use.
type Renderer struct {
	settings Settings
	logger   *slog.Logger
}

// New creates a renderer. Unknown page sizes fall back to A4.
func New(s Settings, logger *slog.Logger) *Renderer {
	def := DefaultSettings()
	if _, ok := pageSizes[strings.ToLower(s.Size)]; !ok {
		s.Size = def.Size
	}
	if s.Margin <= 0 {
		s.Margin = def.Margin
	}
	if s.Now == nil {
		s.Now = def.Now
	}
	if s.Creator == "" {
		s.Creator = def.Creator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{settings: s, logger: logger}
}

// Render paginates doc with the given fonts. Output is identical for
// identical input apart from the creation date. Each script whose text
// had characters replaced to fit the core font yields a
// *fontres.ResolutionError in warnings.
func (r *Renderer) Render(doc *document.Document, fonts fontres.ProfileSet) (out []byte, warnings []error, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, warnings, err = nil, nil, &Error{Err: fmt.Errorf("internal error: %v", rec)}
		}
	}()

	w, err := r.newWriter(doc, fonts)
	if err != nil {
		return nil, nil, err
	}

	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case document.Paragraph:
			w.paragraph(v)
		case document.Table:
			w.table(v)
		case document.CodeBlock:
			w.codeBlock(v)
		case document.Image:
			w.image(v)
		}
		if w.pdf.Err() {
			break
		}
	}

	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, nil, &Error{Err: err}
	}
	for _, s := range []document.Script{document.Latin, document.CJK} {
		if w.lossy.Has(s) {
			warnings = append(warnings, &fontres.ResolutionError{Script: s, Substitute: fontres.CoreFallback})
		}
	}
	r.logger.Debug("rendered document", "pages", w.pdf.PageCount(), "bytes", buf.Len())
	return buf.Bytes(), warnings, nil
}

func (r *Renderer) newWriter(doc *document.Document, fonts fontres.ProfileSet) (*writer, error) {
	s := r.settings
	orientation := "P"
	if s.Landscape {
		orientation = "L"
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           pageSizes[strings.ToLower(s.Size)],
	})
	pdf.SetMargins(s.Margin, s.Margin, s.Margin)
	pdf.SetAutoPageBreak(false, s.Margin)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(s.Now())
	pdf.SetCreator(s.Creator, true)

	title := doc.Title
	if title == "" {
		title = s.Title
	}
	if title == "" {
		title = DefaultTitle
	}
	pdf.SetTitle(title, true)

	w := &writer{pdf: pdf, fonts: fonts, margin: s.Margin, faces: make(map[*fontres.Face]string)}
	if err := w.registerFonts(); err != nil {
		return nil, err
	}

	pageW, pageH := pdf.GetPageSize()
	w.contentW = pageW - 2*s.Margin
	w.bottom = pageH - s.Margin
	if s.PageNumbers {
		w.bottom -= footerSize * 2
		pdf.AliasNbPages("")
		pdf.SetFooterFunc(func() {
			pdf.SetFont(fontres.CoreFallback, "", footerSize)
			pdf.SetTextColor(110, 110, 110)
			label := fmt.Sprintf("%d / {nb}", pdf.PageNo())
			lw := pdf.GetStringWidth(label)
			pdf.Text((pageW-lw)/2, pageH-s.Margin, label)
		})
	}

	w.newPage()
	return w, nil
}
