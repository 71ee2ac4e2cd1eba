package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/jung-kurt/gofpdf"

	"github.com/alnah/go-topdf/internal/document"
)

var (
	black      = rgb{0, 0, 0}
	headerFill = rgb{230, 230, 230}
	codeFill   = rgb{246, 248, 250}
	borderGray = rgb{180, 180, 180}
)

const tabWidth = 4

// ---------------------------------------------------------------------------
// Paragraphs
// ---------------------------------------------------------------------------

func (w *writer) paragraph(p document.Paragraph) {
	size := bodySize
	if p.Level >= 1 && p.Level <= len(headingSizes) {
		size = headingSizes[p.Level-1]
	}
	lh := size * lineFactor

	spans := make([]span, 0, len(p.Runs))
	for _, r := range p.Runs {
		em := r.Emphasis
		if p.Level > 0 {
			em |= document.Bold
		}
		spans = append(spans, span{text: r.Text, em: em, color: black})
	}

	x := w.margin + float64(p.Indent)*indentStep
	var bullet piece
	if p.Bullet != "" {
		marker := p.Bullet
		if w.fonts.Latin.IsCore() && !encodable(marker) {
			marker = "-"
		}
		bullet = w.measure(marker+" ", document.ScriptOf(firstRune(marker)), 0, size, black)
		x += max(bullet.width, indentStep)
	}

	if p.Level > 0 && !w.atTop() {
		w.y += size * 0.6
	}

	lines := w.wrap(spans, size, w.margin+w.contentW-x)
	for i, l := range lines {
		w.ensure(lh)
		if i == 0 && p.Bullet != "" {
			w.drawLine(line{pieces: []piece{bullet}}, x-max(bullet.width, indentStep), size)
		}
		w.drawLine(l, x, size)
		w.y += lh
	}
	if p.Level > 0 {
		w.y += size * 0.3
	} else {
		w.y += size * 0.4
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ' '
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

func (w *writer) table(t document.Table) {
	cols := t.Columns()
	if cols == 0 {
		return
	}
	widths := w.columnWidths(t, cols)
	lh := tableSize * lineFactor

	type row struct {
		cells  [][]line
		height float64
		header bool
	}
	layout := func(cells []string, header bool) row {
		r := row{cells: make([][]line, cols), header: header}
		em := document.Emphasis(0)
		if header {
			em = document.Bold
		}
		for c := range cols {
			var text string
			if c < len(cells) {
				text = cells[c]
			}
			r.cells[c] = w.wrap([]span{{text: text, em: em, color: black}}, tableSize, widths[c]-2*cellPadding)
			r.height = max(r.height, float64(len(r.cells[c]))*lh+2*cellPadding)
		}
		return r
	}

	var header *row
	rows := t.Rows
	if t.Header && len(rows) > 0 {
		h := layout(rows[0], true)
		header = &h
		rows = rows[1:]
	}

	draw := func(r row) {
		x := w.margin
		for c, lines := range r.cells {
			if r.header {
				w.pdf.SetFillColor(headerFill.r, headerFill.g, headerFill.b)
			}
			w.pdf.SetDrawColor(borderGray.r, borderGray.g, borderGray.b)
			style := "D"
			if r.header {
				style = "FD"
			}
			w.pdf.Rect(x, w.y, widths[c], r.height, style)
			top := w.y
			w.y += cellPadding
			for _, l := range lines {
				w.drawLine(l, x+cellPadding, tableSize)
				w.y += lh
			}
			w.y = top
			x += widths[c]
		}
		w.y += r.height
	}

	if header != nil {
		w.ensure(header.height * 2)
		draw(*header)
	}
	for _, cells := range rows {
		r := layout(cells, false)
		if w.y+r.height > w.bottom && !w.atTop() {
			w.newPage()
			if header != nil {
				draw(*header)
			}
		}
		draw(r)
	}
	w.y += bodySize * 0.6
}

// columnWidths sizes columns in proportion to their longest cell, with a
// floor, scaled to the content width.
func (w *writer) columnWidths(t document.Table, cols int) []float64 {
	natural := make([]float64, cols)
	for _, cells := range t.Rows {
		for c, text := range cells {
			var wd float64
			for _, l := range w.wrap([]span{{text: text, color: black}}, tableSize, 1e9) {
				wd = max(wd, l.width)
			}
			natural[c] = max(natural[c], wd+2*cellPadding)
		}
	}

	var total float64
	for c := range natural {
		natural[c] = max(natural[c], minColWidth)
		total += natural[c]
	}
	if total <= w.contentW {
		return natural
	}
	// Shrink the wide columns first: each column keeps at least an equal
	// share of the page, or its natural width if that is smaller.
	share := w.contentW / float64(cols)
	var fixed, flexible float64
	for _, wd := range natural {
		if wd <= share {
			fixed += wd
		} else {
			flexible += wd
		}
	}
	if flexible == 0 || fixed >= w.contentW {
		for c := range natural {
			natural[c] *= w.contentW / total
		}
		return natural
	}
	scale := (w.contentW - fixed) / flexible
	out := make([]float64, cols)
	for c, wd := range natural {
		if wd <= share {
			out[c] = wd
		} else {
			out[c] = wd * scale
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Code blocks
// ---------------------------------------------------------------------------

func (w *writer) codeBlock(cb document.CodeBlock) {
	spans := highlight(cb.Text, cb.Language)
	lh := codeSize * lineFactor
	innerW := w.contentW - 2*codePadding
	lines := w.wrap(spans, codeSize, innerW)

	// Draw in page-sized chunks so the background never crosses a page.
	for len(lines) > 0 {
		w.ensure(lh + 2*codePadding)
		fit := int((w.bottom - w.y - 2*codePadding) / lh)
		fit = max(1, min(fit, len(lines)))
		chunk := lines[:fit]
		lines = lines[fit:]

		h := float64(len(chunk))*lh + 2*codePadding
		w.pdf.SetFillColor(codeFill.r, codeFill.g, codeFill.b)
		w.pdf.Rect(w.margin, w.y, w.contentW, h, "F")
		top := w.y
		w.y += codePadding
		for _, l := range chunk {
			w.drawLine(l, w.margin+codePadding, codeSize)
			w.y += lh
		}
		w.y = top + h
		if len(lines) > 0 {
			w.newPage()
		}
	}
	w.y += bodySize * 0.6
}

// highlight colours code with the lexer for lang. Unknown languages and
// lexer errors fall back to a single plain span.
func highlight(text, lang string) []span {
	text = expandTabs(strings.TrimRight(text, "\n"))
	plain := []span{{text: text, em: document.Code, color: black}}

	lexer := lexers.Get(lang)
	if lexer == nil {
		return plain
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, text)
	if err != nil {
		return plain
	}
	style := styles.Get("friendly")

	var out []span
	for tok := it(); tok != chroma.EOF; tok = it() {
		entry := style.Get(tok.Type)
		sp := span{text: tok.Value, em: document.Code, color: black}
		if entry.Colour.IsSet() {
			sp.color = rgb{int(entry.Colour.Red()), int(entry.Colour.Green()), int(entry.Colour.Blue())}
		}
		if entry.Bold == chroma.Yes {
			sp.em |= document.Bold
		}
		out = append(out, sp)
	}
	// Lexers ensure a trailing newline, which would add an empty line.
	if n := len(out); n > 0 {
		out[n-1].text = strings.TrimSuffix(out[n-1].text, "\n")
	}
	return out
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

func (w *writer) image(img document.Image) {
	if img.Width <= 0 || img.Height <= 0 {
		return
	}
	wd := float64(img.Width) * pxToPt
	ht := float64(img.Height) * pxToPt
	maxH := w.bottom - w.margin
	scale := min(1, w.contentW/wd, maxH/ht)
	wd, ht = wd*scale, ht*scale

	w.ensure(ht)
	name := fmt.Sprintf("img%d", w.images)
	w.images++
	opts := gofpdf.ImageOptions{ImageType: img.Format, ReadDpi: false}
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	w.pdf.ImageOptions(name, w.margin, w.y, wd, ht, false, opts, 0, "")
	w.y += ht + bodySize*0.6
}
