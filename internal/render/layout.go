package render

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/fontres"
)

const monoFont = "Courier"

type rgb struct{ r, g, b int }

// span is styled source text before measuring.
type span struct {
	text  string
	em    document.Emphasis
	color rgb
}

// piece is measured text ready to draw in one font. text is already in
// the font's encoding.
type piece struct {
	text   string
	family string
	style  string
	size   float64
	width  float64
	color  rgb
}

type line struct {
	pieces []piece
	width  float64
}

// writer holds the state of one render.
type writer struct {
	pdf      *gofpdf.Fpdf
	fonts    fontres.ProfileSet
	faces    map[*fontres.Face]string
	margin   float64
	contentW float64
	bottom   float64
	y        float64
	images   int
	lossy    document.Script // scripts with characters the core font lacks
}

// registerFonts embeds each distinct TrueType face once. Regular and bold
// styles share a family name.
func (w *writer) registerFonts() error {
	for _, p := range []fontres.Profile{w.fonts.Latin, w.fonts.CJK} {
		if p.IsCore() {
			continue
		}
		if _, ok := w.faces[p.Face]; ok {
			continue
		}
		name := fmt.Sprintf("F%d", len(w.faces))
		data, err := p.Face.Bytes()
		if err != nil {
			return &Error{Err: fmt.Errorf("loading font %s: %w", p.Face.Path, err)}
		}
		w.pdf.AddUTF8FontFromBytes(name, "", data)
		if p.Bold != nil {
			if bold, err := p.Bold.Bytes(); err == nil {
				w.pdf.AddUTF8FontFromBytes(name, "B", bold)
			}
		}
		if w.pdf.Err() {
			return &Error{Err: fmt.Errorf("embedding font %s: %w", p.Face.Path, w.pdf.Error())}
		}
		w.faces[p.Face] = name
	}
	return nil
}

func (w *writer) newPage() {
	w.pdf.AddPage()
	w.y = w.margin
}

// ensure starts a new page unless h more points fit. At the top of a page
// nothing is gained by breaking, so oversized content is drawn anyway.
func (w *writer) ensure(h float64) {
	if w.y+h > w.bottom && w.y > w.margin {
		w.newPage()
	}
}

// atTop reports whether nothing has been drawn on the current page.
func (w *writer) atTop() bool { return w.y <= w.margin }

// font picks the writer font for text in one script. Code-styled Latin
// text uses Courier whenever it is representable in Windows-1252.
func (w *writer) font(s document.Script, em document.Emphasis, text string) (family, style string, utf8Font bool) {
	p := w.fonts.For(s)
	if s == document.Latin && em.Has(document.Code) && encodable(text) {
		return monoFont, coreStyle(em), false
	}
	if p.IsCore() {
		return fontres.CoreFallback, coreStyle(em), false
	}
	if em.Has(document.Bold) && p.Bold != nil {
		return w.faces[p.Face], "B", true
	}
	return w.faces[p.Face], "", true
}

func coreStyle(em document.Emphasis) string {
	var s string
	if em.Has(document.Bold) {
		s += "B"
	}
	if em.Has(document.Italic) {
		s += "I"
	}
	return s
}

// measure turns text in a single script into a piece.
func (w *writer) measure(text string, s document.Script, em document.Emphasis, size float64, c rgb) piece {
	family, style, isUTF8 := w.font(s, em, text)
	if !isUTF8 {
		text = w.winAnsi(text, s)
	}
	w.pdf.SetFont(family, style, size)
	return piece{
		text:   text,
		family: family,
		style:  style,
		size:   size,
		width:  w.pdf.GetStringWidth(text),
		color:  c,
	}
}

// token is the smallest unit the line breaker places: a Latin word with
// its trailing spaces, a single CJK character, or a forced break.
type token struct {
	text  string
	s     document.Script
	em    document.Emphasis
	color rgb
	brk   bool
}

func tokenize(spans []span) []token {
	var out []token
	for _, sp := range spans {
		for i, part := range strings.Split(sp.text, "\n") {
			if i > 0 {
				out = append(out, token{brk: true})
			}
			for _, seg := range document.Segments(part) {
				if seg.Script == document.CJK {
					for _, r := range seg.Text {
						out = append(out, token{text: string(r), s: seg.Script, em: sp.em, color: sp.color})
					}
					continue
				}
				for _, word := range splitWords(seg.Text) {
					out = append(out, token{text: word, s: seg.Script, em: sp.em, color: sp.color})
				}
			}
		}
	}
	return out
}

// splitWords cuts s after each run of spaces, keeping the spaces with the
// preceding word.
func splitWords(s string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range s {
		sp := unicode.IsSpace(r)
		if inSpace && !sp {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = sp
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// wrap fills lines of at most maxW points greedily. Tokens wider than a
// whole line are split between runes.
func (w *writer) wrap(spans []span, size, maxW float64) []line {
	var (
		lines []line
		cur   line
	)
	push := func() {
		lines = append(lines, cur)
		cur = line{}
	}
	add := func(p piece) {
		if n := len(cur.pieces); n > 0 {
			last := &cur.pieces[n-1]
			if last.family == p.family && last.style == p.style && last.size == p.size && last.color == p.color {
				last.text += p.text
				last.width += p.width
				cur.width += p.width
				return
			}
		}
		cur.pieces = append(cur.pieces, p)
		cur.width += p.width
	}

	for _, tok := range tokenize(spans) {
		if tok.brk {
			push()
			continue
		}
		p := w.measure(tok.text, tok.s, tok.em, size, tok.color)
		if len(cur.pieces) > 0 && cur.width+w.visibleWidth(tok, size) > maxW {
			push()
		}
		if p.width <= maxW {
			add(p)
			continue
		}
		for _, chunk := range w.splitRunes(tok, size, maxW-cur.width, maxW) {
			if len(cur.pieces) > 0 && cur.width+chunk.width > maxW {
				push()
			}
			add(chunk)
		}
	}
	if len(cur.pieces) > 0 || len(lines) == 0 {
		push()
	}
	return lines
}

// visibleWidth ignores trailing spaces, which may hang past the margin.
func (w *writer) visibleWidth(tok token, size float64) float64 {
	trimmed := strings.TrimRightFunc(tok.text, unicode.IsSpace)
	if trimmed == tok.text {
		return w.measure(tok.text, tok.s, tok.em, size, tok.color).width
	}
	return w.measure(trimmed, tok.s, tok.em, size, tok.color).width
}

// splitRunes breaks an over-long token into pieces. The first piece fits
// in first points, the rest in full points. The font is chosen once for
// the whole token and rune widths are summed, so the cost is linear.
func (w *writer) splitRunes(tok token, size, first, full float64) []piece {
	family, style, isUTF8 := w.font(tok.s, tok.em, tok.text)
	w.pdf.SetFont(family, style, size)

	cut := func(text string, width float64) piece {
		if !isUTF8 {
			text = w.winAnsi(text, tok.s)
		}
		return piece{text: text, family: family, style: style, size: size, width: width, color: tok.color}
	}
	runeWidth := func(r rune) float64 {
		s := string(r)
		if !isUTF8 {
			s = toWinAnsi(s)
		}
		return w.pdf.GetStringWidth(s)
	}

	limit := first
	if limit < size {
		limit = full
	}
	var out []piece
	start, width := 0, 0.0
	for i, r := range tok.text {
		rw := runeWidth(r)
		// At least one rune per piece, even if it alone is too wide.
		if i > start && width+rw > limit {
			out = append(out, cut(tok.text[start:i], width))
			start, width, limit = i, 0, full
		}
		width += rw
	}
	return append(out, cut(tok.text[start:], width))
}

// drawLine writes one line with its top at w.y.
func (w *writer) drawLine(l line, x, size float64) {
	baseline := w.y + size
	for _, p := range l.pieces {
		w.pdf.SetFont(p.family, p.style, p.size)
		w.pdf.SetTextColor(p.color.r, p.color.g, p.color.b)
		w.pdf.Text(x, baseline, p.text)
		x += p.width
	}
}

// encodable reports whether s fits in Windows-1252.
func encodable(s string) bool {
	for _, r := range s {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return false
		}
	}
	return true
}

// winAnsi is toWinAnsi that remembers when script s lost characters.
func (w *writer) winAnsi(text string, s document.Script) string {
	if !encodable(text) {
		w.lossy |= s
	}
	return toWinAnsi(text)
}

// toWinAnsi encodes s for the core fonts, replacing what does not fit.
func toWinAnsi(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String()
}
