// Package document defines the intermediate model every input format is
// parsed into before rendering.
//
// A Document is an ordered list of blocks. The block set is closed: the
// renderer switches over Paragraph, Table, CodeBlock and Image and nothing
// else.
package document

import "strings"

// Emphasis is a bit set of inline styles applied to a run.
type Emphasis uint8

// Inline styles.
const (
	Bold Emphasis = 1 << iota
	Italic
	Code
)

// Has reports whether all bits in f are set.
func (e Emphasis) Has(f Emphasis) bool { return e&f == f }

// Run is a span of text sharing one emphasis.
type Run struct {
	Text     string
	Emphasis Emphasis
}

// Block is one of Paragraph, Table, CodeBlock or Image.
type Block interface {
	block()
}

// Paragraph is a run of inline text. Level 1..6 marks a heading.
type Paragraph struct {
	Runs   []Run
	Level  int
	Bullet string // list marker, e.g. "•" or "3."
	Indent int    // nesting depth for lists and quotes
}

// Table is a grid of plain-text cells. When Header is true the first row
// is the header row.
type Table struct {
	Rows   [][]string
	Header bool
}

// CodeBlock is preformatted text. Language is a lexer hint and may be empty.
type CodeBlock struct {
	Text     string
	Language string
}

// Image is an embedded raster image. Format is "png" or "jpg".
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

func (Paragraph) block() {}
func (Table) block()     {}
func (CodeBlock) block() {}
func (Image) block()     {}

// Document is the parsed, format-independent form of an input file.
type Document struct {
	Title  string
	Blocks []Block
}

// Append adds blocks to the document.
func (d *Document) Append(b ...Block) {
	d.Blocks = append(d.Blocks, b...)
}

// Empty reports whether the document has no renderable content.
func (d *Document) Empty() bool {
	if d == nil {
		return true
	}
	for _, b := range d.Blocks {
		switch v := b.(type) {
		case Paragraph:
			if strings.TrimSpace(v.PlainText()) != "" {
				return false
			}
		case Table:
			if len(v.Rows) > 0 {
				return false
			}
		case CodeBlock:
			if v.Text != "" {
				return false
			}
		case Image:
			if len(v.Data) > 0 {
				return false
			}
		}
	}
	return true
}

// Text returns a paragraph made of a single plain run.
func Text(s string) Paragraph {
	return Paragraph{Runs: []Run{{Text: s}}}
}

// Heading returns a heading paragraph at the given level.
func Heading(level int, s string) Paragraph {
	return Paragraph{Runs: []Run{{Text: s, Emphasis: Bold}}, Level: level}
}

// PlainText concatenates the text of all runs.
func (p Paragraph) PlainText() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// Columns returns the width of the widest row.
func (t Table) Columns() int {
	n := 0
	for _, row := range t.Rows {
		n = max(n, len(row))
	}
	return n
}
