package adapter

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/alnah/go-topdf/internal/document"
)

// markdownParser is safe for concurrent use once built.
var markdownParser = goldmark.New(
	goldmark.WithExtensions(
		extension.Table,
		extension.Strikethrough,
		extension.TaskList,
		extension.Linkify,
	),
).Parser()

// parseMarkdown walks the CommonMark tree. Raw HTML and images referenced
// by path are dropped; an image keeps its alt text.
func parseMarkdown(data []byte) (*document.Document, error) {
	src := []byte(decodeText(data))
	root := markdownParser.Parse(text.NewReader(src))

	w := &mdWalker{src: src, doc: &document.Document{}}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, 0, "")
	}
	return w.doc, nil
}

type mdWalker struct {
	src []byte
	doc *document.Document
}

func (w *mdWalker) block(n ast.Node, indent int, bullet string) {
	switch n := n.(type) {
	case *ast.Heading:
		runs := w.inline(n, document.Bold)
		if w.doc.Title == "" && n.Level == 1 {
			w.doc.Title = strings.TrimSpace(runsText(runs))
		}
		w.doc.Append(document.Paragraph{Runs: runs, Level: n.Level})

	case *ast.Paragraph, *ast.TextBlock:
		runs := w.inline(n, 0)
		if len(runs) == 0 && bullet == "" {
			return
		}
		w.doc.Append(document.Paragraph{Runs: runs, Indent: indent, Bullet: bullet})

	case *ast.List:
		i := 0
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "•"
			if n.IsOrdered() {
				marker = strconv.Itoa(n.Start+i) + "."
			}
			i++
			first := true
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if first {
					w.block(c, indent, marker)
					first = false
					continue
				}
				w.block(c, indent+1, "")
			}
			if first {
				w.doc.Append(document.Paragraph{Indent: indent, Bullet: marker})
			}
		}

	case *ast.FencedCodeBlock:
		w.doc.Append(document.CodeBlock{Text: w.lines(n), Language: string(n.Language(w.src))})

	case *ast.CodeBlock:
		w.doc.Append(document.CodeBlock{Text: w.lines(n)})

	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, indent+1, "")
		}

	case *east.Table:
		tbl := document.Table{Header: true}
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, strings.TrimSpace(runsText(w.inline(cell, 0))))
			}
			tbl.Rows = append(tbl.Rows, cells)
		}
		w.doc.Append(tbl)

	case *ast.HTMLBlock, *ast.ThematicBreak:
		// dropped

	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, indent, bullet)
		}
	}
}

func (w *mdWalker) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		b.Write(seg.Value(w.src))
	}
	return strings.TrimRight(b.String(), "\n")
}

// inline flattens inline children into runs, merging neighbours that
// share an emphasis.
func (w *mdWalker) inline(n ast.Node, em document.Emphasis) []document.Run {
	var runs []document.Run
	add := func(s string, e document.Emphasis) {
		if s == "" {
			return
		}
		if k := len(runs); k > 0 && runs[k-1].Emphasis == e {
			runs[k-1].Text += s
			return
		}
		runs = append(runs, document.Run{Text: s, Emphasis: e})
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			add(string(c.Segment.Value(w.src)), em)
			switch {
			case c.HardLineBreak():
				add("\n", em)
			case c.SoftLineBreak():
				add(" ", em)
			}
		case *ast.String:
			add(string(c.Value), em)
		case *ast.Emphasis:
			flag := document.Italic
			if c.Level >= 2 {
				flag = document.Bold
			}
			for _, r := range w.inline(c, em|flag) {
				add(r.Text, r.Emphasis)
			}
		case *ast.CodeSpan:
			add(runsText(w.inline(c, 0)), em|document.Code)
		case *ast.AutoLink:
			add(string(c.Label(w.src)), em)
		case *ast.Image:
			for _, r := range w.inline(c, em|document.Italic) {
				add(r.Text, r.Emphasis)
			}
		case *ast.RawHTML:
			// dropped
		case *east.TaskCheckBox:
			if c.IsChecked {
				add("[x] ", em)
			} else {
				add("[ ] ", em)
			}
		default:
			for _, r := range w.inline(c, em) {
				add(r.Text, r.Emphasis)
			}
		}
	}
	return runs
}

func runsText(runs []document.Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
