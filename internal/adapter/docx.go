package adapter

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/format"
)

const docxBody = "word/document.xml"

// Elements whose whole subtree carries no body text.
var docxSkipped = map[string]bool{
	"drawing":           true,
	"pict":              true,
	"object":            true,
	"AlternateContent":  true,
	"del":               true,
	"instrText":         true,
	"commentReference":  true,
	"footnoteReference": true,
	"endnoteReference":  true,
	"sectPr":            true,
}

// parseDocx streams word/document.xml and keeps the text flow: paragraphs
// with bold and italic runs, heading levels and list items, and tables.
func parseDocx(data []byte) (*document.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Format: format.Docx, Offset: 0, Err: fmt.Errorf("open archive: %w", err)}
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, newParseError(format.Docx, errors.New(docxBody+" not found in archive"))
	}

	rc, err := body.Open()
	if err != nil {
		return nil, newParseError(format.Docx, fmt.Errorf("open %s: %w", docxBody, err))
	}
	defer func() { _ = rc.Close() }()

	p := &docxParser{dec: xml.NewDecoder(rc), doc: &document.Document{}}
	if err := p.parse(); err != nil {
		pe := newParseError(format.Docx, err)
		pe.Offset = p.dec.InputOffset()
		var se *xml.SyntaxError
		if errors.As(err, &se) {
			pe.Line = se.Line
		}
		return nil, pe
	}
	return p.doc, nil
}

type docxParser struct {
	dec *xml.Decoder
	doc *document.Document
}

func (p *docxParser) parse() error {
	for {
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case start.Name.Local == "p":
			para, err := p.paragraph()
			if err != nil {
				return err
			}
			if strings.TrimSpace(para.PlainText()) != "" {
				p.doc.Append(para)
			}
		case start.Name.Local == "tbl":
			tbl, err := p.table()
			if err != nil {
				return err
			}
			if len(tbl.Rows) > 0 {
				p.doc.Append(tbl)
			}
		case docxSkipped[start.Name.Local]:
			if err := p.dec.Skip(); err != nil {
				return err
			}
		}
	}
}

// paragraph reads up to the closing </w:p>.
func (p *docxParser) paragraph() (document.Paragraph, error) {
	var (
		para     document.Paragraph
		style    string
		list     bool
		em       document.Emphasis
		inPPr    bool
		inRPr    bool
		depth    int
		textPart strings.Builder
	)
	flush := func() {
		if textPart.Len() == 0 {
			return
		}
		s := textPart.String()
		textPart.Reset()
		if n := len(para.Runs); n > 0 && para.Runs[n-1].Emphasis == em {
			para.Runs[n-1].Text += s
			return
		}
		para.Runs = append(para.Runs, document.Run{Text: s, Emphasis: em})
	}

	for {
		tok, err := p.dec.Token()
		if err != nil {
			return para, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if docxSkipped[name] {
				if err := p.dec.Skip(); err != nil {
					return para, err
				}
				continue
			}
			depth++
			switch name {
			case "pPr":
				inPPr = true
			case "rPr":
				inRPr = !inPPr
			case "pStyle":
				style = attr(t, "val")
			case "numPr":
				list = inPPr
			case "ilvl":
				if n, err := strconv.Atoi(attr(t, "val")); err == nil && inPPr {
					para.Indent = n
				}
			case "r":
				flush()
				em = 0
			case "b":
				if inRPr && toggleOn(t) {
					flush()
					em |= document.Bold
				}
			case "i":
				if inRPr && toggleOn(t) {
					flush()
					em |= document.Italic
				}
			case "t":
				var s string
				if err := p.dec.DecodeElement(&s, &t); err != nil {
					return para, err
				}
				depth--
				textPart.WriteString(s)
			case "tab":
				textPart.WriteByte('\t')
			case "br", "cr":
				textPart.WriteByte('\n')
			}
		case xml.EndElement:
			if depth == 0 {
				flush()
				para.Level = docxHeadingLevel(style)
				if list && para.Level == 0 {
					para.Bullet = "•"
				}
				return para, nil
			}
			depth--
			switch t.Name.Local {
			case "pPr":
				inPPr = false
			case "rPr":
				inRPr = false
			case "r":
				flush()
			}
		}
	}
}

// table reads up to the closing </w:tbl>. Nested tables are flattened into
// the text of the enclosing cell.
func (p *docxParser) table() (document.Table, error) {
	var (
		tbl    document.Table
		row    []string
		cell   []string
		inRow  bool
		inCell bool
		span   int
		depth  int
	)

	for {
		tok, err := p.dec.Token()
		if err != nil {
			return tbl, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if docxSkipped[name] {
				if err := p.dec.Skip(); err != nil {
					return tbl, err
				}
				continue
			}
			switch name {
			case "p":
				para, err := p.paragraph()
				if err != nil {
					return tbl, err
				}
				if inCell {
					cell = append(cell, para.PlainText())
				}
				continue
			case "tbl":
				inner, err := p.table()
				if err != nil {
					return tbl, err
				}
				for _, r := range inner.Rows {
					cell = append(cell, strings.Join(r, " | "))
				}
				continue
			}
			depth++
			switch name {
			case "tr":
				inRow, row = true, nil
			case "tc":
				inCell, cell, span = true, nil, 1
			case "tblHeader":
				if len(tbl.Rows) == 0 {
					tbl.Header = true
				}
			case "gridSpan":
				if n, err := strconv.Atoi(attr(t, "val")); err == nil && n > 1 {
					span = n
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return tbl, nil
			}
			depth--
			switch t.Name.Local {
			case "tc":
				row = append(row, strings.TrimSpace(strings.Join(cell, "\n")))
				row = append(row, make([]string, max(span-1, 0))...)
				inCell = false
			case "tr":
				if inRow {
					tbl.Rows = append(tbl.Rows, row)
				}
				inRow = false
			}
		}
	}
}

// docxHeadingLevel maps paragraph style IDs to heading levels, covering
// the English built-ins and common localised names.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)
	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		rest, ok := strings.CutPrefix(lower, prefix)
		if ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}

// toggleOn reads an OOXML on/off property: absent val means on.
func toggleOn(t xml.StartElement) bool {
	switch attr(t, "val") {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
