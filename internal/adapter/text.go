package adapter

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/pretty"
	"golang.org/x/net/html/charset"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/format"
	"github.com/alnah/go-topdf/internal/yamlutil"
)

var (
	errXMLNoRoot          = errors.New("no root element")
	errXMLManyRoots       = errors.New("more than one root element")
	errXMLTextOutsideRoot = errors.New("text outside the root element")
)

// parsePlainText splits on blank lines. Line breaks inside a paragraph
// are kept.
func parsePlainText(data []byte) (*document.Document, error) {
	text := decodeText(data)
	doc := &document.Document{}
	for _, para := range splitParagraphs(text) {
		doc.Append(document.Text(para))
	}
	return doc, nil
}

func splitParagraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

// codeParser keeps source verbatim in a single code block.
func codeParser(kind format.Kind) Parser {
	return ParserFunc(func(data []byte) (*document.Document, error) {
		text := strings.TrimRight(decodeText(data), "\n")
		return &document.Document{Blocks: []document.Block{
			document.CodeBlock{Text: text, Language: kind.Language()},
		}}, nil
	})
}

func parseJSON(data []byte) (*document.Document, error) {
	text := []byte(decodeText(data))
	if err := json.Unmarshal(text, new(json.RawMessage)); err != nil {
		pe := newParseError(format.Json, err)
		var se *json.SyntaxError
		if errors.As(err, &se) {
			pe.Offset = se.Offset
			pe.Line = lineAt(text, se.Offset)
		}
		return nil, pe
	}

	out := pretty.PrettyOptions(text, &pretty.Options{Width: 80, Indent: "  "})
	return &document.Document{Blocks: []document.Block{
		document.CodeBlock{Text: strings.TrimRight(string(out), "\n"), Language: format.Json.Language()},
	}}, nil
}

// parseXML validates the whole tree first, then re-indents it from raw
// tokens so namespace prefixes survive as written.
func parseXML(data []byte) (*document.Document, error) {
	data = bytes.TrimPrefix(data, bomUTF8)

	if err := checkXML(data); err != nil {
		return nil, err
	}

	text, err := indentXML(data)
	if err != nil {
		return nil, newParseError(format.Xml, err)
	}
	return &document.Document{Blocks: []document.Block{
		document.CodeBlock{Text: text, Language: format.Xml.Language()},
	}}, nil
}

// checkXML requires exactly one root element and no text outside it.
func checkXML(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	fail := func(err error) error {
		pe := newParseError(format.Xml, err)
		pe.Offset = dec.InputOffset()
		var se *xml.SyntaxError
		if errors.As(err, &se) {
			pe.Line = se.Line
		}
		return pe
	}

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return fail(errXMLManyRoots)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return fail(errXMLTextOutsideRoot)
			}
		}
	}
	if roots == 0 {
		return fail(errXMLNoRoot)
	}
	return nil
}

func indentXML(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var b strings.Builder
	depth := 0
	// open is true while the last written token is a start tag with no
	// children yet, so short text and the end tag stay on its line.
	open := false
	newline := func() {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", depth))
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			newline()
			b.WriteString("<" + qname(t.Name))
			for _, a := range t.Attr {
				b.WriteString(" " + qname(a.Name) + `="`)
				_ = xml.EscapeText(&b, []byte(a.Value))
				b.WriteByte('"')
			}
			b.WriteByte('>')
			depth++
			open = true
		case xml.EndElement:
			depth--
			if !open {
				newline()
			}
			b.WriteString("</" + qname(t.Name) + ">")
			open = false
		case xml.CharData:
			s := strings.TrimSpace(string(t))
			if s == "" {
				continue
			}
			if !open {
				newline()
			}
			_ = xml.EscapeText(&b, []byte(s))
		case xml.Comment:
			newline()
			b.WriteString("<!--" + string(t) + "-->")
			open = false
		case xml.ProcInst:
			newline()
			b.WriteString("<?" + t.Target + " " + string(t.Inst) + "?>")
			open = false
		case xml.Directive:
			newline()
			b.WriteString("<!" + string(t) + ">")
			open = false
		}
	}
	return b.String(), nil
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// parseYAML checks syntax over every document in the stream and keeps the
// original text, which is already indentation-structured.
func parseYAML(data []byte) (*document.Document, error) {
	text := decodeText(data)
	if err := yamlutil.Check([]byte(text)); err != nil {
		pe := newParseError(format.Yaml, err)
		var se *yamlutil.SyntaxError
		if errors.As(err, &se) {
			pe.Line = se.Line
		}
		return nil, pe
	}
	return &document.Document{Blocks: []document.Block{
		document.CodeBlock{Text: strings.TrimRight(text, "\n"), Language: format.Yaml.Language()},
	}}, nil
}

func parseTOML(data []byte) (*document.Document, error) {
	text := decodeText(data)
	var v map[string]any
	if _, err := toml.Decode(text, &v); err != nil {
		pe := newParseError(format.Toml, err)
		var te toml.ParseError
		if errors.As(err, &te) {
			pe.Offset = int64(te.Position.Start)
			pe.Line = te.Position.Line
		}
		return nil, pe
	}
	return &document.Document{Blocks: []document.Block{
		document.CodeBlock{Text: strings.TrimRight(text, "\n"), Language: format.Toml.Language()},
	}}, nil
}
