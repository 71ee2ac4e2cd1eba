// Package adapter parses raw file bytes into the intermediate document
// model, one parser per format kind.
package adapter

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/format"
)

// Sentinel errors for adapter operations.
var (
	ErrParse         = errors.New("parse error")
	ErrEmptyDocument = errors.New("no renderable content")
)

// Parser turns the bytes of one file into a document.
type Parser interface {
	Parse(data []byte) (*document.Document, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(data []byte) (*document.Document, error)

// Parse calls f(data).
func (f ParserFunc) Parse(data []byte) (*document.Document, error) { return f(data) }

// ParseError reports malformed input. Offset is a byte offset into the
// input and Line a 1-based line number; either is unknown when negative
// or zero respectively.
type ParseError struct {
	Format format.Kind
	Offset int64
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	loc := ""
	switch {
	case e.Line > 0 && e.Offset >= 0:
		loc = " at line " + strconv.Itoa(e.Line) + " (offset " + strconv.FormatInt(e.Offset, 10) + ")"
	case e.Line > 0:
		loc = " at line " + strconv.Itoa(e.Line)
	case e.Offset >= 0:
		loc = " at offset " + strconv.FormatInt(e.Offset, 10)
	}
	return fmt.Sprintf("parsing %s%s: %v", e.Format, loc, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// newParseError builds a ParseError with unknown position.
func newParseError(kind format.Kind, err error) *ParseError {
	return &ParseError{Format: kind, Offset: -1, Err: err}
}

// For returns the parser for kind.
func For(kind format.Kind) (Parser, error) {
	switch kind {
	case format.Docx:
		return ParserFunc(parseDocx), nil
	case format.PlainText:
		return ParserFunc(parsePlainText), nil
	case format.Json:
		return ParserFunc(parseJSON), nil
	case format.Xml:
		return ParserFunc(parseXML), nil
	case format.Yaml:
		return ParserFunc(parseYAML), nil
	case format.Toml:
		return ParserFunc(parseTOML), nil
	case format.Csv:
		return ParserFunc(parseCSV), nil
	case format.Excel:
		return ParserFunc(parseExcel), nil
	case format.Markdown:
		return ParserFunc(parseMarkdown), nil
	case format.Html:
		return ParserFunc(parseHTML), nil
	case format.ImagePng, format.ImageJpg, format.ImageBmp:
		return imageParser(kind), nil
	case format.CodeRust, format.CodePython, format.CodeJavaScript, format.CodeC, format.CodeCpp:
		return codeParser(kind), nil
	}
	return nil, &format.UnsupportedError{Extension: kind.String()}
}

// Parse dispatches to the parser for kind. A panic inside a third-party
// parser is reported as a ParseError, and so is a document with nothing
// to render.
func Parse(kind format.Kind, data []byte) (doc *document.Document, err error) {
	p, err := For(kind)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = newParseError(kind, fmt.Errorf("parser panic: %v", r))
		}
	}()

	doc, err = p.Parse(data)
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			err = newParseError(kind, err)
		}
		return nil, err
	}
	if doc.Empty() {
		return nil, newParseError(kind, ErrEmptyDocument)
	}
	return doc, nil
}

// lineAt returns the 1-based line containing byte offset off.
func lineAt(data []byte, off int64) int {
	if off < 0 {
		return 0
	}
	off = min(off, int64(len(data)))
	line := 1
	for _, b := range data[:off] {
		if b == '\n' {
			line++
		}
	}
	return line
}
