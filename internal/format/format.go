// Package format classifies input files into one of the supported kinds.
package format

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind identifies an input format. The zero value is Unknown.
type Kind int

// Supported kinds.
const (
	Unknown Kind = iota
	Docx
	PlainText
	Json
	Xml
	Csv
	Markdown
	Html
	ImagePng
	ImageJpg
	ImageBmp
	CodeRust
	CodePython
	CodeJavaScript
	CodeC
	CodeCpp
	Yaml
	Toml
	Excel
)

var kindNames = [...]string{
	Unknown:        "unknown",
	Docx:           "docx",
	PlainText:      "text",
	Json:           "json",
	Xml:            "xml",
	Csv:            "csv",
	Markdown:       "markdown",
	Html:           "html",
	ImagePng:       "png",
	ImageJpg:       "jpeg",
	ImageBmp:       "bmp",
	CodeRust:       "rust",
	CodePython:     "python",
	CodeJavaScript: "javascript",
	CodeC:          "c",
	CodeCpp:        "cpp",
	Yaml:           "yaml",
	Toml:           "toml",
	Excel:          "excel",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsImage reports whether k is a raster image kind.
func (k Kind) IsImage() bool {
	return k == ImagePng || k == ImageJpg || k == ImageBmp
}

// IsCode reports whether k is a source-code kind.
func (k Kind) IsCode() bool {
	return k >= CodeRust && k <= CodeCpp
}

// Language returns the syntax-highlighting lexer name for k, or "" when
// the kind is not rendered as highlighted text.
func (k Kind) Language() string {
	switch k {
	case CodeRust, CodePython, CodeJavaScript, CodeC, CodeCpp, Json, Xml, Yaml, Toml:
		return k.String()
	}
	return ""
}

// ErrUnsupported is matched by every *UnsupportedError.
var ErrUnsupported = errors.New("unsupported format")

// UnsupportedError reports a file whose kind could not be determined.
type UnsupportedError struct {
	Path      string
	Extension string
	MIME      string
}

func (e *UnsupportedError) Error() string {
	switch {
	case e.Extension != "":
		return fmt.Sprintf("unsupported format %q: %s", e.Extension, e.Path)
	case e.MIME != "":
		return fmt.Sprintf("unsupported format (content is %s): %s", e.MIME, e.Path)
	}
	return "unsupported format: " + e.Path
}

// Is lets errors.Is(err, ErrUnsupported) match.
func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

var byExtension = map[string]Kind{
	".docx":     Docx,
	".txt":      PlainText,
	".text":     PlainText,
	".log":      PlainText,
	".json":     Json,
	".xml":      Xml,
	".csv":      Csv,
	".md":       Markdown,
	".markdown": Markdown,
	".html":     Html,
	".htm":      Html,
	".xhtml":    Html,
	".png":      ImagePng,
	".jpg":      ImageJpg,
	".jpeg":     ImageJpg,
	".bmp":      ImageBmp,
	".rs":       CodeRust,
	".py":       CodePython,
	".pyw":      CodePython,
	".js":       CodeJavaScript,
	".mjs":      CodeJavaScript,
	".cjs":      CodeJavaScript,
	".c":        CodeC,
	".h":        CodeC,
	".cpp":      CodeCpp,
	".cc":       CodeCpp,
	".cxx":      CodeCpp,
	".hpp":      CodeCpp,
	".hh":       CodeCpp,
	".hxx":      CodeCpp,
	".yaml":     Yaml,
	".yml":      Yaml,
	".toml":     Toml,
	".xlsx":     Excel,
	".xlsm":     Excel,
	".xls":      Excel,
}

// Extensions returns every recognised extension, sorted.
func Extensions() []string {
	out := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Supported reports whether path has a recognised extension.
func Supported(path string) bool {
	_, ok := byExtension[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SniffSize is how many leading bytes Detect needs to sniff content.
const SniffSize = 3072

// Detect returns the kind of the file at path. head holds the leading bytes
// of the file and is consulted when the extension is missing or when an
// image extension disagrees with the content. An unknown extension is an
// *UnsupportedError.
func Detect(path string, head []byte) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return sniff(path, head)
	}

	kind, ok := byExtension[ext]
	if !ok {
		return Unknown, &UnsupportedError{Path: path, Extension: ext}
	}

	if kind.IsImage() && len(head) > 0 {
		if sniffed := fromMIME(mimetype.Detect(head)); sniffed.IsImage() {
			return sniffed, nil
		}
	}
	return kind, nil
}

func sniff(path string, head []byte) (Kind, error) {
	if len(head) == 0 {
		return Unknown, &UnsupportedError{Path: path}
	}
	mt := mimetype.Detect(head)
	if kind := fromMIME(mt); kind != Unknown {
		return kind, nil
	}
	return Unknown, &UnsupportedError{Path: path, MIME: mt.String()}
}

// fromMIME walks from the most specific type up through its parents.
func fromMIME(mt *mimetype.MIME) Kind {
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("image/png"):
			return ImagePng
		case m.Is("image/jpeg"):
			return ImageJpg
		case m.Is("image/bmp"):
			return ImageBmp
		case m.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
			return Docx
		case m.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
			m.Is("application/vnd.ms-excel"):
			return Excel
		case m.Is("application/json"):
			return Json
		case m.Is("text/html"):
			return Html
		case m.Is("text/xml"), m.Is("application/xml"):
			return Xml
		case m.Is("text/csv"):
			return Csv
		case m.Is("text/x-python"):
			return CodePython
		case m.Is("text/javascript"), m.Is("application/javascript"):
			return CodeJavaScript
		case m.Is("text/plain"):
			return PlainText
		}
	}
	return Unknown
}
