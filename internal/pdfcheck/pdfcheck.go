// Package pdfcheck reads back produced PDFs: structural validation and
// page count through pdfcpu, plain text through ledongthuc/pdf.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalid is returned when a PDF fails validation.
var ErrInvalid = errors.New("invalid PDF")

// Info summarizes a validated PDF.
type Info struct {
	Pages int
	Title string
}

// Validate parses and validates data.
func Validate(data []byte) (Info, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Info{Pages: ctx.PageCount, Title: ctx.Title}, nil
}

// PageText extracts the plain text of every page, in order. Text drawn with
// core fonts round-trips; embedded subset fonts may not.
func PageText(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Text is PageText joined with newlines.
func Text(data []byte) (string, error) {
	pages, err := PageText(data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}
