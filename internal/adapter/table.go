package adapter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/format"
)

// parseCSV maps one record to one row; the first record is the header.
func parseCSV(data []byte) (*document.Document, error) {
	text := decodeText(data)

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			pe := newParseError(format.Csv, err)
			var ce *csv.ParseError
			if errors.As(err, &ce) {
				pe.Line = ce.Line
			}
			return nil, pe
		}
		rows = append(rows, rec)
	}

	doc := &document.Document{}
	if len(rows) > 0 {
		doc.Append(document.Table{Rows: rows, Header: true})
	}
	return doc, nil
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// parseExcel picks the reader by container magic rather than extension,
// since workbooks are often saved with the wrong one.
func parseExcel(data []byte) (*document.Document, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return parseXLSX(data)
	case bytes.HasPrefix(data, oleMagic):
		return parseXLS(data)
	}
	return nil, &ParseError{Format: format.Excel, Offset: 0, Err: errors.New("not a spreadsheet archive")}
}

// parseXLSX reads every sheet. GetRows returns cell values with their
// number and date formats applied.
func parseXLSX(data []byte) (*document.Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, newParseError(format.Excel, err)
	}
	defer func() { _ = f.Close() }()

	doc := &document.Document{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, newParseError(format.Excel, fmt.Errorf("sheet %q: %w", sheet, err))
		}
		appendSheet(doc, sheet, rows)
	}
	return doc, nil
}

func parseXLS(data []byte) (*document.Document, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, newParseError(format.Excel, err)
	}

	doc := &document.Document{}
	for i := range wb.NumSheets() {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		var rows [][]string
		for ri := 0; ri <= int(sheet.MaxRow); ri++ {
			row := sheet.Row(ri)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for ci := 0; ci < row.LastCol(); ci++ {
				cells = append(cells, row.Col(ci))
			}
			rows = append(rows, cells)
		}
		appendSheet(doc, name, rows)
	}
	return doc, nil
}

// appendSheet adds a heading and a table for a sheet, trimming trailing
// empty rows and padding ragged rows to the widest one.
func appendSheet(doc *document.Document, name string, rows [][]string) {
	for len(rows) > 0 && blankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return
	}

	width := document.Table{Rows: rows}.Columns()
	for i, row := range rows {
		if len(row) < width {
			rows[i] = append(row, make([]string, width-len(row))...)
		}
	}

	doc.Append(document.Heading(2, name), document.Table{Rows: rows, Header: true})
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
