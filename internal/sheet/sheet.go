// Package sheet iterates the rows of uploaded spreadsheets.
//
// Excel 2007+ (.xlsx), legacy Excel (.xls) and CSV files are read through a
// single Rows iterator yielding the first worksheet row by row as strings.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format identifies how an uploaded file is encoded.
type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
	FormatXLS
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	default:
		return "csv"
	}
}

// ErrUnreadable is returned when a file cannot be parsed as a spreadsheet or CSV.
var ErrUnreadable = errors.New("sheet: unreadable spreadsheet")

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// sniffLen is the number of leading bytes Detect needs.
const sniffLen = 8

// Detect picks a format from the leading bytes of the file, falling back to
// the file extension when the content is not conclusive.
func Detect(head []byte, filename string) Format {
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(head, cfbMagic):
		return FormatXLS
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	}
	return FormatCSV
}

// Rows iterates worksheet rows. Callers must Close it.
//
//	rows, err := sheet.Open(file, name)
//	if err != nil { ... }
//	defer rows.Close()
//	for rows.Next() {
//	    cells := rows.Row()
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows interface {
	// Next advances to the next row. It returns false at the end of the
	// sheet or on error.
	Next() bool
	// Row returns the cells of the current row. Trailing empty cells may be
	// omitted.
	Row() []string
	// Err returns the first error met while iterating.
	Err() error
	Close() error
}

// Open detects the format of r and returns an iterator over the rows of its
// first worksheet. Parse failures wrap ErrUnreadable; I/O failures are
// returned as they are.
func Open(r io.ReadSeeker, filename string) (Rows, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("sniff %s: %w", filename, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", filename, err)
	}

	switch Detect(head[:n], filename) {
	case FormatXLSX:
		return openXLSX(r)
	case FormatXLS:
		return openXLS(r)
	default:
		return openCSV(r)
	}
}

// ReadAll drains rows into memory. Intended for tests and small files.
func ReadAll(rows Rows) ([][]string, error) {
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		row := rows.Row()
		cp := make([]string, len(row))
		copy(cp, row)
		out = append(out, cp)
	}
	return out, rows.Err()
}

// CleanCell removes common spreadsheet artifacts from a header cell:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// IsEmptyRow reports whether every cell is blank.
func IsEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Cell returns row[i] or "" when the row is shorter.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
