package sheet

import (
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// maxXLSCols is the BIFF8 column limit.
const maxXLSCols = 256

// xlsRows walks the first worksheet of a BIFF8 workbook.
// The decoder loads the whole workbook up front, so the rows are
// materialized once and handed out from memory.
type xlsRows struct {
	rows [][]string
	next int
	row  []string
}

func openXLS(r io.ReadSeeker) (rows *xlsRows, err error) {
	// The decoder panics on some malformed compound files.
	defer func() {
		if p := recover(); p != nil {
			rows = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, p)
		}
	}()

	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadable)
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadable)
	}

	// ReadAllCells skips a sheet whose last row index is 0 and moves on to
	// the next one, so a header-only sheet is read directly.
	if ws.MaxRow == 0 {
		return &xlsRows{rows: firstXLSRow(ws)}, nil
	}

	// Rows without records come back nil and read as empty rows, keeping
	// row positions aligned with the sheet.
	return &xlsRows{rows: wb.ReadAllCells(int(ws.MaxRow) + 1)}, nil
}

// firstXLSRow returns row 0 of ws, or nothing when the sheet is empty.
func firstXLSRow(ws *xls.WorkSheet) (rows [][]string) {
	defer func() {
		// Row dereferences a missing row.
		if recover() != nil {
			rows = nil
		}
	}()

	row := ws.Row(0)
	cells := make([]string, 0, 8)
	for j := 0; j < maxXLSCols; j++ {
		cells = append(cells, row.Col(j))
	}
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	if len(cells) == 0 {
		return nil
	}
	return [][]string{cells}
}

func (x *xlsRows) Next() bool {
	if x.next >= len(x.rows) {
		return false
	}
	x.row = x.rows[x.next]
	x.next++
	return true
}

func (x *xlsRows) Row() []string { return x.row }
func (x *xlsRows) Err() error    { return nil }
func (x *xlsRows) Close() error  { return nil }
