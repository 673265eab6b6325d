package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type xlsxRows struct {
	file *excelize.File
	rows *excelize.Rows
	row  []string
	err  error
}

func openXLSX(r io.Reader) (*xlsxRows, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadable)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	return &xlsxRows{file: f, rows: rows}, nil
}

func (x *xlsxRows) Next() bool {
	if x.err != nil || !x.rows.Next() {
		return false
	}

	cols, err := x.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		x.err = fmt.Errorf("%w: %v", ErrUnreadable, err)
		return false
	}

	x.row = cols
	return true
}

func (x *xlsxRows) Row() []string { return x.row }

func (x *xlsxRows) Err() error {
	if x.err != nil {
		return x.err
	}
	if err := x.rows.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return nil
}

func (x *xlsxRows) Close() error {
	rerr := x.rows.Close()
	if err := x.file.Close(); err != nil {
		return err
	}
	return rerr
}
