package exports

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	disparoSheet = "Disparo"
	fullSheet    = "Inscrições"

	minColWidth = 12
	maxColWidth = 60
)

var (
	disparoHeader = []string{"name", "phone"}
	fullHeader    = []string{"Data", "Nome", "Email", "Telefone", "Curso"}
)

// BuildDisparoXLSX renders rows on a "Disparo" sheet with a name/phone
// header and an autofilter over the used range.
func BuildDisparoXLSX(rows []DisparoRow) ([]byte, error) {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.Name, r.Phone}
	}

	wb, err := newWorkbook(disparoSheet, disparoHeader, data)
	if err != nil {
		return nil, err
	}
	defer wb.f.Close()

	if err := wb.setWidths([]float64{30, 20}); err != nil {
		return nil, err
	}
	return wb.bytes()
}

// BuildFullWorkbook renders registrations on an "Inscrições" sheet with a
// bold header, dates as DD/MM/YYYY, columns sized to their content and an
// autofilter over the used range.
func BuildFullWorkbook(rows []FullRow) ([]byte, error) {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{FormatDateDDMMYYYY(r.CreatedAt), r.Name, r.Email, r.Phone, r.Course}
	}

	wb, err := newWorkbook(fullSheet, fullHeader, data)
	if err != nil {
		return nil, err
	}
	defer wb.f.Close()

	if err := wb.setWidths(fitWidths(fullHeader, data)); err != nil {
		return nil, err
	}
	if err := wb.boldHeader(); err != nil {
		return nil, err
	}
	return wb.bytes()
}

// fitWidths sizes each column to its longest cell plus two, clamped to
// [minColWidth, maxColWidth].
func fitWidths(header []string, data [][]string) []float64 {
	widths := make([]float64, len(header))
	for c, title := range header {
		longest := utf8.RuneCountInString(title)
		for _, row := range data {
			if n := utf8.RuneCountInString(row[c]); n > longest {
				longest = n
			}
		}
		widths[c] = float64(min(maxColWidth, max(minColWidth, longest+2)))
	}
	return widths
}

type workbook struct {
	f     *excelize.File
	sheet string
	cols  int
	rows  int
}

// newWorkbook writes header and data as strings onto a single sheet and
// applies the autofilter.
func newWorkbook(sheet string, header []string, data [][]string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	wb := &workbook{f: f, sheet: sheet, cols: len(header), rows: len(data) + 1}

	if err := wb.writeRow(1, header); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range data {
		if err := wb.writeRow(i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	ref, err := wb.usedRange()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.AutoFilter(sheet, ref, []excelize.AutoFilterOptions{}); err != nil {
		f.Close()
		return nil, fmt.Errorf("autofilter %s: %w", ref, err)
	}

	return wb, nil
}

func (wb *workbook) writeRow(rowNum int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := wb.f.SetSheetRow(wb.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

func (wb *workbook) usedRange() (string, error) {
	last, err := excelize.CoordinatesToCellName(wb.cols, wb.rows)
	if err != nil {
		return "", err
	}
	return "A1:" + last, nil
}

func (wb *workbook) setWidths(widths []float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := wb.f.SetColWidth(wb.sheet, col, col, w); err != nil {
			return fmt.Errorf("width %s: %w", col, err)
		}
	}
	return nil
}

func (wb *workbook) boldHeader() error {
	style, err := wb.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(wb.cols, 1)
	if err != nil {
		return err
	}
	return wb.f.SetCellStyle(wb.sheet, "A1", last, style)
}

func (wb *workbook) bytes() ([]byte, error) {
	buf, err := wb.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
