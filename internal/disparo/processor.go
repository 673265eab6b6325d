// Package disparo turns an uploaded contact spreadsheet into a list of
// WhatsApp-dialable numbers for bulk messaging.
package disparo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/inscricoes/internal/phone"
	"github.com/JonMunkholm/inscricoes/internal/sheet"
)

// ContextCheckInterval is how many rows are processed between cancellation checks.
var ContextCheckInterval = 100

// File is an uploaded spreadsheet.
type File struct {
	Name string
	Body io.ReadSeeker
	Size int64
}

// ProcessedRow is the outcome for one data row.
type ProcessedRow struct {
	// Line is the 1-based row number in the sheet, header included.
	Line          int    `json:"line"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	OriginalPhone string `json:"originalPhone"`
	Valid         bool   `json:"isValid"`
	Error         string `json:"error,omitempty"`
}

// Result partitions the data rows of a file.
type Result struct {
	ValidRows   []ProcessedRow `json:"validRows"`
	InvalidRows []ProcessedRow `json:"invalidRows"`
	Total       int            `json:"total"`
}

// Processor reads contact spreadsheets. The zero value is ready to use and
// safe for concurrent calls; it holds no state between them.
type Processor struct{}

// NewProcessor returns a Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// ProcessFile reads the first worksheet of f and classifies each data row.
//
// The first row is the header; it must name a name column and a phone
// column. Rows blank in both columns are skipped. Row problems are
// reported in InvalidRows and never abort the batch. Whole-file problems
// return one of the package's *Error values, possibly wrapped.
func (p *Processor) ProcessFile(ctx context.Context, f File) (*Result, error) {
	rows, err := sheet.Open(f.Body, f.Name)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify(err)
		}
		return nil, ErrEmptyOrHeaderless
	}
	header := append([]string(nil), rows.Row()...)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify(err)
		}
		return nil, ErrEmptyOrHeaderless
	}

	cols, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ValidRows:   []ProcessedRow{},
		InvalidRows: []ProcessedRow{},
	}

	for i := 0; ; i++ {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w %w", ErrReadError, err)
			}
		}

		row := classifyRow(rows.Row(), cols, i+2)
		if row != nil {
			if row.Valid {
				res.ValidRows = append(res.ValidRows, *row)
			} else {
				res.InvalidRows = append(res.InvalidRows, *row)
			}
		}

		if !rows.Next() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	res.Total = len(res.ValidRows) + len(res.InvalidRows)
	return res, nil
}

// classifyRow returns nil for rows blank in both columns.
func classifyRow(cells []string, cols Columns, line int) *ProcessedRow {
	name := strings.TrimSpace(sheet.Cell(cells, cols.Name))
	rawPhone := strings.TrimSpace(sheet.Cell(cells, cols.Phone))

	switch {
	case name == "" && rawPhone == "":
		return nil
	case name == "":
		return &ProcessedRow{Line: line, Name: UnknownName, OriginalPhone: rawPhone, Error: ReasonMissingName}
	case rawPhone == "":
		return &ProcessedRow{Line: line, Name: name, OriginalPhone: rawPhone, Error: ReasonMissingPhone}
	}

	normalized := phone.Normalize(rawPhone)
	if !phone.IsDialable(normalized) {
		return &ProcessedRow{Line: line, Name: name, Phone: normalized, OriginalPhone: rawPhone, Error: ReasonBadPhone}
	}
	return &ProcessedRow{Line: line, Name: name, Phone: normalized, OriginalPhone: rawPhone, Valid: true}
}

// classify maps sheet errors onto the package's whole-file failures.
func classify(err error) error {
	var derr *Error
	if errors.As(err, &derr) {
		return err
	}
	if errors.Is(err, sheet.ErrUnreadable) {
		return fmt.Errorf("%w %w", ErrUnreadableFile, err)
	}
	return fmt.Errorf("%w %w", ErrReadError, err)
}
