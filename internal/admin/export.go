package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/inscricoes/internal/disparo"
	"github.com/JonMunkholm/inscricoes/internal/exports"
	"github.com/JonMunkholm/inscricoes/internal/logging"
	"github.com/JonMunkholm/inscricoes/internal/phone"
)

// File is a generated download.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Filename prefixes for the generated downloads.
const (
	FullExportPrefix      = "inscricoes-completo"
	DisparoExportPrefix   = "inscricoes-disparo"
	ProcessedExportPrefix = "disparo-processado"
)

// FullRows converts dashboard rows for the complete workbook. It rejects an
// empty list and rows with a blank required field.
func FullRows(rows []Row) ([]exports.FullRow, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	out := make([]exports.FullRow, len(rows))
	for i, r := range rows {
		if !allPresent(r.Name, r.Email, r.Phone, r.Course) {
			return nil, fmt.Errorf("%w: registration %s", ErrIncompleteData, r.ID)
		}
		out[i] = exports.FullRow{
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Name:      r.Name,
			Email:     r.Email,
			Phone:     r.Phone,
			Course:    r.Course,
		}
	}
	return out, nil
}

// DisparoRows normalizes every phone for bulk messaging. Rows with a blank
// name or an undialable phone are counted and reported together.
func DisparoRows(rows []Row) ([]exports.DisparoRow, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	out := make([]exports.DisparoRow, len(rows))
	invalid := 0
	for i, r := range rows {
		normalized := phone.Normalize(r.Phone)
		if !allPresent(r.Name) || !phone.IsDialable(normalized) {
			invalid++
		}
		out[i] = exports.DisparoRow{Name: r.Name, Phone: normalized}
	}

	if invalid > 0 {
		return nil, &InvalidPhonesError{Count: invalid}
	}
	return out, nil
}

// ExportFull builds the complete registrations workbook.
func (s *Service) ExportFull(ctx context.Context) (*File, error) {
	rows, err := s.Registrations(ctx)
	if err != nil {
		return nil, err
	}

	full, err := FullRows(rows)
	if err != nil {
		return nil, err
	}

	body, err := exports.BuildFullWorkbook(full)
	if err != nil {
		return nil, fmt.Errorf("build full workbook: %w", err)
	}

	logging.FromContext(ctx).Info("full export generated", "rows", len(full), "bytes", len(body))
	return &File{
		Name:        exports.DatedFilename(FullExportPrefix, "xlsx", s.now().In(s.loc)),
		ContentType: exports.ContentTypeXLSX,
		Body:        body,
	}, nil
}

// ExportDisparo builds the bulk-messaging CSV of every registration.
func (s *Service) ExportDisparo(ctx context.Context) (*File, error) {
	rows, err := s.Registrations(ctx)
	if err != nil {
		return nil, err
	}

	contacts, err := DisparoRows(rows)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("disparo export generated", "rows", len(contacts))
	return &File{
		Name:        exports.DatedFilename(DisparoExportPrefix, "csv", s.now().In(s.loc)),
		ContentType: exports.ContentTypeCSV,
		Body:        []byte(exports.BuildDisparoCSV(contacts)),
	}, nil
}

// ExportProcessed re-exports the valid rows of a processed upload.
func (s *Service) ExportProcessed(res *disparo.Result) (*File, error) {
	if res == nil || len(res.ValidRows) == 0 {
		return nil, ErrNothingToExport
	}

	contacts := make([]exports.DisparoRow, len(res.ValidRows))
	for i, r := range res.ValidRows {
		contacts[i] = exports.DisparoRow{Name: r.Name, Phone: r.Phone}
	}

	body, err := exports.BuildDisparoXLSX(contacts)
	if err != nil {
		return nil, fmt.Errorf("build disparo workbook: %w", err)
	}

	return &File{
		Name:        exports.DatedFilename(ProcessedExportPrefix, "xlsx", s.now().In(s.loc)),
		ContentType: exports.ContentTypeXLSX,
		Body:        body,
	}, nil
}
