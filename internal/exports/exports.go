// Package exports serializes registrations and contact lists into CSV and
// XLSX downloads. Builders trust their input; callers validate first.
package exports

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Content types for the generated files.
const (
	ContentTypeCSV  = "text/csv;charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DisparoRow is one contact in a bulk-messaging list.
type DisparoRow struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// FullRow is one registration in the complete export.
type FullRow struct {
	CreatedAt string `json:"createdAt"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Course    string `json:"course"`
}

// BuildDisparoCSV renders rows as "Name,Phone" CSV with CRLF line endings.
// Fields are written verbatim without quoting.
func BuildDisparoCSV(rows []DisparoRow) string {
	var b strings.Builder
	b.Grow(len("Name,Phone\r\n") + len(rows)*32)

	b.WriteString("Name,Phone\r\n")
	for _, r := range rows {
		b.WriteString(r.Name)
		b.WriteByte(',')
		b.WriteString(r.Phone)
		b.WriteString("\r\n")
	}
	return b.String()
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDateDDMMYYYY renders an ISO-8601 timestamp as DD/MM/YYYY in the
// timestamp's own offset. Input it cannot parse is returned unchanged.
func FormatDateDDMMYYYY(value string) string {
	s := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return value
}

// DatedFilename returns "<prefix>-YYYY-MM-DD.<ext>" for now's calendar date.
func DatedFilename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02"), ext)
}

// Download writes body as a file attachment.
func Download(w http.ResponseWriter, filename, contentType string, body []byte) error {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", disposition)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}
