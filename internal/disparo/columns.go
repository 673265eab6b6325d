package disparo

import (
	"strings"

	"github.com/JonMunkholm/inscricoes/internal/sheet"
)

var (
	nameHeaders  = []string{"name", "nome"}
	phoneHeaders = []string{"phone", "telefone", "celular"}
)

// Columns holds the zero-based positions of the name and phone columns.
type Columns struct {
	Name  int
	Phone int
}

// ResolveColumns locates the name and phone columns in a header row.
// Matching is case-insensitive and the first matching column wins.
func ResolveColumns(header []string) (Columns, error) {
	cols := Columns{Name: -1, Phone: -1}

	for i, h := range header {
		key := strings.ToLower(sheet.CleanCell(h))
		if key == "" {
			continue
		}
		if cols.Name < 0 && matches(key, nameHeaders) {
			cols.Name = i
		}
		if cols.Phone < 0 && matches(key, phoneHeaders) {
			cols.Phone = i
		}
	}

	if cols.Name < 0 || cols.Phone < 0 {
		return Columns{}, ErrMissingRequiredColumns
	}
	return cols, nil
}

func matches(key string, synonyms []string) bool {
	for _, s := range synonyms {
		if key == s {
			return true
		}
	}
	return false
}
