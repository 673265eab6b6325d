package backend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB records statements and replays canned results.
type fakeDB struct {
	rows    [][]any
	row     []any
	rowErr  error
	execTag string
	execErr error

	sql  []string
	args [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag(f.execTag), f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return &fakeRows{data: f.rows, idx: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return fakeRow{values: f.row, err: f.rowErr}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx < len(r.data) }
func (r *fakeRows) Scan(dest ...any) error                       { return assign(dest, r.data[r.idx]) }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

// assign copies values into scan destinations, allocating for pointer
// destinations and leaving them nil for nil values.
func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		sv := reflect.ValueOf(values[i])
		if dv.Kind() == reflect.Ptr {
			p := reflect.New(dv.Type().Elem())
			p.Elem().Set(sv)
			dv.Set(p)
			continue
		}
		dv.Set(sv)
	}
	return nil
}

func TestPostgres_CourseAvailability(t *testing.T) {
	starts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{"c1", "Marketing Digital", "Empreendedorismo", starts, 40, 38, 2},
		{"c2", "Finanças", "Empreendedorismo", starts, 30, 30, 0},
	}}

	got, err := NewPostgres(db).CourseAvailability(context.Background(), "Empreendedorismo")
	if err != nil {
		t.Fatalf("CourseAvailability() error = %v", err)
	}
	if len(got) != 2 || got[0].Remaining != 2 || got[1].Filled != 30 || !got[0].StartsAt.Equal(starts) {
		t.Errorf("unexpected rows: %+v", got)
	}
	if db.args[0][0] != "Empreendedorismo" {
		t.Errorf("category arg = %v", db.args[0][0])
	}
	if !strings.Contains(db.sql[0], "get_course_availability($1)") {
		t.Errorf("sql = %q", db.sql[0])
	}
}

func TestPostgres_Register(t *testing.T) {
	db := &fakeDB{row: []any{"9f1c5a3e-7d7a-4c55-9d0e-2b1b1f2b8a10"}}

	id, err := NewPostgres(db).Register(context.Background(), NewRegistration{
		Name: "Ana", Email: "ana@x.com", Phone: "+55 94 99403-9847", CourseID: "c1",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id != "9f1c5a3e-7d7a-4c55-9d0e-2b1b1f2b8a10" {
		t.Errorf("id = %q", id)
	}
	want := []any{"Ana", "ana@x.com", "+55 94 99403-9847", "c1"}
	if !reflect.DeepEqual(db.args[0], want) {
		t.Errorf("args = %v, want %v", db.args[0], want)
	}
}

func TestPostgres_RegisterErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"sold out", &pgconn.PgError{Code: "P0001", Message: "NO_VACANCIES"}, ErrNoVacancies},
		{"unknown course", &pgconn.PgError{Code: "P0001", Message: "COURSE_NOT_FOUND"}, ErrCourseNotFound},
		{"duplicate token", &pgconn.PgError{Code: "P0001", Message: "DUPLICATE_REGISTRATION"}, ErrDuplicateRegistration},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, ErrDuplicateRegistration},
		{"plain error text", errors.New("rpc failed: NO_VACANCIES"), ErrNoVacancies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{rowErr: tt.err}
			_, err := NewPostgres(db).Register(context.Background(), NewRegistration{CourseID: "c1"})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("database error dropped from chain: %v", err)
			}
		})
	}

	other := errors.New("connection reset by peer")
	_, err := NewPostgres(&fakeDB{rowErr: other}).Register(context.Background(), NewRegistration{})
	if !errors.Is(err, other) || errors.Is(err, ErrNoVacancies) {
		t.Errorf("unrelated error mapped wrongly: %v", err)
	}
}

func TestPostgres_ListRegistrations(t *testing.T) {
	created := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	starts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{"r1", "Ana", "ana@x.com", "5594", created, "c1", "Curso A", starts},
		{"r2", "Bia", "bia@x.com", "5511", created, nil, nil, nil},
	}}

	got, err := NewPostgres(db).ListRegistrations(context.Background())
	if err != nil {
		t.Fatalf("ListRegistrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].CourseName != "Curso A" || got[0].CourseStartsAt == nil || !got[0].CourseStartsAt.Equal(starts) {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].CourseName != "" || got[1].CourseStartsAt != nil || got[1].CourseID != "" {
		t.Errorf("row without course = %+v", got[1])
	}
	if !strings.Contains(db.sql[0], "ORDER BY r.created_at DESC") {
		t.Errorf("sql = %q", db.sql[0])
	}
}

func TestPostgres_DeleteRegistration(t *testing.T) {
	const id = "9f1c5a3e-7d7a-4c55-9d0e-2b1b1f2b8a10"

	if err := NewPostgres(&fakeDB{execTag: "DELETE 1"}).DeleteRegistration(context.Background(), id); err != nil {
		t.Errorf("DeleteRegistration() error = %v", err)
	}

	err := NewPostgres(&fakeDB{execTag: "DELETE 0"}).DeleteRegistration(context.Background(), id)
	if !errors.Is(err, ErrRegistrationNotFound) {
		t.Errorf("missing row error = %v", err)
	}

	db := &fakeDB{execTag: "DELETE 1"}
	err = NewPostgres(db).DeleteRegistration(context.Background(), "1; DROP TABLE registrations")
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("bad id error = %v", err)
	}
	if len(db.sql) != 0 {
		t.Error("invalid id reached the database")
	}
}

func TestPostgres_InsertAuditLog(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 1"}
	err := NewPostgres(db).InsertAuditLog(context.Background(), AuditEntry{
		Action: ActionDeleteRegistration, RegistrationID: "r1", ActorEmail: "admgestalt@gmail.com",
	})
	if err != nil {
		t.Fatalf("InsertAuditLog() error = %v", err)
	}
	want := []any{"delete_registration", "r1", "admgestalt@gmail.com"}
	if !reflect.DeepEqual(db.args[0], want) {
		t.Errorf("args = %v, want %v", db.args[0], want)
	}
}

func TestPostgres_CountAndPing(t *testing.T) {
	p := NewPostgres(&fakeDB{row: []any{42}})
	n, err := p.CountRegistrations(context.Background())
	if err != nil || n != 42 {
		t.Errorf("CountRegistrations() = %d, %v", n, err)
	}

	p = NewPostgres(&fakeDB{rowErr: errors.New("connection refused")})
	if err := p.Ping(context.Background()); err == nil {
		t.Error("Ping() should fail")
	}
}

func TestHandle(t *testing.T) {
	var h Handle
	if h.Configured() {
		t.Error("zero Handle should not be configured")
	}
	if _, err := h.Require(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Require() error = %v", err)
	}

	h = NewHandle(NewPostgres(&fakeDB{}))
	if !h.Configured() {
		t.Error("Handle with client should be configured")
	}
	if c, err := h.Require(); err != nil || c == nil {
		t.Errorf("Require() = %v, %v", c, err)
	}
}
