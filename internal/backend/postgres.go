package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/inscricoes/internal/config"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements Client with SQL against the hosted database.
type Postgres struct {
	db DBTX
}

// NewPostgres returns a Client backed by db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Connect opens and verifies a connection pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const (
	availabilitySQL = `SELECT course_id::text, name, category, starts_at,
       capacity::int, filled::int, remaining::int
  FROM get_course_availability($1)`

	registerSQL = `SELECT register_participant($1, $2, $3, $4)::text`

	listRegistrationsSQL = `SELECT r.id::text, r.name, r.email, r.phone, r.created_at,
       r.course_id::text, c.name, c.starts_at
  FROM registrations r
  LEFT JOIN courses c ON c.id = r.course_id
 ORDER BY r.created_at DESC`

	countRegistrationsSQL = `SELECT count(*)::int FROM registrations`

	deleteRegistrationSQL = `DELETE FROM registrations WHERE id = $1`

	insertAuditSQL = `INSERT INTO audit_logs (action, registration_id, actor_email) VALUES ($1, $2, $3)`
)

// CourseAvailability calls get_course_availability for category.
func (p *Postgres) CourseAvailability(ctx context.Context, category string) ([]CourseAvailability, error) {
	rows, err := p.db.Query(ctx, availabilitySQL, category)
	if err != nil {
		return nil, fmt.Errorf("get course availability: %w", err)
	}
	defer rows.Close()

	var out []CourseAvailability
	for rows.Next() {
		var c CourseAvailability
		if err := rows.Scan(&c.CourseID, &c.Name, &c.Category, &c.StartsAt,
			&c.Capacity, &c.Filled, &c.Remaining); err != nil {
			return nil, fmt.Errorf("scan course availability: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get course availability: %w", err)
	}
	return out, nil
}

// Register calls register_participant and returns the new registration id.
func (p *Postgres) Register(ctx context.Context, in NewRegistration) (string, error) {
	var id string
	err := p.db.QueryRow(ctx, registerSQL, in.Name, in.Email, in.Phone, in.CourseID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("register participant: %w", mapRegisterError(err))
	}
	return id, nil
}

// ListRegistrations returns every registration, newest first.
func (p *Postgres) ListRegistrations(ctx context.Context) ([]Registration, error) {
	rows, err := p.db.Query(ctx, listRegistrationsSQL)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var (
			r          Registration
			courseID   *string
			courseName *string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Phone, &r.CreatedAt,
			&courseID, &courseName, &r.CourseStartsAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		if courseID != nil {
			r.CourseID = *courseID
		}
		if courseName != nil {
			r.CourseName = *courseName
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return out, nil
}

// CountRegistrations returns the number of stored registrations.
func (p *Postgres) CountRegistrations(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, countRegistrationsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// DeleteRegistration removes one registration by id.
func (p *Postgres) DeleteRegistration(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	tag, err := p.db.Exec(ctx, deleteRegistrationSQL, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

// InsertAuditLog appends an audit entry.
func (p *Postgres) InsertAuditLog(ctx context.Context, e AuditEntry) error {
	if _, err := p.db.Exec(ctx, insertAuditSQL, e.Action, e.RegistrationID, e.ActorEmail); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Ping runs a trivial query.
func (p *Postgres) Ping(ctx context.Context) error {
	var one int
	if err := p.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

// mapRegisterError turns the tokens raised by register_participant into
// sentinel errors, keeping the database error in the chain.
func mapRegisterError(err error) error {
	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w (%w)", ErrDuplicateRegistration, err)
		}
		msg = pgErr.Message + " " + pgErr.Detail + " " + pgErr.Hint
	}

	switch {
	case strings.Contains(msg, "NO_VACANCIES"):
		return fmt.Errorf("%w (%w)", ErrNoVacancies, err)
	case strings.Contains(msg, "COURSE_NOT_FOUND"):
		return fmt.Errorf("%w (%w)", ErrCourseNotFound, err)
	case strings.Contains(msg, "DUPLICATE_REGISTRATION"):
		return fmt.Errorf("%w (%w)", ErrDuplicateRegistration, err)
	}
	return err
}
