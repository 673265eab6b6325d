// Package backend talks to the hosted registrations database.
//
// Seat reservation lives in the database; this package only calls its two
// procedures (get_course_availability and register_participant) and reads or
// deletes rows of the registrations and audit_logs tables.
package backend

import (
	"context"
	"errors"
	"time"
)

// Errors reported by the registration procedure. Their text includes the
// token the database raises so logs and error mapping can match on it.
var (
	ErrNoVacancies           = errors.New("NO_VACANCIES: course is sold out")
	ErrCourseNotFound        = errors.New("COURSE_NOT_FOUND: course does not exist")
	ErrDuplicateRegistration = errors.New("DUPLICATE_REGISTRATION: participant already registered")
)

var (
	// ErrNotConfigured is returned by Handle.Require when no database URL was supplied.
	ErrNotConfigured = errors.New("backend not configured")

	ErrRegistrationNotFound = errors.New("registration not found")
	ErrInvalidID            = errors.New("invalid registration id")
)

// CourseAvailability is one row of get_course_availability.
type CourseAvailability struct {
	CourseID  string    `json:"courseId"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	StartsAt  time.Time `json:"startsAt"`
	Capacity  int       `json:"capacity"`
	Filled    int       `json:"filled"`
	Remaining int       `json:"remaining"`
}

// NewRegistration holds the arguments of register_participant.
type NewRegistration struct {
	Name     string
	Email    string
	Phone    string
	CourseID string
}

// Registration is a stored registration joined with its course.
type Registration struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	CreatedAt      time.Time
	CourseID       string
	CourseName     string
	CourseStartsAt *time.Time
}

// AuditEntry is a row for the audit_logs table.
type AuditEntry struct {
	Action         string
	RegistrationID string
	ActorEmail     string
}

// ActionDeleteRegistration is recorded when an administrator deletes a registration.
const ActionDeleteRegistration = "delete_registration"

// Client is the set of remote operations the site uses.
type Client interface {
	CourseAvailability(ctx context.Context, category string) ([]CourseAvailability, error)
	Register(ctx context.Context, in NewRegistration) (string, error)
	ListRegistrations(ctx context.Context) ([]Registration, error)
	CountRegistrations(ctx context.Context) (int, error)
	DeleteRegistration(ctx context.Context, id string) error
	InsertAuditLog(ctx context.Context, entry AuditEntry) error
	Ping(ctx context.Context) error
}

// Handle carries a Client that may be absent when the site runs without a
// database. It replaces a nullable package-level client.
type Handle struct {
	client Client
}

// NewHandle wraps c; a nil c yields an unconfigured handle.
func NewHandle(c Client) Handle {
	return Handle{client: c}
}

// Configured reports whether a client is present.
func (h Handle) Configured() bool {
	return h.client != nil
}

// Require returns the client or ErrNotConfigured.
func (h Handle) Require() (Client, error) {
	if h.client == nil {
		return nil, ErrNotConfigured
	}
	return h.client, nil
}
