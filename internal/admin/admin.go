// Package admin serves the administrator dashboard: registration listing,
// deletion with an audit trail, and the spreadsheet exports.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/catalog"
	"github.com/JonMunkholm/inscricoes/internal/core"
	"github.com/JonMunkholm/inscricoes/internal/logging"
	"github.com/JonMunkholm/inscricoes/internal/phone"
)

// Export pre-validation failures.
var (
	ErrNothingToExport = errors.New("nothing to export")
	ErrIncompleteData  = errors.New("incomplete registration data")
)

// InvalidPhonesError reports how many registrations cannot be dialed.
type InvalidPhonesError struct {
	Count int
}

func (e *InvalidPhonesError) Error() string {
	return fmt.Sprintf("%d registrations have undialable phones", e.Count)
}

// UserMessage implements core.Messager.
func (e *InvalidPhonesError) UserMessage() core.UserMessage {
	return core.UserMessage{
		Message: fmt.Sprintf("%d registro(s) possuem telefone inválido para disparo.", e.Count),
		Action:  "Ajuste antes de exportar.",
		Code:    "EXP003",
	}
}

const (
	mailSubject = "Inscrição confirmada"
	mailBody    = "Olá! Segue uma atualização sobre sua inscrição."
)

// Options configure a Service.
type Options struct {
	// Category is the course category shown on the dashboard.
	Category string
	// Location renders dates and start times.
	Location *time.Location
	// AdminEmail is the audit actor when the request carries none.
	AdminEmail string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the dashboard operations.
type Service struct {
	backend    backend.Handle
	category   string
	loc        *time.Location
	adminEmail string
	now        func() time.Time
}

// NewService builds a Service.
func NewService(h backend.Handle, opts Options) *Service {
	s := &Service{
		backend:    h,
		category:   opts.Category,
		loc:        opts.Location,
		adminEmail: opts.AdminEmail,
		now:        opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Summary is the dashboard header.
type Summary struct {
	TotalRegistrations int                    `json:"totalRegistrations"`
	Category           string                 `json:"category"`
	Courses            []catalog.Availability `json:"courses"`
}

// Summary fetches the registration count and the category availability
// concurrently.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	client, err := s.backend.Require()
	if err != nil {
		return nil, err
	}

	var (
		total   int
		courses []backend.CourseAvailability
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := client.CountRegistrations(gctx)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		rows, err := client.CourseAvailability(gctx, s.category)
		if err != nil {
			return fmt.Errorf("course availability: %w", err)
		}
		courses = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Summary{
		TotalRegistrations: total,
		Category:           s.category,
		Courses:            catalog.Decorate(courses, s.loc),
	}, nil
}

// Row is a registration as listed on the dashboard.
type Row struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedAtLabel string    `json:"createdAtLabel"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	PhoneDisplay   string    `json:"phoneDisplay"`
	CourseID       string    `json:"courseId"`
	Course         string    `json:"course"`
	WhatsAppURL    string    `json:"whatsappUrl"`
	MailtoURL      string    `json:"mailtoUrl"`
}

// Registrations lists every registration, newest first.
func (s *Service) Registrations(ctx context.Context) ([]Row, error) {
	client, err := s.backend.Require()
	if err != nil {
		return nil, err
	}

	regs, err := client.ListRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	rows := make([]Row, len(regs))
	for i, r := range regs {
		rows[i] = s.row(r)
	}
	return rows, nil
}

func (s *Service) row(r backend.Registration) Row {
	courseName := r.CourseName
	if courseName == "" {
		courseName = r.CourseID
	}

	return Row{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt.In(s.loc),
		CreatedAtLabel: catalog.FormatDateTime(r.CreatedAt, s.loc),
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		PhoneDisplay:   phone.Display(r.Phone),
		CourseID:       r.CourseID,
		Course:         catalog.CourseLabel(courseName, r.CourseStartsAt, s.loc),
		WhatsAppURL:    phone.WhatsAppURL(r.Phone),
		MailtoURL:      MailtoURL(r.Email),
	}
}

// MailtoURL opens a confirmation e-mail draft to addr.
func MailtoURL(addr string) string {
	return "mailto:" + addr +
		"?subject=" + url.PathEscape(mailSubject) +
		"&body=" + url.PathEscape(mailBody)
}

// Delete removes a registration and records who did it. The audit insert
// is best effort: its failure is logged and the deletion still succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	client, err := s.backend.Require()
	if err != nil {
		return err
	}

	if err := client.DeleteRegistration(ctx, id); err != nil {
		return fmt.Errorf("delete registration %s: %w", id, err)
	}

	actor := core.Actor(ctx)
	if actor == "" {
		actor = s.adminEmail
	}

	entry := backend.AuditEntry{
		Action:         backend.ActionDeleteRegistration,
		RegistrationID: id,
		ActorEmail:     actor,
	}
	if err := client.InsertAuditLog(ctx, entry); err != nil {
		logging.FromContext(ctx).Info("audit_log_failed", "registration_id", id, "error", err)
	}

	logging.FromContext(ctx).Info("registration deleted", "registration_id", id, "actor", actor)
	return nil
}

// allPresent reports whether every value is non-blank.
func allPresent(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
