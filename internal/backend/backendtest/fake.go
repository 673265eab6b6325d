// Package backendtest provides an in-memory backend.Client for tests.
package backendtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/inscricoes/internal/backend"
)

// Fake is an in-memory backend.Client. Set the Err fields to make the
// matching operation fail.
type Fake struct {
	mu sync.Mutex

	Courses       []backend.CourseAvailability
	Registrations []backend.Registration
	Audit         []backend.AuditEntry

	AvailabilityCalls int
	RegisterCalls     int

	AvailabilityErr error
	RegisterErr     error
	ListErr         error
	DeleteErr       error
	AuditErr        error
	PingErr         error

	// Now stamps new registrations; defaults to time.Now.
	Now func() time.Time
}

var _ backend.Client = (*Fake)(nil)

func (f *Fake) CourseAvailability(_ context.Context, category string) ([]backend.CourseAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.AvailabilityCalls++
	if f.AvailabilityErr != nil {
		return nil, f.AvailabilityErr
	}

	var out []backend.CourseAvailability
	for _, c := range f.Courses {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Fake) Register(_ context.Context, in backend.NewRegistration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.RegisterCalls++
	if f.RegisterErr != nil {
		return "", f.RegisterErr
	}

	idx := -1
	for i, c := range f.Courses {
		if c.CourseID == in.CourseID {
			idx = i
		}
	}
	if idx < 0 {
		return "", backend.ErrCourseNotFound
	}
	if f.Courses[idx].Remaining <= 0 {
		return "", backend.ErrNoVacancies
	}
	for _, r := range f.Registrations {
		if r.CourseID == in.CourseID && r.Email == in.Email {
			return "", backend.ErrDuplicateRegistration
		}
	}

	f.Courses[idx].Filled++
	f.Courses[idx].Remaining--

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	starts := f.Courses[idx].StartsAt
	reg := backend.Registration{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		CreatedAt:      now(),
		CourseID:       in.CourseID,
		CourseName:     f.Courses[idx].Name,
		CourseStartsAt: &starts,
	}
	f.Registrations = append(f.Registrations, reg)
	return reg.ID, nil
}

func (f *Fake) ListRegistrations(context.Context) ([]backend.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := append([]backend.Registration(nil), f.Registrations...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *Fake) CountRegistrations(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return 0, f.ListErr
	}
	return len(f.Registrations), nil
}

func (f *Fake) DeleteRegistration(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, err := uuid.Parse(id); err != nil {
		return backend.ErrInvalidID
	}
	for i, r := range f.Registrations {
		if r.ID == id {
			f.Registrations = append(f.Registrations[:i], f.Registrations[i+1:]...)
			return nil
		}
	}
	return backend.ErrRegistrationNotFound
}

func (f *Fake) InsertAuditLog(_ context.Context, e backend.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AuditErr != nil {
		return f.AuditErr
	}
	f.Audit = append(f.Audit, e)
	return nil
}

func (f *Fake) Ping(context.Context) error {
	return f.PingErr
}
