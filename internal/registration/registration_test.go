package registration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/backend/backendtest"
	"github.com/JonMunkholm/inscricoes/internal/core"
)

var startsAt = time.Date(2025, 3, 8, 17, 0, 0, 0, time.UTC)

func newFake() *backendtest.Fake {
	return &backendtest.Fake{
		Courses: []backend.CourseAvailability{
			{CourseID: "c-open", Name: "Finanças Pessoais", Category: "Empreendedorismo", StartsAt: startsAt, Capacity: 30, Remaining: 12},
			{CourseID: "c-full", Name: "Primeiros Passos", Category: "Empreendedorismo", StartsAt: startsAt, Capacity: 25, Filled: 25},
		},
	}
}

func validForm() Form {
	return Form{
		Name:     "  Maria da Silva ",
		Email:    "maria@example.com.br",
		Phone:    "+55 94 99403-9847",
		CourseID: "c-open",
	}
}

func TestValidate(t *testing.T) {
	svc := NewService(backend.NewHandle(nil), "Empreendedorismo")

	tests := []struct {
		name   string
		mutate func(*Form)
		field  string
		want   string
	}{
		{"short name", func(f *Form) { f.Name = " A " }, "name", msgName},
		{"missing email", func(f *Form) { f.Email = "" }, "email", msgEmailMissing},
		{"malformed email", func(f *Form) { f.Email = "maria@" }, "email", msgEmailFormat},
		{"missing phone", func(f *Form) { f.Phone = "" }, "phone", msgPhoneMissing},
		{"unmasked phone", func(f *Form) { f.Phone = "94994039847" }, "phone", msgPhoneFormat},
		{"short phone", func(f *Form) { f.Phone = "+55 94 9403-9847" }, "phone", msgPhoneFormat},
		{"missing course", func(f *Form) { f.CourseID = " " }, "courseId", msgCourse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			err := svc.Validate(f)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if got := verr.Fields[tt.field]; got != tt.want {
				t.Errorf("Fields[%q] = %q, want %q", tt.field, got, tt.want)
			}
		})
	}

	if err := svc.Validate(validForm()); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}
}

func TestValidate_EmailWithoutTLD(t *testing.T) {
	svc := NewService(backend.NewHandle(nil), "Empreendedorismo")

	f := validForm()
	f.Email = "maria@localhost"

	var verr *ValidationError
	if !errors.As(svc.Validate(f), &verr) {
		t.Fatal("expected *ValidationError")
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Errorf("email not rejected: %v", verr.Fields)
	}
}

func TestValidationError_UserMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"phone": msgPhoneFormat, "name": msgName}}

	if got := err.Error(); got != "invalid registration form: name, phone" {
		t.Errorf("Error() = %q", got)
	}
	if got := core.MapError(err).Code; got != "VAL001" {
		t.Errorf("MapError().Code = %q, want VAL001", got)
	}
}

func TestSubmit_Success(t *testing.T) {
	fake := newFake()
	svc := NewService(backend.NewHandle(fake), "Empreendedorismo")

	conf, err := svc.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if conf.RegistrationID == "" {
		t.Error("RegistrationID is empty")
	}
	if conf.Name != "Maria da Silva" {
		t.Errorf("Name = %q, want trimmed", conf.Name)
	}
	if conf.CourseName != "Finanças Pessoais" {
		t.Errorf("CourseName = %q", conf.CourseName)
	}
	if conf.StartsAt == nil || !conf.StartsAt.Equal(startsAt) {
		t.Errorf("StartsAt = %v", conf.StartsAt)
	}

	if len(fake.Registrations) != 1 {
		t.Fatalf("stored %d registrations, want 1", len(fake.Registrations))
	}
	if got := fake.Registrations[0]; got.Name != "Maria da Silva" || got.Phone != "+55 94 99403-9847" {
		t.Errorf("stored registration = %+v", got)
	}
}

func TestSubmit_SoldOutRejectedLocally(t *testing.T) {
	fake := newFake()
	svc := NewService(backend.NewHandle(fake), "Empreendedorismo")

	f := validForm()
	f.CourseID = "c-full"

	_, err := svc.Submit(context.Background(), f)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() error = %v, want *ValidationError", err)
	}
	if verr.Fields["courseId"] != msgCourseFull {
		t.Errorf("Fields = %v", verr.Fields)
	}
	if fake.RegisterCalls != 0 {
		t.Errorf("Register called %d times, want 0", fake.RegisterCalls)
	}
}

func TestSubmit_BackendErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*backendtest.Fake, *Form)
		wantErr  error
		wantCode string
	}{
		{
			name:     "no vacancies raised by procedure",
			setup:    func(fk *backendtest.Fake, _ *Form) { fk.RegisterErr = backend.ErrNoVacancies },
			wantErr:  backend.ErrNoVacancies,
			wantCode: "REG001",
		},
		{
			name:     "unknown course",
			setup:    func(_ *backendtest.Fake, f *Form) { f.CourseID = "c-missing" },
			wantErr:  backend.ErrCourseNotFound,
			wantCode: "REG002",
		},
		{
			name: "duplicate",
			setup: func(fk *backendtest.Fake, f *Form) {
				fk.Registrations = append(fk.Registrations, backend.Registration{CourseID: f.CourseID, Email: f.Email})
			},
			wantErr:  backend.ErrDuplicateRegistration,
			wantCode: "REG003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			f := validForm()
			tt.setup(fake, &f)

			_, err := NewService(backend.NewHandle(fake), "Empreendedorismo").Submit(context.Background(), f)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if got := core.MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestSubmit_AvailabilityFailureStillRegisters(t *testing.T) {
	fake := newFake()
	fake.AvailabilityErr = errors.New("timeout")

	conf, err := NewService(backend.NewHandle(fake), "Empreendedorismo").Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if conf.CourseName != "" || conf.StartsAt != nil {
		t.Errorf("course details without availability = %+v", conf)
	}
}

func TestSubmit_NotConfigured(t *testing.T) {
	svc := NewService(backend.NewHandle(nil), "Empreendedorismo")

	_, err := svc.Submit(context.Background(), validForm())
	if !errors.Is(err, backend.ErrNotConfigured) {
		t.Fatalf("Submit() error = %v, want ErrNotConfigured", err)
	}
}

func TestSubmit_InvalidFormSkipsBackend(t *testing.T) {
	fake := newFake()
	f := validForm()
	f.Phone = "123"

	_, err := NewService(backend.NewHandle(fake), "Empreendedorismo").Submit(context.Background(), f)
	if err == nil {
		t.Fatal("Submit() expected error")
	}
	if fake.AvailabilityCalls != 0 || fake.RegisterCalls != 0 {
		t.Errorf("backend called for invalid form: availability=%d register=%d", fake.AvailabilityCalls, fake.RegisterCalls)
	}
}
