// Package registration validates the public sign-up form and submits it to
// the registration procedure.
package registration

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/core"
	"github.com/JonMunkholm/inscricoes/internal/logging"
)

var (
	emailDomainRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	maskedPhoneRe = regexp.MustCompile(`^\+55 \d{2} \d{5}-\d{4}$`)
)

// Form is the submitted sign-up form. Phone must already carry the
// display mask produced by phone.ApplyMask.
type Form struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email,emaildomain"`
	Phone    string `json:"phone" validate:"required,maskedphone"`
	CourseID string `json:"courseId" validate:"required"`
}

func (f Form) trimmed() Form {
	return Form{
		Name:     strings.TrimSpace(f.Name),
		Email:    strings.TrimSpace(f.Email),
		Phone:    strings.TrimSpace(f.Phone),
		CourseID: strings.TrimSpace(f.CourseID),
	}
}

// Field messages shown next to the form inputs.
const (
	msgName         = "Informe seu nome completo"
	msgEmailMissing = "E-mail é obrigatório"
	msgEmailFormat  = "Formato de e-mail inválido. Verifique se digitou corretamente."
	msgEmailDomain  = "Informe um domínio de e-mail válido (ex: .com, .br)"
	msgPhoneMissing = "Telefone é obrigatório"
	msgPhoneFormat  = "Formato inválido. Use: +55 11 91234-5678"
	msgCourse       = "Selecione um curso"
	msgCourseFull   = "Este curso está lotado. Escolha outro."
)

// ValidationError lists the rejected fields keyed by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid registration form: " + strings.Join(names, ", ")
}

// UserMessage implements core.Messager.
func (e *ValidationError) UserMessage() core.UserMessage {
	return core.UserMessage{
		Message: "Alguns campos do formulário estão inválidos.",
		Action:  "Corrija os campos destacados e envie novamente.",
		Code:    "VAL001",
	}
}

// Confirmation is what the thanks page shows after a successful sign-up.
type Confirmation struct {
	RegistrationID string     `json:"registrationId"`
	Name           string     `json:"name"`
	CourseID       string     `json:"courseId"`
	CourseName     string     `json:"courseName"`
	StartsAt       *time.Time `json:"startsAt,omitempty"`
}

// Service submits registrations for one course category.
type Service struct {
	backend  backend.Handle
	category string
	validate *validator.Validate
}

// NewService builds a Service for the courses of category.
func NewService(h backend.Handle, category string) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	// Registration only fails on malformed tags, which are fixed above.
	_ = v.RegisterValidation("emaildomain", func(fl validator.FieldLevel) bool {
		return emailDomainRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("maskedphone", func(fl validator.FieldLevel) bool {
		return maskedPhoneRe.MatchString(fl.Field().String())
	})

	return &Service{backend: h, category: category, validate: v}
}

// Validate checks the form shape without contacting the backend.
func (s *Service) Validate(f Form) error {
	err := s.validate.Struct(f.trimmed())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate form: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "name":
		return msgName
	case "email":
		switch fe.Tag() {
		case "required":
			return msgEmailMissing
		case "email":
			return msgEmailFormat
		default:
			return msgEmailDomain
		}
	case "phone":
		if fe.Tag() == "required" {
			return msgPhoneMissing
		}
		return msgPhoneFormat
	default:
		return msgCourse
	}
}

// Submit validates f, refuses sold-out courses and calls the registration
// procedure. Backend failures come back as the backend sentinel errors.
func (s *Service) Submit(ctx context.Context, f Form) (*Confirmation, error) {
	f = f.trimmed()
	if err := s.Validate(f); err != nil {
		return nil, err
	}

	client, err := s.backend.Require()
	if err != nil {
		return nil, err
	}

	logger := logging.WithFields(ctx, "course_id", f.CourseID, "phone", logging.MaskPhone(f.Phone))

	// A stale or failed availability read is not fatal: the procedure
	// enforces capacity itself.
	var selected *backend.CourseAvailability
	courses, err := client.CourseAvailability(ctx, s.category)
	if err != nil {
		logger.Warn("availability lookup before registration failed", "error", err)
	}
	for i := range courses {
		if courses[i].CourseID == f.CourseID {
			selected = &courses[i]
			break
		}
	}
	if selected != nil && selected.Remaining <= 0 {
		return nil, &ValidationError{Fields: map[string]string{"courseId": msgCourseFull}}
	}

	id, err := client.Register(ctx, backend.NewRegistration{
		Name:     f.Name,
		Email:    f.Email,
		Phone:    f.Phone,
		CourseID: f.CourseID,
	})
	if err != nil {
		logger.Info("registration rejected", "error", err)
		return nil, err
	}

	logger.Info("registration created", "registration_id", id)

	conf := &Confirmation{RegistrationID: id, Name: f.Name, CourseID: f.CourseID}
	if selected != nil {
		conf.CourseName = selected.Name
		starts := selected.StartsAt
		conf.StartsAt = &starts
	}
	return conf, nil
}
