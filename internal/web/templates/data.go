// Package templates renders the public pages as templ components.
//
// Components live in the .templ files; the _templ.go files are produced by
// `templ generate` and must not be edited by hand.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/inscricoes/internal/catalog"
)

var monthsPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// LongDate renders "8 de março".
func LongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.Itoa(t.Day()) + " de " + monthsPT[t.Month()-1]
}

// CourseCardData is one programme entry with optional live seats.
type CourseCardData struct {
	Course       catalog.Course
	Availability *catalog.Availability
}

// LandingData feeds the home page.
type LandingData struct {
	Courses []CourseCardData
	// RegistrationCategory is the category open for sign-up.
	RegistrationCategory string
	// RegistrationOpen is false when no backend is configured.
	RegistrationOpen bool
}

// ThanksData feeds the confirmation page.
type ThanksData struct {
	RegistrationID string
	Name           string
	CourseName     string
	StartsAt       string
}

// RegisterData feeds the sign-up form page.
type RegisterData struct {
	Category string
	Options  []catalog.Availability

	Name     string
	Email    string
	Phone    string
	CourseID string

	// FieldErrors are keyed by the form field name.
	FieldErrors map[string]string

	AlertMessage string
	AlertAction  string
	AlertCode    string
}
