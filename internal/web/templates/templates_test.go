package templates

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/catalog"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestLongDate(t *testing.T) {
	if got := LongDate(time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)); got != "8 de março" {
		t.Errorf("LongDate() = %q", got)
	}
	if got := LongDate(time.Time{}); got != "" {
		t.Errorf("LongDate(zero) = %q", got)
	}
}

func TestLanding(t *testing.T) {
	avail := catalog.Decorate([]backend.CourseAvailability{
		{CourseID: "2", Name: "Primeiros Passos", Capacity: 25, Remaining: 0},
	}, time.UTC)

	out := render(t, Landing(LandingData{
		RegistrationCategory: "Empreendedorismo",
		RegistrationOpen:     true,
		Courses: []CourseCardData{
			{Course: catalog.Course{ID: "1", Name: "Saúde <Mental>", Category: "Saúde", Date: "2025-03-05", Seats: 30}},
			{Course: catalog.Course{ID: "2", Name: "Primeiros Passos", Category: "Empreendedorismo", Date: "2025-03-08"}, Availability: &avail[0]},
		},
	}))

	for _, want := range []string{
		"<!doctype html>",
		"Saúde &lt;Mental&gt;",
		"5 de março",
		"30 vagas",
		"seats-sold_out",
		"Vagas esgotadas",
		`<progress max="100" value="100"`,
		`href="/inscricao"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("landing page missing %q", want)
		}
	}
}

func TestLanding_RegistrationClosed(t *testing.T) {
	out := render(t, Landing(LandingData{RegistrationCategory: "Empreendedorismo"}))
	if strings.Contains(out, `href="/inscricao"`) {
		t.Error("closed registration should not link to the form")
	}
}

func TestThanks(t *testing.T) {
	out := render(t, Thanks(ThanksData{Name: "Ana", CourseName: "Finanças", RegistrationID: "abc"}))
	for _, want := range []string{"Inscrição confirmada", "<dd>Ana</dd>", "<dd>Finanças</dd>", "<dd>abc</dd>"} {
		if !strings.Contains(out, want) {
			t.Errorf("thanks page missing %q", want)
		}
	}
	if strings.Contains(out, "Início") {
		t.Error("empty start time should be omitted")
	}

	bare := render(t, Thanks(ThanksData{}))
	if strings.Contains(bare, "<dl") {
		t.Error("summary should be omitted without course or id")
	}
}

func TestErrorAlert(t *testing.T) {
	out := render(t, ErrorAlert("Falhou <x>", "", "ERR000"))
	if !strings.Contains(out, "Falhou &lt;x&gt;") || !strings.Contains(out, "Código: ERR000") {
		t.Errorf("ErrorAlert() = %s", out)
	}
	if strings.Contains(out, "alert-action") {
		t.Error("empty action should be omitted")
	}
}

func TestRegister(t *testing.T) {
	opts := catalog.Decorate([]backend.CourseAvailability{
		{CourseID: "c1", Name: "Finanças", Capacity: 30, Remaining: 12},
		{CourseID: "c2", Name: "Primeiros Passos", Capacity: 25, Remaining: 0},
	}, time.UTC)

	out := render(t, Register(RegisterData{
		Category:     "Empreendedorismo",
		Options:      opts,
		Name:         `Ana "A"`,
		CourseID:     "c1",
		FieldErrors:  map[string]string{"phone": "Formato inválido. Use: +55 11 91234-5678"},
		AlertMessage: "Alguns campos do formulário estão inválidos.",
		AlertCode:    "VAL001",
	}))

	for _, want := range []string{
		`value="Ana &#34;A&#34;"`,
		`<option value="c1" selected>`,
		`<option value="c2" disabled>`,
		`data-field="phone"`,
		"VAL001",
		"12/30",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("register page missing %q", want)
		}
	}
}

func TestRegistrationClosed(t *testing.T) {
	if out := render(t, RegistrationClosed()); !strings.Contains(out, "não está configurado") {
		t.Errorf("RegistrationClosed() = %s", out)
	}
}

func TestGeneratedComponents(t *testing.T) {
	sources, err := filepath.Glob("*.templ")
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) == 0 {
		t.Fatal("no .templ sources found")
	}

	for _, src := range sources {
		gen := strings.TrimSuffix(src, ".templ") + "_templ.go"
		body, err := os.ReadFile(gen)
		if err != nil {
			t.Errorf("%s has no generated file: %v", src, err)
			continue
		}
		if !bytes.HasPrefix(body, []byte("// Code generated by templ - DO NOT EDIT.")) {
			t.Errorf("%s is missing the templ generated header", gen)
		}
	}
}

func TestCourseCard_Seats(t *testing.T) {
	avail := catalog.Decorate([]backend.CourseAvailability{
		{CourseID: "1", Name: "Finanças", Capacity: 30, Remaining: 12},
	}, time.UTC)

	out := render(t, CourseCard(CourseCardData{
		Course:       catalog.Course{ID: "1", Name: "Finanças", Category: "Empreendedorismo", Date: "2025-03-10", Workload: "4h"},
		Availability: &avail[0],
	}))

	for _, want := range []string{
		`data-course-id="1"`,
		`class="seats seats-available"`,
		`<progress max="100" value="60"`,
		"12 vagas restantes de 30",
		"<li>4h</li>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("course card missing %q in %s", want, out)
		}
	}
}
