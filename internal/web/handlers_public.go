package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/inscricoes/internal/catalog"
	"github.com/JonMunkholm/inscricoes/internal/core"
	"github.com/JonMunkholm/inscricoes/internal/logging"
	"github.com/JonMunkholm/inscricoes/internal/phone"
	"github.com/JonMunkholm/inscricoes/internal/registration"
	"github.com/JonMunkholm/inscricoes/internal/web/templates"
)

const maxFormBytes = 64 << 10

// handleHealth reports backend reachability and upload slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"backend": "not_configured",
		"uploads": s.limiter.Status(),
	}
	status := http.StatusOK

	if client, err := s.backend.Require(); err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := client.Ping(ctx); err != nil {
			logging.FromContext(ctx).Warn("health: backend ping failed", "error", err)
			resp["status"] = "degraded"
			resp["backend"] = "error"
			status = http.StatusServiceUnavailable
		} else {
			resp["backend"] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) category(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		return c
	}
	return s.cfg.Site.RegistrationCategory
}

// handleCatalog lists the programme, optionally filtered by ?category=.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.catalog.Categories(),
		"courses":    s.catalog.ByCategory(category),
	})
}

// handleAvailability returns live seat counts for ?category=, defaulting
// to the registration category.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	rows, err := s.availability(r.Context(), s.category(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) availability(ctx context.Context, category string) ([]catalog.Availability, error) {
	client, err := s.backend.Require()
	if err != nil {
		return nil, err
	}
	rows, err := client.CourseAvailability(ctx, category)
	if err != nil {
		return nil, err
	}
	return catalog.Decorate(rows, s.loc), nil
}

// handleCreateRegistration accepts the sign-up form as JSON.
func (s *Server) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	var form registration.Form
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := dec.Decode(&form); err != nil {
		s.respondError(w, r, errors.Join(errBadRequest, err))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	conf, err := s.registration.Submit(ctx, form)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conf)
}

// handlePhoneMask echoes the live-typing mask for ?value=.
func (s *Server) handlePhoneMask(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"value": phone.ApplyMask(r.URL.Query().Get("value")),
	})
}

// handlePhoneNormalize returns the dialable form of ?value=.
func (s *Server) handlePhoneNormalize(w http.ResponseWriter, r *http.Request) {
	normalized := phone.Normalize(r.URL.Query().Get("value"))
	writeJSON(w, http.StatusOK, map[string]any{
		"value":       normalized,
		"dialable":    phone.IsDialable(normalized),
		"whatsappUrl": "https://wa.me/" + normalized,
		"display":     phone.Display(normalized),
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}

// handleLanding renders the programme with live seats when available.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	byID := make(map[string]catalog.Availability)
	if s.backend.Configured() {
		rows, err := s.availability(r.Context(), s.cfg.Site.RegistrationCategory)
		if err != nil {
			logging.FromContext(r.Context()).Warn("landing: availability unavailable", "error", err)
		}
		for _, a := range rows {
			byID[a.CourseID] = a
		}
	}

	courses := s.catalog.All()
	cards := make([]templates.CourseCardData, len(courses))
	for i, c := range courses {
		cards[i] = templates.CourseCardData{Course: c}
		if a, ok := byID[c.ID]; ok {
			cards[i].Availability = &a
		}
	}

	s.render(w, r, http.StatusOK, templates.Landing(templates.LandingData{
		Courses:              cards,
		RegistrationCategory: s.cfg.Site.RegistrationCategory,
		RegistrationOpen:     s.backend.Configured(),
	}))
}

// handleRegisterPage renders the empty sign-up form.
func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.renderRegister(w, r, http.StatusOK, templates.RegisterData{})
}

func (s *Server) renderRegister(w http.ResponseWriter, r *http.Request, status int, d templates.RegisterData) {
	if !s.backend.Configured() {
		s.render(w, r, http.StatusServiceUnavailable, templates.RegistrationClosed())
		return
	}

	opts, err := s.availability(r.Context(), s.cfg.Site.RegistrationCategory)
	if err != nil {
		logging.FromContext(r.Context()).Warn("register page: availability unavailable", "error", err)
	}
	d.Category = s.cfg.Site.RegistrationCategory
	d.Options = opts
	s.render(w, r, status, templates.Register(d))
}

// handleRegisterForm handles the HTML form post and redirects to the
// thanks page on success.
func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, errors.Join(errBadRequest, err))
		return
	}

	form := registration.Form{
		Name:     r.PostForm.Get("name"),
		Email:    r.PostForm.Get("email"),
		Phone:    phone.ApplyMask(r.PostForm.Get("phone")),
		CourseID: r.PostForm.Get("courseId"),
	}

	ctx := WithRequestMetadata(r.Context(), r)
	conf, err := s.registration.Submit(ctx, form)
	if err != nil {
		d := templates.RegisterData{
			Name:     form.Name,
			Email:    form.Email,
			Phone:    form.Phone,
			CourseID: form.CourseID,
		}
		var verr *registration.ValidationError
		if errors.As(err, &verr) {
			d.FieldErrors = verr.Fields
		}
		msg := core.MapError(err)
		d.AlertMessage, d.AlertAction, d.AlertCode = msg.Message, msg.Action, msg.Code

		logging.FromContext(ctx).Info("registration form rejected", "code", msg.Code, "error", err)
		s.renderRegister(w, r, statusFor(err), d)
		return
	}

	q := url.Values{}
	q.Set("id", conf.RegistrationID)
	q.Set("nome", conf.Name)
	q.Set("curso", conf.CourseName)
	if conf.StartsAt != nil {
		q.Set("inicio", catalog.FormatDateTime(*conf.StartsAt, s.loc))
	}
	http.Redirect(w, r, "/obrigado?"+q.Encode(), http.StatusSeeOther)
}

// handleThanks renders the confirmation page from the redirect query.
func (s *Server) handleThanks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.render(w, r, http.StatusOK, templates.Thanks(templates.ThanksData{
		RegistrationID: q.Get("id"),
		Name:           q.Get("nome"),
		CourseName:     q.Get("curso"),
		StartsAt:       q.Get("inicio"),
	}))
}
