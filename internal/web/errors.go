package web

// errors.go turns handler errors into responses.
//
// Every error is:
//   - logged with its technical detail and the request id
//   - mapped through core.MapError to a Portuguese message, action and code
//   - written as JSON for /api routes and as an HTML page elsewhere
//
// The HTTP status comes from statusFor, which knows the sentinel errors of
// the domain packages.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/inscricoes/internal/admin"
	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/core"
	"github.com/JonMunkholm/inscricoes/internal/disparo"
	"github.com/JonMunkholm/inscricoes/internal/logging"
	"github.com/JonMunkholm/inscricoes/internal/registration"
	"github.com/JonMunkholm/inscricoes/internal/web/templates"
)

var (
	errNotFound = &core.UserError{
		Technical: errors.New("route not found"),
		User:      core.UserMessage{Message: "Página não encontrada.", Code: "HTTP404"},
	}
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
	errBadRequest   = errors.New("malformed request body")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		verr *registration.ValidationError
		perr *admin.InvalidPhonesError
	)

	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr), errors.As(err, &perr),
		errors.Is(err, admin.ErrNothingToExport), errors.Is(err, admin.ErrIncompleteData),
		errors.Is(err, disparo.ErrEmptyOrHeaderless), errors.Is(err, disparo.ErrMissingRequiredColumns),
		errors.Is(err, disparo.ErrUnreadableFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errNoFile), errors.Is(err, errBadRequest),
		errors.Is(err, backend.ErrInvalidID), errors.Is(err, disparo.ErrReadError) && !isTimeout(err):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, backend.ErrNoVacancies), errors.Is(err, backend.ErrDuplicateRegistration):
		return http.StatusConflict
	case errors.Is(err, backend.ErrCourseNotFound), errors.Is(err, backend.ErrRegistrationNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrNotConfigured), errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case isTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if errors.Is(err, core.ErrTooManyUploads) {
		w.Header().Set("Retry-After", "5")
	}

	if wantsJSON(r) {
		resp := ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		}
		var verr *registration.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
		}
		writeJSON(w, status, resp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if rerr := templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w); rerr != nil {
		slog.Error("render error page", "error", rerr)
	}
}

// wantsJSON reports whether the client expects a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// writeJSON encodes v with status. Encoding errors are logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
