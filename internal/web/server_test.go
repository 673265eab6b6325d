package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/inscricoes/internal/admin"
	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/backend/backendtest"
	"github.com/JonMunkholm/inscricoes/internal/catalog"
	"github.com/JonMunkholm/inscricoes/internal/config"
	"github.com/JonMunkholm/inscricoes/internal/core"
	"github.com/JonMunkholm/inscricoes/internal/registration"
)

const adminKey = "test-admin-key"

type testEnv struct {
	fake    *backendtest.Fake
	server  *Server
	limiter *core.Limiter
}

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"ADMIN_API_KEYS":     adminKey,
		"RATE_LIMIT_ENABLED": "false",
		"SITE_TIMEZONE":      "UTC",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := base[key]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

// newEnv builds a server backed by fake; a nil fake leaves the backend
// unconfigured.
func newEnv(t *testing.T, fake *backendtest.Fake, env map[string]string) *testEnv {
	t.Helper()
	cfg := loadConfig(t, env)

	var handle backend.Handle
	if fake != nil {
		handle = backend.NewHandle(fake)
	}

	cat, err := catalog.Load()
	require.NoError(t, err)

	limiter := core.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	srv := NewServer(Deps{
		Config:       cfg,
		Backend:      handle,
		Catalog:      cat,
		Registration: registration.NewService(handle, cfg.Site.RegistrationCategory),
		Admin: admin.NewService(handle, admin.Options{
			Category:   cfg.Site.RegistrationCategory,
			Location:   cfg.Site.Location(),
			AdminEmail: cfg.Security.AdminEmail,
			Now:        func() time.Time { return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) },
		}),
		Limiter: limiter,
	})
	return &testEnv{fake: fake, server: srv, limiter: limiter}
}

func seeded() *backendtest.Fake {
	starts := time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC)
	return &backendtest.Fake{
		Courses: []backend.CourseAvailability{
			{CourseID: "2", Name: "Primeiros Passos", Category: "Empreendedorismo", StartsAt: starts, Capacity: 25, Remaining: 10},
			{CourseID: "8", Name: "Finanças Pessoais", Category: "Empreendedorismo", StartsAt: starts, Capacity: 30, Filled: 30},
		},
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func adminReq(method, path string, body *bytes.Buffer, contentType string) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	req.Header.Set("X-API-Key", adminKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func upload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	rec := newEnv(t, nil, nil).get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_configured", decode[map[string]any](t, rec)["backend"])

	fake := seeded()
	env := newEnv(t, fake, nil)
	assert.Equal(t, "ok", decode[map[string]any](t, env.get("/healthz"))["backend"])

	fake.PingErr = errors.New("connection refused")
	rec = env.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestCatalog(t *testing.T) {
	env := newEnv(t, nil, nil)

	body := decode[struct {
		Categories []string         `json:"categories"`
		Courses    []catalog.Course `json:"courses"`
	}](t, env.get("/api/catalog"))
	assert.Len(t, body.Courses, 12)
	assert.Contains(t, body.Categories, "Oficina")

	body.Courses = nil
	require.NoError(t, json.Unmarshal(env.get("/api/catalog?category=Palestra").Body.Bytes(), &body))
	assert.Len(t, body.Courses, 3)
}

func TestAvailability(t *testing.T) {
	rec := newEnv(t, nil, nil).get("/api/availability")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "REG004", decode[ErrorResponse](t, rec).Code)

	rec = newEnv(t, seeded(), nil).get("/api/availability")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]catalog.Availability](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, catalog.StatusAvailable, rows[0].Status)
	assert.Equal(t, catalog.StatusSoldOut, rows[1].Status)
	assert.Equal(t, "Primeiros Passos (08/03/2025 14:00)", rows[0].Label)

	rec = newEnv(t, seeded(), nil).get("/api/availability?category=Oficina")
	assert.Empty(t, decode[[]catalog.Availability](t, rec))
}

func TestCreateRegistration(t *testing.T) {
	post := func(env *testEnv, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/registrations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return env.do(req)
	}
	valid := `{"name":"Maria","email":"maria@example.com","phone":"+55 94 99403-9847","courseId":"2"}`

	t.Run("created", func(t *testing.T) {
		env := newEnv(t, seeded(), nil)
		rec := post(env, valid)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		conf := decode[registration.Confirmation](t, rec)
		assert.NotEmpty(t, conf.RegistrationID)
		assert.Equal(t, "Primeiros Passos", conf.CourseName)
		assert.Len(t, env.fake.Registrations, 1)
	})

	t.Run("invalid fields", func(t *testing.T) {
		rec := post(newEnv(t, seeded(), nil), `{"name":"M","email":"x","phone":"123","courseId":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "VAL001", resp.Code)
		assert.Len(t, resp.Fields, 4)
	})

	t.Run("sold out", func(t *testing.T) {
		rec := post(newEnv(t, seeded(), nil), strings.Replace(valid, `"2"`, `"8"`, 1))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "Este curso está lotado. Escolha outro.", decode[ErrorResponse](t, rec).Fields["courseId"])
	})

	t.Run("procedure rejects", func(t *testing.T) {
		fake := seeded()
		fake.RegisterErr = backend.ErrNoVacancies
		rec := post(newEnv(t, fake, nil), valid)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Este curso está com vagas esgotadas.", decode[ErrorResponse](t, rec).Message)
	})

	t.Run("duplicate", func(t *testing.T) {
		env := newEnv(t, seeded(), nil)
		require.Equal(t, http.StatusCreated, post(env, valid).Code)
		rec := post(env, valid)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "REG003", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := post(newEnv(t, seeded(), nil), `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VAL003", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("backend missing", func(t *testing.T) {
		rec := post(newEnv(t, nil, nil), valid)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestPhoneEndpoints(t *testing.T) {
	env := newEnv(t, nil, nil)

	mask := decode[map[string]string](t, env.get("/api/phone/mask?value=94994039847"))
	assert.Equal(t, "+55 94 99403-9847", mask["value"])

	norm := decode[map[string]any](t, env.get("/api/phone/normalize?value=%2855%29%2094%2099403-9847"))
	assert.Equal(t, "559494039847", norm["value"])
	assert.Equal(t, true, norm["dialable"])
	assert.Equal(t, "https://wa.me/559494039847", norm["whatsappUrl"])
}

func TestAdmin_RequiresKey(t *testing.T) {
	env := newEnv(t, seeded(), nil)

	assert.Equal(t, http.StatusUnauthorized, env.get("/api/admin/summary").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/summary", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)

	body, ct := upload(t, "c.csv", "name,phone\nAna,94994039847\n")
	req = httptest.NewRequest(http.MethodPost, "/api/admin/disparo/process", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}

func TestAdmin_SummaryListDelete(t *testing.T) {
	fake := seeded()
	env := newEnv(t, fake, nil)
	ctx := context.Background()
	id, err := fake.Register(ctx, backend.NewRegistration{Name: "Ana", Email: "ana@example.com", Phone: "+55 94 99403-9847", CourseID: "2"})
	require.NoError(t, err)

	rec := env.do(adminReq(http.MethodGet, "/api/admin/summary", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[admin.Summary](t, rec)
	assert.Equal(t, 1, sum.TotalRegistrations)
	assert.Len(t, sum.Courses, 2)

	rec = env.do(adminReq(http.MethodGet, "/api/admin/registrations", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Total         int         `json:"total"`
		Registrations []admin.Row `json:"registrations"`
	}](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "https://wa.me/559494039847", list.Registrations[0].WhatsAppURL)

	rec = env.do(adminReq(http.MethodDelete, "/api/admin/registrations/not-a-uuid", nil, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL002", decode[ErrorResponse](t, rec).Code)

	req := adminReq(http.MethodDelete, "/api/admin/registrations/"+id, nil, "")
	req.Header.Set("X-Admin-Email", "coord@example.com")
	rec = env.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, fake.Audit, 1)
	assert.Equal(t, "coord@example.com", fake.Audit[0].ActorEmail)

	rec = env.do(adminReq(http.MethodDelete, "/api/admin/registrations/"+id, nil, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_Exports(t *testing.T) {
	fake := seeded()
	env := newEnv(t, fake, nil)

	rec := env.do(adminReq(http.MethodGet, "/api/admin/exports/full", nil, ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EXP001", decode[ErrorResponse](t, rec).Code)

	_, err := fake.Register(context.Background(), backend.NewRegistration{Name: "Ana", Email: "ana@example.com", Phone: "+55 94 99403-9847", CourseID: "2"})
	require.NoError(t, err)

	rec = env.do(adminReq(http.MethodGet, "/api/admin/exports/full", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inscricoes-completo-2025-03-09.xlsx")

	rec = env.do(adminReq(http.MethodGet, "/api/admin/exports/disparo", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Name,Phone\r\nAna,559494039847\r\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inscricoes-disparo-2025-03-09.csv")

	fake.Registrations[0].Phone = "123"
	rec = env.do(adminReq(http.MethodGet, "/api/admin/exports/disparo", nil, ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "EXP003", resp.Code)
	assert.Equal(t, "1 registro(s) possuem telefone inválido para disparo.", resp.Message)
}

func TestDisparoProcess(t *testing.T) {
	env := newEnv(t, nil, nil)

	body, ct := upload(t, "contatos.csv", "Nome,Celular\nAna,(94) 99403-9847\n,11912345678\nBia,123\n")
	rec := env.do(adminReq(http.MethodPost, "/api/admin/disparo/process", body, ct))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[struct {
		ValidRows   []map[string]any `json:"validRows"`
		InvalidRows []map[string]any `json:"invalidRows"`
		Total       int              `json:"total"`
	}](t, rec)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.ValidRows, 1)
	assert.Equal(t, "559494039847", res.ValidRows[0]["phone"])
	require.Len(t, res.InvalidRows, 2)
	assert.EqualValues(t, 3, res.InvalidRows[0]["line"])
	assert.Equal(t, "Nome ausente", res.InvalidRows[0]["error"])
}

func TestDisparoProcess_FileErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		env      map[string]string
		status   int
		code     string
	}{
		{"header only", "c.csv", "name,phone\n", nil, http.StatusUnprocessableEntity, "FILE010"},
		{"missing columns", "c.csv", "email,cidade\na@b.co,Belém\n", nil, http.StatusUnprocessableEntity, "FILE011"},
		{"not a spreadsheet", "c.xlsx", "this is not a zip", nil, http.StatusUnprocessableEntity, "FILE012"},
		{"too large", "c.csv", "name,phone\n" + strings.Repeat("Ana,94994039847\n", 200), map[string]string{"UPLOAD_MAX_FILE_SIZE": "1024"}, http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, nil, tt.env)
			body, ct := upload(t, tt.filename, tt.content)
			rec := env.do(adminReq(http.MethodPost, "/api/admin/disparo/process", body, ct))

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestDisparoProcess_NoFile(t *testing.T) {
	env := newEnv(t, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	rec := env.do(adminReq(http.MethodPost, "/api/admin/disparo/process", &buf, mw.FormDataContentType()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decode[ErrorResponse](t, rec).Code)
}

func TestDisparoProcess_Busy(t *testing.T) {
	env := newEnv(t, nil, map[string]string{
		"UPLOAD_MAX_CONCURRENT": "1",
		"UPLOAD_MAX_WAIT_TIME":  "20ms",
	})
	require.NoError(t, env.limiter.Acquire(context.Background()))
	defer env.limiter.Release()

	body, ct := upload(t, "c.csv", "name,phone\nAna,94994039847\n")
	rec := env.do(adminReq(http.MethodPost, "/api/admin/disparo/process", body, ct))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, "UPL002", decode[ErrorResponse](t, rec).Code)
}

func TestDisparoExport(t *testing.T) {
	env := newEnv(t, nil, nil)

	body, ct := upload(t, "c.csv", "name,phone\nAna,94994039847\nBia,1\n")
	rec := env.do(adminReq(http.MethodPost, "/api/admin/disparo/export", body, ct))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "disparo-processado-2025-03-09.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	body, ct = upload(t, "c.csv", "name,phone\nBia,1\n")
	rec = env.do(adminReq(http.MethodPost, "/api/admin/disparo/export", body, ct))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EXP001", decode[ErrorResponse](t, rec).Code)
}

func TestPages(t *testing.T) {
	rec := newEnv(t, seeded(), nil).get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Oficina de Culinária Regional")
	assert.Contains(t, rec.Body.String(), "10 vagas restantes de 25")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = newEnv(t, nil, nil).get("/inscricao")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = newEnv(t, seeded(), nil).get("/inscricao")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="8" disabled>`)

	rec = newEnv(t, nil, nil).get("/obrigado?nome=Ana&curso=Finan%C3%A7as")
	assert.Contains(t, rec.Body.String(), "<dd>Finanças</dd>")
}

func TestRegisterForm(t *testing.T) {
	post := func(env *testEnv, form string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/inscricao", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return env.do(req)
	}

	env := newEnv(t, seeded(), nil)
	rec := post(env, "name=Maria&email=maria%40example.com&phone=94994039847&courseId=2")
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/obrigado?"), loc)
	assert.Contains(t, loc, "curso=Primeiros+Passos")
	assert.Equal(t, "+55 94 99403-9847", env.fake.Registrations[0].Phone)

	rec = post(env, "name=M&email=maria%40example.com&phone=94994039847&courseId=2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-field="name"`)
	assert.Contains(t, rec.Body.String(), "VAL001")
}

func TestNotFound(t *testing.T) {
	rec := newEnv(t, nil, nil).get("/api/nothing-here")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "HTTP404", decode[ErrorResponse](t, rec).Code)
}

func TestRateLimit(t *testing.T) {
	env := newEnv(t, nil, map[string]string{
		"RATE_LIMIT_ENABLED":             "true",
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "1",
		"RATE_LIMIT_BURST":               "2",
	})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = env.get("/api/catalog").Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{backend.ErrCourseNotFound, http.StatusNotFound},
		{core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
		{&admin.InvalidPhonesError{Count: 2}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
