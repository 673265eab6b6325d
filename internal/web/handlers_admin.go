package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/inscricoes/internal/admin"
	"github.com/JonMunkholm/inscricoes/internal/disparo"
	"github.com/JonMunkholm/inscricoes/internal/exports"
	"github.com/JonMunkholm/inscricoes/internal/logging"
)

// multipartMemory is how much of an upload is buffered before spilling to
// a temporary file.
const multipartMemory = 8 << 20

func (s *Server) handleAdminSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.admin.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleAdminRegistrations(w http.ResponseWriter, r *http.Request) {
	rows, err := s.admin.Registrations(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":         len(rows),
		"registrations": rows,
	})
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.admin.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportFull(w http.ResponseWriter, r *http.Request) {
	file, err := s.admin.ExportFull(r.Context())
	s.download(w, r, file, err)
}

func (s *Server) handleExportDisparo(w http.ResponseWriter, r *http.Request) {
	file, err := s.admin.ExportDisparo(r.Context())
	s.download(w, r, file, err)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, file *admin.File, err error) {
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := exports.Download(w, file.Name, file.ContentType, file.Body); err != nil {
		logging.FromContext(r.Context()).Warn("download interrupted", "file", file.Name, "error", err)
	}
}

// handleDisparoProcess classifies the rows of an uploaded contact sheet.
func (s *Server) handleDisparoProcess(w http.ResponseWriter, r *http.Request) {
	res, err := s.processUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDisparoExport re-exports the valid rows of an uploaded contact
// sheet as a workbook.
func (s *Server) handleDisparoExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.processUpload(w, r)
	if err == nil {
		var file *admin.File
		file, err = s.admin.ExportProcessed(res)
		if err == nil {
			s.download(w, r, file, nil)
			return
		}
	}
	s.respondError(w, r, err)
}

// processUpload takes a processing slot, reads the "file" form field and
// runs it through the processor within UPLOAD_TIMEOUT.
func (s *Server) processUpload(w http.ResponseWriter, r *http.Request) (*disparo.Result, error) {
	ctx := WithRequestMetadata(r.Context(), r)

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()

	file, header, err := s.formFile(w, r)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	runLogger := logging.WithFields(ctx, "run_id", uuid.NewString(), "file", header.Filename, "size", header.Size)
	start := time.Now()

	res, err := s.processor.ProcessFile(ctx, disparo.File{
		Name: header.Filename,
		Body: file,
		Size: header.Size,
	})
	if err != nil {
		runLogger.Warn("disparo processing failed", "error", err)
		return nil, err
	}

	runLogger.Info("disparo processed",
		"valid", len(res.ValidRows),
		"invalid", len(res.InvalidRows),
		"total", res.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	// Allow for the multipart envelope around a file of the maximum size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+64<<10)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, nil, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, s.cfg.Upload.MaxFileSize)
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, io.EOF):
			return nil, nil, errNoFile
		default:
			return nil, nil, errors.Join(errBadRequest, err)
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}
	if header.Size > s.cfg.Upload.MaxFileSize {
		file.Close()
		return nil, nil, fmt.Errorf("%w: %d bytes", errFileTooLarge, header.Size)
	}
	return file, header, nil
}
