package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/export"
	"github.com/omerfdemir/docvalidator/internal/repository"
)

const maxUploadBytes = 50 << 20

// HTTPServer is the thin JSON boundary over the polling service. All
// pipeline semantics live below it.
type HTTPServer struct {
	poll      *PollService
	templates repository.TemplateRepository
	exporter  *export.Service
	log       *zap.Logger
}

func NewHTTPServer(poll *PollService, templates repository.TemplateRepository, exporter *export.Service, log *zap.Logger) *HTTPServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPServer{poll: poll, templates: templates, exporter: exporter, log: log}
}

func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/validations", s.handleStart)
		r.Get("/validations/{documentID}/status", s.handleStatus)
		r.Get("/validations/{documentID}/result", s.handleResult)
		r.Get("/validations/{documentID}/export", s.handleExport)
		r.Get("/templates", s.handleListTemplates)
	})

	return r
}

// handleStart accepts a multipart form: "document" (the file),
// "document_id", "template_id", and optional "customer_data" (JSON
// object of expected values keyed by field id).
func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("missing 'document' file: %w", err))
		return
	}
	defer file.Close()

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("unsupported file extension %q", ext))
		return
	}
	format := constants.MapExtToFormat(ext)

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("read document: %w", err))
		return
	}
	if len(data) > maxUploadBytes {
		s.writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("document exceeds %d bytes", maxUploadBytes))
		return
	}

	var customerData map[string]string
	if raw := strings.TrimSpace(r.FormValue("customer_data")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &customerData); err != nil {
			s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid customer_data JSON: %w", err))
			return
		}
	}

	documentID := strings.TrimSpace(r.FormValue("document_id"))
	if documentID == "" {
		documentID = uuid.NewString()
	}

	resp, err := s.poll.Start(r.Context(), StartRequest{
		DocumentID:   documentID,
		TemplateID:   strings.TrimSpace(r.FormValue("template_id")),
		Data:         data,
		Format:       format,
		CustomerData: customerData,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	code := http.StatusAccepted
	if !resp.Created {
		code = http.StatusOK
	}
	s.writeJSON(w, code, map[string]any{
		"job_id":      resp.JobID,
		"document_id": documentID,
		"status":      resp.Status,
		"created":     resp.Created,
	})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.poll.Status(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.poll.Result(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	result, err := s.poll.Result(r.Context(), documentID)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	st, err := s.poll.Status(r.Context(), documentID)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	j, err := s.poll.jobs.GetByID(r.Context(), st.JobID)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	tpl, err := s.templates.GetByID(r.Context(), j.TemplateID)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	data, err := s.exporter.ResultXLSX(documentID, tpl, result)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "validation-"+documentID+".xlsx"))
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List(r.Context())
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, templates)
}

// writeDomainErr maps the error taxonomy onto HTTP statuses: not-found
// 404, not-ready 409 (poll again), failed job 422, bad input 400.
func (s *HTTPServer) writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrJobNotFound), errors.Is(err, common.ErrNotFound):
		s.writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, common.ErrNotReady):
		s.writeErr(w, http.StatusConflict, err)
	case errors.Is(err, common.ErrJobFailed):
		s.writeErr(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, common.ErrInvalidInput):
		s.writeErr(w, http.StatusBadRequest, err)
	default:
		s.writeErr(w, http.StatusInternalServerError, err)
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *HTTPServer) writeErr(w http.ResponseWriter, code int, err error) {
	if code >= 500 {
		s.log.Error("request failed", zap.Int("status", code), zap.Error(err))
	}
	s.writeJSON(w, code, map[string]any{"error": err.Error()})
}
