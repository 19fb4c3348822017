// Package server exposes the project workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dusk-indust/vlab/internal/docparse"
	"github.com/dusk-indust/vlab/internal/project"
	"github.com/dusk-indust/vlab/internal/session"
)

// MaxUploadBytes bounds the size of an uploaded brief.
const MaxUploadBytes = 10 << 20

// Config for the HTTP API handler.
type Config struct {
	Service              *project.Service
	Logger               *slog.Logger
	AllowedOrigins       []string
	CompletionConfigured bool
	Version              string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"session not found"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope of every failed request.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type handler struct {
	svc    *project.Service
	logger *slog.Logger
}

// New returns an HTTP handler exposing the lab API.
func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, errorDetails(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, errorDetails(errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &handler{svc: cfg.Service, logger: logger}
	router.Post("/api/upload", h.upload)
	router.Post("/api/confirm-understanding-stream", h.confirmStream)

	api := humachi.New(router, huma.DefaultConfig("AI Virtual Lab API", version))
	registerMeta(api, cfg.Service, version, cfg.CompletionConfigured)
	registerProjects(api, cfg.Service)

	return router
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func errorDetails(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return map[string]any{"errors": msgs}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var pe *session.PhaseError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &pe):
		return newAPIError(http.StatusBadRequest, "phase_mismatch", err.Error(), map[string]any{
			"current":  pe.Current,
			"expected": pe.Expected,
		})
	case errors.Is(err, session.ErrInvalidSelection):
		return newAPIError(http.StatusBadRequest, "invalid_selection", err.Error(), nil)
	case errors.Is(err, docparse.ErrUnsupportedType):
		return newAPIError(http.StatusBadRequest, "unsupported_type", err.Error(), nil)
	case errors.Is(err, docparse.ErrTooShort):
		return newAPIError(http.StatusBadRequest, "too_short", err.Error(), nil)
	case errors.Is(err, project.ErrInvalidRequest):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, project.ErrAnalysisFailed):
		return newAPIError(http.StatusInternalServerError, "analysis_failed", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// writeError renders err in the API error envelope for handlers outside huma.
func writeError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	json.NewEncoder(w).Encode(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

func registerMeta(api huma.API, svc *project.Service, version string, completionConfigured bool) {
	huma.Register(api, huma.Operation{
		OperationID: "root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "API banner",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BannerBody `json:"body"`
	}, error) {
		return &struct {
			Body BannerBody `json:"body"`
		}{Body: BannerBody{Message: "AI Virtual Lab API", Version: version}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthBody `json:"body"`
	}, error) {
		return &struct {
			Body HealthBody `json:"body"`
		}{Body: HealthBody{
			Status:               "healthy",
			CompletionConfigured: completionConfigured,
			Sessions:             svc.Sessions(),
			Version:              version,
		}}, nil
	})
}

func registerProjects(api huma.API, svc *project.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "confirm-understanding",
		Method:      http.MethodPost,
		Path:        "/api/confirm-understanding",
		Summary:     "Confirm extracted facts and run the full analysis",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body ConfirmBody `json:"body"`
	}) (*struct {
		Body *project.ConfirmResult `json:"body"`
	}, error) {
		res, err := svc.Confirm(ctx, input.Body.request())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *project.ConfirmResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finalize-workflow",
		Method:      http.MethodPost,
		Path:        "/api/finalize-workflow",
		Summary:     "Finalize the workflow selections",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body FinalizeBody `json:"body"`
	}) (*struct {
		Body *project.FinalizeResult `json:"body"`
	}, error) {
		res, err := svc.Finalize(ctx, input.Body.request())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *project.FinalizeResult `json:"body"`
		}{Body: res}, nil
	})

	type projectPath struct {
		ProjectID string `path:"project_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "report",
		Method:      http.MethodGet,
		Path:        "/api/report/{project_id}",
		Summary:     "Project audit trail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body *session.Report `json:"body"`
	}, error) {
		rep, err := svc.Report(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *session.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-status",
		Method:      http.MethodGet,
		Path:        "/api/project/{project_id}/status",
		Summary:     "Project status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body *session.Status `json:"body"`
	}, error) {
		st, err := svc.Status(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *session.Status `json:"body"`
		}{Body: st}, nil
	})
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, newAPIError(http.StatusRequestEntityTooLarge, "", "upload exceeds size limit", nil))
			return
		}
		writeError(w, newAPIError(http.StatusBadRequest, "", "multipart field \"file\" is required", nil))
		return
	}
	defer file.Close()

	if _, err := docparse.TypeOf(header.Filename); err != nil {
		writeError(w, handleError(err))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, "", fmt.Sprintf("read upload: %v", err), nil))
		return
	}

	res, err := h.svc.Upload(r.Context(), header.Filename, data)
	if err != nil {
		h.logger.Warn("upload rejected", "filename", header.Filename, "error", err)
		writeError(w, handleError(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) confirmStream(w http.ResponseWriter, r *http.Request) {
	var body ConfirmBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, "", fmt.Sprintf("decode request: %v", err), nil))
		return
	}
	sw := NewSSEWriter(w)
	err := h.svc.ConfirmStream(r.Context(), body.request(), sw.WriteMessage)
	if err == nil {
		return
	}
	if !sw.Started() {
		writeError(w, handleError(err))
		return
	}
	h.logger.Warn("stream aborted", "project_id", body.ProjectID, "error", err)
}
