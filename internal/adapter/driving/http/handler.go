package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// maxBodyBytes caps request bodies; test code edits are the largest payloads.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	workflow *application.Workflow
	suites   *application.SuiteService
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	workflow *application.Workflow,
	suites *application.SuiteService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		workflow: workflow,
		suites:   suites,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Workflow session.
	mux.HandleFunc("GET /api/v1/workflow", h.GetWorkflow)
	mux.HandleFunc("POST /api/v1/workflow/start", h.Start)
	mux.HandleFunc("POST /api/v1/workflow/authenticate", h.Authenticate)
	mux.HandleFunc("GET /api/v1/workflow/repositories", h.ListRepositories)
	mux.HandleFunc("POST /api/v1/workflow/repository", h.SelectRepository)
	mux.HandleFunc("GET /api/v1/workflow/tree", h.GetTree)
	mux.HandleFunc("POST /api/v1/workflow/selection", h.SetSelection)
	mux.HandleFunc("POST /api/v1/workflow/toggle", h.ToggleFile)
	mux.HandleFunc("POST /api/v1/workflow/generate", h.Generate)
	mux.HandleFunc("POST /api/v1/workflow/codes", h.GenerateCode)
	mux.HandleFunc("POST /api/v1/workflow/manage", h.OpenTestManagement)
	mux.HandleFunc("POST /api/v1/workflow/pull-request/open", h.OpenPullRequestForm)
	mux.HandleFunc("POST /api/v1/workflow/pull-request", h.SubmitPullRequest)
	mux.HandleFunc("POST /api/v1/workflow/back", h.Back)
	mux.HandleFunc("POST /api/v1/workflow/reset", h.Reset)

	// Suites.
	mux.HandleFunc("GET /api/v1/suites", h.ListSuites)
	mux.HandleFunc("POST /api/v1/suites", h.CreateSuite)
	mux.HandleFunc("GET /api/v1/suites/{id}", h.GetSuite)
	mux.HandleFunc("PATCH /api/v1/suites/{id}", h.UpdateSuite)
	mux.HandleFunc("DELETE /api/v1/suites/{id}", h.DeleteSuite)
	mux.HandleFunc("GET /api/v1/suites/{id}/export", h.ExportSuite)
	mux.HandleFunc("POST /api/v1/suites/{id}/cases", h.PromoteTest)
	mux.HandleFunc("PATCH /api/v1/suites/{id}/cases/{caseID}", h.UpdateTestCase)
	mux.HandleFunc("DELETE /api/v1/suites/{id}/cases/{caseID}", h.DeleteTestCase)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeBody decodes a JSON request body into v. It writes a 400 and returns
// false when the body is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps application and host errors onto HTTP statuses.
// Unexpected errors are logged and reported as 500 without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, args ...any) {
	var hostErr *driven.HostError

	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, application.ErrEmptySelection),
		errors.Is(err, application.ErrUnknownFile),
		errors.Is(err, application.ErrUnknownSummary):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrSuiteNotFound),
		errors.Is(err, application.ErrTestCaseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrInvalidTransition),
		errors.Is(err, application.ErrBusy),
		errors.Is(err, application.ErrSuperseded),
		errors.Is(err, application.ErrNoGeneratedTests),
		errors.Is(err, application.ErrPipelineState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, application.ErrGeneratorNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &hostErr):
		h.logger.Warn(msg, append(args, "status", hostErr.StatusCode, "error", err)...)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error(msg, append(args, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
