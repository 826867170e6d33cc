package httphandler

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// ListSuites returns all test suites.
func (h *Handler) ListSuites(w http.ResponseWriter, _ *http.Request) {
	suites := h.suites.List()

	resp := make([]SuiteResponse, 0, len(suites))
	for _, s := range suites {
		resp = append(resp, toSuiteResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateSuite creates an empty suite.
func (h *Handler) CreateSuite(w http.ResponseWriter, r *http.Request) {
	var req CreateSuiteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	suite, err := h.suites.Create(r.Context(), application.CreateSuiteInput{
		Name:        req.Name,
		Description: req.Description,
		Framework:   req.Framework,
		Language:    req.Language,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to create suite")
		return
	}

	writeJSON(w, http.StatusCreated, toSuiteResponse(suite))
}

// GetSuite returns one suite.
func (h *Handler) GetSuite(w http.ResponseWriter, r *http.Request) {
	suite, err := h.suites.Get(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to get suite")
		return
	}
	writeJSON(w, http.StatusOK, toSuiteResponse(suite))
}

// UpdateSuite edits suite metadata.
func (h *Handler) UpdateSuite(w http.ResponseWriter, r *http.Request) {
	var req UpdateSuiteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	suite, err := h.suites.UpdateSuite(r.Context(), id, model.SuitePatch{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to update suite", "suite_id", id)
		return
	}
	writeJSON(w, http.StatusOK, toSuiteResponse(suite))
}

// DeleteSuite removes a suite.
func (h *Handler) DeleteSuite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.suites.DeleteSuite(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to delete suite", "suite_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportSuite renders a suite. The format query parameter defaults to json.
func (h *Handler) ExportSuite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = string(model.ExportFormatJSON)
	}

	export, err := h.suites.Export(id, model.ExportFormat(format))
	if err != nil {
		h.writeServiceError(w, err, "failed to export suite", "suite_id", id)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "suite-"+id+"."+export.Extension))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

// PromoteTest copies a generated test of the current session into a suite.
func (h *Handler) PromoteTest(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tests := h.workflow.Snapshot().Tests
	i := slices.IndexFunc(tests, func(t model.GeneratedTest) bool { return t.ID == req.TestID })
	if i < 0 {
		writeError(w, http.StatusNotFound, "generated test not found")
		return
	}

	id := r.PathValue("id")
	tc, err := h.suites.Promote(r.Context(), id, tests[i], req.Title, req.Description)
	if err != nil {
		h.writeServiceError(w, err, "failed to promote test", "suite_id", id, "test_id", req.TestID)
		return
	}
	writeJSON(w, http.StatusCreated, toTestCaseResponse(tc))
}

// UpdateTestCase edits one test case.
func (h *Handler) UpdateTestCase(w http.ResponseWriter, r *http.Request) {
	var req UpdateTestCaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, caseID := r.PathValue("id"), r.PathValue("caseID")
	tc, err := h.suites.UpdateTestCase(r.Context(), id, caseID, req.toTestCasePatch())
	if err != nil {
		h.writeServiceError(w, err, "failed to update test case", "suite_id", id, "case_id", caseID)
		return
	}
	writeJSON(w, http.StatusOK, toTestCaseResponse(tc))
}

// DeleteTestCase removes one test case.
func (h *Handler) DeleteTestCase(w http.ResponseWriter, r *http.Request) {
	id, caseID := r.PathValue("id"), r.PathValue("caseID")
	if err := h.suites.DeleteTestCase(r.Context(), id, caseID); err != nil {
		h.writeServiceError(w, err, "failed to delete test case", "suite_id", id, "case_id", caseID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
