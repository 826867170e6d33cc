package httphandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// sessionContext detaches an action from the request's cancellation. Session
// actions commit their results to shared state and run to completion even if
// the client goes away.
func sessionContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// GetWorkflow returns the session state.
func (h *Handler) GetWorkflow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toWorkflowResponse(h.workflow.Snapshot()))
}

// writeWorkflow answers a successful action with the new session state.
func (h *Handler) writeWorkflow(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, toWorkflowResponse(h.workflow.Snapshot()))
}

// Start leaves the landing phase.
func (h *Handler) Start(w http.ResponseWriter, _ *http.Request) {
	if err := h.workflow.Start(); err != nil {
		h.writeServiceError(w, err, "failed to start workflow")
		return
	}
	h.writeWorkflow(w)
}

// Authenticate validates a bearer credential against the repository host.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthenticateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.workflow.Authenticate(sessionContext(r), req.Token); err != nil {
		h.writeServiceError(w, err, "failed to authenticate")
		return
	}
	h.writeWorkflow(w)
}

// ListRepositories returns the repositories visible to the session credential.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.workflow.ListRepositories(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list repositories")
		return
	}
	writeJSON(w, http.StatusOK, toRepositoryResponses(repos))
}

// SelectRepository builds the tree of the chosen repository.
func (h *Handler) SelectRepository(w http.ResponseWriter, r *http.Request) {
	var req SelectRepositoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.workflow.SelectRepository(sessionContext(r), strings.TrimSpace(req.FullName)); err != nil {
		h.writeServiceError(w, err, "failed to select repository", "repo", req.FullName)
		return
	}
	h.writeWorkflow(w)
}

// GetTree returns the catalog of the selected repository.
func (h *Handler) GetTree(w http.ResponseWriter, _ *http.Request) {
	catalog := h.workflow.Catalog()
	if catalog == nil {
		writeError(w, http.StatusNotFound, "no repository tree has been built")
		return
	}
	writeJSON(w, http.StatusOK, toTreeResponse(catalog))
}

// SetSelection replaces the file selection.
func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.workflow.SetSelection(req.Paths); err != nil {
		h.writeServiceError(w, err, "failed to set selection")
		return
	}
	h.writeWorkflow(w)
}

// ToggleFile adds or removes one file from the selection.
func (h *Handler) ToggleFile(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.workflow.ToggleFile(req.Path); err != nil {
		h.writeServiceError(w, err, "failed to toggle file", "path", req.Path)
		return
	}
	h.writeWorkflow(w)
}

// Generate runs summary generation for the selection.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Generate(sessionContext(r)); err != nil {
		h.writeServiceError(w, err, "failed to generate summaries")
		return
	}
	h.writeWorkflow(w)
}

// GenerateCode runs code generation for the chosen summaries.
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	var req GenerateCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tests, err := h.workflow.GenerateCode(sessionContext(r), req.SummaryIDs)
	if err != nil {
		h.writeServiceError(w, err, "failed to generate test code")
		return
	}
	writeJSON(w, http.StatusOK, toGeneratedTestResponses(tests))
}

// OpenTestManagement moves to test management.
func (h *Handler) OpenTestManagement(w http.ResponseWriter, _ *http.Request) {
	if err := h.workflow.OpenTestManagement(); err != nil {
		h.writeServiceError(w, err, "failed to open test management")
		return
	}
	h.writeWorkflow(w)
}

// OpenPullRequestForm moves to pull request creation.
func (h *Handler) OpenPullRequestForm(w http.ResponseWriter, _ *http.Request) {
	if err := h.workflow.OpenPullRequestForm(); err != nil {
		h.writeServiceError(w, err, "failed to open pull request form")
		return
	}
	h.writeWorkflow(w)
}

// SubmitPullRequest commits the generated tests and opens a pull request.
func (h *Handler) SubmitPullRequest(w http.ResponseWriter, r *http.Request) {
	var req PullRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.workflow.SubmitPullRequest(sessionContext(r), model.PullRequestRequest{
		Title:      req.Title,
		Body:       req.Body,
		Branch:     req.Branch,
		BaseBranch: req.BaseBranch,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to submit pull request")
		return
	}
	writeJSON(w, http.StatusCreated, toPullRequestResponse(result))
}

// Back returns to the previous phase.
func (h *Handler) Back(w http.ResponseWriter, _ *http.Request) {
	if err := h.workflow.Back(); err != nil {
		h.writeServiceError(w, err, "failed to go back")
		return
	}
	h.writeWorkflow(w)
}

// Reset discards the session.
func (h *Handler) Reset(w http.ResponseWriter, _ *http.Request) {
	h.workflow.Reset()
	h.writeWorkflow(w)
}
