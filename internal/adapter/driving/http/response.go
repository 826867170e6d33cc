package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// RepositoryResponse is the JSON representation of a host repository.
type RepositoryResponse struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Visibility  string `json:"visibility"`
	UpdatedAt   string `json:"updated_at"`
}

// FileNodeResponse is one node of the repository tree.
type FileNodeResponse struct {
	Name     string             `json:"name"`
	Path     string             `json:"path"`
	Type     string             `json:"type"`
	Language string             `json:"language,omitempty"`
	Children []FileNodeResponse `json:"children,omitempty"`
}

// TreeResponse is the catalog of the selected repository.
type TreeResponse struct {
	Repository RepositoryResponse       `json:"repository"`
	Root       []FileNodeResponse       `json:"root"`
	Failures   []SubtreeFailureResponse `json:"failures"`
}

// SubtreeFailureResponse names a directory whose listing failed.
type SubtreeFailureResponse struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SummaryResponse is the JSON representation of a test summary.
type SummaryResponse struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	TestType            string `json:"test_type"`
	Priority            string `json:"priority"`
	EstimatedComplexity int    `json:"estimated_complexity"`
	FunctionName        string `json:"function_name,omitempty"`
	FilePath            string `json:"file_path"`
	Fallback            bool   `json:"fallback"`
}

// GeneratedTestResponse is the JSON representation of a generated test.
type GeneratedTestResponse struct {
	ID           string `json:"id"`
	SummaryID    string `json:"summary_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Code         string `json:"code"`
	Framework    string `json:"framework"`
	Language     string `json:"language"`
	FilePath     string `json:"file_path"`
	FunctionName string `json:"function_name,omitempty"`
	TestType     string `json:"test_type"`
	Priority     string `json:"priority"`
	Fallback     bool   `json:"fallback"`
}

// PullRequestResponse reports an opened pull request.
type PullRequestResponse struct {
	Number     int      `json:"number"`
	URL        string   `json:"url"`
	Branch     string   `json:"branch"`
	BaseBranch string   `json:"base_branch"`
	Files      []string `json:"files"`
}

// WorkflowResponse is the JSON representation of the session state.
type WorkflowResponse struct {
	Phase         string                   `json:"phase"`
	Busy          bool                     `json:"busy"`
	Login         string                   `json:"login"`
	Repository    *RepositoryResponse      `json:"repository"`
	Repositories  []RepositoryResponse     `json:"repositories"`
	Selection     []string                 `json:"selection"`
	Summaries     []SummaryResponse        `json:"summaries"`
	Tests         []GeneratedTestResponse  `json:"tests"`
	PipelineState string                   `json:"pipeline_state"`
	PullRequest   *PullRequestResponse     `json:"pull_request"`
	Failures      []SubtreeFailureResponse `json:"failures"`
}

// TestCaseResponse is the JSON representation of a suite test case.
type TestCaseResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Code         string `json:"code"`
	TestType     string `json:"test_type"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	FilePath     string `json:"file_path,omitempty"`
	FunctionName string `json:"function_name,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// SuiteResponse is the JSON representation of a test suite.
type SuiteResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Tags        []string           `json:"tags"`
	Framework   string             `json:"framework"`
	Language    string             `json:"language"`
	TestCases   []TestCaseResponse `json:"test_cases"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
}

// AuthenticateRequest is the JSON body for the authenticate endpoint.
type AuthenticateRequest struct {
	Token string `json:"token"`
}

// SelectRepositoryRequest is the JSON body for the select repository endpoint.
type SelectRepositoryRequest struct {
	FullName string `json:"full_name"`
}

// SelectionRequest is the JSON body for replacing the file selection.
type SelectionRequest struct {
	Paths []string `json:"paths"`
}

// ToggleRequest is the JSON body for toggling one file.
type ToggleRequest struct {
	Path string `json:"path"`
}

// GenerateCodeRequest is the JSON body for the code generation endpoint.
type GenerateCodeRequest struct {
	SummaryIDs []string `json:"summary_ids"`
}

// PullRequestRequest is the JSON body for submitting the pull request.
type PullRequestRequest struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
}

// CreateSuiteRequest is the JSON body for creating a suite.
type CreateSuiteRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Framework   string   `json:"framework"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
}

// UpdateSuiteRequest is the JSON body for editing suite metadata.
type UpdateSuiteRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

// PromoteRequest is the JSON body for adding a generated test to a suite.
type PromoteRequest struct {
	TestID      string `json:"test_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTestCaseRequest is the JSON body for editing a test case.
type UpdateTestCaseRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	TestType    *string `json:"test_type"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toRepositoryResponse converts a domain Repository to its JSON representation.
func toRepositoryResponse(r model.Repository) RepositoryResponse {
	return RepositoryResponse{
		ID:          r.ID,
		FullName:    r.FullName,
		Owner:       r.Owner,
		Name:        r.Name,
		Description: r.Description,
		Language:    r.Language,
		Visibility:  r.Visibility,
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

func toRepositoryResponses(repos []model.Repository) []RepositoryResponse {
	resp := make([]RepositoryResponse, 0, len(repos))
	for _, r := range repos {
		resp = append(resp, toRepositoryResponse(r))
	}
	return resp
}

// toFileNodeResponses converts tree nodes recursively.
func toFileNodeResponses(nodes []*model.FileNode) []FileNodeResponse {
	resp := make([]FileNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		node := FileNodeResponse{
			Name:     n.Name,
			Path:     n.Path,
			Type:     string(n.Type),
			Language: n.Language,
		}
		if n.IsDir() {
			node.Children = toFileNodeResponses(n.Children)
		}
		resp = append(resp, node)
	}
	return resp
}

func toFailureResponses(failures []model.SubtreeFailure) []SubtreeFailureResponse {
	resp := make([]SubtreeFailureResponse, 0, len(failures))
	for _, f := range failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		resp = append(resp, SubtreeFailureResponse{Path: f.Path, Error: msg})
	}
	return resp
}

func toTreeResponse(c *model.Catalog) TreeResponse {
	return TreeResponse{
		Repository: toRepositoryResponse(c.Repository),
		Root:       toFileNodeResponses(c.Root),
		Failures:   toFailureResponses(c.Failures),
	}
}

func toSummaryResponse(s model.TestSummary) SummaryResponse {
	return SummaryResponse{
		ID:                  s.ID,
		Title:               s.Title,
		Description:         s.Description,
		TestType:            string(s.TestType),
		Priority:            string(s.Priority),
		EstimatedComplexity: s.EstimatedComplexity,
		FunctionName:        s.FunctionName,
		FilePath:            s.FilePath,
		Fallback:            s.Fallback,
	}
}

func toGeneratedTestResponse(t model.GeneratedTest) GeneratedTestResponse {
	return GeneratedTestResponse{
		ID:           t.ID,
		SummaryID:    t.SummaryID,
		Title:        t.Title,
		Description:  t.Description,
		Code:         t.Code,
		Framework:    t.Framework,
		Language:     t.Language,
		FilePath:     t.FilePath,
		FunctionName: t.FunctionName,
		TestType:     string(t.TestType),
		Priority:     string(t.Priority),
		Fallback:     t.Fallback,
	}
}

func toGeneratedTestResponses(tests []model.GeneratedTest) []GeneratedTestResponse {
	resp := make([]GeneratedTestResponse, 0, len(tests))
	for _, t := range tests {
		resp = append(resp, toGeneratedTestResponse(t))
	}
	return resp
}

func toPullRequestResponse(pr model.PullRequestResult) PullRequestResponse {
	files := pr.Files
	if files == nil {
		files = []string{}
	}
	return PullRequestResponse{
		Number:     pr.Number,
		URL:        pr.URL,
		Branch:     pr.Branch,
		BaseBranch: pr.BaseBranch,
		Files:      files,
	}
}

// toWorkflowResponse converts a workflow snapshot. Collections are always
// arrays, never null.
func toWorkflowResponse(s application.Snapshot) WorkflowResponse {
	resp := WorkflowResponse{
		Phase:         string(s.Phase),
		Busy:          s.Busy,
		Login:         s.Login,
		Repositories:  toRepositoryResponses(s.Repositories),
		Selection:     s.Selection,
		Summaries:     make([]SummaryResponse, 0, len(s.Summaries)),
		Tests:         toGeneratedTestResponses(s.Tests),
		PipelineState: string(s.PipelineState),
		Failures:      toFailureResponses(s.Failures),
	}
	if resp.Selection == nil {
		resp.Selection = []string{}
	}
	for _, sum := range s.Summaries {
		resp.Summaries = append(resp.Summaries, toSummaryResponse(sum))
	}
	if s.Repository != nil {
		repo := toRepositoryResponse(*s.Repository)
		resp.Repository = &repo
	}
	if s.PullRequest != nil {
		pr := toPullRequestResponse(*s.PullRequest)
		resp.PullRequest = &pr
	}
	return resp
}

func toTestCaseResponse(tc model.TestCase) TestCaseResponse {
	return TestCaseResponse{
		ID:           tc.ID,
		Title:        tc.Title,
		Description:  tc.Description,
		Code:         tc.Code,
		TestType:     string(tc.TestType),
		Priority:     string(tc.Priority),
		Status:       string(tc.Status),
		FilePath:     tc.FilePath,
		FunctionName: tc.FunctionName,
		CreatedAt:    formatTime(tc.CreatedAt),
		UpdatedAt:    formatTime(tc.UpdatedAt),
	}
}

// toSuiteResponse converts a domain TestSuite to its JSON representation.
func toSuiteResponse(s model.TestSuite) SuiteResponse {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	cases := make([]TestCaseResponse, 0, len(s.TestCases))
	for _, tc := range s.TestCases {
		cases = append(cases, toTestCaseResponse(tc))
	}
	return SuiteResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Tags:        tags,
		Framework:   s.Framework,
		Language:    s.Language,
		TestCases:   cases,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}

// toTestCasePatch converts an edit request; absent fields stay nil.
func (r UpdateTestCaseRequest) toTestCasePatch() model.TestCasePatch {
	patch := model.TestCasePatch{
		Title:       r.Title,
		Description: r.Description,
		Code:        r.Code,
	}
	if r.TestType != nil {
		v := model.TestType(*r.TestType)
		patch.TestType = &v
	}
	if r.Priority != nil {
		v := model.Priority(*r.Priority)
		patch.Priority = &v
	}
	if r.Status != nil {
		v := model.TestCaseStatus(*r.Status)
		patch.Status = &v
	}
	return patch
}
