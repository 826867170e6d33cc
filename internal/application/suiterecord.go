package application

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// suiteRecord is the persisted and exported shape of a TestSuite. Dates are
// RFC 3339 text.
type suiteRecord struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Tags        []string         `json:"tags" yaml:"tags"`
	Framework   string           `json:"framework" yaml:"framework"`
	Language    string           `json:"language" yaml:"language"`
	TestCases   []testCaseRecord `json:"testCases" yaml:"testCases"`
	CreatedAt   string           `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   string           `json:"updatedAt" yaml:"updatedAt"`
}

type testCaseRecord struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description" yaml:"description"`
	Code         string `json:"code" yaml:"code"`
	TestType     string `json:"testType" yaml:"testType"`
	Priority     string `json:"priority" yaml:"priority"`
	Status       string `json:"status" yaml:"status"`
	FilePath     string `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	FunctionName string `json:"functionName,omitempty" yaml:"functionName,omitempty"`
	CreatedAt    string `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    string `json:"updatedAt" yaml:"updatedAt"`
}

func toSuiteRecord(s model.TestSuite) suiteRecord {
	rec := suiteRecord{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Tags:        s.Tags,
		Framework:   s.Framework,
		Language:    s.Language,
		TestCases:   make([]testCaseRecord, 0, len(s.TestCases)),
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	for _, tc := range s.TestCases {
		rec.TestCases = append(rec.TestCases, testCaseRecord{
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
		})
	}
	return rec
}

func (r suiteRecord) toModel() model.TestSuite {
	suite := model.TestSuite{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Tags:        dedupeTags(r.Tags),
		Framework:   r.Framework,
		Language:    r.Language,
		TestCases:   make([]model.TestCase, 0, len(r.TestCases)),
		CreatedAt:   hydrateTime(r.CreatedAt, "suite", r.ID),
		UpdatedAt:   hydrateTime(r.UpdatedAt, "suite", r.ID),
	}
	for _, tc := range r.TestCases {
		suite.TestCases = append(suite.TestCases, model.TestCase{
			ID:           tc.ID,
			Title:        tc.Title,
			Description:  tc.Description,
			Code:         tc.Code,
			TestType:     normalizeTestType(tc.TestType),
			Priority:     normalizePriority(tc.Priority),
			Status:       normalizeStatus(tc.Status),
			FilePath:     tc.FilePath,
			FunctionName: tc.FunctionName,
			CreatedAt:    hydrateTime(tc.CreatedAt, "test case", tc.ID),
			UpdatedAt:    hydrateTime(tc.UpdatedAt, "test case", tc.ID),
		})
	}
	return suite
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// hydrateTime parses a persisted date. Unparseable values become the zero time.
func hydrateTime(s, kind, id string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := parseTime(s)
	if err != nil {
		slog.Warn("unreadable date in suite store", "kind", kind, "id", id, "value", s)
		return time.Time{}
	}
	return t
}

// parseTime tries the date layouts the store may contain.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

func normalizeStatus(s string) model.TestCaseStatus {
	switch model.TestCaseStatus(s) {
	case model.TestCaseStatusReady, model.TestCaseStatusNeedsReview:
		return model.TestCaseStatus(s)
	default:
		return model.TestCaseStatusDraft
	}
}

// dedupeTags trims tags and drops empty and repeated ones, keeping first occurrence order.
func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
