package model

import "time"

// TestCaseStatus tracks the review state of a promoted test case.
type TestCaseStatus string

const (
	TestCaseStatusDraft       TestCaseStatus = "draft"
	TestCaseStatusReady       TestCaseStatus = "ready"
	TestCaseStatusNeedsReview TestCaseStatus = "needs-review"
)

// TestSuite is a named, persisted collection of test cases. Suites never
// reference each other.
type TestSuite struct {
	ID          string
	Name        string
	Description string
	Tags        []string // Set semantics: deduplicated, insertion order kept.
	Framework   string
	Language    string
	TestCases   []TestCase
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TestCase is an independently editable copy of a GeneratedTest promoted into a suite.
type TestCase struct {
	ID           string
	Title        string
	Description  string
	Code         string
	TestType     TestType
	Priority     Priority
	Status       TestCaseStatus
	FilePath     string
	FunctionName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TestCasePatch carries the editable fields of a TestCase. Nil fields are left unchanged.
type TestCasePatch struct {
	Title       *string
	Description *string
	Code        *string
	TestType    *TestType
	Priority    *Priority
	Status      *TestCaseStatus
}

// SuitePatch carries the editable metadata of a TestSuite. Nil fields are left unchanged.
type SuitePatch struct {
	Name        *string
	Description *string
	Tags        []string // Replaces the tag set when non-nil.
}

// ExportFormat selects the projection produced by a suite export.
type ExportFormat string

const (
	ExportFormatJSON     ExportFormat = "json"
	ExportFormatYAML     ExportFormat = "yaml"
	ExportFormatCode     ExportFormat = "code"
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatHTML     ExportFormat = "html"
)
