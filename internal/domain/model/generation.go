package model

// TestType classifies a planned test.
type TestType string

const (
	TestTypeUnit        TestType = "unit"
	TestTypeIntegration TestType = "integration"
	TestTypeEdgeCase    TestType = "edge-case"
)

// Priority ranks a planned test.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Complexity bounds for TestSummary.EstimatedComplexity.
const (
	MinComplexity = 1
	MaxComplexity = 5
)

// DefaultFramework is the test-declaration framework every generated test targets.
const DefaultFramework = "jest"

// TestSummary describes one test to write, produced by the first generation
// phase before any code exists. Immutable after creation.
type TestSummary struct {
	ID                  string
	Title               string
	Description         string
	TestType            TestType
	Priority            Priority
	EstimatedComplexity int
	FunctionName        string // Optional.
	FilePath            string
	Fallback            bool // Produced by the deterministic fallback generator.
}

// GeneratedTest is the code produced for one summary. SummaryID is a weak
// reference: the fields needed downstream are copied so the test stays valid
// after the summary leaves the view.
type GeneratedTest struct {
	ID           string
	SummaryID    string
	Title        string
	Description  string
	Code         string
	Framework    string
	Language     string
	FilePath     string
	FunctionName string
	TestType     TestType
	Priority     Priority
	Fallback     bool
}
