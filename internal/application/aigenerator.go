package application

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// ErrNoUsableSummaries is returned when a reply parses but yields no valid item.
var ErrNoUsableSummaries = errors.New("reply contained no usable summaries")

// ErrEmptyCode is returned when a code reply is empty after fence stripping.
var ErrEmptyCode = errors.New("reply contained no code")

var (
	_ driven.SummaryGenerator = (*AIGenerator)(nil)
	_ driven.CodeGenerator    = (*AIGenerator)(nil)
)

const summarySystemPrompt = `You are a senior software engineer who plans unit, integration and edge-case tests.
Respond with a JSON array only. Each element must be an object with these keys:
"title" (string), "description" (string), "testType" ("unit" | "integration" | "edge-case"),
"priority" ("high" | "medium" | "low"), "estimatedComplexity" (integer 1-5),
and optionally "functionName" (string, the function under test).
Produce between 3 and 8 elements.`

const codeSystemPrompt = `You are a senior software engineer who writes complete, runnable tests.
Use the Jest test framework (describe, it, expect).
Respond with the test source code only: no explanations, no markdown, no code fences.`

// DefaultGenerationParams returns the sampling parameters used for both phases.
func DefaultGenerationParams() driven.GenerationParams {
	temperature := float32(0.7)
	topP := float32(0.95)
	topK := 40
	maxTokens := 8192
	return driven.GenerationParams{
		Temperature: &temperature,
		TopP:        &topP,
		TopK:        &topK,
		MaxTokens:   &maxTokens,
	}
}

// AIGenerator produces summaries and code through the AI collaborator. Its
// errors are converted into fallback output by the pipeline.
type AIGenerator struct {
	text   driven.TextGenerator
	params driven.GenerationParams
}

// NewAIGenerator creates an AIGenerator over text with the given parameters.
func NewAIGenerator(text driven.TextGenerator, params driven.GenerationParams) *AIGenerator {
	return &AIGenerator{text: text, params: params}
}

// Summarize asks for 3-8 structured test summaries for one file.
func (g *AIGenerator) Summarize(ctx context.Context, file model.SelectedFileContent) ([]model.TestSummary, error) {
	prompt := driven.Prompt{
		System: summarySystemPrompt,
		User: fmt.Sprintf("Plan tests for the file %s (%s).\n\nFile content:\n%s",
			file.Path, model.DetectLanguage(file.Path), file.Content),
	}

	reply, err := g.text.Generate(ctx, prompt, g.params)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", file.Path, err)
	}

	summaries, err := parseSummaries(reply, file.Path)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", file.Path, err)
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("summarize %s: %w", file.Path, ErrNoUsableSummaries)
	}
	return summaries, nil
}

// GenerateCode asks for runnable test code for one summary in the language of
// its source file.
func (g *AIGenerator) GenerateCode(ctx context.Context, summary model.TestSummary) (model.GeneratedTest, error) {
	prompt := driven.Prompt{
		System: codeSystemPrompt,
		User:   codePrompt(summary),
	}

	reply, err := g.text.Generate(ctx, prompt, g.params)
	if err != nil {
		return model.GeneratedTest{}, fmt.Errorf("generate code for %q: %w", summary.Title, err)
	}

	code := stripCodeFences(reply)
	if code == "" {
		return model.GeneratedTest{}, fmt.Errorf("generate code for %q: %w", summary.Title, ErrEmptyCode)
	}
	return model.GeneratedTest{Code: code}, nil
}

func codePrompt(s model.TestSummary) string {
	prompt := fmt.Sprintf("Write %s tests in %s for the module %s (import it from '%s').\n",
		s.TestType, model.DetectLanguage(s.FilePath), path.Base(s.FilePath), model.TrimExtension(s.FilePath))
	prompt += fmt.Sprintf("Test: %s\nDescription: %s\nPriority: %s\nEstimated complexity: %d/5\n",
		s.Title, s.Description, s.Priority, s.EstimatedComplexity)
	if s.FunctionName != "" {
		prompt += fmt.Sprintf("Function under test: %s\n", s.FunctionName)
	}
	return prompt
}
