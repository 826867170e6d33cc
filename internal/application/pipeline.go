package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

var (
	// ErrGeneratorNotConfigured is returned by generation calls when no AI
	// collaborator is configured.
	ErrGeneratorNotConfigured = errors.New("text generator not configured: set SUITEGEN_AI_API_KEY")

	// ErrPipelineState is returned when a phase is started from a state that
	// does not allow it.
	ErrPipelineState = errors.New("pipeline state does not allow this phase")
)

// GenerationPipeline runs the two generation phases for one session. Items are
// processed one at a time in input order; every failure of the primary
// generator is replaced by fallback output for that item only.
type GenerationPipeline struct {
	summarizer driven.SummaryGenerator
	coder      driven.CodeGenerator
	fallback   *FallbackGenerator

	mu    sync.Mutex
	state model.PipelineState
	epoch uint64
}

// NewGenerationPipeline creates a pipeline over the given primary generators.
// Nil generators leave the pipeline unconfigured: both phases then return
// ErrGeneratorNotConfigured.
func NewGenerationPipeline(summarizer driven.SummaryGenerator, coder driven.CodeGenerator) *GenerationPipeline {
	return &GenerationPipeline{
		summarizer: summarizer,
		coder:      coder,
		fallback:   NewFallbackGenerator(),
		state:      model.PipelineIdle,
	}
}

// Configured reports whether primary generators are present.
func (p *GenerationPipeline) Configured() bool {
	return p.summarizer != nil && p.coder != nil
}

// State returns the current pipeline state.
func (p *GenerationPipeline) State() model.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset returns the pipeline to idle. A phase still running when Reset is
// called finishes without touching the state.
func (p *GenerationPipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = model.PipelineIdle
	p.epoch++
}

// enter moves the pipeline into next when the current state is one of from.
// It returns the state it left so a cancelled phase can restore it.
func (p *GenerationPipeline) enter(next model.PipelineState, from ...model.PipelineState) (uint64, model.PipelineState, error) {
	if !p.Configured() {
		return 0, "", ErrGeneratorNotConfigured
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range from {
		if p.state == s {
			p.state = next
			return p.epoch, s, nil
		}
	}
	return 0, "", fmt.Errorf("%w: cannot enter %s from %s", ErrPipelineState, next, p.state)
}

// leave moves the pipeline into next unless it was reset since epoch.
func (p *GenerationPipeline) leave(epoch uint64, next model.PipelineState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch == epoch {
		p.state = next
	}
}

// Summarize runs phase 1 over files. Each file yields at least one summary and
// every summary gets a fresh unique ID. Allowed only from idle. A cancelled
// ctx returns its error with no summaries and the pipeline back in idle.
func (p *GenerationPipeline) Summarize(ctx context.Context, files []model.SelectedFileContent) ([]model.TestSummary, error) {
	epoch, prev, err := p.enter(model.PipelineSummarizing, model.PipelineIdle)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var summaries []model.TestSummary
	for _, file := range files {
		produced, err := p.summarizer.Summarize(ctx, file)
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.leave(epoch, prev)
			return nil, fmt.Errorf("summarize %s: %w", file.Path, ctxErr)
		}
		if err != nil || len(produced) == 0 {
			slog.Warn("summary generation failed, using fallback", "path", file.Path, "error", err)
			generationCalls.WithLabelValues(phaseSummary, "fallback").Inc()
			produced, _ = p.fallback.Summarize(ctx, file)
		} else {
			generationCalls.WithLabelValues(phaseSummary, "ok").Inc()
		}

		for _, s := range produced {
			s.ID = uuid.NewString()
			s.FilePath = file.Path
			summaries = append(summaries, s)
		}
	}
	generationDuration.WithLabelValues(phaseSummary).Observe(time.Since(start).Seconds())

	slog.Info("summaries generated", "files", len(files), "summaries", len(summaries))

	p.leave(epoch, model.PipelineSummarized)
	return summaries, nil
}

// GenerateCode runs phase 2 over summaries and returns exactly one test per
// summary, in input order, each with non-empty code. Allowed from summarized
// or coded. A cancelled ctx returns its error and restores the prior state.
func (p *GenerationPipeline) GenerateCode(ctx context.Context, summaries []model.TestSummary) ([]model.GeneratedTest, error) {
	epoch, prev, err := p.enter(model.PipelineCoding, model.PipelineSummarized, model.PipelineCoded)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tests := make([]model.GeneratedTest, 0, len(summaries))
	for _, summary := range summaries {
		generated, err := p.coder.GenerateCode(ctx, summary)
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.leave(epoch, prev)
			return nil, fmt.Errorf("generate code for %q: %w", summary.Title, ctxErr)
		}
		if err != nil || strings.TrimSpace(generated.Code) == "" {
			slog.Warn("code generation failed, using fallback skeleton",
				"summary", summary.Title,
				"test_type", summary.TestType,
				"error", err,
			)
			generationCalls.WithLabelValues(phaseCode, "fallback").Inc()
			generated, _ = p.fallback.GenerateCode(ctx, summary)
		} else {
			generationCalls.WithLabelValues(phaseCode, "ok").Inc()
		}

		tests = append(tests, completeTest(generated, summary))
	}
	generationDuration.WithLabelValues(phaseCode).Observe(time.Since(start).Seconds())

	slog.Info("tests generated", "summaries", len(summaries), "tests", len(tests))

	p.leave(epoch, model.PipelineCoded)
	return tests, nil
}

// completeTest assigns an ID and copies the summary fields onto the test.
func completeTest(t model.GeneratedTest, s model.TestSummary) model.GeneratedTest {
	t.ID = uuid.NewString()
	t.SummaryID = s.ID
	t.Title = s.Title
	t.Description = s.Description
	t.Framework = model.DefaultFramework
	t.Language = model.DetectLanguage(s.FilePath)
	t.FilePath = s.FilePath
	t.FunctionName = s.FunctionName
	t.TestType = s.TestType
	t.Priority = s.Priority
	return t
}
