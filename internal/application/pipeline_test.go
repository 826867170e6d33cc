package application_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven/mocks"
)

func files(n int) []model.SelectedFileContent {
	out := make([]model.SelectedFileContent, 0, n)
	for i := range n {
		out = append(out, model.SelectedFileContent{Path: fmt.Sprintf("src/f%d.ts", i), Content: "export {}"})
	}
	return out
}

func TestPipeline_SummarizeYieldsAtLeastOnePerFileWithUniqueIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	text := mocks.NewMockTextGenerator(ctrl)
	gomock.InOrder(
		text.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(`[{"title": "a"}, {"title": "b"}, {"title": "c"}]`, nil),
		text.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", errAIDown),
		text.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("no json here", nil),
	)
	ai := application.NewAIGenerator(text, application.DefaultGenerationParams())
	pipeline := application.NewGenerationPipeline(ai, ai)

	input := files(3)
	summaries, err := pipeline.Summarize(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, summaries, 5)
	assert.GreaterOrEqual(t, len(summaries), len(input))

	ids := map[string]bool{}
	for _, s := range summaries {
		assert.NotEmpty(t, s.ID)
		ids[s.ID] = true
	}
	assert.Len(t, ids, len(summaries))

	assert.Equal(t, "src/f0.ts", summaries[0].FilePath)
	assert.Equal(t, "Basic tests for f1.ts", summaries[3].Title)
	assert.True(t, summaries[3].Fallback)
	assert.Equal(t, "Basic tests for f2.ts", summaries[4].Title)
	assert.Equal(t, model.PipelineSummarized, pipeline.State())
}

func TestPipeline_GenerateCodeYieldsExactlyKEvenWhenAllFail(t *testing.T) {
	pipeline := application.NewGenerationPipeline(failingGenerator{}, failingGenerator{})

	summaries, err := pipeline.Summarize(context.Background(), files(4))
	require.NoError(t, err)
	require.Len(t, summaries, 4)

	selected := []model.TestSummary{summaries[2], summaries[0], summaries[3]}
	tests, err := pipeline.GenerateCode(context.Background(), selected)
	require.NoError(t, err)

	require.Len(t, tests, len(selected))
	ids := map[string]bool{}
	for i, tc := range tests {
		assert.NotEmpty(t, tc.Code)
		assert.True(t, tc.Fallback)
		assert.Equal(t, selected[i].ID, tc.SummaryID)
		assert.Equal(t, selected[i].Title, tc.Title)
		assert.Equal(t, selected[i].FilePath, tc.FilePath)
		assert.Equal(t, "TypeScript", tc.Language)
		assert.Equal(t, model.DefaultFramework, tc.Framework)
		ids[tc.ID] = true
	}
	assert.Len(t, ids, 3)
	assert.Equal(t, model.PipelineCoded, pipeline.State())
}

func TestPipeline_EmptyCodeFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	text := mocks.NewMockTextGenerator(ctrl)
	text.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("```\n\n```", nil)

	ai := application.NewAIGenerator(text, application.DefaultGenerationParams())
	pipeline := application.NewGenerationPipeline(application.NewFallbackGenerator(), ai)

	summaries, err := pipeline.Summarize(context.Background(), files(1))
	require.NoError(t, err)

	tests, err := pipeline.GenerateCode(context.Background(), summaries)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.True(t, tests[0].Fallback)
	assert.NotEmpty(t, tests[0].Code)
}

func TestPipeline_StateMachine(t *testing.T) {
	fallback := application.NewFallbackGenerator()
	pipeline := application.NewGenerationPipeline(fallback, fallback)
	ctx := context.Background()

	assert.Equal(t, model.PipelineIdle, pipeline.State())

	_, err := pipeline.GenerateCode(ctx, nil)
	assert.ErrorIs(t, err, application.ErrPipelineState, "coding requires summaries")

	summaries, err := pipeline.Summarize(ctx, files(1))
	require.NoError(t, err)

	_, err = pipeline.Summarize(ctx, files(1))
	assert.ErrorIs(t, err, application.ErrPipelineState, "summarizing is entered once per file set")
	assert.Equal(t, model.PipelineSummarized, pipeline.State())

	_, err = pipeline.GenerateCode(ctx, summaries)
	require.NoError(t, err)
	_, err = pipeline.GenerateCode(ctx, summaries)
	require.NoError(t, err, "coding is re-enterable")

	pipeline.Reset()
	assert.Equal(t, model.PipelineIdle, pipeline.State())
	_, err = pipeline.Summarize(ctx, files(2))
	assert.NoError(t, err)
}

func TestPipeline_NotConfigured(t *testing.T) {
	pipeline := application.NewGenerationPipeline(nil, nil)

	assert.False(t, pipeline.Configured())
	_, err := pipeline.Summarize(context.Background(), files(1))
	assert.ErrorIs(t, err, application.ErrGeneratorNotConfigured)
	assert.Equal(t, model.PipelineIdle, pipeline.State())
}

// cancelOnGenerate makes the AI collaborator cancel the caller's context
// mid-call and fail the way a context-aware client does.
func cancelOnGenerate(cancel context.CancelFunc) func(context.Context, driven.Prompt, driven.GenerationParams) (string, error) {
	return func(ctx context.Context, _ driven.Prompt, _ driven.GenerationParams) (string, error) {
		cancel()
		return "", ctx.Err()
	}
}

func TestPipeline_CancelledSummarizeReturnsToIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	text := mocks.NewMockTextGenerator(ctrl)
	text.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(cancelOnGenerate(cancel))

	ai := application.NewAIGenerator(text, application.DefaultGenerationParams())
	pipeline := application.NewGenerationPipeline(ai, ai)

	summaries, err := pipeline.Summarize(ctx, files(3))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, summaries, "no fallback summaries for a cancelled run")
	assert.Equal(t, model.PipelineIdle, pipeline.State())
}

func TestPipeline_CancelledGenerateCodeRestoresState(t *testing.T) {
	ctrl := gomock.NewController(t)
	text := mocks.NewMockTextGenerator(ctrl)

	ai := application.NewAIGenerator(text, application.DefaultGenerationParams())
	pipeline := application.NewGenerationPipeline(application.NewFallbackGenerator(), ai)

	summaries, err := pipeline.Summarize(context.Background(), files(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	text.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(cancelOnGenerate(cancel))

	tests, err := pipeline.GenerateCode(ctx, summaries)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, tests)
	assert.Equal(t, model.PipelineSummarized, pipeline.State())
}
