package application_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// newWorkflowHost returns a host with a small TypeScript repository.
func newWorkflowHost() *fakeHost {
	host := newFakeHost()
	host.repos = []model.Repository{{ID: 1, FullName: "acme/api", Owner: "acme", Name: "api", Language: "TypeScript"}}
	host.dirs[""] = []model.FileNode{dir("src", "src"), file("README.md", "README.md")}
	host.dirs["src"] = []model.FileNode{
		file("src/add.ts", "add.ts"),
		file("src/sub.ts", "sub.ts"),
		file("src/logo.svg", "logo.svg"),
	}
	host.files["src/add.ts"] = "export const add = (a: number, b: number) => a + b;"
	host.files["src/sub.ts"] = "export const sub = (a: number, b: number) => a - b;"
	return host
}

func newWorkflow(host *fakeHost, pipeline *application.GenerationPipeline) *application.Workflow {
	factory := func(token string) (driven.RepositoryHost, error) {
		if token == "" {
			return nil, errors.New("empty credential")
		}
		return host, nil
	}
	if pipeline == nil {
		fallback := application.NewFallbackGenerator()
		pipeline = application.NewGenerationPipeline(fallback, fallback)
	}
	wf := application.NewWorkflow(factory, application.NewHostProvider(), application.NewTreeBuilder(4, nil), pipeline)
	wf.SetClock(func() time.Time { return time.Unix(1700000000, 0) })
	return wf
}

// driveTo advances a fresh workflow to the given phase with all forward actions succeeding.
func driveTo(t *testing.T, wf *application.Workflow, phase model.Phase) {
	t.Helper()
	ctx := context.Background()

	steps := []struct {
		reached model.Phase
		run     func() error
	}{
		{model.PhaseAuthenticating, wf.Start},
		{model.PhaseRepositorySelection, func() error { return wf.Authenticate(ctx, "token") }},
		{model.PhaseFileBrowsing, func() error {
			if _, err := wf.ListRepositories(ctx); err != nil {
				return err
			}
			return wf.SelectRepository(ctx, "acme/api")
		}},
		{model.PhaseTestGeneration, func() error {
			if err := wf.SetSelection([]string{"src/add.ts", "src/sub.ts"}); err != nil {
				return err
			}
			return wf.Generate(ctx)
		}},
		{model.PhaseTestManagement, func() error {
			snap := wf.Snapshot()
			ids := make([]string, 0, len(snap.Summaries))
			for _, s := range snap.Summaries {
				ids = append(ids, s.ID)
			}
			if _, err := wf.GenerateCode(ctx, ids); err != nil {
				return err
			}
			return wf.OpenTestManagement()
		}},
	}

	for _, step := range steps {
		if wf.Phase() == phase {
			return
		}
		require.NoError(t, step.run())
		require.Equal(t, step.reached, wf.Phase())
	}
	require.Equal(t, phase, wf.Phase())
}

func TestWorkflow_HappyPathToPullRequest(t *testing.T) {
	host := newWorkflowHost()
	wf := newWorkflow(host, nil)
	ctx := context.Background()

	driveTo(t, wf, model.PhaseTestManagement)
	require.NoError(t, wf.Back())
	require.Equal(t, model.PhaseTestGeneration, wf.Phase())

	require.NoError(t, wf.OpenPullRequestForm())
	require.Equal(t, model.PhasePRCreation, wf.Phase())

	result, err := wf.SubmitPullRequest(ctx, model.PullRequestRequest{Title: "Add tests"})
	require.NoError(t, err)

	assert.Equal(t, 12, result.Number)
	assert.Equal(t, "suitegen/tests-1700000000", result.Branch)
	assert.Equal(t, "main", result.BaseBranch)
	assert.Equal(t, []string{"src/add.test.ts", "src/sub.test.ts"}, result.Files)
	assert.Equal(t, []string{"suitegen/tests-1700000000<-main"}, host.ensured)
	assert.Contains(t, host.written["src/add.test.ts"], "describe(")
	require.Len(t, host.pullRequests, 1)
	assert.Equal(t, "Add tests", host.pullRequests[0].title)
	assert.Contains(t, host.pullRequests[0].body, "Basic tests for add.ts")

	snap := wf.Snapshot()
	require.NotNil(t, snap.PullRequest)
	assert.Equal(t, model.PhasePRCreation, snap.Phase)
}

func TestWorkflow_InvalidTransitionsAreNoOps(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	ctx := context.Background()

	assert.ErrorIs(t, wf.Authenticate(ctx, "token"), application.ErrInvalidTransition)
	assert.ErrorIs(t, wf.Generate(ctx), application.ErrInvalidTransition)
	assert.ErrorIs(t, wf.OpenPullRequestForm(), application.ErrInvalidTransition)
	assert.Equal(t, model.PhaseLanding, wf.Phase())

	driveTo(t, wf, model.PhaseFileBrowsing)
	before := wf.Snapshot()
	assert.ErrorIs(t, wf.Start(), application.ErrInvalidTransition)
	assert.ErrorIs(t, wf.OpenTestManagement(), application.ErrInvalidTransition)
	assert.Equal(t, before, wf.Snapshot())
}

func TestWorkflow_BackFromFileBrowsingClearsTreeAndSelection(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	driveTo(t, wf, model.PhaseFileBrowsing)
	require.NoError(t, wf.ToggleFile("src/add.ts"))
	require.NotNil(t, wf.Catalog())

	require.NoError(t, wf.Back())

	snap := wf.Snapshot()
	assert.Equal(t, model.PhaseRepositorySelection, snap.Phase)
	assert.Nil(t, wf.Catalog())
	assert.Empty(t, snap.Selection)
	assert.Nil(t, snap.Repository)
	assert.Equal(t, "octocat", snap.Login, "credential survives leaving file browsing")
}

func TestWorkflow_BackFromRepositorySelectionDropsCredential(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	driveTo(t, wf, model.PhaseRepositorySelection)
	_, err := wf.ListRepositories(context.Background())
	require.NoError(t, err)

	require.NoError(t, wf.Back())

	snap := wf.Snapshot()
	assert.Equal(t, model.PhaseAuthenticating, snap.Phase)
	assert.Empty(t, snap.Login)
	assert.Empty(t, snap.Repositories)
}

func TestWorkflow_BackTable(t *testing.T) {
	tests := []struct {
		from model.Phase
		to   model.Phase
	}{
		{model.PhaseLanding, model.PhaseLanding},
		{model.PhaseAuthenticating, model.PhaseLanding},
		{model.PhaseRepositorySelection, model.PhaseAuthenticating},
		{model.PhaseFileBrowsing, model.PhaseRepositorySelection},
		{model.PhaseTestGeneration, model.PhaseFileBrowsing},
		{model.PhaseTestManagement, model.PhaseTestGeneration},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			wf := newWorkflow(newWorkflowHost(), nil)
			driveTo(t, wf, tt.from)

			require.NoError(t, wf.Back())
			assert.Equal(t, tt.to, wf.Phase())
		})
	}
}

func TestWorkflow_BackFromTestGenerationResetsPipeline(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	driveTo(t, wf, model.PhaseTestGeneration)
	require.Equal(t, model.PipelineSummarized, wf.Snapshot().PipelineState)

	require.NoError(t, wf.Back())

	snap := wf.Snapshot()
	assert.Empty(t, snap.Summaries)
	assert.Equal(t, model.PipelineIdle, snap.PipelineState)
	assert.Equal(t, []string{"src/add.ts", "src/sub.ts"}, snap.Selection)

	require.NoError(t, wf.Generate(context.Background()), "generation can run again after going back")
}

func TestWorkflow_PRCreationUnreachableWithoutTests(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	driveTo(t, wf, model.PhaseTestGeneration)

	assert.ErrorIs(t, wf.OpenPullRequestForm(), application.ErrNoGeneratedTests)
	assert.ErrorIs(t, wf.OpenTestManagement(), application.ErrNoGeneratedTests)
	assert.Equal(t, model.PhaseTestGeneration, wf.Phase())

	_, err := wf.SubmitPullRequest(context.Background(), model.PullRequestRequest{})
	assert.ErrorIs(t, err, application.ErrInvalidTransition)
}

func TestWorkflow_AuthenticationFailureBlocksTransition(t *testing.T) {
	host := newWorkflowHost()
	host.loginErr = &driven.HostError{Op: "get current user", StatusCode: http.StatusUnauthorized, Message: "Bad credentials"}
	wf := newWorkflow(host, nil)
	require.NoError(t, wf.Start())

	err := wf.Authenticate(context.Background(), "bad")

	var hostErr *driven.HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, model.PhaseAuthenticating, wf.Phase())
	assert.False(t, wf.Snapshot().Busy)

	assert.Error(t, wf.Authenticate(context.Background(), ""))
}

func TestWorkflow_SelectionMustBeCataloguedFiles(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	driveTo(t, wf, model.PhaseFileBrowsing)

	assert.ErrorIs(t, wf.SetSelection([]string{"src/logo.svg"}), application.ErrUnknownFile)
	assert.ErrorIs(t, wf.ToggleFile("src"), application.ErrUnknownFile)
	assert.ErrorIs(t, wf.Generate(context.Background()), application.ErrEmptySelection)

	require.NoError(t, wf.SetSelection([]string{"src/sub.ts", "src/add.ts", "src/sub.ts"}))
	assert.Equal(t, []string{"src/sub.ts", "src/add.ts"}, wf.Snapshot().Selection)

	require.NoError(t, wf.ToggleFile("src/sub.ts"))
	assert.Equal(t, []string{"src/add.ts"}, wf.Snapshot().Selection)
}

func TestWorkflow_GenerateSkipsUnavailableContent(t *testing.T) {
	host := newWorkflowHost()
	host.readErrs["src/sub.ts"] = driven.ErrContentUnavailable
	wf := newWorkflow(host, nil)
	driveTo(t, wf, model.PhaseFileBrowsing)

	require.NoError(t, wf.SetSelection([]string{"src/add.ts", "src/sub.ts"}))
	require.NoError(t, wf.Generate(context.Background()))

	snap := wf.Snapshot()
	require.Len(t, snap.Summaries, 1)
	assert.Equal(t, "src/add.ts", snap.Summaries[0].FilePath)
}

func TestWorkflow_GenerateFailsWhenNothingFetched(t *testing.T) {
	host := newWorkflowHost()
	host.readErrs["src/add.ts"] = driven.ErrContentUnavailable
	wf := newWorkflow(host, nil)
	driveTo(t, wf, model.PhaseFileBrowsing)

	require.NoError(t, wf.SetSelection([]string{"src/add.ts"}))
	assert.ErrorIs(t, wf.Generate(context.Background()), application.ErrNoContent)
	assert.Equal(t, model.PhaseFileBrowsing, wf.Phase())
}

func TestWorkflow_GenerateWithoutAIKey(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), application.NewGenerationPipeline(nil, nil))
	driveTo(t, wf, model.PhaseFileBrowsing)
	require.NoError(t, wf.ToggleFile("src/add.ts"))

	assert.ErrorIs(t, wf.Generate(context.Background()), application.ErrGeneratorNotConfigured)
	assert.Equal(t, model.PhaseFileBrowsing, wf.Phase())
}

func TestWorkflow_GenerateCodeReplacesTestsAndRejectsUnknownIDs(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	driveTo(t, wf, model.PhaseTestGeneration)
	ctx := context.Background()
	summaries := wf.Snapshot().Summaries
	require.Len(t, summaries, 2)

	_, err := wf.GenerateCode(ctx, []string{"missing"})
	assert.ErrorIs(t, err, application.ErrUnknownSummary)

	first, err := wf.GenerateCode(ctx, []string{summaries[0].ID, summaries[1].ID})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := wf.GenerateCode(ctx, []string{summaries[1].ID})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, summaries[1].ID, second[0].SummaryID)
	assert.Len(t, wf.Snapshot().Tests, 1)
}

func TestWorkflow_BackWhileBusyDiscardsResults(t *testing.T) {
	host := newWorkflowHost()
	wf := newWorkflow(host, nil)
	driveTo(t, wf, model.PhaseRepositorySelection)

	host.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- wf.SelectRepository(context.Background(), "acme/api")
	}()

	require.Eventually(t, func() bool { return wf.Snapshot().Busy }, time.Second, time.Millisecond)
	_, err := wf.ListRepositories(context.Background())
	assert.ErrorIs(t, err, application.ErrBusy)

	require.NoError(t, wf.Back())
	close(host.block)

	assert.ErrorIs(t, <-done, application.ErrSuperseded)
	assert.Equal(t, model.PhaseAuthenticating, wf.Phase())
	assert.Nil(t, wf.Catalog())
}

func TestWorkflow_CancelledSelectRepositoryKeepsPhase(t *testing.T) {
	host := newWorkflowHost()
	wf := newWorkflow(host, nil)
	driveTo(t, wf, model.PhaseRepositorySelection)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host.afterList = func(path string) {
		if path == "" {
			cancel()
		}
	}

	err := wf.SelectRepository(ctx, "acme/api")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.PhaseRepositorySelection, wf.Phase())
	assert.Nil(t, wf.Catalog())
	assert.False(t, wf.Snapshot().Busy)
}

func TestWorkflow_ResetDiscardsEverything(t *testing.T) {
	wf := newWorkflow(newWorkflowHost(), nil)
	driveTo(t, wf, model.PhaseTestManagement)

	wf.Reset()

	snap := wf.Snapshot()
	assert.Equal(t, model.PhaseLanding, snap.Phase)
	assert.Empty(t, snap.Login)
	assert.Empty(t, snap.Summaries)
	assert.Empty(t, snap.Tests)
	assert.Nil(t, snap.Repository)
	assert.Equal(t, model.PipelineIdle, snap.PipelineState)
}

func TestWorkflow_SubmitPullRequestSurfacesWriteConflict(t *testing.T) {
	host := newWorkflowHost()
	wf := newWorkflow(host, nil)
	driveTo(t, wf, model.PhaseTestManagement)
	require.NoError(t, wf.Back())
	require.NoError(t, wf.OpenPullRequestForm())

	host.writeErr = &driven.HostError{Op: "update file", StatusCode: http.StatusConflict, Message: "sha mismatch"}
	_, err := wf.SubmitPullRequest(context.Background(), model.PullRequestRequest{Branch: "tests", BaseBranch: "develop"})

	var hostErr *driven.HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, http.StatusConflict, hostErr.StatusCode)
	assert.Equal(t, []string{"tests<-develop"}, host.ensured)
	assert.Empty(t, host.pullRequests)
	assert.False(t, wf.Snapshot().Busy)
}
