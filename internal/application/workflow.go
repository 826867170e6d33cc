package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

var (
	// ErrInvalidTransition is returned when an action is not defined for the
	// current phase. The workflow is left unchanged.
	ErrInvalidTransition = errors.New("action not allowed in current phase")

	// ErrBusy is returned when a forward action is requested while another
	// long-running action is in flight.
	ErrBusy = errors.New("another action is in progress")

	// ErrSuperseded is returned by a long-running action whose results were
	// discarded because the session navigated away while it ran.
	ErrSuperseded = errors.New("action superseded by navigation")

	// ErrEmptySelection is returned when generation is requested with nothing selected.
	ErrEmptySelection = errors.New("nothing selected")

	// ErrUnknownFile is returned when a selection names a path that is not a
	// catalogued file.
	ErrUnknownFile = errors.New("file is not in the catalog")

	// ErrUnknownSummary is returned when code generation names an unknown summary.
	ErrUnknownSummary = errors.New("unknown summary")

	// ErrNoContent is returned when none of the selected files could be read.
	ErrNoContent = errors.New("no selected file content could be fetched")

	// ErrNoGeneratedTests guards the phases that require at least one generated test.
	ErrNoGeneratedTests = errors.New("no generated tests")
)

// branchPrefix prefixes the default pull request head branch.
const branchPrefix = "suitegen/tests-"

// Snapshot is a read-only copy of the workflow's session state.
type Snapshot struct {
	Phase         model.Phase
	Busy          bool
	Login         string
	Repository    *model.Repository
	Repositories  []model.Repository
	Selection     []string
	Summaries     []model.TestSummary
	Tests         []model.GeneratedTest
	PipelineState model.PipelineState
	PullRequest   *model.PullRequestResult
	Failures      []model.SubtreeFailure
}

// Workflow is the session state machine. Every action is a function of the
// current phase; actions not defined for it return ErrInvalidTransition and
// change nothing. Long-running actions release the lock during I/O with the
// workflow marked busy; Back and Reset are still accepted and make the
// in-flight action's results stale.
type Workflow struct {
	hosts    driven.RepositoryHostFactory
	provider *HostProvider
	trees    *TreeBuilder
	pipeline *GenerationPipeline
	now      func() time.Time

	mu           sync.Mutex
	phase        model.Phase
	busy         bool
	epoch        uint64
	repositories []model.Repository
	repository   *model.Repository
	catalog      *model.Catalog
	selection    []string
	summaries    []model.TestSummary
	tests        []model.GeneratedTest
	pullRequest  *model.PullRequestResult
}

// NewWorkflow creates a workflow in the landing phase.
func NewWorkflow(
	hosts driven.RepositoryHostFactory,
	provider *HostProvider,
	trees *TreeBuilder,
	pipeline *GenerationPipeline,
) *Workflow {
	return &Workflow{
		hosts:    hosts,
		provider: provider,
		trees:    trees,
		pipeline: pipeline,
		now:      time.Now,
		phase:    model.PhaseLanding,
	}
}

// SetClock overrides the time source used for default branch names.
func (w *Workflow) SetClock(now func() time.Time) {
	w.now = now
}

// Phase returns the current phase.
func (w *Workflow) Phase() model.Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Snapshot returns a copy of the session state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Phase:         w.phase,
		Busy:          w.busy,
		Login:         w.provider.Login(),
		Repositories:  slices.Clone(w.repositories),
		Selection:     slices.Clone(w.selection),
		Summaries:     slices.Clone(w.summaries),
		Tests:         slices.Clone(w.tests),
		PipelineState: w.pipeline.State(),
	}
	if w.repository != nil {
		repo := *w.repository
		snap.Repository = &repo
	}
	if w.pullRequest != nil {
		pr := *w.pullRequest
		pr.Files = slices.Clone(w.pullRequest.Files)
		snap.PullRequest = &pr
	}
	if w.catalog != nil {
		snap.Failures = slices.Clone(w.catalog.Failures)
	}
	return snap
}

// Catalog returns the built tree, or nil outside file browsing and later phases.
// The catalog is not modified after it is built.
func (w *Workflow) Catalog() *model.Catalog {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.catalog
}

// Start moves from landing to authenticating.
func (w *Workflow) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("start", model.PhaseLanding); err != nil {
		return err
	}
	w.transition(model.PhaseAuthenticating)
	return nil
}

// Authenticate validates token against the host and, on success, holds the
// credential handle and moves to repository selection.
func (w *Workflow) Authenticate(ctx context.Context, token string) error {
	epoch, err := w.begin("authenticate", model.PhaseAuthenticating, nil)
	if err != nil {
		return err
	}

	host, err := w.hosts(token)
	if err != nil {
		return w.abort(epoch, fmt.Errorf("build repository host: %w", err))
	}
	login, err := host.CurrentUser(ctx)
	if err != nil {
		return w.abort(epoch, fmt.Errorf("authenticate: %w", err))
	}

	return w.complete(epoch, func() {
		w.provider.Replace(host, login)
		slog.Info("session authenticated", "login", login)
		w.transition(model.PhaseRepositorySelection)
	})
}

// ListRepositories fetches the repositories visible to the credential.
func (w *Workflow) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	var host driven.RepositoryHost
	epoch, err := w.begin("list repositories", model.PhaseRepositorySelection, func() error {
		host = w.provider.Get()
		return nil
	})
	if err != nil {
		return nil, err
	}

	repos, err := host.ListRepositories(ctx)
	if err != nil {
		return nil, w.abort(epoch, err)
	}

	err = w.complete(epoch, func() {
		w.repositories = repos
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(repos), nil
}

// SelectRepository builds the tree of fullName ("owner/name") and moves to
// file browsing. A repository that was not listed is addressed by name alone.
func (w *Workflow) SelectRepository(ctx context.Context, fullName string) error {
	owner, name, err := model.SplitFullName(fullName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var (
		repo model.Repository
		host driven.RepositoryHost
	)
	epoch, err := w.begin("select repository", model.PhaseRepositorySelection, func() error {
		host = w.provider.Get()
		repo = model.Repository{FullName: fullName, Owner: owner, Name: name}
		for _, r := range w.repositories {
			if r.FullName == fullName {
				repo = r
				break
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	catalog, err := w.trees.Build(ctx, host, repo)
	if err != nil {
		return w.abort(epoch, err)
	}

	return w.complete(epoch, func() {
		w.repository = &repo
		w.catalog = catalog
		w.selection = nil
		slog.Info("repository tree built",
			"repo", repo.FullName,
			"files", len(catalog.Files()),
			"failed_subtrees", len(catalog.Failures),
		)
		w.transition(model.PhaseFileBrowsing)
	})
}

// SetSelection replaces the selection. Every path must be a catalogued file;
// duplicates are dropped and order is kept.
func (w *Workflow) SetSelection(paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardIdle("set selection", model.PhaseFileBrowsing); err != nil {
		return err
	}

	selection := make([]string, 0, len(paths))
	for _, p := range paths {
		if err := w.checkFile(p); err != nil {
			return err
		}
		if !slices.Contains(selection, p) {
			selection = append(selection, p)
		}
	}
	w.selection = selection
	return nil
}

// ToggleFile adds path to the selection, or removes it when already selected.
func (w *Workflow) ToggleFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardIdle("toggle file", model.PhaseFileBrowsing); err != nil {
		return err
	}
	if err := w.checkFile(path); err != nil {
		return err
	}

	if i := slices.Index(w.selection, path); i >= 0 {
		w.selection = slices.Delete(w.selection, i, i+1)
		return nil
	}
	w.selection = append(w.selection, path)
	return nil
}

// Generate fetches the selected files and runs summary generation, then moves
// to test generation. Files whose content is unavailable are skipped; at least
// one must be fetched.
func (w *Workflow) Generate(ctx context.Context) error {
	var (
		repo      model.Repository
		host      driven.RepositoryHost
		selection []string
	)
	epoch, err := w.begin("generate", model.PhaseFileBrowsing, func() error {
		if len(w.selection) == 0 {
			return ErrEmptySelection
		}
		if !w.pipeline.Configured() {
			return ErrGeneratorNotConfigured
		}
		repo = *w.repository
		host = w.provider.Get()
		selection = slices.Clone(w.selection)
		return nil
	})
	if err != nil {
		return err
	}

	contents := make([]model.SelectedFileContent, 0, len(selection))
	for _, path := range selection {
		text, err := host.ReadFile(ctx, repo.Owner, repo.Name, path)
		if errors.Is(err, driven.ErrContentUnavailable) {
			slog.Warn("skipping file without content", "repo", repo.FullName, "path", path)
			continue
		}
		if err != nil {
			return w.abort(epoch, fmt.Errorf("fetch %s: %w", path, err))
		}
		contents = append(contents, model.SelectedFileContent{Path: path, Content: text})
	}
	if len(contents) == 0 {
		return w.abort(epoch, ErrNoContent)
	}

	summaries, err := w.pipeline.Summarize(ctx, contents)
	if err != nil {
		return w.abort(epoch, err)
	}

	return w.complete(epoch, func() {
		w.summaries = summaries
		w.tests = nil
		w.transition(model.PhaseTestGeneration)
	})
}

// GenerateCode runs code generation for the summaries with the given IDs, in
// the order given, and replaces the generated test set.
func (w *Workflow) GenerateCode(ctx context.Context, summaryIDs []string) ([]model.GeneratedTest, error) {
	var chosen []model.TestSummary
	epoch, err := w.begin("generate code", model.PhaseTestGeneration, func() error {
		if len(summaryIDs) == 0 {
			return ErrEmptySelection
		}
		seen := make(map[string]bool, len(summaryIDs))
		for _, id := range summaryIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			i := slices.IndexFunc(w.summaries, func(s model.TestSummary) bool { return s.ID == id })
			if i < 0 {
				return fmt.Errorf("%w: %s", ErrUnknownSummary, id)
			}
			chosen = append(chosen, w.summaries[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tests, err := w.pipeline.GenerateCode(ctx, chosen)
	if err != nil {
		return nil, w.abort(epoch, err)
	}

	err = w.complete(epoch, func() {
		w.tests = tests
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(tests), nil
}

// OpenTestManagement moves to test management. At least one test must exist.
func (w *Workflow) OpenTestManagement() error {
	return w.openWithTests("open test management", model.PhaseTestManagement)
}

// OpenPullRequestForm moves to pull request creation. At least one test must exist.
func (w *Workflow) OpenPullRequestForm() error {
	return w.openWithTests("open pull request form", model.PhasePRCreation)
}

func (w *Workflow) openWithTests(action string, to model.Phase) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardIdle(action, model.PhaseTestGeneration); err != nil {
		return err
	}
	if len(w.tests) == 0 {
		return ErrNoGeneratedTests
	}
	w.transition(to)
	return nil
}

// SubmitPullRequest writes the generated tests to a new branch, one test file
// per source file, and opens a pull request into the base branch.
func (w *Workflow) SubmitPullRequest(ctx context.Context, req model.PullRequestRequest) (model.PullRequestResult, error) {
	var (
		repo  model.Repository
		host  driven.RepositoryHost
		tests []model.GeneratedTest
	)
	epoch, err := w.begin("submit pull request", model.PhasePRCreation, func() error {
		if len(w.tests) == 0 {
			return ErrNoGeneratedTests
		}
		repo = *w.repository
		host = w.provider.Get()
		tests = slices.Clone(w.tests)
		return nil
	})
	if err != nil {
		return model.PullRequestResult{}, err
	}

	branch := strings.TrimSpace(req.Branch)
	if branch == "" {
		branch = fmt.Sprintf("%s%d", branchPrefix, w.now().Unix())
	}
	base := strings.TrimSpace(req.BaseBranch)
	if base == "" {
		base = host.DefaultBranch(ctx, repo.Owner, repo.Name)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("Add generated tests (%d)", len(tests))
	}
	body := req.Body
	if strings.TrimSpace(body) == "" {
		body = pullRequestBody(tests)
	}

	if err := host.EnsureBranch(ctx, repo.Owner, repo.Name, branch, base); err != nil {
		return model.PullRequestResult{}, w.abort(epoch, fmt.Errorf("ensure branch %s: %w", branch, err))
	}

	files := groupTestFiles(tests)
	written := make([]string, 0, len(files))
	for _, f := range files {
		message := "Add generated tests for " + f.source
		if err := host.WriteFile(ctx, repo.Owner, repo.Name, f.path, f.content, message, branch); err != nil {
			return model.PullRequestResult{}, w.abort(epoch, fmt.Errorf("write %s: %w", f.path, err))
		}
		written = append(written, f.path)
	}

	pr, err := host.OpenPullRequest(ctx, repo.Owner, repo.Name, title, body, branch, base)
	if err != nil {
		return model.PullRequestResult{}, w.abort(epoch, err)
	}

	result := model.PullRequestResult{
		PullRequest: pr,
		Branch:      branch,
		BaseBranch:  base,
		Files:       written,
	}
	err = w.complete(epoch, func() {
		w.pullRequest = &result
		slog.Info("pull request opened", "repo", repo.FullName, "number", pr.Number, "files", len(written))
	})
	if err != nil {
		return model.PullRequestResult{}, err
	}
	return result, nil
}

// Back returns to the previous phase and resets the phase being left. It is
// accepted while an action is in flight; that action's results are discarded.
func (w *Workflow) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.phase {
	case model.PhaseLanding:
		return nil
	case model.PhaseAuthenticating:
		w.transition(model.PhaseLanding)
	case model.PhaseRepositorySelection:
		w.provider.Clear()
		w.repositories = nil
		w.transition(model.PhaseAuthenticating)
	case model.PhaseFileBrowsing:
		w.repository = nil
		w.catalog = nil
		w.selection = nil
		w.pipeline.Reset()
		w.transition(model.PhaseRepositorySelection)
	case model.PhaseTestGeneration:
		w.summaries = nil
		w.tests = nil
		w.pipeline.Reset()
		w.transition(model.PhaseFileBrowsing)
	case model.PhaseTestManagement:
		w.transition(model.PhaseTestGeneration)
	case model.PhasePRCreation:
		w.pullRequest = nil
		w.transition(model.PhaseTestGeneration)
	}

	w.supersede()
	return nil
}

// Reset discards all session state and returns to landing.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.provider.Clear()
	w.pipeline.Reset()
	w.repositories = nil
	w.repository = nil
	w.catalog = nil
	w.selection = nil
	w.summaries = nil
	w.tests = nil
	w.pullRequest = nil
	if w.phase != model.PhaseLanding {
		w.transition(model.PhaseLanding)
	}
	w.supersede()
}

// supersede invalidates any in-flight action. Caller holds mu.
func (w *Workflow) supersede() {
	w.epoch++
	w.busy = false
}

// guard checks the phase. Caller holds mu.
func (w *Workflow) guard(action string, phase model.Phase) error {
	if w.phase != phase {
		return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, action, w.phase)
	}
	return nil
}

// guardIdle checks the phase and that no action is in flight. Caller holds mu.
func (w *Workflow) guardIdle(action string, phase model.Phase) error {
	if err := w.guard(action, phase); err != nil {
		return err
	}
	if w.busy {
		return ErrBusy
	}
	return nil
}

// checkFile verifies path is a file in the catalog. Caller holds mu.
func (w *Workflow) checkFile(path string) error {
	node := w.catalog.Find(path)
	if node == nil || node.IsDir() {
		return fmt.Errorf("%w: %s", ErrUnknownFile, path)
	}
	return nil
}

// begin starts a long-running action: it checks the phase, runs prepare under
// the lock and marks the workflow busy. The returned epoch identifies the action.
func (w *Workflow) begin(action string, phase model.Phase, prepare func() error) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardIdle(action, phase); err != nil {
		return 0, err
	}
	if prepare != nil {
		if err := prepare(); err != nil {
			return 0, err
		}
	}
	w.busy = true
	return w.epoch, nil
}

// complete applies the results of the action started at epoch, unless the
// session navigated away in the meantime.
func (w *Workflow) complete(epoch uint64, apply func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.epoch != epoch {
		slog.Info("discarding results of superseded action", "phase", w.phase)
		return ErrSuperseded
	}
	w.busy = false
	apply()
	return nil
}

// abort ends the action started at epoch with err, leaving the phase unchanged.
func (w *Workflow) abort(epoch uint64, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.epoch == epoch {
		w.busy = false
	}
	return err
}

// transition moves to phase. Caller holds mu.
func (w *Workflow) transition(to model.Phase) {
	from := w.phase
	w.phase = to
	workflowTransitions.WithLabelValues(string(from), string(to)).Inc()
	slog.Debug("workflow transition", "from", from, "to", to)
}

// testFile is one file written to the pull request branch.
type testFile struct {
	source  string
	path    string
	content string
}

// groupTestFiles concatenates the tests of each source file into one test
// file, in the order the sources first appear.
func groupTestFiles(tests []model.GeneratedTest) []testFile {
	var files []testFile
	index := make(map[string]int)
	for _, t := range tests {
		i, ok := index[t.FilePath]
		if !ok {
			i = len(files)
			index[t.FilePath] = i
			files = append(files, testFile{source: t.FilePath, path: model.TestFilePath(t.FilePath)})
		}
		if files[i].content != "" {
			files[i].content += "\n\n"
		}
		files[i].content += strings.TrimRight(t.Code, "\n")
	}
	for i := range files {
		files[i].content += "\n"
	}
	return files
}

func pullRequestBody(tests []model.GeneratedTest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This pull request adds %d generated test(s):\n\n", len(tests))
	for _, t := range tests {
		fmt.Fprintf(&b, "- %s (`%s`, %s)\n", t.Title, t.FilePath, t.TestType)
	}
	return b.String()
}
