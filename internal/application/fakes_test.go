package application_test

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// fakeHost is an in-memory driven.RepositoryHost. Directory listings come from
// dirs, file texts from files; listErrs and readErrs inject failures per path.
type fakeHost struct {
	mu sync.Mutex

	login    string
	loginErr error
	repos    []model.Repository
	dirs     map[string][]model.FileNode
	files    map[string]string
	listErrs map[string]error
	readErrs map[string]error
	branch   string

	// block, when set, is waited on by ListDirectory before answering.
	block chan struct{}
	// afterList, when set, runs after each successful directory listing.
	afterList func(path string)

	listed       []string
	ensured      []string
	written      map[string]string
	writtenOn    []string
	pullRequests []fakePR
	writeErr     error
	ensureErr    error
	openErr      error
}

type fakePR struct {
	title, body, head, base string
}

var _ driven.RepositoryHost = (*fakeHost)(nil)

func newFakeHost() *fakeHost {
	return &fakeHost{
		login:    "octocat",
		dirs:     map[string][]model.FileNode{},
		files:    map[string]string{},
		listErrs: map[string]error{},
		readErrs: map[string]error{},
		written:  map[string]string{},
		branch:   "main",
	}
}

func dir(path, name string) model.FileNode {
	return model.FileNode{Name: name, Path: path, Type: model.NodeTypeDirectory, Children: []*model.FileNode{}}
}

func file(path, name string) model.FileNode {
	return model.FileNode{Name: name, Path: path, Type: model.NodeTypeFile, Language: model.DetectLanguage(path)}
}

func (h *fakeHost) CurrentUser(context.Context) (string, error) {
	return h.login, h.loginErr
}

func (h *fakeHost) ListRepositories(context.Context) ([]model.Repository, error) {
	return h.repos, nil
}

func (h *fakeHost) ListDirectory(ctx context.Context, _, _, path string) ([]model.FileNode, error) {
	if h.block != nil {
		<-h.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.listed = append(h.listed, path)
	err := h.listErrs[path]
	entries := h.dirs[path]
	h.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if h.afterList != nil {
		h.afterList(path)
	}
	return entries, nil
}

func (h *fakeHost) ReadFile(ctx context.Context, _, _, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := h.readErrs[path]; err != nil {
		return "", err
	}
	text, ok := h.files[path]
	if !ok {
		return "", &driven.HostError{Op: "read file", StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return text, nil
}

func (h *fakeHost) DefaultBranch(context.Context, string, string) string {
	return h.branch
}

func (h *fakeHost) EnsureBranch(_ context.Context, _, _, newBranch, fromBranch string) error {
	h.ensured = append(h.ensured, newBranch+"<-"+fromBranch)
	return h.ensureErr
}

func (h *fakeHost) WriteFile(_ context.Context, _, _, path, content, _, branch string) error {
	if h.writeErr != nil {
		return h.writeErr
	}
	h.written[path] = content
	h.writtenOn = append(h.writtenOn, branch)
	return nil
}

func (h *fakeHost) OpenPullRequest(_ context.Context, _, _, title, body, head, base string) (model.PullRequest, error) {
	if h.openErr != nil {
		return model.PullRequest{}, h.openErr
	}
	h.pullRequests = append(h.pullRequests, fakePR{title: title, body: body, head: head, base: base})
	return model.PullRequest{Number: 12, URL: "https://github.com/acme/api/pull/12"}, nil
}

// fakeKV is an in-memory driven.KVStore whose writes can be made to fail.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failPut bool
	puts    int
}

var _ driven.KVStore = (*fakeKV)(nil)

var errStoreDown = errors.New("store unavailable")

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (kv *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *fakeKV) Put(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.puts++
	if kv.failPut {
		return errStoreDown
	}
	kv.data[key] = append([]byte(nil), value...)
	return nil
}

// failingGenerator fails every call; it stands in for an unreachable AI collaborator.
type failingGenerator struct{}

var errAIDown = errors.New("ai collaborator unavailable")

func (failingGenerator) Summarize(context.Context, model.SelectedFileContent) ([]model.TestSummary, error) {
	return nil, errAIDown
}

func (failingGenerator) GenerateCode(context.Context, model.TestSummary) (model.GeneratedTest, error) {
	return model.GeneratedTest{}, errAIDown
}
