package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// ErrContentUnavailable is returned by ReadFile when the remote entry has no
// retrievable text payload (a directory, or a binary without a download URL).
var ErrContentUnavailable = errors.New("file content unavailable")

// HostError is the tagged failure returned for any non-2xx response from the
// repository host. It carries the upstream status code and message.
type HostError struct {
	Op         string // Operation that failed, e.g. "list directory".
	StatusCode int
	Message    string
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: host returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// RepositoryReader defines the read side of the repository host port.
type RepositoryReader interface {
	// CurrentUser returns the login the credential belongs to. It is the
	// credential check performed when a session authenticates.
	CurrentUser(ctx context.Context) (string, error)

	// ListRepositories returns one page of repositories, most recently updated first.
	ListRepositories(ctx context.Context) ([]model.Repository, error)

	// ListDirectory returns one level of entries under path ("" is the root).
	ListDirectory(ctx context.Context, owner, name, path string) ([]model.FileNode, error)

	// ReadFile returns the decoded text of a file. Returns ErrContentUnavailable
	// when there is no retrievable payload.
	ReadFile(ctx context.Context, owner, name, path string) (string, error)

	// DefaultBranch returns the repository's default branch, or "main" when the
	// lookup fails. It never returns an error.
	DefaultBranch(ctx context.Context, owner, name string) string
}

// RepositoryWriter defines the write side of the repository host port.
// It is separate from RepositoryReader so read-only consumers such as the
// tree builder cannot reach it.
type RepositoryWriter interface {
	// EnsureBranch creates newBranch from fromBranch unless it already exists.
	// When fromBranch is missing and is "main" or "master", the other name is
	// tried once before failing.
	EnsureBranch(ctx context.Context, owner, name, newBranch, fromBranch string) error

	// WriteFile creates or updates path on branch. The current revision marker
	// is read first; a concurrent writer between read and write surfaces as a
	// HostError and is not retried.
	WriteFile(ctx context.Context, owner, name, path, content, message, branch string) error

	// OpenPullRequest opens a pull request from head into base.
	OpenPullRequest(ctx context.Context, owner, name, title, body, head, base string) (model.PullRequest, error)
}

// RepositoryHost is the full repository host port used by a workflow session.
type RepositoryHost interface {
	RepositoryReader
	RepositoryWriter
}

// RepositoryHostFactory builds a RepositoryHost bound to a bearer credential.
type RepositoryHostFactory func(token string) (RepositoryHost, error)
