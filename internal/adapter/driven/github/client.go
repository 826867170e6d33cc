// Package github implements the RepositoryHost port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryReader = (*Client)(nil)

const (
	// repositoryPageSize caps ListRepositories to a single page.
	repositoryPageSize = 100

	// fallbackBranch is returned by DefaultBranch when the lookup fails.
	fallbackBranch = "main"
)

// Client implements the driven.RepositoryHost port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with bearer auth)
//
// apiURL overrides the REST endpoint (GitHub Enterprise); empty means api.github.com.
func NewClient(token, apiURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	if apiURL != "" {
		u, err := parseBaseURL(apiURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}

	return &Client{gh: client}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token)

	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// NewHostFactory returns a factory that builds a Client per bearer credential.
func NewHostFactory(apiURL string) driven.RepositoryHostFactory {
	return func(token string) (driven.RepositoryHost, error) {
		if strings.TrimSpace(token) == "" {
			return nil, errors.New("empty credential")
		}
		return NewClient(token, apiURL)
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return u, nil
}

// CurrentUser returns the login of the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", hostError("get current user", resp, err)
	}
	logRateLimit(resp, "user", 0, 1)
	return user.GetLogin(), nil
}

// ListRepositories returns the authenticated user's repositories, most recently
// updated first. Only the first page is fetched.
func (c *Client) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: repositoryPageSize},
	}

	repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, hostError("list repositories", resp, err)
	}

	logRateLimit(resp, "user/repos", 0, len(repos))

	result := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		result = append(result, mapRepository(r))
	}
	return result, nil
}

// ListDirectory returns the entries directly under path. Entries of type "dir"
// become directory nodes; everything else becomes a file node.
func (c *Client) ListDirectory(ctx context.Context, owner, name, path string) ([]model.FileNode, error) {
	file, entries, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return nil, hostError(fmt.Sprintf("list directory %s/%s:%s", owner, name, path), resp, err)
	}
	if file != nil {
		return nil, fmt.Errorf("list directory %s/%s:%s: path is a file", owner, name, path)
	}

	logRateLimit(resp, owner+"/"+name+"/contents/"+path, 0, len(entries))

	nodes := make([]model.FileNode, 0, len(entries))
	for _, entry := range entries {
		nodes = append(nodes, mapContentEntry(entry))
	}
	return nodes, nil
}

// ReadFile returns the decoded text of a file. Inline base64 content is used when
// present; otherwise the download URL is fetched. Directories and entries with
// neither yield driven.ErrContentUnavailable.
func (c *Client) ReadFile(ctx context.Context, owner, name, path string) (string, error) {
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return "", hostError(fmt.Sprintf("read file %s/%s:%s", owner, name, path), resp, err)
	}
	if file == nil {
		return "", fmt.Errorf("read file %s: %w", path, driven.ErrContentUnavailable)
	}

	logRateLimit(resp, owner+"/"+name+"/contents/"+path, 0, 1)

	if file.Content != nil && file.GetEncoding() != "none" {
		content, err := file.GetContent()
		if err == nil {
			return content, nil
		}
		slog.Debug("inline content not decodable, trying download url", "path", path, "error", err)
	}

	if downloadURL := file.GetDownloadURL(); downloadURL != "" {
		return c.download(ctx, downloadURL)
	}

	return "", fmt.Errorf("read file %s: %w", path, driven.ErrContentUnavailable)
}

// download fetches raw file text through the authenticated HTTP client.
func (c *Client) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.gh.Client().Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read download body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &driven.HostError{Op: "download file", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return string(body), nil
}

// DefaultBranch returns the repository's default branch. Any lookup failure
// yields "main".
func (c *Client) DefaultBranch(ctx context.Context, owner, name string) string {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		slog.Warn("default branch lookup failed, using fallback",
			"repo", owner+"/"+name,
			"fallback", fallbackBranch,
			"error", hostError("get repository", resp, err),
		)
		return fallbackBranch
	}

	logRateLimit(resp, owner+"/"+name, 0, 1)

	if branch := repo.GetDefaultBranch(); branch != "" {
		return branch
	}
	return fallbackBranch
}

// mapRepository converts a go-github Repository to a domain model Repository.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository) model.Repository {
	visibility := r.GetVisibility()
	if visibility == "" {
		visibility = "public"
		if r.GetPrivate() {
			visibility = "private"
		}
	}

	return model.Repository{
		ID:          r.GetID(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Owner:       r.GetOwner().GetLogin(),
		Description: r.GetDescription(),
		Language:    r.GetLanguage(),
		Visibility:  visibility,
		UpdatedAt:   r.GetUpdatedAt().Time,
	}
}

// mapContentEntry converts one directory listing entry to a FileNode.
func mapContentEntry(entry *gh.RepositoryContent) model.FileNode {
	if entry.GetType() == "dir" {
		return model.FileNode{
			Name:     entry.GetName(),
			Path:     entry.GetPath(),
			Type:     model.NodeTypeDirectory,
			Children: []*model.FileNode{},
		}
	}

	return model.FileNode{
		Name:     entry.GetName(),
		Path:     entry.GetPath(),
		Type:     model.NodeTypeFile,
		Language: model.DetectLanguage(entry.GetPath()),
	}
}

// hostError converts a go-github failure into a tagged driven.HostError when the
// host answered with a non-2xx status. Transport failures are wrapped as-is.
func hostError(op string, resp *gh.Response, err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &driven.HostError{Op: op, StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
	}
	if resp != nil && resp.Response != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return &driven.HostError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isNotFound reports whether err is a HostError carrying a 404.
func isNotFound(err error) bool {
	var hostErr *driven.HostError
	return errors.As(err, &hostErr) && hostErr.StatusCode == http.StatusNotFound
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
