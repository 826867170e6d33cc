package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryHost = (*Client)(nil)

// alternateDefaults pairs the two conventional default branch names.
var alternateDefaults = map[string]string{
	"main":   "master",
	"master": "main",
}

// EnsureBranch creates newBranch pointing at the head of fromBranch. An existing
// newBranch is left untouched. When fromBranch does not exist and is one of the
// conventional default names, the other name is tried once.
func (c *Client) EnsureBranch(ctx context.Context, owner, name, newBranch, fromBranch string) error {
	_, resp, err := c.gh.Git.GetRef(ctx, owner, name, "heads/"+newBranch)
	if err == nil {
		slog.Debug("branch already exists", "repo", owner+"/"+name, "branch", newBranch)
		return nil
	}
	if lookupErr := hostError("get branch "+newBranch, resp, err); !isNotFound(lookupErr) {
		return lookupErr
	}

	sha, err := c.branchHead(ctx, owner, name, fromBranch)
	if err != nil && isNotFound(err) {
		if alt, ok := alternateDefaults[fromBranch]; ok {
			slog.Info("source branch missing, trying alternate default",
				"repo", owner+"/"+name,
				"branch", fromBranch,
				"alternate", alt,
			)
			sha, err = c.branchHead(ctx, owner, name, alt)
		}
	}
	if err != nil {
		return err
	}

	_, resp, err = c.gh.Git.CreateRef(ctx, owner, name, gh.CreateRef{
		Ref: "refs/heads/" + newBranch,
		SHA: sha,
	})
	if err != nil {
		createErr := hostError("create branch "+newBranch, resp, err)
		var hostErr *driven.HostError
		if errors.As(createErr, &hostErr) &&
			hostErr.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(hostErr.Message), "already exists") {
			return nil
		}
		return createErr
	}

	logRateLimit(resp, owner+"/"+name+"/git/refs", 0, 1)
	return nil
}

// branchHead returns the commit SHA the branch points at.
func (c *Client) branchHead(ctx context.Context, owner, name, branch string) (string, error) {
	ref, resp, err := c.gh.Git.GetRef(ctx, owner, name, "heads/"+branch)
	if err != nil {
		return "", hostError("get branch "+branch, resp, err)
	}
	return ref.GetObject().GetSHA(), nil
}

// WriteFile creates or updates path on branch. The blob SHA of the current
// revision is read first and sent with the update; an absent file is created.
// The read and the write are separate calls, so a concurrent writer in between
// makes the write fail with a conflict, which is returned unchanged.
func (c *Client) WriteFile(ctx context.Context, owner, name, path, content, message, branch string) error {
	sha, err := c.revisionMarker(ctx, owner, name, path, branch)
	if err != nil {
		return err
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		Content: []byte(content),
		Branch:  gh.Ptr(branch),
	}

	if sha != "" {
		opts.SHA = gh.Ptr(sha)
		_, resp, err := c.gh.Repositories.UpdateFile(ctx, owner, name, path, opts)
		if err != nil {
			return hostError("update file "+path, resp, err)
		}
		logRateLimit(resp, owner+"/"+name+"/contents/"+path, 0, 1)
		return nil
	}

	_, resp, err := c.gh.Repositories.CreateFile(ctx, owner, name, path, opts)
	if err != nil {
		return hostError("create file "+path, resp, err)
	}
	logRateLimit(resp, owner+"/"+name+"/contents/"+path, 0, 1)
	return nil
}

// revisionMarker returns the blob SHA of path on branch, or "" when the file
// does not exist there. The read bypasses cached freshness so a write right
// after another write to the same path sends the current SHA.
func (c *Client) revisionMarker(ctx context.Context, owner, name, path, branch string) (string, error) {
	escaped := (&url.URL{Path: strings.TrimSuffix(path, "/")}).String()
	u := fmt.Sprintf("repos/%s/%s/contents/%s?ref=%s", owner, name, escaped, url.QueryEscape(branch))

	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build revision request for %s: %w", path, err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	var raw json.RawMessage
	resp, err := c.gh.Do(ctx, req, &raw)
	if err != nil {
		readErr := hostError("read revision of "+path, resp, err)
		if isNotFound(readErr) {
			return "", nil
		}
		return "", readErr
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return "", fmt.Errorf("write file %s: path is a directory", path)
	}

	var file gh.RepositoryContent
	if err := json.Unmarshal(raw, &file); err != nil {
		return "", fmt.Errorf("decode revision of %s: %w", path, err)
	}
	return file.GetSHA(), nil
}

// OpenPullRequest opens a pull request from head into base.
func (c *Client) OpenPullRequest(ctx context.Context, owner, name, title, body, head, base string) (model.PullRequest, error) {
	pr, resp, err := c.gh.PullRequests.Create(ctx, owner, name, &gh.NewPullRequest{
		Title: gh.Ptr(title),
		Head:  gh.Ptr(head),
		Base:  gh.Ptr(base),
		Body:  gh.Ptr(body),
	})
	if err != nil {
		return model.PullRequest{}, hostError(fmt.Sprintf("open pull request %s -> %s", head, base), resp, err)
	}

	logRateLimit(resp, owner+"/"+name+"/pulls", 0, 1)

	return model.PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
	}, nil
}
