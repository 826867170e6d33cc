package model

// PullRequestRequest is the input for submitting generated tests as a pull request.
type PullRequestRequest struct {
	Title      string
	Body       string
	Branch     string // Head branch to create; defaulted when empty.
	BaseBranch string // Defaults to the repository's default branch.
}

// PullRequest identifies an opened pull request.
type PullRequest struct {
	Number int
	URL    string
}

// PullRequestResult reports what a pull request submission produced.
type PullRequestResult struct {
	PullRequest
	Branch     string
	BaseBranch string
	Files      []string
}
