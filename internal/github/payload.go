// internal/github/payload.go
package github

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v62/github"

	"github-file-miner/internal/model"
)

// Visibility is the normalized answer to "can this repository be exported".
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
	VisibilityNotFound
	VisibilityUnavailable
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityPrivate:
		return "private"
	case VisibilityNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// Repository fetches repository metadata and reports its visibility.
func (c *Client) Repository(ctx context.Context, owner, name string) (Visibility, *github.Repository, error) {
	resp := c.Fetch(ctx, c.RepoURL(owner, name))
	switch resp.Outcome {
	case OutcomeNotFound:
		return VisibilityNotFound, nil, nil
	case OutcomeUnavailable:
		return VisibilityUnavailable, nil, resp.Err
	}
	repo, err := DecodeRepository(resp.Body)
	if err != nil {
		return VisibilityUnavailable, nil, err
	}
	if repo.GetPrivate() {
		return VisibilityPrivate, repo, nil
	}
	return VisibilityPublic, repo, nil
}

// DecodeRepository parses a repository metadata payload.
func DecodeRepository(payload []byte) (*github.Repository, error) {
	var repo github.Repository
	if err := json.Unmarshal(payload, &repo); err != nil {
		return nil, fmt.Errorf("decode repository: %w", err)
	}
	return &repo, nil
}

// TreeSHA extracts commit.commit.tree.sha from a branch payload.
// It returns "" when the payload has no such field.
func TreeSHA(payload []byte) (string, error) {
	branch, err := decodeBranch(payload)
	if err != nil {
		return "", err
	}
	return branch.GetCommit().GetCommit().GetTree().GetSHA(), nil
}

// BranchName extracts the name from a branch payload, or "" if absent.
func BranchName(payload []byte) (string, error) {
	branch, err := decodeBranch(payload)
	if err != nil {
		return "", err
	}
	return branch.GetName(), nil
}

func decodeBranch(payload []byte) (*github.Branch, error) {
	var branch github.Branch
	if err := json.Unmarshal(payload, &branch); err != nil {
		return nil, fmt.Errorf("decode branch: %w", err)
	}
	return &branch, nil
}

// DefaultBranch extracts default_branch from a repository payload.
func DefaultBranch(payload []byte) (string, error) {
	repo, err := DecodeRepository(payload)
	if err != nil {
		return "", err
	}
	return repo.GetDefaultBranch(), nil
}

// DecodeTree parses a recursive tree payload into file entries.
func DecodeTree(payload []byte) (entries []model.FileEntry, truncated bool, err error) {
	var tree github.Tree
	if err := json.Unmarshal(payload, &tree); err != nil {
		return nil, false, fmt.Errorf("decode tree: %w", err)
	}
	if tree.Entries == nil {
		return nil, false, fmt.Errorf("decode tree: no tree field")
	}
	entries = make([]model.FileEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, model.FileEntry{
			Path: e.GetPath(),
			URL:  e.GetURL(),
			Kind: e.GetType(),
		})
	}
	return entries, tree.GetTruncated(), nil
}
