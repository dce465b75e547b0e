// internal/correlate/index.go
package correlate

import (
	"strings"

	"github-file-miner/internal/model"
)

// Index maps owner logins and repository names, as they appear in API URLs,
// back to the numeric ids of the project list.
type Index struct {
	owners map[string]int64
	repos  map[string]int64
}

// NewIndex builds an Index from the project list. Repositories are keyed by
// "owner/name" so that equally named repositories of different owners do
// not collide.
func NewIndex(projects []model.Project) *Index {
	idx := &Index{
		owners: make(map[string]int64, len(projects)),
		repos:  make(map[string]int64, len(projects)),
	}
	for _, p := range projects {
		owner := OwnerLogin(p.URL)
		if owner == "" {
			continue
		}
		idx.owners[owner] = p.OwnerID
		idx.repos[owner+"/"+p.Name] = p.ID
	}
	return idx
}

// OwnerLogin returns the owner segment of a project API URL
// ("https://api.github.com/repos/<owner>/<name>"), i.e. its 5th
// "/"-delimited segment.
func OwnerLogin(projectURL string) string {
	parts := strings.Split(projectURL, "/")
	if len(parts) < 5 {
		return ""
	}
	return parts[4]
}

// Key resolves owner and repository names to their cache key.
func (i *Index) Key(owner, repo string) (model.CacheKey, bool) {
	ownerID, ok := i.owners[owner]
	if !ok {
		return model.CacheKey{}, false
	}
	repoID, ok := i.repos[owner+"/"+repo]
	if !ok {
		return model.CacheKey{}, false
	}
	return model.CacheKey{OwnerID: ownerID, RepoID: repoID}, true
}

// Len returns the number of indexed repositories.
func (i *Index) Len() int {
	return len(i.repos)
}

// ExportFileName is the name of the commit-history export of a repository.
func ExportFileName(owner, repo string) string {
	return owner + "_" + repo + ".json"
}

// SplitProject splits an "owner/repo" project name.
func SplitProject(project string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(project, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}
