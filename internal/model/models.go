// internal/model/models.go
package model

import (
	"fmt"
	"time"
)

// Project is one row of the upstream GHTorrent projects dump.
type Project struct {
	ID         int64
	URL        string
	OwnerID    int64
	Name       string
	Descriptor string
	Language   string
	CreatedAt  string
	ForkedFrom int64
	Deleted    bool
	UpdatedAt  string
}

// Active reports whether the project is neither a fork nor deleted.
func (p Project) Active() bool {
	return p.ForkedFrom == 0 && !p.Deleted
}

// CachePurpose names one of the cache namespaces used by tree acquisition.
type CachePurpose string

const (
	PurposeMaster  CachePurpose = "master"
	PurposeDefault CachePurpose = "default"
	PurposeTrees   CachePurpose = "trees"
)

// Purposes lists every cache namespace.
var Purposes = []CachePurpose{PurposeMaster, PurposeDefault, PurposeTrees}

// CacheStatus is the processing state recorded inside a cache entry.
type CacheStatus string

const (
	StatusDone   CacheStatus = "done"
	StatusFailed CacheStatus = "failed"
)

// CacheKey identifies a cache entry inside one purpose.
type CacheKey struct {
	OwnerID int64
	RepoID  int64
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%d:%d", k.OwnerID, k.RepoID)
}

// FileEntry is one element of a fetched tree.
type FileEntry struct {
	Path string
	URL  string
	Kind string // "blob" or "tree"
}

// InterestingHit is a classifier match inside one repository.
type InterestingHit struct {
	Path   string
	RawURL string
}

// Repository is an output row describing a processed repository.
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Founder       string    `json:"founder"`
	URL           string    `json:"url"`
	NumberCommits int       `json:"number_commits"`
	FirstCommitAt time.Time `json:"first_commit"`
	LastCommitAt  time.Time `json:"last_commit"`
}

// Person is an output row for a commit author, deduplicated across the run.
type Person struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is an output row for a single commit.
type Commit struct {
	ID               int64     `json:"id"`
	ExternalID       string    `json:"external_commit_id"`
	PersonID         int64     `json:"person_id"`
	CommittedAt      time.Time `json:"commit_timestamp"`
	ChangedFileCount int       `json:"changed_file_count"`
	RepositoryID     int64     `json:"repository_id"`
}

// InterestingFile links an interesting file path to a commit that touched it.
type InterestingFile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	CommitID     int64  `json:"commit_id"`
	RepositoryID int64  `json:"repository_id"`
}

// MissingProject is a row of the missing-projects report.
type MissingProject struct {
	Project  string `json:"project"`
	Issue    string `json:"issue"`
	HitCount int    `json:"hit_count"`
}

// Issue classifications for missing projects.
const (
	IssueFrameworkType = "framework-type"
	IssueNotChecked    = "not-checked"
)

// RowSet collects every row emitted by one extraction run, in emission order.
type RowSet struct {
	Repositories     []Repository      `json:"repositories"`
	People           []Person          `json:"people"`
	Commits          []Commit          `json:"commits"`
	InterestingFiles []InterestingFile `json:"interesting_files"`
	Missing          []MissingProject  `json:"missing"`
}
