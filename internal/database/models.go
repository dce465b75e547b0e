// internal/database/models.go
package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Commit struct {
	ID         int64              `json:"id"`
	GhID       string             `json:"gh_id"`
	PeopleID   int64              `json:"people_id"`
	CommitDate pgtype.Timestamptz `json:"commit_date"`
	Cochanged  int32              `json:"cochanged"`
	ReposID    int64              `json:"repos_id"`
}

type InterestingFile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Url       string `json:"url"`
	CommitsID int64  `json:"commits_id"`
	ReposID   int64  `json:"repos_id"`
}

type MissingProject struct {
	Project  string `json:"project"`
	Issue    string `json:"issue"`
	HitCount int32  `json:"hit_count"`
}

type Person struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Repo struct {
	ID            int64              `json:"id"`
	Name          string             `json:"name"`
	Founder       string             `json:"founder"`
	Url           string             `json:"url"`
	NumberCommits int32              `json:"number_commits"`
	FirstCommit   pgtype.Timestamptz `json:"first_commit"`
	LastCommit    pgtype.Timestamptz `json:"last_commit"`
}
