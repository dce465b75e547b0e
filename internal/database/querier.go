// internal/database/querier.go
package database

import (
	"context"
)

type Querier interface {
	CreateCommits(ctx context.Context, arg []CreateCommitsParams) (int64, error)
	CreateInterestingFiles(ctx context.Context, arg []CreateInterestingFilesParams) (int64, error)
	CreateMissingProjects(ctx context.Context, arg []CreateMissingProjectsParams) (int64, error)
	CreatePeople(ctx context.Context, arg []CreatePeopleParams) (int64, error)
	CreateRepos(ctx context.Context, arg []CreateReposParams) (int64, error)
	GetCommitsByRepoID(ctx context.Context, reposID int64) ([]GetCommitsByRepoIDRow, error)
	GetInterestingFilesByRepoID(ctx context.Context, reposID int64) ([]InterestingFile, error)
	GetMissingProjects(ctx context.Context) ([]MissingProject, error)
	GetRepoByFounderAndName(ctx context.Context, arg GetRepoByFounderAndNameParams) (Repo, error)
	GetTopNCommitAuthors(ctx context.Context, arg GetTopNCommitAuthorsParams) ([]GetTopNCommitAuthorsRow, error)
	TruncateAll(ctx context.Context) error
}

var _ Querier = (*Queries)(nil)
