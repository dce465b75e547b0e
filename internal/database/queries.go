// internal/database/queries.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateCommitsParams struct {
	ID         int64              `json:"id"`
	GhID       string             `json:"gh_id"`
	PeopleID   int64              `json:"people_id"`
	CommitDate pgtype.Timestamptz `json:"commit_date"`
	Cochanged  int32              `json:"cochanged"`
	ReposID    int64              `json:"repos_id"`
}

func (q *Queries) CreateCommits(ctx context.Context, arg []CreateCommitsParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"commits"},
		[]string{"id", "gh_id", "people_id", "commit_date", "cochanged", "repos_id"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]interface{}, error) {
			a := arg[i]
			return []interface{}{a.ID, a.GhID, a.PeopleID, a.CommitDate, a.Cochanged, a.ReposID}, nil
		}),
	)
}

type CreateInterestingFilesParams struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Url       string `json:"url"`
	CommitsID int64  `json:"commits_id"`
	ReposID   int64  `json:"repos_id"`
}

func (q *Queries) CreateInterestingFiles(ctx context.Context, arg []CreateInterestingFilesParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"interesting_files"},
		[]string{"id", "name", "url", "commits_id", "repos_id"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]interface{}, error) {
			a := arg[i]
			return []interface{}{a.ID, a.Name, a.Url, a.CommitsID, a.ReposID}, nil
		}),
	)
}

type CreateMissingProjectsParams struct {
	Project  string `json:"project"`
	Issue    string `json:"issue"`
	HitCount int32  `json:"hit_count"`
}

func (q *Queries) CreateMissingProjects(ctx context.Context, arg []CreateMissingProjectsParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"missing_projects"},
		[]string{"project", "issue", "hit_count"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]interface{}, error) {
			a := arg[i]
			return []interface{}{a.Project, a.Issue, a.HitCount}, nil
		}),
	)
}

type CreatePeopleParams struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (q *Queries) CreatePeople(ctx context.Context, arg []CreatePeopleParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"people"},
		[]string{"id", "name", "email"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]interface{}, error) {
			a := arg[i]
			return []interface{}{a.ID, a.Name, a.Email}, nil
		}),
	)
}

type CreateReposParams struct {
	ID            int64              `json:"id"`
	Name          string             `json:"name"`
	Founder       string             `json:"founder"`
	Url           string             `json:"url"`
	NumberCommits int32              `json:"number_commits"`
	FirstCommit   pgtype.Timestamptz `json:"first_commit"`
	LastCommit    pgtype.Timestamptz `json:"last_commit"`
}

func (q *Queries) CreateRepos(ctx context.Context, arg []CreateReposParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"repos"},
		[]string{"id", "name", "founder", "url", "number_commits", "first_commit", "last_commit"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]interface{}, error) {
			a := arg[i]
			return []interface{}{a.ID, a.Name, a.Founder, a.Url, a.NumberCommits, a.FirstCommit, a.LastCommit}, nil
		}),
	)
}

const getCommitsByRepoID = `-- name: GetCommitsByRepoID :many
SELECT c.id, c.gh_id, c.people_id, p.name AS author_name, p.email AS author_email, c.commit_date, c.cochanged, c.repos_id
FROM commits c
JOIN people p ON p.id = c.people_id
WHERE c.repos_id = $1
ORDER BY c.commit_date DESC, c.id DESC
`

type GetCommitsByRepoIDRow struct {
	ID          int64              `json:"id"`
	GhID        string             `json:"gh_id"`
	PeopleID    int64              `json:"people_id"`
	AuthorName  string             `json:"author_name"`
	AuthorEmail string             `json:"author_email"`
	CommitDate  pgtype.Timestamptz `json:"commit_date"`
	Cochanged   int32              `json:"cochanged"`
	ReposID     int64              `json:"repos_id"`
}

func (q *Queries) GetCommitsByRepoID(ctx context.Context, reposID int64) ([]GetCommitsByRepoIDRow, error) {
	rows, err := q.db.Query(ctx, getCommitsByRepoID, reposID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetCommitsByRepoIDRow
	for rows.Next() {
		var i GetCommitsByRepoIDRow
		if err := rows.Scan(
			&i.ID,
			&i.GhID,
			&i.PeopleID,
			&i.AuthorName,
			&i.AuthorEmail,
			&i.CommitDate,
			&i.Cochanged,
			&i.ReposID,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getInterestingFilesByRepoID = `-- name: GetInterestingFilesByRepoID :many
SELECT id, name, url, commits_id, repos_id FROM interesting_files
WHERE repos_id = $1
ORDER BY id
`

func (q *Queries) GetInterestingFilesByRepoID(ctx context.Context, reposID int64) ([]InterestingFile, error) {
	rows, err := q.db.Query(ctx, getInterestingFilesByRepoID, reposID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InterestingFile
	for rows.Next() {
		var i InterestingFile
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Url,
			&i.CommitsID,
			&i.ReposID,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMissingProjects = `-- name: GetMissingProjects :many
SELECT project, issue, hit_count FROM missing_projects
ORDER BY project
`

func (q *Queries) GetMissingProjects(ctx context.Context) ([]MissingProject, error) {
	rows, err := q.db.Query(ctx, getMissingProjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MissingProject
	for rows.Next() {
		var i MissingProject
		if err := rows.Scan(&i.Project, &i.Issue, &i.HitCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRepoByFounderAndName = `-- name: GetRepoByFounderAndName :one
SELECT id, name, founder, url, number_commits, first_commit, last_commit FROM repos
WHERE founder = $1 AND name = $2
`

type GetRepoByFounderAndNameParams struct {
	Founder string `json:"founder"`
	Name    string `json:"name"`
}

func (q *Queries) GetRepoByFounderAndName(ctx context.Context, arg GetRepoByFounderAndNameParams) (Repo, error) {
	row := q.db.QueryRow(ctx, getRepoByFounderAndName, arg.Founder, arg.Name)
	var i Repo
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Founder,
		&i.Url,
		&i.NumberCommits,
		&i.FirstCommit,
		&i.LastCommit,
	)
	return i, err
}

const getTopNCommitAuthors = `-- name: GetTopNCommitAuthors :many
SELECT p.name AS author_name, p.email AS author_email, COUNT(*) AS commit_count
FROM commits c
JOIN people p ON p.id = c.people_id
WHERE c.repos_id = $1
GROUP BY p.id, p.name, p.email
ORDER BY commit_count DESC, p.id
LIMIT $2
`

type GetTopNCommitAuthorsParams struct {
	ReposID int64 `json:"repos_id"`
	Limit   int32 `json:"limit"`
}

type GetTopNCommitAuthorsRow struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	CommitCount int64  `json:"commit_count"`
}

func (q *Queries) GetTopNCommitAuthors(ctx context.Context, arg GetTopNCommitAuthorsParams) ([]GetTopNCommitAuthorsRow, error) {
	rows, err := q.db.Query(ctx, getTopNCommitAuthors, arg.ReposID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopNCommitAuthorsRow
	for rows.Next() {
		var i GetTopNCommitAuthorsRow
		if err := rows.Scan(&i.AuthorName, &i.AuthorEmail, &i.CommitCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const truncateAll = `-- name: TruncateAll :exec
TRUNCATE interesting_files, commits, people, repos, missing_projects
`

func (q *Queries) TruncateAll(ctx context.Context) error {
	_, err := q.db.Exec(ctx, truncateAll)
	return err
}
