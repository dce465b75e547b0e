// internal/pipeline/load.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github-file-miner/internal/database"
	"github-file-miner/internal/model"
)

// runLoad replaces the database contents with the rows of this run, or with
// the rows written by an earlier extract run.
func (p *Pipeline) runLoad(ctx context.Context) error {
	rows := p.rows
	if rows == nil {
		var err error
		if rows, err = readRows(filepath.Join(p.cfg.OutputDir, rowsFileName)); err != nil {
			return err
		}
	}
	return p.loadInTransaction(ctx, rows)
}

func readRows(path string) (*model.RowSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	var rows model.RowSet
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode rows %s: %w", path, err)
	}
	return &rows, nil
}

// loadInTransaction wraps loadRows in a DB transaction.
func (p *Pipeline) loadInTransaction(ctx context.Context, rows *model.RowSet) error {
	tx, err := p.deps.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	if err := p.loadRows(ctx, database.New(tx), rows); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// loadRows truncates the tables and bulk inserts rows, parents first.
func (p *Pipeline) loadRows(ctx context.Context, q database.Querier, rows *model.RowSet) error {
	if err := q.TruncateAll(ctx); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}

	steps := []struct {
		table string
		copy  func() (int64, error)
	}{
		{"repos", func() (int64, error) { return q.CreateRepos(ctx, prepareRepos(rows.Repositories)) }},
		{"people", func() (int64, error) { return q.CreatePeople(ctx, preparePeople(rows.People)) }},
		{"commits", func() (int64, error) { return q.CreateCommits(ctx, prepareCommits(rows.Commits)) }},
		{"interesting_files", func() (int64, error) {
			return q.CreateInterestingFiles(ctx, prepareInterestingFiles(rows.InterestingFiles))
		}},
		{"missing_projects", func() (int64, error) { return q.CreateMissingProjects(ctx, prepareMissing(rows.Missing)) }},
	}
	for _, s := range steps {
		n, err := s.copy()
		if err != nil {
			return fmt.Errorf("insert %s: %w", s.table, err)
		}
		p.logger.Info("Inserted rows", "table", s.table, "count", n)
	}
	return nil
}

func prepareRepos(repos []model.Repository) []database.CreateReposParams {
	params := make([]database.CreateReposParams, len(repos))
	for i, r := range repos {
		params[i] = database.CreateReposParams{
			ID:            r.ID,
			Name:          r.Name,
			Founder:       r.Founder,
			Url:           r.URL,
			NumberCommits: int32(r.NumberCommits),
			FirstCommit:   toTimestamptz(r.FirstCommitAt),
			LastCommit:    toTimestamptz(r.LastCommitAt),
		}
	}
	return params
}

func preparePeople(people []model.Person) []database.CreatePeopleParams {
	params := make([]database.CreatePeopleParams, len(people))
	for i, p := range people {
		params[i] = database.CreatePeopleParams{ID: p.ID, Name: p.Name, Email: p.Email}
	}
	return params
}

func prepareCommits(commits []model.Commit) []database.CreateCommitsParams {
	params := make([]database.CreateCommitsParams, len(commits))
	for i, c := range commits {
		params[i] = database.CreateCommitsParams{
			ID:         c.ID,
			GhID:       c.ExternalID,
			PeopleID:   c.PersonID,
			CommitDate: toTimestamptz(c.CommittedAt),
			Cochanged:  int32(c.ChangedFileCount),
			ReposID:    c.RepositoryID,
		}
	}
	return params
}

func prepareInterestingFiles(files []model.InterestingFile) []database.CreateInterestingFilesParams {
	params := make([]database.CreateInterestingFilesParams, len(files))
	for i, f := range files {
		params[i] = database.CreateInterestingFilesParams{
			ID:        f.ID,
			Name:      f.Name,
			Url:       f.URL,
			CommitsID: f.CommitID,
			ReposID:   f.RepositoryID,
		}
	}
	return params
}

func prepareMissing(missing []model.MissingProject) []database.CreateMissingProjectsParams {
	params := make([]database.CreateMissingProjectsParams, len(missing))
	for i, m := range missing {
		params[i] = database.CreateMissingProjectsParams{Project: m.Project, Issue: m.Issue, HitCount: int32(m.HitCount)}
	}
	return params
}

// toTimestamptz maps the zero time (a repository without commits) to NULL.
func toTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
