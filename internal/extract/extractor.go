// internal/extract/extractor.go
package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github-file-miner/internal/correlate"
	"github-file-miner/internal/model"
)

// Options configures an Extractor.
type Options struct {
	ExportsDir      string
	AvoidFrameworks bool
	VerifySegments  bool
	Concurrency     int
}

// Extractor turns commit-history exports into relational rows.
type Extractor struct {
	alloc  *Allocator
	opts   Options
	logger *slog.Logger
}

// NewExtractor creates a new Extractor drawing ids from alloc.
func NewExtractor(alloc *Allocator, opts Options, logger *slog.Logger) *Extractor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Extractor{alloc: alloc, opts: opts, logger: logger}
}

type loaded struct {
	records []CommitRecord
	missing bool
	err     error
}

// Run processes every project of hits in sorted "owner/repo" order. Exports
// are read and parsed concurrently; ids are allocated on the calling
// goroutine in project order, so the output is identical for any
// concurrency. A project whose export cannot be used is logged and
// contributes no rows.
func (e *Extractor) Run(ctx context.Context, hits correlate.ProjectHits) (*model.RowSet, error) {
	projects := hits.Projects()
	e.logger.Info("Starting extraction", "projects", len(projects), "concurrency", e.opts.Concurrency)

	slots := make([]chan loaded, len(projects))
	for i := range slots {
		slots[i] = make(chan loaded, 1)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	go func() {
		for i, project := range projects {
			g.Go(func() error {
				slots[i] <- e.load(gctx, project)
				return nil
			})
		}
	}()

	rows := &model.RowSet{}
	failed := 0
	for i, project := range projects {
		l := <-slots[i]
		logger := e.logger.With("project", project)
		switch {
		case l.missing:
			m := e.missing(project, len(hits[project]))
			logger.Info("Missing project", "issue", m.Issue, "hit_count", m.HitCount)
			rows.Missing = append(rows.Missing, m)
		case l.err != nil:
			failed++
			logger.Error("Skipping project", "error", l.err)
		default:
			e.emit(project, l.records, hits[project], rows)
			logger.Debug("Project extracted", "commits", len(l.records))
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("Extraction finished",
		"repositories", len(rows.Repositories),
		"people", len(rows.People),
		"commits", len(rows.Commits),
		"interesting_files", len(rows.InterestingFiles),
		"missing", len(rows.Missing),
		"failed", failed,
	)
	return rows, nil
}

func (e *Extractor) load(ctx context.Context, project string) loaded {
	if err := ctx.Err(); err != nil {
		return loaded{err: err}
	}
	owner, repo, ok := correlate.SplitProject(project)
	if !ok {
		return loaded{err: fmt.Errorf("invalid project name %q", project)}
	}
	path := filepath.Join(e.opts.ExportsDir, correlate.ExportFileName(owner, repo))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return loaded{missing: true}
	}
	if err != nil {
		return loaded{err: fmt.Errorf("read export %s: %w", path, err)}
	}
	records, err := ParseExport(project, path, data)
	if err != nil {
		return loaded{err: err}
	}
	if e.opts.VerifySegments {
		if err := Verify(project, records, Segment(data)); err != nil {
			return loaded{err: err}
		}
	}
	return loaded{records: records}
}

// emit allocates ids and appends the rows of one project. The repository id
// is taken before any of its commits.
func (e *Extractor) emit(project string, records []CommitRecord, hits []model.InterestingHit, rows *model.RowSet) {
	owner, repo, _ := correlate.SplitProject(project)
	repoID := e.alloc.NextRepository()

	interesting := make(map[string]string, len(hits))
	for _, h := range hits {
		if _, ok := interesting[h.Path]; !ok {
			interesting[h.Path] = h.RawURL
		}
	}

	var first, last time.Time
	for i, rec := range records {
		person, created := e.alloc.Person(rec.Author)
		if created {
			rows.People = append(rows.People, person)
		}

		commitID := e.alloc.NextCommit()
		rows.Commits = append(rows.Commits, model.Commit{
			ID:               commitID,
			ExternalID:       rec.ExternalID,
			PersonID:         person.ID,
			CommittedAt:      rec.UpdatedOn,
			ChangedFileCount: len(rec.Files),
			RepositoryID:     repoID,
		})

		for _, f := range rec.Files {
			url, ok := interesting[f]
			if !ok {
				continue
			}
			rows.InterestingFiles = append(rows.InterestingFiles, model.InterestingFile{
				ID:           e.alloc.NextInterestingFile(),
				Name:         f,
				URL:          url,
				CommitID:     commitID,
				RepositoryID: repoID,
			})
		}

		if i == 0 || rec.UpdatedOn.Before(first) {
			first = rec.UpdatedOn
		}
		if i == 0 || rec.UpdatedOn.After(last) {
			last = rec.UpdatedOn
		}
	}

	rows.Repositories = append(rows.Repositories, model.Repository{
		ID:            repoID,
		Name:          repo,
		Founder:       owner,
		URL:           "https://www.github.com/" + owner + "/" + repo,
		NumberCommits: len(records),
		FirstCommitAt: first,
		LastCommitAt:  last,
	})
}

func (e *Extractor) missing(project string, hitCount int) model.MissingProject {
	issue := model.IssueNotChecked
	_, repo, _ := correlate.SplitProject(project)
	if e.opts.AvoidFrameworks && strings.Contains(strings.ToLower(repo), "framework") {
		issue = model.IssueFrameworkType
	}
	return model.MissingProject{Project: project, Issue: issue, HitCount: hitCount}
}

// WriteMissingReport writes the missing-projects report as CSV.
func WriteMissingReport(w io.Writer, missing []model.MissingProject) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"project", "issue", "hit_count"}); err != nil {
		return err
	}
	for _, m := range missing {
		if err := cw.Write([]string{m.Project, m.Issue, strconv.Itoa(m.HitCount)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
