// internal/pipeline/stages.go
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github-file-miner/internal/acquire"
	"github-file-miner/internal/classify"
	"github-file-miner/internal/correlate"
	"github-file-miner/internal/extract"
	"github-file-miner/internal/github"
	"github-file-miner/internal/model"
	"github-file-miner/internal/projects"
)

func (p *Pipeline) runAcquire(ctx context.Context) error {
	active := projects.Active(p.projects)
	a := acquire.NewAcquirer(p.deps.Client, p.deps.Store, p.logger, p.cfg.FallbackDelay)
	a.AcquireAll(ctx, active, p.cfg.AcquireConcurrency)
	return ctx.Err()
}

// runClassify walks every cached tree and writes the interesting blobs to
// the hits file.
func (p *Pipeline) runClassify(ctx context.Context) error {
	hits := p.classifyTrees(ctx)
	if err := writeFile(p.cfg.HitsFile, func(w io.Writer) error {
		return correlate.WriteHits(w, hits)
	}); err != nil {
		return fmt.Errorf("write hits file: %w", err)
	}
	p.logger.Info("Hits written", "path", p.cfg.HitsFile, "hits", len(hits))
	return nil
}

func (p *Pipeline) classifyTrees(ctx context.Context) []correlate.Hit {
	var hits []correlate.Hit
	keys := p.deps.Store.Keys(model.PurposeTrees)
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		logger := p.logger.With("key", key.String())
		entry, err := p.deps.Store.Get(ctx, model.PurposeTrees, key)
		if err != nil {
			logger.Error("Failed to read cached tree", "error", err)
			continue
		}
		if entry.Status != model.StatusDone {
			logger.Debug("Skipping unfinished tree", "status", entry.Status)
			continue
		}
		entries, _, err := github.DecodeTree(entry.Payload)
		if err != nil {
			logger.Error("Unreadable cached tree", "error", err)
			continue
		}
		for _, e := range classify.ClassifyTree(entries, p.rules) {
			h, err := correlate.NewHit(e.Path, e.URL)
			if err != nil {
				logger.Warn("Skipping hit without repository", "path", e.Path, "error", err)
				continue
			}
			hits = append(hits, h)
		}
	}
	p.logger.Info("Classification finished", "trees", len(keys), "hits", len(hits))
	return hits
}

// runURLs turns the hits file into the raw-content URL file.
func (p *Pipeline) runURLs(ctx context.Context) error {
	f, err := os.Open(p.cfg.HitsFile)
	if err != nil {
		return fmt.Errorf("open hits file: %w", err)
	}
	hits, err := correlate.ReadHits(f, p.logger)
	f.Close()
	if err != nil {
		return fmt.Errorf("read hits file: %w", err)
	}

	index := correlate.NewIndex(p.projects)
	resolver, err := correlate.NewResolver(index, p.deps.Store, p.cfg.BranchCacheSize, p.logger)
	if err != nil {
		return err
	}
	p.logger.Debug("Repository index built", "repositories", index.Len())
	urls := resolver.RawURLs(ctx, hits)
	if err := writeFile(p.cfg.URLsFile, func(w io.Writer) error {
		return correlate.WriteURLs(w, urls)
	}); err != nil {
		return fmt.Errorf("write urls file: %w", err)
	}
	p.logger.Info("URLs written", "path", p.cfg.URLsFile, "hits", len(hits), "urls", len(urls))
	return nil
}

func (p *Pipeline) readURLs() (correlate.ProjectHits, error) {
	f, err := os.Open(p.cfg.URLsFile)
	if err != nil {
		return nil, fmt.Errorf("open urls file: %w", err)
	}
	defer f.Close()
	hits, err := correlate.ReadURLs(f, p.logger)
	if err != nil {
		return nil, fmt.Errorf("read urls file: %w", err)
	}
	return hits, nil
}

// PlanSummary counts the repositories checked by the plan stage.
type PlanSummary struct {
	Planned  []string
	Exported int
	Private  int
	NotFound int
	Failed   int
}

// runPlan checks every repository with hits and lists the public ones that
// still need a commit-history export.
func (p *Pipeline) runPlan(ctx context.Context) error {
	hits, err := p.readURLs()
	if err != nil {
		return err
	}
	summary, err := p.plan(ctx, hits.Projects())
	if err != nil {
		return err
	}
	if err := writeFile(p.cfg.PlanFile, func(w io.Writer) error {
		return correlate.WriteURLs(w, summary.Planned)
	}); err != nil {
		return fmt.Errorf("write plan file: %w", err)
	}
	p.logger.Info("Export plan written",
		"path", p.cfg.PlanFile,
		"planned", len(summary.Planned),
		"exported", summary.Exported,
		"private", summary.Private,
		"not_found", summary.NotFound,
		"failed", summary.Failed,
	)
	return nil
}

func (p *Pipeline) plan(ctx context.Context, names []string) (PlanSummary, error) {
	exported, err := listExports(p.cfg.ExportsDir)
	if err != nil {
		return PlanSummary{}, err
	}
	var s PlanSummary
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		owner, repo, ok := correlate.SplitProject(name)
		if !ok {
			continue
		}
		logger := p.logger.With("project", name)
		if _, done := exported[correlate.ExportFileName(owner, repo)]; done {
			logger.Info("Already exported")
			s.Exported++
			continue
		}
		vis, _, err := p.deps.Client.Repository(ctx, owner, repo)
		switch vis {
		case github.VisibilityPublic:
			s.Planned = append(s.Planned, "https://github.com/"+name)
		case github.VisibilityPrivate:
			logger.Warn("Private repository")
			s.Private++
		case github.VisibilityNotFound:
			logger.Warn("Repository not found")
			s.NotFound++
		default:
			logger.Warn("Repository metadata unavailable", "error", err)
			s.Failed++
		}
	}
	return s, nil
}

func listExports(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names[e.Name()] = struct{}{}
		}
	}
	return names, nil
}

// runExtract builds the row sets and writes them, together with the
// missing-projects report, to the output directory.
func (p *Pipeline) runExtract(ctx context.Context) error {
	hits, err := p.readURLs()
	if err != nil {
		return err
	}
	ex := extract.NewExtractor(extract.NewAllocator(), extract.Options{
		ExportsDir:      p.cfg.ExportsDir,
		AvoidFrameworks: p.cfg.AvoidFrameworks,
		VerifySegments:  p.cfg.VerifySegments,
		Concurrency:     p.cfg.ExtractConcurrency,
	}, p.logger)
	rows, err := ex.Run(ctx, hits)
	if err != nil {
		return err
	}
	p.rows = rows

	missingPath := filepath.Join(p.cfg.OutputDir, missingReportName)
	if err := writeFile(missingPath, func(w io.Writer) error {
		return extract.WriteMissingReport(w, rows.Missing)
	}); err != nil {
		return fmt.Errorf("write missing report: %w", err)
	}
	rowsPath := filepath.Join(p.cfg.OutputDir, rowsFileName)
	if err := writeFile(rowsPath, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(rows)
	}); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	p.logger.Info("Rows written", "path", rowsPath, "missing_report", missingPath)
	return nil
}

// Rows returns the rows produced by the extract stage of this run, if any.
func (p *Pipeline) Rows() *model.RowSet {
	return p.rows
}
