// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github-file-miner/internal/cache"
	"github-file-miner/internal/classify"
	"github-file-miner/internal/config"
	"github-file-miner/internal/github"
	"github-file-miner/internal/model"
	"github-file-miner/internal/projects"
)

const (
	missingReportName = "missing_projects.csv"
	rowsFileName      = "rows.json"
)

// Deps are the shared clients a pipeline run needs. Fields may be nil when
// no selected stage uses them.
type Deps struct {
	Client *github.Client
	Store  *cache.Store
	DB     *pgxpool.Pool
}

// Pipeline runs the selected batch stages in order.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	projects []model.Project
	rules    classify.Rules
	rows     *model.RowSet
}

// New creates a new Pipeline.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps, logger: logger}
}

// Attach hands over the clients the stages use. Call it after Prepare so
// input errors are reported before any connection is opened.
func (p *Pipeline) Attach(deps Deps) {
	p.deps = deps
}

// Prepare reads every input that a malformed configuration would break, so
// that such errors surface before any network access.
func (p *Pipeline) Prepare() error {
	if p.cfg.Has(config.StageAcquire) || p.cfg.Has(config.StageURLs) {
		list, err := projects.ReadFile(p.cfg.ProjectsFile, p.logger)
		if err != nil {
			return err
		}
		p.projects = list
		p.logger.Info("Project list loaded", "projects", len(list))
	}
	if p.cfg.Has(config.StageClassify) {
		rules, err := classify.LoadRules(p.cfg.HeuristicsFile)
		if err != nil {
			return err
		}
		p.rules = rules
	}
	return nil
}

// Run executes every selected stage except serve. Per-project failures are
// logged inside each stage; only I/O failures on the stage's own inputs and
// outputs abort the run.
func (p *Pipeline) Run(ctx context.Context) error {
	stages := map[string]func(context.Context) error{
		config.StageAcquire:  p.runAcquire,
		config.StageClassify: p.runClassify,
		config.StageURLs:     p.runURLs,
		config.StagePlan:     p.runPlan,
		config.StageExtract:  p.runExtract,
		config.StageLoad:     p.runLoad,
	}
	for _, name := range p.cfg.Stages {
		run, ok := stages[name]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.logger.Info("Starting stage", "stage", name)
		if err := run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
	}
	return nil
}

// writeFile creates path and its parent directory and fills it with write.
func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
