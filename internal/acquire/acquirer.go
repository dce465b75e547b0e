// internal/acquire/acquirer.go
package acquire

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github-file-miner/internal/cache"
	"github-file-miner/internal/github"
	"github-file-miner/internal/model"
)

// Status is the terminal state of acquiring one project's tree.
type Status int

const (
	StatusDone Status = iota
	StatusSkipped
)

func (s Status) String() string {
	if s == StatusDone {
		return "done"
	}
	return "skipped"
}

// Skip and completion reasons.
const (
	ReasonCached          = "already cached"
	ReasonFetched         = "tree fetched"
	ReasonMasterFailed    = "master branch fetch failed"
	ReasonMetadataFailed  = "repository metadata fetch failed"
	ReasonNoDefault       = "no default branch"
	ReasonDefaultFailed   = "default branch fetch failed"
	ReasonNoTreeSHA       = "no tree sha"
	ReasonTreeFailed      = "tree fetch failed"
	ReasonMalformed       = "malformed payload"
	ReasonCacheRead       = "cache read failed"
	ReasonCacheWrite      = "cache write failed"
	ReasonContextCanceled = "canceled"
)

// Result records how one project finished.
type Result struct {
	Project model.Project
	Status  Status
	Reason  string
	Branch  string
}

// Fetcher is the subset of the API client used by the acquirer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) github.Response
	Cooldown(d time.Duration)
}

// Acquirer resolves the branch of each project and caches its recursive tree.
type Acquirer struct {
	client        Fetcher
	store         *cache.Store
	logger        *slog.Logger
	fallbackDelay time.Duration
}

// NewAcquirer creates a new Acquirer. fallbackDelay is the extra pause taken
// after the default-branch fallback comes up empty.
func NewAcquirer(client Fetcher, store *cache.Store, logger *slog.Logger, fallbackDelay time.Duration) *Acquirer {
	return &Acquirer{
		client:        client,
		store:         store,
		logger:        logger,
		fallbackDelay: fallbackDelay,
	}
}

// Summary aggregates the results of AcquireAll.
type Summary struct {
	Results []Result
	Done    int
	Cached  int
	Skipped int
}

// AcquireAll runs Acquire for every project with at most concurrency
// projects in flight. Results are returned in project order.
func (a *Acquirer) AcquireAll(ctx context.Context, projects []model.Project, concurrency int) Summary {
	if concurrency < 1 {
		concurrency = 1
	}
	a.logger.Info("Starting tree acquisition", "projects", len(projects), "concurrency", concurrency)

	results := make([]Result, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range projects {
		g.Go(func() error {
			results[i] = a.Acquire(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{Results: results}
	for _, r := range results {
		switch {
		case r.Status == StatusSkipped:
			s.Skipped++
		case r.Reason == ReasonCached:
			s.Cached++
		default:
			s.Done++
		}
	}
	a.logger.Info("Tree acquisition finished", "done", s.Done, "cached", s.Cached, "skipped", s.Skipped)
	return s
}

// Acquire drives one project to Done or Skipped. Concurrent calls for the
// same project share a single run.
func (a *Acquirer) Acquire(ctx context.Context, p model.Project) Result {
	key := model.CacheKey{OwnerID: p.OwnerID, RepoID: p.ID}
	v, _ := a.store.Do(key, func() (any, error) {
		return a.acquire(ctx, p, key), nil
	})
	return v.(Result)
}

func (a *Acquirer) acquire(ctx context.Context, p model.Project, key model.CacheKey) Result {
	logger := a.logger.With("project_id", p.ID, "owner_id", p.OwnerID, "url", p.URL)
	done := func(reason, branch string) Result {
		return Result{Project: p, Status: StatusDone, Reason: reason, Branch: branch}
	}
	skip := func(reason string) Result {
		if ctx.Err() != nil {
			reason = ReasonContextCanceled
		}
		logger.Debug("Project skipped", "reason", reason)
		return Result{Project: p, Status: StatusSkipped, Reason: reason}
	}

	if a.store.Has(model.PurposeTrees, key) {
		return done(ReasonCached, "")
	}

	base := strings.TrimSuffix(p.URL, "/")

	master, st := a.branch(ctx, logger, key, base+"/branches/master")
	if !st.done {
		return skip(st.reason)
	}
	branch := "master"
	sha := master.sha
	if master.name != "" {
		branch = master.name
	}

	if sha == "" {
		logger.Debug("Master branch has no tree")
		meta, reason := a.metadata(ctx, logger, key, base)
		if reason != "" {
			return skip(reason)
		}
		def, err := github.DefaultBranch(meta)
		if err != nil {
			logger.Error("Unreadable repository payload", "error", err)
			return skip(ReasonMalformed)
		}
		if def == "" {
			logger.Debug("No default branch found")
			return skip(ReasonNoDefault)
		}
		branch = def

		// An earlier run may already have stored the default branch
		// response under master.
		if master.found && master.name == def {
			logger.Debug("Default branch has no tree", "branch", def)
			return skip(ReasonNoTreeSHA)
		}

		resp := a.client.Fetch(ctx, base+"/branches/"+def)
		if resp.Outcome != github.OutcomeOK {
			logger.Warn("Default branch fetch failed", "branch", def, "outcome", resp.Outcome.String(), "error", resp.Err)
			return skip(ReasonDefaultFailed)
		}
		if sha, err = github.TreeSHA(resp.Body); err != nil {
			logger.Error("Unreadable default branch payload", "branch", def, "error", err)
			return skip(ReasonMalformed)
		}
		if err := a.store.Replace(ctx, model.PurposeMaster, key, model.StatusDone, resp.Body); err != nil {
			logger.Error("Failed to write cache entry", "purpose", model.PurposeMaster, "error", err)
			return skip(ReasonCacheWrite)
		}
		if sha == "" {
			logger.Debug("Default branch has no tree", "branch", def)
			a.client.Cooldown(a.fallbackDelay)
			return skip(ReasonNoTreeSHA)
		}
	}

	tree := a.client.Fetch(ctx, base+"/git/trees/"+sha+"?recursive=1")
	if tree.Outcome != github.OutcomeOK {
		logger.Warn("Tree fetch failed", "sha", sha, "outcome", tree.Outcome.String(), "error", tree.Err)
		return skip(ReasonTreeFailed)
	}
	if _, truncated, err := github.DecodeTree(tree.Body); err != nil {
		logger.Error("Unreadable tree payload", "sha", sha, "error", err)
		return skip(ReasonMalformed)
	} else if truncated {
		logger.Warn("Tree listing is truncated", "sha", sha)
	}
	if !a.save(ctx, logger, model.PurposeTrees, key, tree) {
		return skip(ReasonCacheWrite)
	}
	logger.Info("Tree cached", "branch", branch, "sha", sha)
	return done(ReasonFetched, branch)
}

// branchState is what is known about the master entry of a project.
type branchState struct {
	found bool // a branch payload is stored (status done)
	name  string
	sha   string
}

// step reports whether acquisition may continue, and why not.
type step struct {
	done   bool
	reason string
}

// branch returns the master entry, reading it from the cache when present
// and fetching it otherwise. A stored failed entry records a 404 and is
// not fetched again; transient failures never create an entry.
func (a *Acquirer) branch(ctx context.Context, logger *slog.Logger, key model.CacheKey, url string) (branchState, step) {
	var (
		status  model.CacheStatus
		payload []byte
	)
	entry, err := a.cached(ctx, model.PurposeMaster, key)
	switch {
	case err != nil:
		logger.Error("Failed to read cache entry", "purpose", model.PurposeMaster, "error", err)
		return branchState{}, step{reason: ReasonCacheRead}
	case entry != nil:
		logger.Debug("Using cached master entry", "status", entry.Status)
		status, payload = entry.Status, entry.Payload
	default:
		resp := a.client.Fetch(ctx, url)
		if resp.Outcome == github.OutcomeUnavailable {
			logger.Warn("Master branch fetch failed", "status", resp.StatusCode, "error", resp.Err)
			return branchState{}, step{reason: ReasonMasterFailed}
		}
		if !a.save(ctx, logger, model.PurposeMaster, key, resp) {
			return branchState{}, step{reason: ReasonCacheWrite}
		}
		status, payload = statusOf(resp), resp.Body
	}

	if status != model.StatusDone {
		return branchState{}, step{done: true}
	}
	sha, err := github.TreeSHA(payload)
	if err != nil {
		logger.Error("Unreadable master branch payload", "error", err)
		return branchState{}, step{reason: ReasonMalformed}
	}
	name, _ := github.BranchName(payload)
	return branchState{found: true, name: name, sha: sha}, step{done: true}
}

// metadata returns the repository payload from the default entry, fetching
// and storing it when there is none. The returned reason is empty on
// success.
func (a *Acquirer) metadata(ctx context.Context, logger *slog.Logger, key model.CacheKey, url string) ([]byte, string) {
	entry, err := a.cached(ctx, model.PurposeDefault, key)
	if err != nil {
		logger.Error("Failed to read cache entry", "purpose", model.PurposeDefault, "error", err)
		return nil, ReasonCacheRead
	}
	if entry != nil && entry.Status == model.StatusDone {
		logger.Debug("Using cached repository metadata")
		return entry.Payload, ""
	}

	meta := a.client.Fetch(ctx, url)
	if meta.Outcome != github.OutcomeOK {
		logger.Warn("Repository metadata fetch failed", "outcome", meta.Outcome.String(), "error", meta.Err)
		return nil, ReasonMetadataFailed
	}
	if !a.save(ctx, logger, model.PurposeDefault, key, meta) {
		return nil, ReasonCacheWrite
	}
	return meta.Body, ""
}

// cached returns the entry stored under purpose, or nil if there is none.
func (a *Acquirer) cached(ctx context.Context, purpose model.CachePurpose, key model.CacheKey) (*cache.Entry, error) {
	if !a.store.Has(purpose, key) {
		return nil, nil
	}
	entry, err := a.store.Get(ctx, purpose, key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

func statusOf(resp github.Response) model.CacheStatus {
	if resp.Outcome == github.OutcomeOK {
		return model.StatusDone
	}
	return model.StatusFailed
}

// save creates the entry for resp under purpose. A 404 is stored with
// status failed and no payload. An entry created concurrently by another
// process holds the same response and counts as saved.
func (a *Acquirer) save(ctx context.Context, logger *slog.Logger, purpose model.CachePurpose, key model.CacheKey, resp github.Response) bool {
	err := a.store.Put(ctx, purpose, key, statusOf(resp), resp.Body)
	if errors.Is(err, cache.ErrExists) {
		logger.Debug("Cache entry already written", "purpose", purpose)
		return true
	}
	if err != nil {
		logger.Error("Failed to write cache entry", "purpose", purpose, "error", err)
		return false
	}
	return true
}
