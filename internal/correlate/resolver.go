// internal/correlate/resolver.go
package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github-file-miner/internal/cache"
	"github-file-miner/internal/github"
	"github-file-miner/internal/model"
)

// RawContentBase is the host serving raw file contents.
const RawContentBase = "https://raw.githubusercontent.com/"

type branchLookup struct {
	name string
	ok   bool
}

// Resolver turns classifier hits into raw-content URLs, using the branch
// recorded by tree acquisition.
type Resolver struct {
	index    *Index
	store    *cache.Store
	logger   *slog.Logger
	branches *lru.Cache[model.CacheKey, branchLookup]
}

// NewResolver creates a Resolver. cacheSize bounds the number of memoized
// branch lookups.
func NewResolver(index *Index, store *cache.Store, cacheSize int, logger *slog.Logger) (*Resolver, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	branches, err := lru.New[model.CacheKey, branchLookup](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create branch cache: %w", err)
	}
	return &Resolver{index: index, store: store, logger: logger, branches: branches}, nil
}

// Branch returns the branch a repository's tree was taken from: the
// default branch recorded under the default purpose when present, master
// otherwise. ok is false when a default entry exists but names no branch.
func (r *Resolver) Branch(ctx context.Context, key model.CacheKey) (string, bool) {
	if v, hit := r.branches.Get(key); hit {
		return v.name, v.ok
	}
	v := r.lookupBranch(ctx, key)
	r.branches.Add(key, v)
	return v.name, v.ok
}

func (r *Resolver) lookupBranch(ctx context.Context, key model.CacheKey) branchLookup {
	entry, err := r.store.Get(ctx, model.PurposeDefault, key)
	if errors.Is(err, cache.ErrNotFound) {
		return branchLookup{name: "master", ok: true}
	}
	if err != nil {
		r.logger.Error("Failed to read default branch entry", "key", key.String(), "error", err)
		return branchLookup{}
	}
	if len(entry.Payload) == 0 {
		r.logger.Error("Default branch entry has no payload", "key", key.String())
		return branchLookup{}
	}
	name, err := github.DefaultBranch(entry.Payload)
	if err != nil || name == "" {
		r.logger.Error("Default branch entry names no branch", "key", key.String(), "error", err)
		return branchLookup{}
	}
	return branchLookup{name: name, ok: true}
}

// RawURL builds the raw-content URL of a hit. ok is false when the hit's
// branch cannot be determined.
func (r *Resolver) RawURL(ctx context.Context, hit Hit) (string, bool) {
	branch := "master"
	if key, known := r.index.Key(hit.Owner, hit.Repo); known {
		var ok bool
		if branch, ok = r.Branch(ctx, key); !ok {
			return "", false
		}
	} else {
		r.logger.Debug("Repository not in project list, assuming master", "owner", hit.Owner, "repo", hit.Repo)
	}
	return RawContentBase + hit.Owner + "/" + hit.Repo + "/" + branch + "/" + hit.Path, true
}

// RawURLs resolves every hit, dropping the ones without a known branch.
func (r *Resolver) RawURLs(ctx context.Context, hits []Hit) []string {
	urls := make([]string, 0, len(hits))
	for _, h := range hits {
		if u, ok := r.RawURL(ctx, h); ok {
			urls = append(urls, u)
		}
	}
	return urls
}
