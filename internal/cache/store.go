// internal/cache/store.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github-file-miner/internal/model"
)

var (
	// ErrNotFound is returned when no entry exists for a key.
	ErrNotFound = errors.New("cache entry not found")
	// ErrExists is returned by Put when the entry was already written.
	ErrExists = errors.New("cache entry already exists")
)

// Backend persists raw entry documents, one per (purpose, key).
type Backend interface {
	List(ctx context.Context, purpose model.CachePurpose) ([]model.CacheKey, error)
	Read(ctx context.Context, purpose model.CachePurpose, key model.CacheKey) ([]byte, error)
	// Create stores data only if nothing exists under (purpose, key); otherwise ErrExists.
	Create(ctx context.Context, purpose model.CachePurpose, key model.CacheKey, data []byte) error
	Write(ctx context.Context, purpose model.CachePurpose, key model.CacheKey, data []byte) error
}

// Entry is the envelope stored for every cached API response.
type Entry struct {
	OwnerID   int64              `json:"owner_id"`
	RepoID    int64              `json:"repo_id"`
	Purpose   model.CachePurpose `json:"purpose"`
	Status    model.CacheStatus  `json:"status"`
	FetchedAt time.Time          `json:"fetched_at"`
	Payload   json.RawMessage    `json:"payload,omitempty"`
}

// Store is the presence-indexed cache used by tree acquisition.
// The index is built from a single listing per purpose when the store opens.
type Store struct {
	backend Backend
	logger  *slog.Logger
	flight  singleflight.Group

	mu    sync.RWMutex
	index map[model.CachePurpose]map[model.CacheKey]struct{}
}

// NewStore lists every purpose once and returns a Store backed by b.
func NewStore(ctx context.Context, b Backend, logger *slog.Logger) (*Store, error) {
	s := &Store{
		backend: b,
		logger:  logger,
		index:   make(map[model.CachePurpose]map[model.CacheKey]struct{}, len(model.Purposes)),
	}
	for _, p := range model.Purposes {
		keys, err := b.List(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("list cache purpose %s: %w", p, err)
		}
		set := make(map[model.CacheKey]struct{}, len(keys))
		for _, k := range keys {
			set[k] = struct{}{}
		}
		s.index[p] = set
		logger.Info("Cache index loaded", "purpose", p, "entries", len(keys))
	}
	return s, nil
}

// Has reports whether an entry exists for key under purpose.
func (s *Store) Has(purpose model.CachePurpose, key model.CacheKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[purpose][key]
	return ok
}

// Keys returns every key recorded under purpose, ordered by owner then repo id.
func (s *Store) Keys(purpose model.CachePurpose) []model.CacheKey {
	s.mu.RLock()
	keys := make([]model.CacheKey, 0, len(s.index[purpose]))
	for k := range s.index[purpose] {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].OwnerID != keys[j].OwnerID {
			return keys[i].OwnerID < keys[j].OwnerID
		}
		return keys[i].RepoID < keys[j].RepoID
	})
	return keys
}

// Get loads and decodes the entry for key under purpose.
func (s *Store) Get(ctx context.Context, purpose model.CachePurpose, key model.CacheKey) (*Entry, error) {
	if !s.Has(purpose, key) {
		return nil, ErrNotFound
	}
	data, err := s.backend.Read(ctx, purpose, key)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry %s/%s: %w", purpose, key, err)
	}
	return &e, nil
}

// Put creates the entry for key under purpose. It never overwrites.
func (s *Store) Put(ctx context.Context, purpose model.CachePurpose, key model.CacheKey, status model.CacheStatus, payload []byte) error {
	if s.Has(purpose, key) {
		return ErrExists
	}
	data, err := encode(purpose, key, status, payload)
	if err != nil {
		return err
	}
	if err := s.backend.Create(ctx, purpose, key, data); err != nil {
		if errors.Is(err, ErrExists) {
			s.remember(purpose, key)
		}
		return err
	}
	s.remember(purpose, key)
	return nil
}

// Replace writes the entry for key under purpose whether or not one exists.
// Only the master fallback uses it, to swap in the default branch response.
func (s *Store) Replace(ctx context.Context, purpose model.CachePurpose, key model.CacheKey, status model.CacheStatus, payload []byte) error {
	data, err := encode(purpose, key, status, payload)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, purpose, key, data); err != nil {
		return err
	}
	s.remember(purpose, key)
	return nil
}

// Do runs fn at most once at a time per key; concurrent callers for the same
// key wait and share its result.
func (s *Store) Do(key model.CacheKey, fn func() (any, error)) (any, error) {
	v, err, _ := s.flight.Do(key.String(), fn)
	return v, err
}

func (s *Store) remember(purpose model.CachePurpose, key model.CacheKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index[purpose] == nil {
		s.index[purpose] = make(map[model.CacheKey]struct{})
	}
	s.index[purpose][key] = struct{}{}
}

func encode(purpose model.CachePurpose, key model.CacheKey, status model.CacheStatus, payload []byte) ([]byte, error) {
	e := Entry{
		OwnerID:   key.OwnerID,
		RepoID:    key.RepoID,
		Purpose:   purpose,
		Status:    status,
		FetchedAt: time.Now().UTC(),
	}
	if len(payload) > 0 {
		if !json.Valid(payload) {
			return nil, fmt.Errorf("payload for %s/%s is not valid JSON", purpose, key)
		}
		e.Payload = json.RawMessage(payload)
	}
	return json.Marshal(e)
}
