// internal/cache/file.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github-file-miner/internal/model"
)

// FileBackend keeps one directory per purpose under root, each holding
// "<owner_id>:<repo_id>.json" documents.
type FileBackend struct {
	root string
}

// NewFileBackend creates the purpose directories under root if needed.
func NewFileBackend(root string) (*FileBackend, error) {
	for _, p := range model.Purposes {
		if err := os.MkdirAll(filepath.Join(root, string(p)), 0o755); err != nil {
			return nil, err
		}
	}
	return &FileBackend{root: root}, nil
}

func (b *FileBackend) List(_ context.Context, purpose model.CachePurpose) ([]model.CacheKey, error) {
	dirEntries, err := os.ReadDir(filepath.Join(b.root, string(purpose)))
	if err != nil {
		return nil, err
	}
	keys := make([]model.CacheKey, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		key, ok := ParseKey(de.Name())
		if !ok {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *FileBackend) Read(_ context.Context, purpose model.CachePurpose, key model.CacheKey) ([]byte, error) {
	data, err := os.ReadFile(b.path(purpose, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Create writes data to a temporary file and hard-links it into place, so
// the entry appears complete or not at all and an existing one is kept.
func (b *FileBackend) Create(_ context.Context, purpose model.CachePurpose, key model.CacheKey, data []byte) error {
	path := b.path(purpose, key)
	f, err := os.CreateTemp(filepath.Dir(path), ".create-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}
	return nil
}

func (b *FileBackend) Write(_ context.Context, purpose model.CachePurpose, key model.CacheKey, data []byte) error {
	path := b.path(purpose, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (b *FileBackend) path(purpose model.CachePurpose, key model.CacheKey) string {
	return filepath.Join(b.root, string(purpose), FileName(key))
}

// FileName is the document name used for key in every backend.
func FileName(key model.CacheKey) string {
	return fmt.Sprintf("%d:%d.json", key.OwnerID, key.RepoID)
}

// ParseKey is the inverse of FileName.
func ParseKey(name string) (model.CacheKey, bool) {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return model.CacheKey{}, false
	}
	owner, repo, ok := strings.Cut(base, ":")
	if !ok {
		return model.CacheKey{}, false
	}
	ownerID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return model.CacheKey{}, false
	}
	repoID, err := strconv.ParseInt(repo, 10, 64)
	if err != nil {
		return model.CacheKey{}, false
	}
	return model.CacheKey{OwnerID: ownerID, RepoID: repoID}, true
}
