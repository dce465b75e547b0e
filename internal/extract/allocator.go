// internal/extract/allocator.go
package extract

import (
	"strings"
	"sync"
	"sync/atomic"

	"github-file-miner/internal/model"
)

// Allocator hands out run-wide surrogate ids. Every sequence starts at 1,
// increases by one per allocation and never reuses a value.
type Allocator struct {
	repos   atomic.Int64
	people  atomic.Int64
	commits atomic.Int64
	files   atomic.Int64

	mu      sync.Mutex
	persons map[string]int64
}

// NewAllocator creates an Allocator with every sequence at zero.
func NewAllocator() *Allocator {
	return &Allocator{persons: make(map[string]int64)}
}

func (a *Allocator) NextRepository() int64      { return a.repos.Add(1) }
func (a *Allocator) NextCommit() int64          { return a.commits.Add(1) }
func (a *Allocator) NextInterestingFile() int64 { return a.files.Add(1) }

// Person returns the id of the author, allocating a new Person the first
// time the author string is seen during the run.
func (a *Allocator) Person(author string) (model.Person, bool) {
	name, email := splitAuthor(author)
	key := author
	if name == unknownAuthor && email == unknownAuthor {
		key = unknownAuthor
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.persons[key]; ok {
		return model.Person{ID: id, Name: name, Email: email}, false
	}
	id := a.people.Add(1)
	a.persons[key] = id
	return model.Person{ID: id, Name: name, Email: email}, true
}

const unknownAuthor = "unknown"

// splitAuthor splits "Name <email>". Empty authors map to unknown.
func splitAuthor(author string) (name, email string) {
	author = strings.TrimSpace(author)
	if author == "" || author == "<>" {
		return unknownAuthor, unknownAuthor
	}
	name, email, found := strings.Cut(author, " <")
	if !found {
		if strings.HasPrefix(author, "<") {
			return "", strings.TrimSuffix(strings.TrimPrefix(author, "<"), ">")
		}
		return author, unknownAuthor
	}
	return name, strings.TrimSuffix(email, ">")
}
