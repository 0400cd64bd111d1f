package annotation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type Repository interface {
	// Save stores a under k, replacing any previous entry. It reports
	// whether an entry was replaced.
	Save(ctx context.Context, k Key, a Annotation) (bool, error)
	Get(ctx context.Context, k Key) (Annotation, error)
	ListByDataset(ctx context.Context, username, datasetID string) ([]Entry, error)
	Count(ctx context.Context) int
}

type memoryRepo struct {
	mu      sync.RWMutex
	entries map[Key]Annotation
}

func NewRepository() Repository {
	return &memoryRepo{entries: make(map[Key]Annotation)}
}

func (r *memoryRepo) Save(ctx context.Context, k Key, a Annotation) (bool, error) {
	if _, err := ParseStatus(string(a.Status)); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.entries[k]
	r.entries[k] = a
	return replaced, nil
}

func (r *memoryRepo) Get(ctx context.Context, k Key) (Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.entries[k]
	if !ok {
		return Annotation{}, fmt.Errorf("%s: %w", k, ErrNotFound)
	}
	return a, nil
}

// ListByDataset returns the user's annotations for a dataset ordered by record id.
func (r *memoryRepo) ListByDataset(ctx context.Context, username, datasetID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for k, a := range r.entries {
		if k.Username == username && k.DatasetID == datasetID {
			out = append(out, Entry{Key: k, Annotation: a})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.RecordID < out[j].Key.RecordID })
	return out, nil
}

func (r *memoryRepo) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
