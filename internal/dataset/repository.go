package dataset

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type Repository interface {
	List(ctx context.Context) ([]Summary, error)
	GetByID(ctx context.Context, id string) (*Dataset, error)
}

type memoryRepo struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewRepository returns an in-memory repository holding the given datasets.
func NewRepository(datasets []Dataset) Repository {
	r := &memoryRepo{datasets: make(map[string]*Dataset, len(datasets))}
	for i := range datasets {
		d := datasets[i]
		r.datasets[d.ID] = &d
	}
	return r
}

// List returns every dataset ordered by id.
func (r *memoryRepo) List(ctx context.Context) ([]Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.datasets))
	for _, d := range r.datasets {
		out = append(out, d.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", id, ErrNotFound)
	}
	return d, nil
}
