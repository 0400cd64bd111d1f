package account

import (
	"context"
	"sort"
	"sync"
)

type Repository interface {
	GetByUsername(ctx context.Context, username string) (*User, bool)
	List(ctx context.Context) []User
}

type memoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewRepository(users []User) Repository {
	r := &memoryRepo{users: make(map[string]User, len(users))}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func (r *memoryRepo) GetByUsername(ctx context.Context, username string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, false
	}
	return &u, true
}

func (r *memoryRepo) List(ctx context.Context) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
