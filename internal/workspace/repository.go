package workspace

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// StateStore holds one State per browser session id.
type StateStore interface {
	Load(sid string) (State, bool)
	Save(sid string, st State)
	Delete(sid string)
	Len() int
}

type cacheStore struct {
	cache   *cache.Cache
	sliding bool
}

// NewStateStore returns a go-cache backed store. A ttl <= 0 keeps sessions
// until the process exits and runs no janitor. Otherwise the ttl is an idle
// timeout: every Load or Save restarts it.
func NewStateStore(ttl time.Duration) StateStore {
	if ttl <= 0 {
		return &cacheStore{cache: cache.New(cache.NoExpiration, 0)}
	}
	return &cacheStore{cache: cache.New(ttl, ttl*2), sliding: true}
}

func (s *cacheStore) Load(sid string) (State, bool) {
	v, ok := s.cache.Get(sid)
	if !ok {
		return State{}, false
	}
	st, ok := v.(State)
	if ok && s.sliding {
		s.cache.Set(sid, st, cache.DefaultExpiration)
	}
	return st, ok
}

func (s *cacheStore) Save(sid string, st State) {
	s.cache.Set(sid, st, cache.DefaultExpiration)
}

func (s *cacheStore) Delete(sid string) {
	s.cache.Delete(sid)
}

func (s *cacheStore) Len() int {
	return s.cache.ItemCount()
}
