package artifactcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nektos/artifact-relay/pkg/model"
)

// store holds at most one entry per workflow. The least recently used workflow is evicted once
// the size limit is reached.
type store struct {
	// serializes prune against put, so a fresh entry is never pruned by a stale read
	m       sync.Mutex
	entries *lru.Cache
}

func newStore(size int) (*store, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &store{entries: entries}, nil
}

func (s *store) get(workflow model.Workflow) (*Latest, bool) {
	v, ok := s.entries.Get(workflow)
	if !ok {
		return nil, false
	}
	return v.(*Latest), true
}

func (s *store) put(workflow model.Workflow, latest *Latest) {
	s.m.Lock()
	defer s.m.Unlock()
	s.entries.Add(workflow, latest)
}

// prune removes every entry that is no longer served, those whose expiry is not after now
func (s *store) prune(now time.Time) int {
	s.m.Lock()
	defer s.m.Unlock()

	removed := 0
	for _, key := range s.entries.Keys() {
		v, ok := s.entries.Peek(key)
		if !ok {
			continue
		}
		if !now.Before(v.(*Latest).Expiry) {
			s.entries.Remove(key)
			removed++
		}
	}
	return removed
}

func (s *store) len() int {
	return s.entries.Len()
}
