package template

import (
	"sync"
	"sync/atomic"
)

// SequenceStore holds the named counters behind {{sequence("name")}}.
// It is safe for concurrent use.
type SequenceStore struct {
	counters sync.Map // name -> *atomic.Int64
}

// NewSequenceStore creates an empty store.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{}
}

// Next returns the current value of the named sequence and advances it. A
// sequence seen for the first time starts at start.
func (s *SequenceStore) Next(name string, start int64) int64 {
	c, ok := s.counters.Load(name)
	if !ok {
		fresh := new(atomic.Int64)
		fresh.Store(start)
		c, _ = s.counters.LoadOrStore(name, fresh)
	}
	return c.(*atomic.Int64).Add(1) - 1
}

// Reset forgets a sequence so that it restarts from its start value.
func (s *SequenceStore) Reset(name string) {
	s.counters.Delete(name)
}
