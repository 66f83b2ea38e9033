package cache

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// NewStore returns an empty bucket store
func NewStore() *Store {
	return &Store{
		buckets: make(map[string]*Bucket),
		m:       &sync.Mutex{},
	}
}

// Store is an arena of named buckets. Each agent instance owns its own store,
// buckets are never shared across instances.
type Store struct {
	buckets map[string]*Bucket
	m       *sync.Mutex
}

// Open returns the bucket with the given name, creating it when absent.
// Dynamic buckets come to life on first write through this call.
func (s *Store) Open(name string) *Bucket {
	s.m.Lock()
	defer s.m.Unlock()
	b, ok := s.buckets[name]
	if !ok {
		b = NewBucket(name)
		s.buckets[name] = b
	}

	return b
}

// Get returns the bucket with the given name if it exists
func (s *Store) Get(name string) (*Bucket, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	b, ok := s.buckets[name]

	return b, ok
}

// Adopt publishes a staged bucket into the store, replacing any bucket with
// the same name in one step.
func (s *Store) Adopt(b *Bucket) {
	s.m.Lock()
	defer s.m.Unlock()
	s.buckets[b.name] = b
}

// Delete removes the bucket with the given name
func (s *Store) Delete(name string) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.buckets, name)
}

// Names returns the names of all buckets currently in the store
func (s *Store) Names() []string {
	s.m.Lock()
	defer s.m.Unlock()
	names := make([]string, 0, len(s.buckets))
	for n := range s.buckets {
		names = append(names, n)
	}

	return names
}

// Sweep deletes every bucket whose name is not in the keep set.
// Cleanup is best-effort per bucket, a failed deletion never aborts the sweep.
func (s *Store) Sweep(keep []string) {
	log.Debug("Started sweeping stale buckets")
	for _, name := range s.Names() {
		if inStringSlice(keep, name) {
			continue
		}
		log.Debugf("Deleting stale bucket %s", name)
		s.Delete(name)
	}
	log.Debug("Finished sweeping stale buckets")
}

func inStringSlice(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}
