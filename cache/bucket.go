package cache

import (
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrEntryNotFound represents an error where a cache entry was not found
	ErrEntryNotFound = errors.New("cache entry not found")
)

// RequestKey returns the normalized cache key for a request.
// Query parameters are re-encoded so equivalent URLs map to the same entry.
func RequestKey(req *http.Request) string {
	u := *req.URL
	u.RawQuery = u.Query().Encode()
	u.Fragment = ""

	return u.String()
}

// NewBucket returns an empty bucket with the given name.
// The bucket is detached until adopted by a store, which lets callers stage
// an install and publish it all-or-nothing.
func NewBucket(name string) *Bucket {
	return &Bucket{
		name:    name,
		entries: make(map[string]StoredResponse),
		m:       &sync.Mutex{},
	}
}

// Bucket is a named store of response snapshots keyed by normalized URL.
type Bucket struct {
	name    string
	entries map[string]StoredResponse
	m       *sync.Mutex
}

// Name returns the bucket name
func (b *Bucket) Name() string {
	return b.name
}

// Put stores a snapshot under the given key, replacing any previous entry.
// Writes replace whole entries so concurrent writers to the same key are
// safe, last write wins.
func (b *Bucket) Put(key string, resp StoredResponse) {
	b.m.Lock()
	defer b.m.Unlock()
	b.entries[key] = resp
}

// Match returns a copy of the entry stored under key
func (b *Bucket) Match(key string) (StoredResponse, error) {
	b.m.Lock()
	defer b.m.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return StoredResponse{}, ErrEntryNotFound
	}

	return e.Clone(), nil
}

// Len returns the number of entries in the bucket
func (b *Bucket) Len() int {
	b.m.Lock()
	defer b.m.Unlock()

	return len(b.entries)
}

// Keys returns the request keys currently stored in the bucket
func (b *Bucket) Keys() []string {
	b.m.Lock()
	defer b.m.Unlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}

	return keys
}
