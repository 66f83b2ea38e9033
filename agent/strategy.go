package agent

import (
	"net/http"
	"sync"

	"github.com/chrisvdg/offlineagent/cache"
	log "github.com/sirupsen/logrus"
)

// Fetcher executes a network request. *http.Client satisfies it, tests
// substitute fakes to observe or fail network calls.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewExecutor returns a strategy executor over the given fetcher and store.
// The generation bucket names are set by the lifecycle controller on
// activation.
func NewExecutor(fetcher Fetcher, store *cache.Store) *Executor {
	return &Executor{
		fetcher: fetcher,
		store:   store,
		m:       &sync.Mutex{},
	}
}

// Executor orchestrates bucket reads/writes and network calls per strategy
type Executor struct {
	fetcher     Fetcher
	store       *cache.Store
	staticName  string
	dynamicName string
	m           *sync.Mutex
}

// SetGeneration repoints the executor at the given generation's buckets.
// Called by the lifecycle controller when it claims clients on activation.
func (e *Executor) SetGeneration(staticName, dynamicName string) {
	e.m.Lock()
	defer e.m.Unlock()
	e.staticName = staticName
	e.dynamicName = dynamicName
}

// Execute runs the strategy matching the route class
func (e *Executor) Execute(class RouteClass, req *http.Request) cache.StoredResponse {
	if class == RouteAPI {
		return e.NetworkFirst(req)
	}

	return e.CacheFirst(req)
}

// CacheFirst serves from the cache when possible, falling back to the
// network and finally to a synthesized offline response. The bucket lookup
// always precedes the network attempt, a hit never touches the network.
func (e *Executor) CacheFirst(req *http.Request) cache.StoredResponse {
	key := cache.RequestKey(req)
	if cached, err := e.lookup(key); err == nil {
		log.Debugf("cache-first hit for %s", key)
		return cached
	}

	resp, err := e.fetch(req)
	if err != nil {
		log.Debugf("cache-first network failure for %s: %s", key, err)
		return Fallback(req)
	}
	e.cacheResult(req, key, resp)

	return resp
}

// NetworkFirst prefers a fresh response, falling back to the cache and
// finally to a synthesized offline response. The network attempt always
// precedes any bucket read.
func (e *Executor) NetworkFirst(req *http.Request) cache.StoredResponse {
	key := cache.RequestKey(req)
	resp, err := e.fetch(req)
	if err == nil {
		e.cacheResult(req, key, resp)
		return resp
	}
	log.Debugf("network-first falling back to cache for %s: %s", key, err)

	if cached, lookupErr := e.lookup(key); lookupErr == nil {
		return cached
	}

	return Fallback(req)
}

// fetch performs the network call and snapshots the result. Non-ok statuses
// are returned as a valid snapshot, only transport failures return an error.
func (e *Executor) fetch(req *http.Request) (cache.StoredResponse, error) {
	resp, err := e.fetcher.Do(req)
	if err != nil {
		return cache.StoredResponse{}, err
	}

	return cache.Snapshot(resp)
}

// lookup searches the current generation's buckets, static before dynamic
func (e *Executor) lookup(key string) (cache.StoredResponse, error) {
	e.m.Lock()
	names := []string{e.staticName, e.dynamicName}
	e.m.Unlock()

	for _, name := range names {
		if name == "" {
			continue
		}
		b, ok := e.store.Get(name)
		if !ok {
			continue
		}
		if resp, err := b.Match(key); err == nil {
			return resp, nil
		}
	}

	return cache.StoredResponse{}, cache.ErrEntryNotFound
}

// cacheResult writes a successful GET response through to the dynamic
// bucket. Failures are logged and treated as a cache miss, the caller still
// returns the response from the source that produced it.
func (e *Executor) cacheResult(req *http.Request, key string, resp cache.StoredResponse) {
	if req.Method != http.MethodGet || !resp.OK() {
		return
	}
	e.m.Lock()
	name := e.dynamicName
	e.m.Unlock()
	if name == "" {
		log.Debug("no dynamic bucket active, skipping cache write")
		return
	}
	e.store.Open(name).Put(key, resp.Clone())
}
