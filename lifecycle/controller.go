package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chrisvdg/offlineagent/agent"
	"github.com/chrisvdg/offlineagent/cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// State represents the lifecycle state of a generation
type State string

const (
	// StateNew represents a controller that has not installed yet
	StateNew State = "new"
	// StateInstalling represents a generation populating its static bucket
	StateInstalling State = "installing"
	// StateActivating represents a generation sweeping stale buckets
	StateActivating State = "activating"
	// StateActive represents the generation currently serving clients
	StateActive State = "active"
)

// ClaimFunc is invoked when a freshly activated generation takes control of
// in-flight clients, with the new generation's bucket names.
type ClaimFunc func(staticName, dynamicName string)

// StaticBucketName returns the static bucket name for a version tag
func StaticBucketName(version string) string {
	return fmt.Sprintf("static-%s", version)
}

// DynamicBucketName returns the dynamic bucket name for a version tag
func DynamicBucketName(version string) string {
	return fmt.Sprintf("dynamic-%s", version)
}

// New returns a lifecycle controller for the given generation.
// The fetcher must resolve the manifest's client-relative asset paths, the
// manifest is the fixed list of assets the static bucket must hold.
func New(store *cache.Store, fetcher agent.Fetcher, version string, manifest []string) *Controller {
	return &Controller{
		store:    store,
		fetcher:  fetcher,
		version:  version,
		manifest: manifest,
		state:    StateNew,
		m:        &sync.Mutex{},
	}
}

// Controller drives the install and activate transitions of one generation
type Controller struct {
	store    *cache.Store
	fetcher  agent.Fetcher
	version  string
	manifest []string
	state    State
	claims   []ClaimFunc
	m        *sync.Mutex
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.m.Lock()
	defer c.m.Unlock()

	return c.state
}

// Version returns the generation's version tag
func (c *Controller) Version() string {
	return c.version
}

// OnClaim registers a callback invoked when this generation claims clients
func (c *Controller) OnClaim(fn ClaimFunc) {
	c.m.Lock()
	defer c.m.Unlock()
	c.claims = append(c.claims, fn)
}

// Install populates the static bucket from the manifest, all-or-nothing.
// The bucket is staged detached and only adopted once every asset fetched
// successfully, so a failed install leaves the previous generation's buckets
// untouched. A successful install skips the waiting period so the generation
// can activate immediately.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)
	log.Infof("installing generation %s (%d assets)", c.version, len(c.manifest))

	staged := cache.NewBucket(StaticBucketName(c.version))
	for _, asset := range c.manifest {
		key, resp, err := c.fetchAsset(ctx, asset)
		if err != nil {
			c.setState(StateNew)
			return errors.Wrapf(err, "install of generation %s failed on %s", c.version, asset)
		}
		staged.Put(key, resp)
	}

	c.store.Adopt(staged)
	log.Infof("generation %s installed, skipping waiting period", c.version)

	return nil
}

// Activate sweeps buckets from older generations and claims clients.
// The keep set is exactly this generation's static and dynamic bucket names.
// Sweep failures are best-effort per bucket and never abort activation.
func (c *Controller) Activate() {
	c.setState(StateActivating)
	staticName := StaticBucketName(c.version)
	dynamicName := DynamicBucketName(c.version)

	// make sure the dynamic bucket exists before clients start writing
	c.store.Open(dynamicName)
	c.store.Sweep([]string{staticName, dynamicName})

	c.m.Lock()
	claims := make([]ClaimFunc, len(c.claims))
	copy(claims, c.claims)
	c.m.Unlock()
	for _, claim := range claims {
		claim(staticName, dynamicName)
	}

	c.setState(StateActive)
	log.Infof("generation %s active, claimed %d client(s)", c.version, len(claims))
}

func (c *Controller) setState(s State) {
	c.m.Lock()
	defer c.m.Unlock()
	c.state = s
}

// fetchAsset fetches one manifest asset and returns its cache key and
// snapshot. A non-ok status fails the install just like a transport failure,
// required assets must exist.
func (c *Controller) fetchAsset(ctx context.Context, asset string) (string, cache.StoredResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
	if err != nil {
		return "", cache.StoredResponse{}, errors.Wrap(err, "failed to build asset request")
	}
	resp, err := c.fetcher.Do(req)
	if err != nil {
		return "", cache.StoredResponse{}, errors.Wrap(err, "asset fetch failed")
	}
	stored, err := cache.Snapshot(resp)
	if err != nil {
		return "", cache.StoredResponse{}, err
	}
	if !stored.OK() {
		return "", cache.StoredResponse{}, errors.Errorf("asset fetch returned status %d", stored.Status)
	}

	return cache.RequestKey(req), stored, nil
}
