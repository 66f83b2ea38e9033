package push

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
)

// subscriptionKey is the fixed leveldb key holding the active subscription
var subscriptionKey = []byte("subscription")

// Subscription is the platform-issued credential that lets the backend wake
// this client with push messages.
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys holds the client key material of a subscription
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Backend holds the external endpoints the manager reconciles with
type Backend struct {
	SubscribeURL   string
	UnsubscribeURL string
	PublicKeyURL   string
}

// NewManager returns a subscription manager backed by a leveldb store at
// storePath, so the same logical subscription survives agent restarts.
func NewManager(storePath string, platform Platform, backend Backend) (*Manager, error) {
	if platform == nil {
		platform = UnsupportedPlatform{}
	}
	db, err := leveldb.OpenFile(storePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open subscription store")
	}

	m := &Manager{
		db:       db,
		platform: platform,
		backend:  backend,
		http:     &http.Client{},
		m:        &sync.Mutex{},
	}
	if err := m.load(); err != nil {
		db.Close()
		return nil, err
	}

	return m, nil
}

// Manager owns the client's single push subscription and reconciles it with
// the external backend.
type Manager struct {
	db       *leveldb.DB
	platform Platform
	backend  Backend
	http     *http.Client
	sub      *Subscription
	m        *sync.Mutex
}

// Close releases the underlying subscription store
func (m *Manager) Close() error {
	return m.db.Close()
}

// Current returns a copy of the active subscription, nil when unsubscribed
func (m *Manager) Current() *Subscription {
	m.m.Lock()
	defer m.m.Unlock()
	if m.sub == nil {
		return nil
	}
	sub := *m.sub

	return &sub
}

// RequestPermission asks the platform for notification permission.
// On denial no subscription is attempted and ErrPermissionDenied is
// returned, re-triggering is up to the user.
func (m *Manager) RequestPermission(ctx context.Context) error {
	perm, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return errors.Wrap(err, "permission request failed")
	}
	if perm != PermissionGranted {
		return ErrPermissionDenied
	}

	return nil
}

// Subscribe derives a subscription from the server's public key and persists
// it locally and with the backend. Idempotent: an existing subscription is
// reused without touching the platform. A failed backend persist leaves the
// local subscription in place, reconciliation happens on a later app start.
func (m *Manager) Subscribe(ctx context.Context, publicKey string) (*Subscription, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.sub != nil {
		sub := *m.sub
		return &sub, nil
	}

	rawKey, err := DecodeServerKey(publicKey)
	if err != nil {
		return nil, err
	}
	sub, err := m.platform.Subscribe(ctx, rawKey)
	if err != nil {
		return nil, errors.Wrap(err, "platform subscribe failed")
	}
	if err := m.persist(sub); err != nil {
		return nil, err
	}
	m.sub = sub

	if err := m.postJSON(ctx, m.backend.SubscribeURL, sub); err != nil {
		// tolerated inconsistency, never rolled back
		log.Warnf("failed to persist subscription with backend: %s", err)
	}

	result := *sub

	return &result, nil
}

// Unsubscribe drops the subscription. The backend is notified before the
// local revoke to minimize the chance of stale-subscription sends. Without
// an active subscription this is a no-op.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.sub == nil {
		return nil
	}
	endpoint := m.sub.Endpoint

	payload := map[string]string{"endpoint": endpoint}
	if err := m.postJSON(ctx, m.backend.UnsubscribeURL, payload); err != nil {
		log.Warnf("failed to notify backend of unsubscribe: %s", err)
	}

	if err := m.platform.Unsubscribe(ctx, endpoint); err != nil {
		return errors.Wrap(err, "platform unsubscribe failed")
	}
	if err := m.db.Delete(subscriptionKey, nil); err != nil {
		return errors.Wrap(err, "failed to delete stored subscription")
	}
	m.sub = nil

	return nil
}

// FetchPublicKey retrieves the server's push public key from the backend
func (m *Manager) FetchPublicKey(ctx context.Context) (string, error) {
	if m.backend.PublicKeyURL == "" {
		return "", errors.New("no public key endpoint configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.backend.PublicKeyURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build public key request")
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "public key request failed")
	}
	defer resp.Body.Close()

	var body struct {
		PublicKey string `json:"publicKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "failed to parse public key response")
	}
	if body.PublicKey == "" {
		return "", errors.New("backend returned an empty public key")
	}

	return body.PublicKey, nil
}

// DecodeServerKey converts a base64url-encoded server public key into the
// raw key material the platform subscribe call requires: substitute the
// standard alphabet ('-' to '+', '_' to '/'), pad to a multiple of 4, then
// decode.
func DecodeServerKey(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("server public key is empty")
	}
	s := strings.ReplaceAll(key, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode server public key")
	}

	return raw, nil
}

func (m *Manager) load() error {
	data, err := m.db.Get(subscriptionKey, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read stored subscription")
	}
	sub := &Subscription{}
	if err := json.Unmarshal(data, sub); err != nil {
		return errors.Wrap(err, "failed to parse stored subscription")
	}
	m.sub = sub

	return nil
}

func (m *Manager) persist(sub *Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return errors.Wrap(err, "failed to marshal subscription")
	}
	if err := m.db.Put(subscriptionKey, data, nil); err != nil {
		return errors.Wrap(err, "failed to store subscription")
	}

	return nil
}

func (m *Manager) postJSON(ctx context.Context, url string, payload interface{}) error {
	if url == "" {
		return errors.New("no backend endpoint configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to build backend request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "backend request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("backend returned status %d", resp.StatusCode)
	}

	return nil
}
