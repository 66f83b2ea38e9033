package push

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakePlatform struct {
	permission     Permission
	subscribes     int
	unsubscribes   int
	lastServerKey  []byte
	subscribeError error
}

func (p *fakePlatform) RequestPermission(ctx context.Context) (Permission, error) {
	return p.permission, nil
}

func (p *fakePlatform) Subscribe(ctx context.Context, serverKey []byte) (*Subscription, error) {
	p.subscribes++
	if p.subscribeError != nil {
		return nil, p.subscribeError
	}
	p.lastServerKey = serverKey

	return &Subscription{
		Endpoint: "https://fcm.googleapis.com/fcm/send/abc123",
		Keys: SubscriptionKeys{
			P256dh: "client-public",
			Auth:   "client-auth",
		},
	}, nil
}

func (p *fakePlatform) Unsubscribe(ctx context.Context, endpoint string) error {
	p.unsubscribes++
	return nil
}

func newTestManager(t *testing.T, platform Platform, backend Backend) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "push.db"), platform, backend)
	assert.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m
}

// testServerKey is a base64url string that needs both alphabet substitution
// and padding to decode.
var testServerKey = base64.RawURLEncoding.EncodeToString([]byte{0x04, 0xfb, 0xff, 0xfe, 0x01, 0x02, 0x03})

func TestDecodeServerKey(t *testing.T) {
	assert := assert.New(t)

	raw, err := DecodeServerKey(testServerKey)
	assert.NoError(err)
	assert.Equal([]byte{0x04, 0xfb, 0xff, 0xfe, 0x01, 0x02, 0x03}, raw)

	_, err = DecodeServerKey("")
	assert.Error(err)

	_, err = DecodeServerKey("not valid base64 at all!!")
	assert.Error(err)
}

func TestRequestPermissionDenied(t *testing.T) {
	assert := assert.New(t)
	m := newTestManager(t, &fakePlatform{permission: PermissionDenied}, Backend{})

	err := m.RequestPermission(context.Background())
	assert.Equal(ErrPermissionDenied, errors.Cause(err))
}

func TestSubscribeIdempotent(t *testing.T) {
	assert := assert.New(t)
	backendSrv := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusOK)
	}))
	defer backendSrv.Close()

	platform := &fakePlatform{permission: PermissionGranted}
	m := newTestManager(t, platform, Backend{SubscribeURL: backendSrv.URL})

	first, err := m.Subscribe(context.Background(), testServerKey)
	assert.NoError(err)
	second, err := m.Subscribe(context.Background(), testServerKey)
	assert.NoError(err)

	assert.Equal(first.Endpoint, second.Endpoint)
	assert.Equal(1, platform.subscribes, "existing subscription must be reused")
	assert.Equal([]byte{0x04, 0xfb, 0xff, 0xfe, 0x01, 0x02, 0x03}, platform.lastServerKey)
}

func TestSubscribeBackendFailureKeepsLocal(t *testing.T) {
	assert := assert.New(t)
	backendSrv := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusInternalServerError)
	}))
	defer backendSrv.Close()

	platform := &fakePlatform{permission: PermissionGranted}
	m := newTestManager(t, platform, Backend{SubscribeURL: backendSrv.URL})

	sub, err := m.Subscribe(context.Background(), testServerKey)
	assert.NoError(err, "backend persistence failure must not fail the subscribe")
	assert.NotNil(sub)
	assert.NotNil(m.Current(), "subscription must remain locally, no rollback")
}

func TestSubscriptionSurvivesRestart(t *testing.T) {
	assert := assert.New(t)
	storePath := filepath.Join(t.TempDir(), "push.db")
	platform := &fakePlatform{permission: PermissionGranted}

	m, err := NewManager(storePath, platform, Backend{})
	assert.NoError(err)
	sub, err := m.Subscribe(context.Background(), testServerKey)
	assert.NoError(err)
	assert.NoError(m.Close())

	reopened, err := NewManager(storePath, platform, Backend{})
	assert.NoError(err)
	defer reopened.Close()

	current := reopened.Current()
	assert.NotNil(current)
	assert.Equal(sub.Endpoint, current.Endpoint)
	assert.Equal(1, platform.subscribes)
}

func TestUnsubscribe(t *testing.T) {
	assert := assert.New(t)
	var removed bool
	backendSrv := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		removed = true
		res.WriteHeader(http.StatusOK)
	}))
	defer backendSrv.Close()

	platform := &fakePlatform{permission: PermissionGranted}
	m := newTestManager(t, platform, Backend{UnsubscribeURL: backendSrv.URL})

	// no active subscription, no-op
	assert.NoError(m.Unsubscribe(context.Background()))
	assert.Equal(0, platform.unsubscribes)
	assert.False(removed)

	_, err := m.Subscribe(context.Background(), testServerKey)
	assert.NoError(err)
	assert.NoError(m.Unsubscribe(context.Background()))
	assert.True(removed, "backend must be notified before the local revoke")
	assert.Equal(1, platform.unsubscribes)
	assert.Nil(m.Current())
}

func TestFetchPublicKey(t *testing.T) {
	assert := assert.New(t)
	backendSrv := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.Header().Set("Content-Type", "application/json")
		res.Write([]byte(`{"success": true, "publicKey": "` + testServerKey + `"}`))
	}))
	defer backendSrv.Close()

	m := newTestManager(t, &fakePlatform{}, Backend{PublicKeyURL: backendSrv.URL})

	key, err := m.FetchPublicKey(context.Background())
	assert.NoError(err)
	assert.Equal(testServerKey, key)
}
