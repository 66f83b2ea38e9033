package push

import (
	"context"

	"github.com/pkg/errors"
)

// Permission represents the outcome of a notification permission request
type Permission string

const (
	// PermissionGranted means notifications may be shown
	PermissionGranted Permission = "granted"
	// PermissionDenied means the user declined notifications
	PermissionDenied Permission = "denied"
)

var (
	// ErrPermissionDenied is returned when the user declined notifications
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrNoPlatform is returned when no push platform is attached
	ErrNoPlatform = errors.New("no push platform attached")
)

// Platform is the bridge to the host's push mechanism. The agent only
// consumes it, the actual permission prompt, subscription derivation and
// revocation live outside this subsystem.
type Platform interface {
	// RequestPermission asks the user for notification permission
	RequestPermission(ctx context.Context) (Permission, error)
	// Subscribe derives a new subscription from the raw server key.
	// Implementations must request user-visible-only delivery, every push
	// has to surface a notification.
	Subscribe(ctx context.Context, serverKey []byte) (*Subscription, error)
	// Unsubscribe revokes the subscription with the given endpoint
	Unsubscribe(ctx context.Context, endpoint string) error
}

// UnsupportedPlatform rejects every operation. It is the default when the
// agent runs without a host bridge.
type UnsupportedPlatform struct{}

// RequestPermission implements Platform
func (UnsupportedPlatform) RequestPermission(ctx context.Context) (Permission, error) {
	return PermissionDenied, ErrNoPlatform
}

// Subscribe implements Platform
func (UnsupportedPlatform) Subscribe(ctx context.Context, serverKey []byte) (*Subscription, error) {
	return nil, ErrNoPlatform
}

// Unsubscribe implements Platform
func (UnsupportedPlatform) Unsubscribe(ctx context.Context, endpoint string) error {
	return ErrNoPlatform
}
