// Package bgsync records deferred tasks while connectivity is unavailable
// and replays them once the platform signals it is restored. It is a
// registration/dispatch contract only, durable payload staging lives with
// the caller.
package bgsync

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoHandler is returned when a sync fires for an unbound tag
	ErrNoHandler = errors.New("no handler bound for sync tag")
	// ErrNotPending is returned when a sync fires for an unregistered tag
	ErrNotPending = errors.New("sync tag is not pending")
)

// Handler redeems one sync tag once connectivity is confirmed restored
type Handler func(ctx context.Context) error

// New returns an empty registrar
func New() *Registrar {
	return &Registrar{
		pending:  make(map[string]bool),
		handlers: make(map[string]Handler),
		m:        &sync.Mutex{},
	}
}

// Registrar binds sync tags to handlers and tracks which tags are pending
type Registrar struct {
	pending  map[string]bool
	handlers map[string]Handler
	m        *sync.Mutex
}

// RegisterTask records intent to run the tag's handler once connectivity
// returns. Registering an already pending tag is a no-op.
func (r *Registrar) RegisterTask(tag string) {
	r.m.Lock()
	defer r.m.Unlock()
	if !r.pending[tag] {
		log.Debugf("registered sync task %q", tag)
	}
	r.pending[tag] = true
}

// OnSync binds a handler to a tag, replacing any previous binding
func (r *Registrar) OnSync(tag string, h Handler) {
	r.m.Lock()
	defer r.m.Unlock()
	r.handlers[tag] = h
}

// Pending reports whether the tag awaits a connectivity signal
func (r *Registrar) Pending(tag string) bool {
	r.m.Lock()
	defer r.m.Unlock()

	return r.pending[tag]
}

// Dispatch handles a platform connectivity signal for a tag, invoking the
// bound handler once. A failed handler leaves the tag pending so the
// platform may redeliver the signal later, retry policy is the platform's.
func (r *Registrar) Dispatch(ctx context.Context, tag string) error {
	r.m.Lock()
	pending := r.pending[tag]
	h := r.handlers[tag]
	r.m.Unlock()

	if !pending {
		return ErrNotPending
	}
	if h == nil {
		log.Warnf("sync signal for %q has no bound handler", tag)
		return ErrNoHandler
	}

	if err := h(ctx); err != nil {
		log.Errorf("sync handler for %q failed: %s", tag, err)
		return errors.Wrapf(err, "sync handler for %q failed", tag)
	}

	r.m.Lock()
	delete(r.pending, tag)
	r.m.Unlock()

	return nil
}
