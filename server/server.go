package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chrisvdg/offlineagent/agent"
	"github.com/chrisvdg/offlineagent/bgsync"
	"github.com/chrisvdg/offlineagent/cache"
	"github.com/chrisvdg/offlineagent/lifecycle"
	"github.com/chrisvdg/offlineagent/push"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// New creates a new agent server instance. platform bridges to the host's
// push mechanism, nil runs the agent without push support.
func New(c *Config, platform push.Platform) (*Server, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	fetcher, err := agent.NewOriginFetcher(c.Origin, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, err
	}

	store := cache.NewStore()
	executor := agent.NewExecutor(fetcher, store)
	classifier := agent.NewClassifier(c.APIPrefixes)

	controller := lifecycle.New(store, fetcher, c.Version, c.Manifest)
	controller.OnClaim(executor.SetGeneration)

	manager, err := push.NewManager(c.Push.StorePath, platform, push.Backend{
		SubscribeURL:   c.Push.SubscribeURL,
		UnsubscribeURL: c.Push.UnsubscribeURL,
		PublicKeyURL:   c.Push.PublicKeyURL,
	})
	if err != nil {
		return nil, err
	}

	receiver := push.NewReceiver(&logNotifier{}, &logWindows{})

	return &Server{
		c:          c,
		controller: controller,
		handlers:   newHandlers(classifier, executor, fetcher, manager, receiver, bgsync.New()),
		manager:    manager,
	}, nil
}

// Server represents an agent server instance
type Server struct {
	c          *Config
	controller *lifecycle.Controller
	handlers   *handlers
	manager    *push.Manager
}

// ListenAndServe installs and activates the configured generation, then
// listens for requests and serves them. An install failure is fatal to this
// generation only, the agent still proxies without its static bucket.
func (s *Server) ListenAndServe() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.manager.Close()

	if err := s.controller.Install(ctx); err != nil {
		log.Errorf("install failed, serving without static bucket: %s", err)
	} else {
		s.controller.Activate()
	}

	r := mux.NewRouter()
	s.handlers.register(r)

	tlsEnabled := s.c.TLS.CertFile != "" && s.c.TLS.KeyFile != ""
	if !s.c.TLSOnly {
		go listenAndServe(ctx, cancel, s.c.ListenAddr, r)
	}

	if tlsEnabled {
		go listenAndServeTLS(ctx, cancel, s.c.TLSListenAddr, s.c.TLS, r)
	}

	<-ctx.Done()
}

// listenAndServe serves a plain http webserver
func listenAndServe(ctx context.Context, cancel func(), addr string, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("agent listening on: http://%s\n", addrStr)
	log.Error(http.ListenAndServe(addr, handler))
}

// listenAndServeTLS serves a tls webserver
func listenAndServeTLS(ctx context.Context, cancel func(), addr string, tls *TLSConfig, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("agent listening on: https://%s\n", addrStr)
	log.Error(http.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile, handler))
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}

// logNotifier surfaces notifications in the agent log. A host bridge
// replaces it when the platform can render real notifications.
type logNotifier struct{}

func (logNotifier) Show(n push.Notification) error {
	log.Infof("notification: %s - %s (target %s)", n.Title, n.Body, n.Data)
	return nil
}

// logWindows records window activations in the agent log
type logWindows struct{}

func (logWindows) OpenOrFocus(url string) error {
	log.Infof("activating window at %s", url)
	return nil
}
