package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/chrisvdg/offlineagent/agent"
	"github.com/chrisvdg/offlineagent/bgsync"
	"github.com/chrisvdg/offlineagent/push"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func newHandlers(classifier *agent.Classifier, executor *agent.Executor, fetcher agent.Fetcher,
	manager *push.Manager, receiver *push.Receiver, registrar *bgsync.Registrar) *handlers {
	return &handlers{
		classifier: classifier,
		executor:   executor,
		fetcher:    fetcher,
		manager:    manager,
		receiver:   receiver,
		registrar:  registrar,
	}
}

type handlers struct {
	classifier *agent.Classifier
	executor   *agent.Executor
	fetcher    agent.Fetcher
	manager    *push.Manager
	receiver   *push.Receiver
	registrar  *bgsync.Registrar
}

// register wires the agent routes. Control routes come first, the fetch
// interception catch-all has to stay last.
func (h *handlers) register(r *mux.Router) {
	r.HandleFunc("/agent/push/public-key", h.PublicKeyHandler).Methods("GET")
	r.HandleFunc("/agent/push/subscribe", h.SubscribeHandler).Methods("POST")
	r.HandleFunc("/agent/push/unsubscribe", h.UnsubscribeHandler).Methods("POST")
	r.HandleFunc("/agent/push/message", h.PushMessageHandler).Methods("POST")
	r.HandleFunc("/agent/push/click", h.NotificationClickHandler).Methods("POST")
	r.HandleFunc("/agent/sync/register", h.SyncRegisterHandler).Methods("POST")
	r.HandleFunc("/agent/sync/fire", h.SyncFireHandler).Methods("POST")
	r.PathPrefix("/").HandlerFunc(h.FetchHandler).Methods("GET")
	r.PathPrefix("/").HandlerFunc(h.PassthroughHandler)
}

// FetchHandler intercepts a GET request, classifies it and serves it through
// the matching strategy.
func (h *handlers) FetchHandler(res http.ResponseWriter, req *http.Request) {
	class := h.classifier.Classify(req.URL.Path)
	log.Debugf("%s %s classified as %s", req.Method, req.URL.Path, class)

	resp := h.executor.Execute(class, req)
	if err := resp.Write(res); err != nil {
		log.Errorf("failed to write response for %s: %s", req.URL.Path, err)
	}
}

// PassthroughHandler proxies non-GET requests straight to the origin, they
// are never cached. A transport failure still gets the synthesized offline
// response.
func (h *handlers) PassthroughHandler(res http.ResponseWriter, req *http.Request) {
	resp, err := h.fetcher.Do(req)
	if err != nil {
		log.Debugf("passthrough of %s %s failed: %s", req.Method, req.URL.Path, err)
		fallback := agent.Fallback(req)
		if err := fallback.Write(res); err != nil {
			log.Errorf("failed to write offline response: %s", err)
		}
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		for _, v := range values {
			res.Header().Add(name, v)
		}
	}
	res.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(res, resp.Body); err != nil {
		log.Errorf("failed to relay response body: %s", err)
	}
}

// PublicKeyHandler returns the backend's push public key
func (h *handlers) PublicKeyHandler(res http.ResponseWriter, req *http.Request) {
	key, err := h.manager.FetchPublicKey(req.Context())
	if err != nil {
		writeError(res, http.StatusBadGateway, err)
		return
	}
	writeJSON(res, http.StatusOK, map[string]string{"publicKey": key})
}

// SubscribeHandler requests permission and derives a push subscription.
// The server public key may be posted in the body, otherwise it is fetched
// from the backend.
func (h *handlers) SubscribeHandler(res http.ResponseWriter, req *http.Request) {
	body := struct {
		PublicKey string `json:"publicKey"`
	}{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(res, http.StatusBadRequest, errors.Wrap(err, "failed to parse request body"))
		return
	}

	if err := h.manager.RequestPermission(req.Context()); err != nil {
		if errors.Cause(err) == push.ErrPermissionDenied {
			writeError(res, http.StatusForbidden, err)
			return
		}
		writeError(res, http.StatusInternalServerError, err)
		return
	}

	key := body.PublicKey
	if key == "" {
		var err error
		key, err = h.manager.FetchPublicKey(req.Context())
		if err != nil {
			writeError(res, http.StatusBadGateway, err)
			return
		}
	}

	sub, err := h.manager.Subscribe(req.Context(), key)
	if err != nil {
		writeError(res, http.StatusInternalServerError, err)
		return
	}
	writeJSON(res, http.StatusOK, sub)
}

// UnsubscribeHandler revokes the active push subscription
func (h *handlers) UnsubscribeHandler(res http.ResponseWriter, req *http.Request) {
	if err := h.manager.Unsubscribe(req.Context()); err != nil {
		writeError(res, http.StatusInternalServerError, err)
		return
	}
	writeJSON(res, http.StatusOK, map[string]bool{"success": true})
}

// PushMessageHandler handles an inbound push delivery and returns the
// displayed notification descriptor.
func (h *handlers) PushMessageHandler(res http.ResponseWriter, req *http.Request) {
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(res, http.StatusBadRequest, errors.Wrap(err, "failed to read push payload"))
		return
	}
	n, err := h.receiver.Receive(payload)
	if err != nil {
		writeError(res, http.StatusInternalServerError, err)
		return
	}
	writeJSON(res, http.StatusOK, n)
}

// NotificationClickHandler routes a notification click action
func (h *handlers) NotificationClickHandler(res http.ResponseWriter, req *http.Request) {
	body := struct {
		Action string `json:"action"`
		Target string `json:"target"`
	}{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(res, http.StatusBadRequest, errors.Wrap(err, "failed to parse request body"))
		return
	}
	if err := h.receiver.HandleClick(body.Action, body.Target); err != nil {
		writeError(res, http.StatusInternalServerError, err)
		return
	}
	writeJSON(res, http.StatusOK, map[string]bool{"success": true})
}

// SyncRegisterHandler records a background sync tag
func (h *handlers) SyncRegisterHandler(res http.ResponseWriter, req *http.Request) {
	body := struct {
		Tag string `json:"tag"`
	}{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Tag == "" {
		writeError(res, http.StatusBadRequest, errors.New("no sync tag provided"))
		return
	}
	h.registrar.RegisterTask(body.Tag)
	writeJSON(res, http.StatusAccepted, map[string]bool{"success": true})
}

// SyncFireHandler handles a platform connectivity signal for a tag
func (h *handlers) SyncFireHandler(res http.ResponseWriter, req *http.Request) {
	body := struct {
		Tag string `json:"tag"`
	}{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Tag == "" {
		writeError(res, http.StatusBadRequest, errors.New("no sync tag provided"))
		return
	}
	if err := h.registrar.Dispatch(req.Context(), body.Tag); err != nil {
		switch errors.Cause(err) {
		case bgsync.ErrNotPending:
			writeError(res, http.StatusConflict, err)
		case bgsync.ErrNoHandler:
			writeError(res, http.StatusNotImplemented, err)
		default:
			writeError(res, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(res, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(res http.ResponseWriter, status int, v interface{}) {
	res.Header().Set("Content-Type", "application/json; charset=utf-8")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		log.Errorf("failed to encode response: %s", err)
	}
}

func writeError(res http.ResponseWriter, status int, err error) {
	writeJSON(res, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
