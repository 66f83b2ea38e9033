package push

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTitle is used when an inbound payload carries no title
	DefaultTitle = "Notification"
	// DefaultTarget is opened when a clicked notification has no target URL
	DefaultTarget = "/"
	// ActionOpen identifies the open action button
	ActionOpen = "open"
	// ActionDismiss identifies the dismiss action button
	ActionDismiss = "dismiss"
)

// Action is one button on a displayed notification
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is the descriptor handed to the platform for display.
// Data carries the target URL routed on click.
type Notification struct {
	Title   string
	Body    string
	Icon    string
	Badge   string
	Vibrate []int
	Data    string
	Actions []Action
}

// Notifier displays notifications, implemented by the platform collaborator
type Notifier interface {
	Show(n Notification) error
}

// WindowClient activates application windows, implemented by the platform
// collaborator. OpenOrFocus reuses an existing window when one is open.
type WindowClient interface {
	OpenOrFocus(url string) error
}

// payload is the wire format of an inbound push message
type payload struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	URL     string   `json:"url"`
	Actions []Action `json:"actions"`
}

// NewReceiver returns a push message receiver
func NewReceiver(notifier Notifier, windows WindowClient) *Receiver {
	return &Receiver{
		notifier: notifier,
		windows:  windows,
		icon:     "/icons/192.png",
		badge:    "/icons/96.png",
		vibrate:  []int{200, 100, 200},
	}
}

// Receiver parses inbound push messages and routes notification clicks
type Receiver struct {
	notifier Notifier
	windows  WindowClient
	icon     string
	badge    string
	vibrate  []int
}

// Receive handles one inbound push message. A payload that fails to parse
// degrades to a plain-text body under the default title, the notification is
// always displayed.
func (r *Receiver) Receive(raw []byte) (Notification, error) {
	n := r.describe(raw)
	if err := r.notifier.Show(n); err != nil {
		return n, errors.Wrap(err, "failed to display notification")
	}

	return n, nil
}

// HandleClick routes a notification click. Dismiss actions do nothing,
// everything else activates a window at the notification's target URL.
func (r *Receiver) HandleClick(action, target string) error {
	if action == ActionDismiss {
		return nil
	}
	if target == "" {
		target = DefaultTarget
	}
	if err := r.windows.OpenOrFocus(target); err != nil {
		return errors.Wrap(err, "failed to activate window")
	}

	return nil
}

// describe builds the notification descriptor for a raw payload
func (r *Receiver) describe(raw []byte) Notification {
	p := payload{}
	if err := json.Unmarshal(raw, &p); err != nil || p.Title == "" && p.Body == "" {
		log.Debugf("unstructured push payload, using raw body: %q", raw)
		p = payload{Body: string(raw)}
	}
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.URL == "" {
		p.URL = DefaultTarget
	}
	if len(p.Actions) == 0 {
		p.Actions = []Action{
			{Action: ActionOpen, Title: "Open"},
			{Action: ActionDismiss, Title: "Dismiss"},
		}
	}

	return Notification{
		Title:   p.Title,
		Body:    p.Body,
		Icon:    r.icon,
		Badge:   r.badge,
		Vibrate: r.vibrate,
		Data:    p.URL,
		Actions: p.Actions,
	}
}
