// Package webhook posts batch progress events to configured endpoints.
package webhook

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Webhook is one configured notification endpoint.
type Webhook struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Type   string   `yaml:"type"`
	Events []string `yaml:"events"`
}

// Webhook types.
const (
	TypeGeneric = "generic"
	TypeDiscord = "discord"
	TypeSlack   = "slack"
	TypeGotify  = "gotify"
)

// Validate checks the URL and type. An empty type means generic.
func (w *Webhook) Validate() error {
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook %q: invalid url %q", w.Name, w.URL)
	}
	switch strings.ToLower(w.Type) {
	case "", TypeGeneric, TypeDiscord, TypeSlack, TypeGotify:
	default:
		return fmt.Errorf("webhook %q: unknown type %q", w.Name, w.Type)
	}
	return nil
}

// Wants reports whether the webhook subscribes to an event type. No listed
// events means batch.completed only.
func (w *Webhook) Wants(eventType string) bool {
	if len(w.Events) == 0 {
		return eventType == "batch.completed"
	}
	return slices.Contains(w.Events, eventType)
}
