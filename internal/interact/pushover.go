package interact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	pushoverAPIBase = "https://api.pushover.net"

	pushoverMaxTitleLen   = 250
	pushoverMaxMessageLen = 1024
)

// Pushover is a notification-only Transport backed by the Pushover API.
// Pushover has no inbound message stream, so questions sent through it
// time out unless the operator answers through another path; it fits
// loops that only Notify.
type Pushover struct {
	userKey  string
	appToken string
	base     string
	client   *http.Client
}

// NewPushover creates a transport for the given user key and app token.
func NewPushover(userKey, appToken string) (*Pushover, error) {
	if userKey == "" || appToken == "" {
		return nil, fmt.Errorf("pushover not configured: user key and app token required")
	}
	return &Pushover{
		userKey:  userKey,
		appToken: appToken,
		base:     pushoverAPIBase,
		client:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors,omitempty"`
}

// Send pushes one notification titled with the loop ID.
func (p *Pushover) Send(ctx context.Context, loopID, text string) error {
	title := "hatloop " + loopID
	if len(title) > pushoverMaxTitleLen {
		title = title[:pushoverMaxTitleLen]
	}
	if len(text) > pushoverMaxMessageLen {
		text = text[:pushoverMaxMessageLen]
	}

	form := url.Values{
		"token":   {p.appToken},
		"user":    {p.userKey},
		"title":   {title},
		"message": {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.base+"/1/messages.json",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending pushover notification: %w", err)
	}
	defer resp.Body.Close()

	var result pushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding pushover response: %w", err)
	}
	if result.Status != 1 {
		return fmt.Errorf("pushover API error: %s", strings.Join(result.Errors, "; "))
	}
	return nil
}
