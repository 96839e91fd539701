package interact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agusx1211/hatloop/internal/debug"
)

const (
	telegramAPIBase = "https://api.telegram.org"

	// MaxMessageLen is Telegram's hard limit for one message.
	MaxMessageLen = 4096

	pollTimeout = 30 * time.Second
)

// Telegram is a Transport backed by the Telegram Bot API. Outbound
// messages are tagged with the loop ID; inbound replies must start with
// the loop ID so routing is always explicit.
type Telegram struct {
	token  string
	chatID string
	base   string
	client *http.Client
}

// NewTelegram creates a transport for the given bot token and chat.
func NewTelegram(token, chatID string) (*Telegram, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram not configured: bot token and chat id required")
	}
	return &Telegram{
		token:  token,
		chatID: chatID,
		base:   telegramAPIBase,
		client: &http.Client{Timeout: pollTimeout + 15*time.Second},
	}, nil
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message,omitempty"`
}

// Send posts one message to the configured chat, prefixed with the loop
// ID so the human knows which loop is asking.
func (t *Telegram) Send(ctx context.Context, loopID, text string) error {
	body := "[" + loopID + "] " + text
	if len(body) > MaxMessageLen {
		body = body[:MaxMessageLen]
	}

	form := url.Values{
		"chat_id": {t.chatID},
		"text":    {body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.base+"/bot"+t.token+"/sendMessage",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding telegram response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}

// Poll long-polls getUpdates and routes each inbound message to deliver.
// Replies are expected as "<loopID> <text>"; anything else is dropped
// with a log entry. Poll blocks until ctx is cancelled.
func (t *Telegram) Poll(ctx context.Context, deliver func(loopID, text string)) {
	var offset int64
	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			debug.LogKV("interact.telegram", "poll failed, retrying", "err", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			loopID, text, ok := splitReply(u.Message.Text)
			if !ok {
				debug.LogKV("interact.telegram", "dropping message without loop id",
					"text_len", len(u.Message.Text))
				continue
			}
			deliver(loopID, text)
		}
	}
}

func (t *Telegram) getUpdates(ctx context.Context, offset int64) ([]telegramUpdate, error) {
	form := url.Values{
		"timeout": {strconv.Itoa(int(pollTimeout / time.Second))},
		"offset":  {strconv.FormatInt(offset, 10)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.base+"/bot"+t.token+"/getUpdates",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API error: %s", result.Description)
	}
	var updates []telegramUpdate
	if err := json.Unmarshal(result.Result, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// splitReply parses "<loopID> rest of text". The loop ID is the first
// whitespace-delimited token.
func splitReply(s string) (loopID, text string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", false
	}
	id, rest, found := strings.Cut(s, " ")
	if !found {
		return id, "", id != ""
	}
	return id, strings.TrimSpace(rest), true
}
