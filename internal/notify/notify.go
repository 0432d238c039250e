// Package notify delivers operator notices. The engine only ever sees the
// Notifier interface; delivery transports live here.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notifier is the notice sink of the booking engine. Implementations must
// tolerate being called from the hot retry loop; failures are logged, never
// propagated into booking decisions.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Log writes notices to the process log. The fallback when no delivery
// transport is configured.
type Log struct{}

func (Log) Notify(_ context.Context, text string) error {
	log.Printf("notice: %s", text)
	return nil
}

// Telegram delivers notices to a Telegram chat through the bot API.
type Telegram struct {
	Token  string
	ChatID string

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	// BaseURL overrides the bot API host in tests.
	BaseURL string
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	baseURL := t.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	httpClient := t.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	form := url.Values{
		"chat_id": {t.ChatID},
		"text":    {text},
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", baseURL, t.Token)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Best sends through n and logs delivery failures instead of returning
// them.
func Best(ctx context.Context, n Notifier, text string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, text); err != nil {
		log.Printf("notice delivery failed: %v", err)
	}
}
