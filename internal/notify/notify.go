// Package notify posts operator alerts to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one ntfy notification.
type Message struct {
	Title    string
	Body     string
	Priority string
	Tags     []string
}

// Notifier posts to a single ntfy endpoint. A Notifier with an empty
// endpoint silently drops messages.
type Notifier struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Notifier{endpoint: strings.TrimSpace(endpoint), client: client}
}

func (n *Notifier) Enabled() bool { return n != nil && n.endpoint != "" }

func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if !n.Enabled() {
		return nil
	}
	return Send(ctx, n.client, n.endpoint, msg)
}

// Send posts msg to endpoint using the ntfy header conventions.
func Send(ctx context.Context, client *http.Client, endpoint string, msg Message) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if msg.Priority != "" {
		req.Header.Set("Priority", msg.Priority)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
