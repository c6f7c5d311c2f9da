package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultReplyURL is the chat platform's reply endpoint.
const DefaultReplyURL = "https://api.line.me/v2/bot/message/reply"

// ReplyClient posts reply messages to the chat platform's reply API
// with the channel access token.
type ReplyClient struct {
	httpClient  *http.Client
	url         string
	accessToken string
}

var _ ReplySender = (*ReplyClient)(nil)

// NewReplyClient creates a reply client. An empty url selects
// DefaultReplyURL.
func NewReplyClient(url, accessToken string) *ReplyClient {
	if url == "" {
		url = DefaultReplyURL
	}
	return &ReplyClient{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		url:         url,
		accessToken: accessToken,
	}
}

// Reply sends one text message for the given reply token.
func (c *ReplyClient) Reply(ctx context.Context, replyToken, text string) error {
	payload, err := json.Marshal(map[string]any{
		"replyToken": replyToken,
		"messages": []map[string]string{
			{"type": "text", "text": text},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reply request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("reply rejected: status %d", resp.StatusCode)
	}
	return nil
}
