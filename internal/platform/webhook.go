package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"postpilot/internal/post"
)

// WebhookConfig configures the generic HTTP publisher.
type WebhookConfig struct {
	URL     string
	Token   string // optional bearer token
	Timeout time.Duration
}

// WebhookAdapter publishes posts to an arbitrary HTTP endpoint. The endpoint
// receives the post payload as JSON and must answer 2xx with the external
// identifiers of the created post.
type WebhookAdapter struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhook(cfg WebhookConfig) (*WebhookAdapter, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("webhook url is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (a *WebhookAdapter) Name() post.Platform { return post.PlatformWebhook }

type webhookRequest struct {
	Platform    string       `json:"platform"`
	ContentType string       `json:"content_type"`
	Content     post.Content `json:"content"`
}

type webhookResponse struct {
	PostID string `json:"post_id"`
	URL    string `json:"url"`
}

func (a *WebhookAdapter) Publish(ctx context.Context, p post.Post) (PublishResult, error) {
	body, err := json.Marshal(webhookRequest{
		Platform:    string(p.Platform),
		ContentType: string(p.ContentType),
		Content:     p.Content,
	})
	if err != nil {
		return PublishResult{}, &PublishError{Class: post.ClassMalformedPayload, Cause: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return PublishResult{}, &PublishError{Class: post.ClassUnknown, Cause: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return PublishResult{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PublishResult{}, classifyHTTPStatus(resp.StatusCode, respBody)
	}

	var wr webhookResponse
	if err := json.Unmarshal(respBody, &wr); err != nil {
		return PublishResult{}, &PublishError{Class: post.ClassUnknown, Cause: fmt.Sprintf("decode response body=%q", truncate(respBody, 256)), Err: err}
	}
	if wr.PostID == "" {
		return PublishResult{}, Errf(post.ClassUnknown, "missing post_id in response body=%q", truncate(respBody, 256))
	}
	return PublishResult{ExternalID: wr.PostID, ExternalURL: wr.URL}, nil
}

func classifyTransport(err error) *PublishError {
	class := post.ClassTransientNetwork
	var ne net.Error
	if !errors.As(err, &ne) && !errors.Is(err, context.DeadlineExceeded) {
		class = post.ClassUnknown
	}
	return &PublishError{Class: class, Cause: "request failed", Err: err}
}

func classifyHTTPStatus(code int, body []byte) *PublishError {
	cause := fmt.Sprintf("status %d body=%q", code, truncate(body, 256))
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &PublishError{Class: post.ClassAuthentication, Cause: cause}
	case code == http.StatusTooManyRequests:
		return &PublishError{Class: post.ClassRateLimit, Cause: cause}
	case code >= 400 && code < 500:
		return &PublishError{Class: post.ClassMalformedPayload, Cause: cause}
	case code >= 500:
		return &PublishError{Class: post.ClassTransientNetwork, Cause: cause}
	}
	return &PublishError{Class: post.ClassUnknown, Cause: cause}
}

func truncate(b []byte, maxN int) string {
	s := string(b)
	if len(s) <= maxN {
		return s
	}
	return s[:maxN] + "..."
}
