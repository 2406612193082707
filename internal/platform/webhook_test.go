package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"postpilot/internal/post"
)

func webhookPost() post.Post {
	return post.Post{
		ID:          "p-1",
		Platform:    post.PlatformWebhook,
		ContentType: post.TypeText,
		Content:     post.Content{"text": "hello"},
	}
}

func TestWebhookPublish(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Platform != "webhook" || req.Content.Text("text") != "hello" {
			t.Errorf("bad request payload: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(webhookResponse{PostID: "w-42", URL: "https://example.com/42"})
	}))
	defer srv.Close()

	a, err := NewWebhook(WebhookConfig{URL: srv.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("new webhook: %v", err)
	}

	res, err := a.Publish(context.Background(), webhookPost())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.ExternalID != "w-42" || res.ExternalURL != "https://example.com/42" {
		t.Fatalf("bad result: %+v", res)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestWebhookClassifiesHTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		want   post.Classification
	}{
		{http.StatusUnauthorized, post.ClassAuthentication},
		{http.StatusForbidden, post.ClassAuthentication},
		{http.StatusTooManyRequests, post.ClassRateLimit},
		{http.StatusBadRequest, post.ClassMalformedPayload},
		{http.StatusInternalServerError, post.ClassTransientNetwork},
		{http.StatusBadGateway, post.ClassTransientNetwork},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", c.status)
		}))
		a, _ := NewWebhook(WebhookConfig{URL: srv.URL})

		_, err := a.Publish(context.Background(), webhookPost())
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", c.status)
		}
		if got := Classify(err); got != c.want {
			t.Fatalf("status %d: classified %s, want %s", c.status, got, c.want)
		}
	}
}

func TestWebhookRejectsBadResponses(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   "<html>oops</html>",
		"no post id": `{"url": "https://example.com/1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()
			a, _ := NewWebhook(WebhookConfig{URL: srv.URL})

			if _, err := a.Publish(context.Background(), webhookPost()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWebhookTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	a, _ := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: time.Second})
	_, err := a.Publish(context.Background(), webhookPost())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := Classify(err); got != post.ClassTransientNetwork {
		t.Fatalf("classified %s, want %s", got, post.ClassTransientNetwork)
	}
}

func TestNewWebhookRequiresURL(t *testing.T) {
	if _, err := NewWebhook(WebhookConfig{}); err == nil {
		t.Fatal("empty url accepted")
	}
}
