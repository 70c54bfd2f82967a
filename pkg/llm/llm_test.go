package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_InvalidProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "invalid", APIKey: "test"})
	if err == nil {
		t.Fatal("expected error for invalid provider")
	}
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	for _, p := range []Provider{Gemini, OpenAI} {
		_, err := NewClient(Config{Provider: p})
		if err == nil {
			t.Fatalf("expected error for %s without API key", p)
		}
	}
}

func TestGemini_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "[{\"headline\":\"ok\"}]"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 40}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: Gemini, Model: "gemini-2.0-flash", APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Generate(context.Background(), &Request{
		System:   "respond with JSON",
		Messages: []Message{{Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != `[{"headline":"ok"}]` {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if resp.TokensIn != 120 || resp.TokensOut != 40 {
		t.Fatalf("unexpected usage: %d/%d", resp.TokensIn, resp.TokensOut)
	}
}

func TestGemini_QuotaExhaustedClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "status": "RESOURCE_EXHAUSTED",
			"message": "You exceeded your current quota, please check your plan and billing details.",
			"details": [{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"}]}}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Provider: Gemini, Model: "gemini-2.0-flash", APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsQuotaExhausted(err) {
		t.Fatalf("expected quota exhaustion classification, got: %v", err)
	}
	if IsRateLimited(err) {
		t.Fatal("quota exhaustion must not classify as retryable rate limit")
	}
	if hint, ok := RetryAfterHint(err); !ok || hint != 17*time.Second {
		t.Fatalf("expected 17s retry hint, got %v %v", hint, ok)
	}
}

func TestGemini_RateLimitClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "status": "UNAVAILABLE", "message": "The model is overloaded. Please try again later."}}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Provider: Gemini, Model: "gemini-2.0-flash", APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected rate-limit classification, got: %v", err)
	}
	if IsQuotaExhausted(err) {
		t.Fatal("plain overload must not classify as quota exhaustion")
	}
	if hint, ok := RetryAfterHint(err); !ok || hint != 3*time.Second {
		t.Fatalf("expected 3s retry hint, got %v %v", hint, ok)
	}
}

func TestOpenAI_InsufficientQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "You exceeded your current quota.", "type": "insufficient_quota", "code": "insufficient_quota"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Provider: OpenAI, Model: "gpt-4o-mini", APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if !IsQuotaExhausted(err) {
		t.Fatalf("expected quota exhaustion, got: %v", err)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2}}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Provider: OpenAI, Model: "gpt-4o-mini", APIKey: "k", BaseURL: server.URL})
	resp, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	if d := parseRetryAfterHeader("30"); d != 30*time.Second {
		t.Fatalf("expected 30s, got %s", d)
	}
	if d := parseRetryAfterHeader(""); d != 0 {
		t.Fatalf("expected 0, got %s", d)
	}
	if d := parseRetryAfterHeader("garbage"); d != 0 {
		t.Fatalf("expected 0 for garbage, got %s", d)
	}
}
