package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

const testAPIKey = "test-key"

func newTestProvider(url string) *Provider {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.APIKey = testAPIKey
	cfg.MaxRetries = 2
	p := NewProviderWithConfig(cfg)
	p.backoff = time.Millisecond
	return p
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(map[string]any{}); err == nil {
		t.Error("expected error for missing api_key")
	}

	p, err := llm.NewProvider(ProviderName, map[string]any{
		"api_key":    testAPIKey,
		"chat_model": "custom-chat",
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	gp := p.(*Provider)
	if gp.config.ChatModel != "custom-chat" {
		t.Errorf("expected chat model custom-chat, got %s", gp.config.ChatModel)
	}
	if gp.config.EmbedModel != "text-embedding-004" {
		t.Errorf("expected default embed model, got %s", gp.config.EmbedModel)
	}
}

func TestEmbedWithTask(t *testing.T) {
	var got embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:embedContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != testAPIKey {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		got = embedRequest{}
		if err := sonic.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	vec, err := p.EmbedWithTask(context.Background(), "hello", llm.EmbedOptions{
		Task:       llm.TaskDocument,
		Title:      "Portfolio Content",
		Dimensions: 3,
	})
	if err != nil {
		t.Fatalf("EmbedWithTask failed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 values, got %d", len(vec))
	}
	if got.TaskType != "RETRIEVAL_DOCUMENT" || got.Title != "Portfolio Content" || got.OutputDimensionality != 3 {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Model != "models/text-embedding-004" || got.Content.Parts[0].Text != "hello" {
		t.Errorf("unexpected request %+v", got)
	}

	// 查询向量不带 title
	if _, err := p.EmbedWithTask(context.Background(), "q", llm.EmbedOptions{Task: llm.TaskQuery, Title: "ignored"}); err != nil {
		t.Fatalf("EmbedWithTask failed: %v", err)
	}
	if got.Title != "" || got.TaskType != "RETRIEVAL_QUERY" {
		t.Errorf("query request should not carry a title: %+v", got)
	}

	if _, err := p.EmbedWithTask(context.Background(), "hello", llm.EmbedOptions{Task: llm.TaskQuery, Dimensions: 768}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"embedding":{"values":[1]}}`)
	}))
	defer server.Close()

	if _, err := newTestProvider(server.URL).EmbedWithTask(context.Background(), "x", llm.EmbedOptions{Task: llm.TaskQuery}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := newTestProvider(server.URL).EmbedWithTask(context.Background(), "x", llm.EmbedOptions{Task: llm.TaskQuery}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func sseServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-flash-latest:streamGenerateContent" || r.URL.Query().Get("alt") != "sse" {
			t.Errorf("unexpected url %s", r.URL.String())
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\r\n\r\n", e)
			w.(http.Flusher).Flush()
		}
	}))
}

func textEvent(s string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, s)
}

func TestGenerateStream(t *testing.T) {
	server := sseServer(t, textEvent("Hello"), textEvent(""), textEvent(", Sumit"), `{"candidates":[{"finishReason":"STOP"}]}`)
	defer server.Close()

	var fragments []string
	err := newTestProvider(server.URL).GenerateStream(context.Background(), "hi", func(f string) error {
		fragments = append(fragments, f)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if strings.Join(fragments, "|") != "Hello|, Sumit" {
		t.Errorf("unexpected fragments %q", fragments)
	}
}

func TestGenerateStreamStopsOnCallbackError(t *testing.T) {
	server := sseServer(t, textEvent("a"), textEvent("b"), textEvent("c"))
	defer server.Close()

	stop := errors.New("client gone")
	var n int
	err := newTestProvider(server.URL).GenerateStream(context.Background(), "hi", func(string) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 fragment before stop, got %d", n)
	}
}

func TestGenerateStreamBlockedPrompt(t *testing.T) {
	server := sseServer(t, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	defer server.Close()

	err := newTestProvider(server.URL).GenerateStream(context.Background(), "hi", func(string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Errorf("expected blocked error, got %v", err)
	}
}
