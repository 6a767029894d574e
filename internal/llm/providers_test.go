package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIChat(t *testing.T) {
	var gotAuth string
	var gotReq openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Paris"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "gpt-4.1-mini", "sk-test")
	got, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "capital of France?"}}, Options{Temperature: 0.7, MaxTokens: 100})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "Paris" {
		t.Errorf("Chat = %q, want %q", got, "Paris")
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4.1-mini" || gotReq.Temperature != 0.7 || gotReq.MaxTokens != 100 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestOpenAIChatMissingKey(t *testing.T) {
	p := NewOpenAIProvider("", "gpt-4.1-mini", "")
	if p.CredentialConfigured() {
		t.Error("CredentialConfigured = true without key")
	}
	if _, err := p.Chat(context.Background(), nil, Options{}); err == nil {
		t.Error("Chat without key succeeded, want error")
	}
}

func TestOpenAIChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "gpt-4.1-mini", "sk-test")
	_, err := p.Chat(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("Chat succeeded, want error")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("error missing status or body excerpt: %v", err)
	}
}

func TestOllamaChat(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"role":"assistant","content":"hello there"},"done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	got, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{Temperature: 0.5, MaxTokens: 256})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Chat = %q", got)
	}
	if gotReq.Stream {
		t.Error("stream = true, want false")
	}
	if gotReq.Options["temperature"] != 0.5 || gotReq.Options["num_predict"] != float64(256) {
		t.Errorf("options = %v", gotReq.Options)
	}
	if !p.CredentialConfigured() {
		t.Error("CredentialConfigured = false for ollama")
	}
}
