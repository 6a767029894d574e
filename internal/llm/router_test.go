package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	kind  string
	model string
	text  string
	err   error
	calls int
}

func (s *stubProvider) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *stubProvider) Kind() string               { return s.kind }
func (s *stubProvider) Model() string              { return s.model }
func (s *stubProvider) CredentialConfigured() bool { return true }

func TestRoutePrimarySucceeds(t *testing.T) {
	primary := &stubProvider{kind: "openai", model: "gpt-4.1-mini", text: "hello"}
	fallback := &stubProvider{kind: "ollama", model: "llama3.1", text: "hi"}
	r := NewRouter(primary, fallback, time.Second)

	res, err := r.Route(context.Background(), []Message{{Role: "user", Content: "hey"}}, Options{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("Text = %q, want %q", res.Text, "hello")
	}
	if res.Role != RolePrimary {
		t.Errorf("Role = %q, want %q", res.Role, RolePrimary)
	}
	if res.Provider != "openai" || res.Model != "gpt-4.1-mini" {
		t.Errorf("provenance = %s/%s", res.Provider, res.Model)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestRouteFallsBackOnce(t *testing.T) {
	primary := &stubProvider{kind: "openai", model: "gpt-4.1-mini", err: errors.New("rate limited")}
	fallback := &stubProvider{kind: "ollama", model: "llama3.1", text: "local answer"}
	r := NewRouter(primary, fallback, time.Second)

	res, err := r.Route(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Role != RoleFallback {
		t.Errorf("Role = %q, want %q", res.Role, RoleFallback)
	}
	if res.Text != "local answer" {
		t.Errorf("Text = %q", res.Text)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, fallback.calls)
	}
}

func TestRouteBothFail(t *testing.T) {
	primaryErr := errors.New("rate limited")
	fallbackErr := errors.New("connection refused")
	primary := &stubProvider{kind: "openai", err: primaryErr}
	fallback := &stubProvider{kind: "ollama", err: fallbackErr}
	r := NewRouter(primary, fallback, time.Second)

	_, err := r.Route(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("Route succeeded, want error")
	}

	var allFailed *AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("error type = %T, want *AllProvidersFailedError", err)
	}
	if !errors.Is(allFailed.PrimaryErr, primaryErr) {
		t.Errorf("PrimaryErr = %v", allFailed.PrimaryErr)
	}
	if !errors.Is(allFailed.FallbackErr, fallbackErr) {
		t.Errorf("FallbackErr = %v", allFailed.FallbackErr)
	}
	// Unwrap exposes both causes to errors.Is.
	if !errors.Is(err, primaryErr) || !errors.Is(err, fallbackErr) {
		t.Error("errors.Is does not reach both causes through Unwrap")
	}
	if fallback.calls != 1 {
		t.Errorf("fallback called %d times, want exactly 1", fallback.calls)
	}
}

func TestRouterHealth(t *testing.T) {
	primary := &stubProvider{kind: "openai", model: "gpt-4.1-mini"}
	fallback := &stubProvider{kind: "ollama", model: "llama3.1"}
	r := NewRouter(primary, fallback, 0)

	h := r.Health()
	if h.PrimaryProvider != "openai" || h.PrimaryModel != "gpt-4.1-mini" {
		t.Errorf("primary = %s/%s", h.PrimaryProvider, h.PrimaryModel)
	}
	if h.FallbackProvider != "ollama" || h.FallbackModel != "llama3.1" {
		t.Errorf("fallback = %s/%s", h.FallbackProvider, h.FallbackModel)
	}
	if !h.PrimaryCredentialConfigured {
		t.Error("PrimaryCredentialConfigured = false")
	}
}

func TestNewProviderUnknownKind(t *testing.T) {
	if _, err := NewProvider("anthropic", "", "m", ""); err == nil {
		t.Error("NewProvider with unknown kind succeeded, want error")
	}
}
