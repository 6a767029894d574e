package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single provider attempt.
const DefaultTimeout = 30 * time.Second

// AllProvidersFailedError reports that both the primary and the fallback
// provider failed for one request. Both causes are preserved.
type AllProvidersFailedError struct {
	PrimaryErr  error
	FallbackErr error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed: primary: %v; fallback: %v", e.PrimaryErr, e.FallbackErr)
}

func (e *AllProvidersFailedError) Unwrap() []error {
	return []error{e.PrimaryErr, e.FallbackErr}
}

// Health describes the router's configured providers for the health endpoint.
type Health struct {
	PrimaryProvider             string `json:"primary_provider"`
	PrimaryModel                string `json:"primary_model"`
	FallbackProvider            string `json:"fallback_provider"`
	FallbackModel               string `json:"fallback_model"`
	PrimaryCredentialConfigured bool   `json:"primary_credential_configured"`
}

// Router sends each request to the primary provider and retries exactly once
// on the fallback when the primary fails.
type Router struct {
	primary  Provider
	fallback Provider
	timeout  time.Duration
	log      *slog.Logger
}

func NewRouter(primary, fallback Provider, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		log:      slog.Default(),
	}
}

// Route attempts the primary provider, then the fallback. The returned
// Result records which provider actually answered.
func (r *Router) Route(ctx context.Context, messages []Message, opts Options) (Result, error) {
	text, primaryErr := r.attempt(ctx, r.primary, messages, opts)
	if primaryErr == nil {
		return Result{Text: text, Role: RolePrimary, Provider: r.primary.Kind(), Model: r.primary.Model()}, nil
	}

	r.log.Warn("primary provider failed, trying fallback",
		"provider", r.primary.Kind(),
		"model", r.primary.Model(),
		"error", primaryErr)

	text, fallbackErr := r.attempt(ctx, r.fallback, messages, opts)
	if fallbackErr == nil {
		return Result{Text: text, Role: RoleFallback, Provider: r.fallback.Kind(), Model: r.fallback.Model()}, nil
	}

	return Result{}, &AllProvidersFailedError{PrimaryErr: primaryErr, FallbackErr: fallbackErr}
}

func (r *Router) attempt(ctx context.Context, p Provider, messages []Message, opts Options) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return p.Chat(attemptCtx, messages, opts)
}

// Health reports the configured provider pair.
func (r *Router) Health() Health {
	return Health{
		PrimaryProvider:             r.primary.Kind(),
		PrimaryModel:                r.primary.Model(),
		FallbackProvider:            r.fallback.Kind(),
		FallbackModel:               r.fallback.Model(),
		PrimaryCredentialConfigured: r.primary.CredentialConfigured(),
	}
}
