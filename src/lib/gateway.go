package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"rentals/src/config"
	"time"
)

type ctxKey string

const TokenContextKey ctxKey = "token"

// TokenProvider supplies the bearer credential attached to every outbound
// call. Request handlers propagate the caller's own token; background jobs
// must use an explicit service credential since they have no caller.
type TokenProvider interface {
	Token(ctx context.Context) string
}

// ContextTokenProvider reads the inbound caller's bearer token from the
// request context (set by the auth middleware).
type ContextTokenProvider struct{}

func (ContextTokenProvider) Token(ctx context.Context) string {
	if v, ok := ctx.Value(TokenContextKey).(string); ok {
		return v
	}
	if v, ok := ctx.Value(string(TokenContextKey)).(string); ok {
		return v
	}
	return ""
}

// ServiceTokenProvider presents the configured service credential.
type ServiceTokenProvider struct{}

func (ServiceTokenProvider) Token(ctx context.Context) string {
	return config.ServiceToken()
}

// authTransport decorates every outbound request with the bearer header.
type authTransport struct {
	tokens TokenProvider
	inner  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := t.tokens.Token(req.Context()); token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	inner := t.inner
	if inner == nil {
		inner = http.DefaultTransport
	}
	return inner.RoundTrip(req)
}

func newAuthedHTTPClient(tokens TokenProvider) *http.Client {
	return &http.Client{
		Transport: &authTransport{tokens: tokens},
		Timeout:   config.RemoteCallTimeout(),
	}
}

type LookupState int

const (
	LookupFound LookupState = iota
	LookupMissing
	LookupUnavailable
)

// Lookup is the tri-state outcome of a remote fetch. Callers can tell "no
// such entity" apart from "owning service unreachable" and pick their own
// policy at the composition boundary.
type Lookup[T any] struct {
	State LookupState
	Value *T
	Err   error
}

func found[T any](v *T) Lookup[T] { return Lookup[T]{State: LookupFound, Value: v} }
func missing[T any]() Lookup[T]   { return Lookup[T]{State: LookupMissing} }
func unavailable[T any](e error) Lookup[T] {
	return Lookup[T]{State: LookupUnavailable, Err: e}
}

const lookupCacheTTL = 10 * time.Minute

// getJSON fetches one entity, caching hits and falling back to the cache
// when the owning service is unreachable. A 404 is authoritative and is
// never masked by a stale cache entry.
func getJSON[T any](ctx context.Context, client *http.Client, url string, cacheKey string) Lookup[T] {
	ctx, cancel := context.WithTimeout(ctx, config.RemoteCallTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return unavailable[T](err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return cachedOrUnavailable[T](ctx, cacheKey, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return missing[T]()
	case resp.StatusCode >= 400:
		err := fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
		return cachedOrUnavailable[T](ctx, cacheKey, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cachedOrUnavailable[T](ctx, cacheKey, err)
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return unavailable[T](err)
	}
	if cacheKey != "" {
		cacheSet(context.WithoutCancel(ctx), cacheKey, body, lookupCacheTTL)
	}
	return found(&out)
}

func cachedOrUnavailable[T any](ctx context.Context, cacheKey string, cause error) Lookup[T] {
	log.Printf("[gateway] remote lookup failed: %s\n", cause.Error())
	if cacheKey == "" {
		return unavailable[T](cause)
	}
	body, ok := cacheGet(context.WithoutCancel(ctx), cacheKey)
	if !ok {
		return unavailable[T](cause)
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return unavailable[T](cause)
	}
	log.Printf("[gateway] served %s from cache after lookup failure\n", cacheKey)
	return found(&out)
}
