package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrTokenUnavailable = errors.New("credentials: token endpoint unavailable")

// Resolver produces credentials for one inbound request.
//
// Order:
//  1. configured API key override (env)
//  2. X-API-Key-Override request header
//  3. the request-scoped token endpoint (re-acquired on every call)
type Resolver struct {
	apiKey   string
	tokenURL string
	timeout  time.Duration
	client   *http.Client
	now      func() time.Time
}

func NewResolver(apiKeyOverride, tokenURL string, timeout time.Duration, client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		apiKey:   strings.TrimSpace(apiKeyOverride),
		tokenURL: tokenURL,
		timeout:  timeout,
		client:   client,
		now:      time.Now,
	}
}

func (r *Resolver) Resolve(ctx context.Context, headerOverride string) (Credentials, error) {
	if r.apiKey != "" {
		return APIKey(r.apiKey), nil
	}
	if key := strings.TrimSpace(headerOverride); key != "" {
		return APIKey(key), nil
	}
	return r.fetchToken(ctx)
}

func (r *Resolver) fetchToken(ctx context.Context) (Credentials, error) {
	if r.tokenURL == "" {
		return Credentials{}, fmt.Errorf("%w: no token url configured", ErrTokenUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.tokenURL, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Credentials{}, fmt.Errorf("%w: status %d", ErrTokenUnavailable, resp.StatusCode)
	}

	creds := Bearer(string(body))
	if creds.IsZero() {
		return Credentials{}, fmt.Errorf("%w: empty token", ErrTokenUnavailable)
	}
	if creds.Expired(r.now()) {
		return Credentials{}, fmt.Errorf("%w: token already expired", ErrTokenUnavailable)
	}
	return creds, nil
}
