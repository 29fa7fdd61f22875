// Package domino is the outbound HTTP client for the Domino platform APIs.
package domino

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/metrics"
)

const (
	PathUsers          = "/v4/users"
	PathSelf           = "/v4/users/self"
	PathHardwareTiers  = "/v4/hardwareTier"
	PathRunUtilization = "/v4/controlCenter/utilization/runs"
)

func RunPath(id string) string { return "/v4/runs/" + url.PathEscape(id) }
func JobPath(id string) string { return "/v4/jobs/" + url.PathEscape(id) }
func JobRuntimePath(id string) string {
	return "/v4/jobs/" + url.PathEscape(id) + "/runtimeExecutionDetails"
}

const maxBodyBytes = 64 << 20

// ErrTransport wraps failures where no HTTP status was received.
var ErrTransport = errors.New("domino: transport error")

// Client issues authenticated GETs. Non-2xx statuses are returned as a
// Response, not an error; callers decide whether a status is terminal.
type Client struct {
	http    *http.Client
	metrics *metrics.Metrics
}

// NewClient wraps hc (or a default client) in an otelhttp transport.
func NewClient(hc *http.Client, m *metrics.Metrics) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "domino " + r.Method + " " + r.URL.Path
		}),
	)
	return &Client{http: &wrapped, metrics: m}
}

type Request struct {
	// Target labels the call in metrics and logs (audit, runs, jobs, ...).
	Target  string
	Host    string
	Path    string
	Query   url.Values
	Timeout time.Duration
}

func (r Request) URL() string {
	u := strings.TrimRight(r.Host, "/") + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}

type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func (r Response) OK() bool { return r.Status >= 200 && r.Status <= 299 }

// JSON decodes the body, keeping numbers as json.Number.
func (r Response) JSON() (any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Payload is the decoded JSON body, or the body text when it is not JSON.
func (r Response) Payload() any {
	if v, err := r.JSON(); err == nil {
		return v
	}
	return string(r.Body)
}

// IsJSON reports whether the upstream labelled the body as JSON.
func (r Response) IsJSON() bool {
	return strings.HasPrefix(r.ContentType, "application/json")
}

func (c *Client) Get(ctx context.Context, creds credentials.Credentials, req Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	creds.Apply(httpReq.Header)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveUpstream(req.Target, 0, time.Since(start))
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveUpstream(req.Target, resp.StatusCode, time.Since(start))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
