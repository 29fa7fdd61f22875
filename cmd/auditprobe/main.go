// Command auditprobe fetches raw audit events from a Domino deployment,
// prints their structure and shows how much of each canonical field the
// normalizer recovers. Use it to check a new deployment's payload shapes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/config"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
	"traceability-explorer/pkg/logger"
)

type options struct {
	Host             string
	APIKey           string
	JWT              string
	UseTokenEndpoint bool
	TokenURL         string
	Limit            int
	Save             string
	NoSave           bool
	Paths            []string
}

var errNoAuth = errors.New("no auth provided: use -api-key, -jwt, -use-token-endpoint, or set DOMINO_USER_API_KEY")

func main() {
	opts := options{TokenURL: config.DefaultTokenURL, Paths: defaultPaths()}
	flag.StringVar(&opts.Host, "hostname", firstEnv("DOMINO_HOSTNAME", "DOMINO_API_HOST"), "Domino hostname (e.g. https://your-domino.com)")
	flag.StringVar(&opts.APIKey, "api-key", "", "Domino API key")
	flag.StringVar(&opts.JWT, "jwt", "", "JWT bearer token")
	flag.BoolVar(&opts.UseTokenEndpoint, "use-token-endpoint", false, "fetch a token from the in-app token endpoint")
	flag.IntVar(&opts.Limit, "limit", 50, "number of events to fetch")
	flag.StringVar(&opts.Save, "save", "raw_audit_events.json", "file to save raw events to")
	flag.BoolVar(&opts.NoSave, "no-save", false, "do not save raw events")
	flag.Parse()

	log := logger.NewWithWriter("production", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, domino.NewClient(&http.Client{}, nil), os.Stdout); err != nil {
		log.Error("audit probe failed", "err", err)
		if errors.Is(err, errNoHost) {
			flag.Usage()
		}
		os.Exit(1)
	}
}

var errNoHost = errors.New("-hostname required (or set DOMINO_HOSTNAME)")

func run(ctx context.Context, opts options, client audit.Fetcher, w io.Writer) error {
	host := config.NormalizeHost(opts.Host)
	if host == "" {
		return errNoHost
	}
	fmt.Fprintf(w, "Domino hostname: %s\n", host)
	fmt.Fprintf(w, "Fetching up to %d events...\n\n", opts.Limit)

	creds, err := resolveCredentials(ctx, opts)
	if err != nil {
		return err
	}
	if creds.Kind == credentials.KindBearer {
		fmt.Fprintf(w, "  Token subject: %s\n", creds.Subject())
		if creds.Expired(time.Now()) {
			fmt.Fprintln(w, "  ! token is expired; requests will likely be rejected")
		}
	}

	events := fetch(ctx, client, creds, host, opts.Paths, opts.Limit, w)
	if len(events) == 0 {
		return errors.New("no events fetched; check hostname and credentials")
	}

	if !opts.NoSave && opts.Save != "" {
		if err := save(events, opts.Save); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nSaved %d raw events to %s\n", len(events), opts.Save)
	}

	printAnalysis(w, Analyze(events))
	printSamples(w, events, 3)
	printCoverage(w, events)
	return nil
}

func resolveCredentials(ctx context.Context, opts options) (credentials.Credentials, error) {
	switch {
	case opts.APIKey != "":
		return credentials.APIKey(opts.APIKey), nil
	case opts.JWT != "":
		return credentials.Bearer(opts.JWT), nil
	case opts.UseTokenEndpoint:
		return credentials.NewResolver("", opts.TokenURL, 5*time.Second, nil).Resolve(ctx, "")
	}
	if key := os.Getenv("DOMINO_USER_API_KEY"); key != "" {
		return credentials.APIKey(key), nil
	}
	if jwt := os.Getenv("JWT"); jwt != "" {
		return credentials.Bearer(jwt), nil
	}
	return credentials.Credentials{}, errNoAuth
}

// fetch tries each audit path in order and returns the first page of events.
// Unlike the server, any failure moves on to the next path.
func fetch(ctx context.Context, client audit.Fetcher, creds credentials.Credentials, host string, paths []string, limit int, w io.Writer) []audit.RawEvent {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	for _, path := range paths {
		fmt.Fprintf(w, "  Trying: %s%s ...\n", host, path)
		resp, err := client.Get(ctx, creds, domino.Request{
			Target:  "audit",
			Host:    host,
			Path:    path,
			Query:   query,
			Timeout: 30 * time.Second,
		})
		if err != nil {
			fmt.Fprintf(w, "  x Error: %v\n", err)
			continue
		}
		if !resp.OK() {
			fmt.Fprintf(w, "  x %d: %s\n", resp.Status, clip(string(resp.Body), 200))
			continue
		}

		payload := resp.Payload()
		switch v := payload.(type) {
		case []any:
			events := toRaw(domino.ParseEvents(v))
			fmt.Fprintf(w, "  ok Got %d events (list response)\n", len(events))
			return events
		case map[string]any:
			if key := domino.EnvelopeKey(v); key != "" {
				events := toRaw(domino.ParseEvents(v))
				fmt.Fprintf(w, "  ok Got %d events (from response.%s)\n", len(events), key)
				return events
			}
			if _, ok := v["id"]; ok {
				fmt.Fprintln(w, "  ok Got 1 event (single object)")
				return []audit.RawEvent{v}
			}
			if _, ok := v["timestamp"]; ok {
				fmt.Fprintln(w, "  ok Got 1 event (single object)")
				return []audit.RawEvent{v}
			}
			keys := sortedKeys(v)
			if len(keys) > 10 {
				keys = keys[:10]
			}
			fmt.Fprintf(w, "  ? Response is an object with keys: %s\n", strings.Join(keys, ", "))
			fmt.Fprintf(w, "  ? First 500 chars: %s\n", clip(string(resp.Body), 500))
			return nil
		default:
			fmt.Fprintf(w, "  ? Unexpected response: %s\n", clip(string(resp.Body), 200))
			return nil
		}
	}
	return nil
}

func toRaw(records []map[string]any) []audit.RawEvent {
	out := make([]audit.RawEvent, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

func save(events []audit.RawEvent, path string) error {
	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encode raw events: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("save raw events: %w", err)
	}
	return nil
}

func defaultPaths() []string {
	c := config.Config{Audit: config.AuditConfig{
		Path:          config.DefaultAuditPath,
		FallbackPaths: strings.Split(config.DefaultFallbackPaths, ","),
	}}
	return c.AuditPaths()
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func clip(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
