package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration required by the API process.
// Values come from env, optionally layered over a YAML file named by CONFIG_FILE.
// It is built once at startup and passed explicitly to every component.
type Config struct {
	App        AppConfig
	Domino     DominoConfig
	Audit      AuditConfig
	Enrichment EnrichmentConfig
	Telemetry  TelemetryConfig
}

type AppConfig struct {
	Env  string
	Port int

	// StaticDir is the built single-page app (index.html + assets/).
	StaticDir   string
	MockCSVPath string
}

type DominoConfig struct {
	// APIHost serves users, runs, jobs and control-center endpoints.
	APIHost string

	TokenURL     string
	TokenTimeout time.Duration

	// APIKeyOverride wins over the token endpoint when set.
	APIKeyOverride string
}

type AuditConfig struct {
	Host          string
	Path          string
	FallbackPaths []string

	// MaxLimit is the upstream per-request page cap.
	MaxLimit int
	// PaginationCap bounds the total number of events fetched for one request.
	PaginationCap int

	Timeout time.Duration
}

type EnrichmentConfig struct {
	ControlCenter SourceConfig
	Runs          SourceConfig
	Jobs          SourceConfig

	// Concurrency bounds per-id lookups in flight; 1 means sequential.
	Concurrency int
}

type SourceConfig struct {
	Enabled bool
	MaxIDs  int
	Timeout time.Duration
}

type TelemetryConfig struct {
	MetricsEnabled bool

	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

const (
	DefaultPort          = 8888
	DefaultAuditPath     = "/api/audittrail/v1/auditevents"
	DefaultFallbackPaths = "/auditevents,/v4/auditevents"
	DefaultMaxLimit      = 1000
	DefaultPaginationCap = 50000
	DefaultTokenURL      = "http://localhost:8899/access-token"
	DefaultMaxIDs        = 300
)

func Load() (Config, error) {
	_ = godotenv.Load(".env")

	k := koanf.New(".")
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	l := loader{k: k}

	c := Config{}
	c.App.Env = l.str("APP_ENV", "app.env", "production")
	c.App.Port = l.int("APP_PORT", "app.port", DefaultPort)
	c.App.StaticDir = l.str("STATIC_DIR", "app.static_dir", "client/dist")
	c.App.MockCSVPath = l.str("MOCK_CSV_PATH", "app.mock_csv_path", "domino_audit_trail.csv")

	c.Domino.APIHost = l.str("DOMINO_API_HOST", "domino.api_host", "")
	c.Domino.TokenURL = l.str("TOKEN_URL", "domino.token_url", DefaultTokenURL)
	c.Domino.TokenTimeout = l.duration("TOKEN_TIMEOUT", "domino.token_timeout", 5*time.Second)
	c.Domino.APIKeyOverride = l.str("API_KEY_OVERRIDE", "domino.api_key_override", "")
	if c.Domino.APIKeyOverride == "" {
		c.Domino.APIKeyOverride = strings.TrimSpace(os.Getenv("DOMINO_USER_API_KEY"))
	}

	c.Audit.Host = l.str("AUDIT_API_HOST", "audit.host", "")
	c.Audit.Path = l.str("AUDIT_API_PATH", "audit.path", DefaultAuditPath)
	c.Audit.FallbackPaths = splitList(l.str("AUDIT_API_FALLBACK_PATHS", "audit.fallback_paths", DefaultFallbackPaths))
	c.Audit.MaxLimit = l.int("AUDIT_API_MAX_LIMIT", "audit.max_limit", DefaultMaxLimit)
	c.Audit.PaginationCap = l.int("AUDIT_PAGINATION_CAP", "audit.pagination_cap", DefaultPaginationCap)
	c.Audit.Timeout = l.duration("UPSTREAM_TIMEOUT", "audit.timeout", 30*time.Second)

	c.Enrichment.ControlCenter = l.source(sourceKeys{
		enabled:    "CONTROL_CENTER_ENRICHMENT_ENABLED",
		timeoutSec: "CONTROL_CENTER_TIMEOUT_SEC",
	}, "enrichment.control_center", 0, 30)
	c.Enrichment.Runs = l.source(sourceKeys{
		enabled:    "RUNS_ENRICHMENT_ENABLED",
		maxIDs:     "RUNS_ENRICHMENT_MAX_RUNS",
		timeoutSec: "RUNS_ENRICHMENT_TIMEOUT_SEC",
	}, "enrichment.runs", DefaultMaxIDs, 10)
	c.Enrichment.Jobs = l.source(sourceKeys{
		enabled:    "JOBS_ENRICHMENT_ENABLED",
		maxIDs:     "JOBS_ENRICHMENT_MAX_JOBS",
		timeoutSec: "JOBS_ENRICHMENT_TIMEOUT_SEC",
	}, "enrichment.jobs", DefaultMaxIDs, 10)
	c.Enrichment.Concurrency = l.int("ENRICHMENT_CONCURRENCY", "enrichment.concurrency", 4)

	c.Telemetry.MetricsEnabled = l.bool("METRICS_ENABLED", "telemetry.metrics_enabled", true)
	c.Telemetry.TracingEnabled = l.bool("TRACING_ENABLED", "telemetry.tracing_enabled", false)
	c.Telemetry.OTLPEndpoint = l.str("OTEL_EXPORTER_OTLP_ENDPOINT", "telemetry.otlp_endpoint", "")
	c.Telemetry.TracingSampleRate = l.float("TRACING_SAMPLE_RATE", "telemetry.sample_rate", 0.1)

	if err := joinErrors(l.errs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults in place and reports invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		c.App.Env = "production"
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	c.Domino.APIHost = NormalizeHost(c.Domino.APIHost)
	if c.Audit.Host == "" {
		// Audit trail lives on the platform host unless pointed elsewhere.
		c.Audit.Host = c.Domino.APIHost
	}
	c.Audit.Host = strings.TrimRight(strings.TrimSpace(c.Audit.Host), "/")
	for name, host := range map[string]string{"DOMINO_API_HOST": c.Domino.APIHost, "AUDIT_API_HOST": c.Audit.Host} {
		if host == "" {
			continue
		}
		if u, err := url.Parse(host); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, host))
		}
	}

	if c.Audit.Path == "" {
		c.Audit.Path = DefaultAuditPath
	}
	if c.Audit.MaxLimit <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_API_MAX_LIMIT must be > 0, got %d", c.Audit.MaxLimit))
	}
	if c.Audit.PaginationCap <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_PAGINATION_CAP must be > 0, got %d", c.Audit.PaginationCap))
	}
	if c.Audit.Timeout <= 0 {
		c.Audit.Timeout = 30 * time.Second
	}
	if c.Domino.TokenTimeout <= 0 {
		c.Domino.TokenTimeout = 5 * time.Second
	}

	if c.Enrichment.Concurrency <= 0 {
		c.Enrichment.Concurrency = 1
	}
	for name, src := range map[string]*SourceConfig{"RUNS": &c.Enrichment.Runs, "JOBS": &c.Enrichment.Jobs} {
		if src.MaxIDs < 0 {
			errs = append(errs, fmt.Errorf("%s enrichment max ids must be >= 0, got %d", name, src.MaxIDs))
		}
		if src.Timeout <= 0 {
			src.Timeout = 10 * time.Second
		}
	}
	if c.Enrichment.ControlCenter.Timeout <= 0 {
		c.Enrichment.ControlCenter.Timeout = 30 * time.Second
	}

	if c.Telemetry.TracingSampleRate < 0 || c.Telemetry.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1, got %v", c.Telemetry.TracingSampleRate))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.App.Port)
}

// AuditPaths returns the configured path first, then fallbacks, each with a
// leading slash and without duplicates.
func (c Config) AuditPaths() []string {
	out := []string{withSlash(c.Audit.Path)}
	seen := map[string]struct{}{out[0]: {}}
	for _, p := range c.Audit.FallbackPaths {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		p = withSlash(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// NormalizeHost trims the host and strips an "apps." subdomain: the APIs live
// on the root domain even when the app is served from apps.<domain>.
func NormalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" {
		return host
	}
	if strings.HasPrefix(u.Host, "apps.") {
		scheme := u.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return scheme + "://" + strings.TrimPrefix(u.Host, "apps.")
	}
	return host
}

// loader reads env first, then the koanf layer, then the default.
type loader struct {
	k    *koanf.Koanf
	errs []error
}

func (l *loader) raw(envKey, fileKey string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if l.k != nil && l.k.Exists(fileKey) {
		return strings.TrimSpace(l.k.String(fileKey))
	}
	return ""
}

func (l *loader) str(envKey, fileKey, def string) string {
	if v := l.raw(envKey, fileKey); v != "" {
		return v
	}
	return def
}

func (l *loader) int(envKey, fileKey string, def int) int {
	v := l.raw(envKey, fileKey)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s must be an integer, got %q", envKey, v))
		return def
	}
	return n
}

func (l *loader) float(envKey, fileKey string, def float64) float64 {
	v := l.raw(envKey, fileKey)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s must be a number, got %q", envKey, v))
		return def
	}
	return f
}

func (l *loader) bool(envKey, fileKey string, def bool) bool {
	v := l.raw(envKey, fileKey)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	l.errs = append(l.errs, fmt.Errorf("%s must be a boolean, got %q", envKey, v))
	return def
}

// duration accepts Go durations ("30s") or bare seconds ("30").
func (l *loader) duration(envKey, fileKey string, def time.Duration) time.Duration {
	v := l.raw(envKey, fileKey)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s must be a duration, got %q", envKey, v))
		return def
	}
	return d
}

func (l *loader) source(keys sourceKeys, fileKey string, defMax, defTimeoutSec int) SourceConfig {
	out := SourceConfig{
		Enabled: l.bool(keys.enabled, fileKey+".enabled", false),
		MaxIDs:  defMax,
		Timeout: time.Duration(l.int(keys.timeoutSec, fileKey+".timeout_sec", defTimeoutSec)) * time.Second,
	}
	if keys.maxIDs != "" {
		out.MaxIDs = l.int(keys.maxIDs, fileKey+".max_ids", defMax)
	}
	return out
}

type sourceKeys struct {
	enabled    string
	maxIDs     string
	timeoutSec string
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func withSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
