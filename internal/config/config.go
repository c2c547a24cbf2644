// Package config loads runtime configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"token-radar/internal/domain"
)

// ErrInvalidArgument marks configuration errors: bad flags, arguments or environment values.
var ErrInvalidArgument = errors.New("invalid argument")

// Store backends.
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Work order
	Class   domain.TokenClass
	Budget  int
	Period  time.Duration
	Timeout time.Duration

	// Token store
	Store              string
	MongoURI           string
	MongoDatabase      string
	MongoCollection    string
	PostgresDSN        string
	PostgresMaxConns   int
	PostgresViaBouncer bool

	// Cycle log and lease
	ClickhouseDSN string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Feed
	FeedBaseURL      string
	FeedTimeout      time.Duration
	FeedMaxRetries   int
	PageSize         int
	MaxPages         int
	ConfirmShortPage bool
	SessionFile      string
	Cookies          string // "name=value; name2=value2"

	// Pipeline
	Workers int
	Source  string

	// Observability
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// Load reads .env (if present) into the process environment without overriding
// variables already set, then parses the environment. The result is not validated:
// commands apply their flags first and then call Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env: %v", ErrInvalidArgument, err)
	}
	return Parse(os.Getenv)
}

// FromEnv parses configuration using getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg, err := Parse(getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads typed values using getenv. Only malformed values are errors.
func Parse(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Class:   domain.TokenClass(p.str("TOKEN_CLASS", string(domain.ClassAll))),
		Budget:  p.int("BUDGET", 500),
		Period:  p.duration("PERIOD", 30*time.Second),
		Timeout: p.duration("CYCLE_TIMEOUT", 5*time.Minute),

		Store:              p.str("STORE", StoreMongo),
		MongoURI:           p.str("MONGODB_URI", ""),
		MongoDatabase:      p.str("MONGODB_DATABASE", "TokenRadar"),
		MongoCollection:    p.str("MONGODB_COLLECTION", "Rader"),
		PostgresDSN:        p.str("POSTGRES_DSN", ""),
		PostgresMaxConns:   p.int("PG_MAX_CONNS", 4),
		PostgresViaBouncer: p.bool("PG_VIA_BOUNCER", false),

		ClickhouseDSN: p.str("CLICKHOUSE_DSN", ""),
		RedisAddr:     p.str("REDIS_ADDR", ""),
		RedisPassword: p.str("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),

		FeedBaseURL:      p.str("FEED_BASE_URL", "https://frontend-api-v3.pump.fun"),
		FeedTimeout:      p.duration("FEED_TIMEOUT", 30*time.Second),
		FeedMaxRetries:   p.int("FEED_MAX_RETRIES", 2),
		PageSize:         p.int("FEED_PAGE_SIZE", 50),
		MaxPages:         p.int("FEED_MAX_PAGES", 10),
		ConfirmShortPage: p.bool("FEED_CONFIRM_SHORT_PAGE", false),
		SessionFile:      p.str("FEED_SESSION_FILE", ""),
		Cookies:          p.str("FEED_COOKIES", ""),

		Workers: p.int("UPSERT_WORKERS", 1),
		Source:  p.str("SOURCE_TAG", domain.DefaultSource),

		MetricsAddr: p.str("METRICS_ADDR", ":9090"),
		LogLevel:    p.str("LOG_LEVEL", "info"),
		LogFormat:   p.str("LOG_FORMAT", "json"),
	}

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Validate checks value ranges and that the selected store has its connection settings.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...))
		}
	}

	check(c.Class.IsValid(), "class %q (want all, bonded or recent)", c.Class)
	check(c.Budget > 0, "budget must be positive, got %d", c.Budget)
	check(c.Period > 0, "period must be positive, got %s", c.Period)
	check(c.Timeout >= 0, "timeout must not be negative, got %s", c.Timeout)
	check(c.PageSize > 0, "page size must be positive, got %d", c.PageSize)
	check(c.MaxPages > 0, "max pages must be positive, got %d", c.MaxPages)
	check(c.FeedMaxRetries >= 0, "feed retries must not be negative, got %d", c.FeedMaxRetries)
	check(c.Workers > 0, "upsert workers must be positive, got %d", c.Workers)
	check(c.LogFormat == "json" || c.LogFormat == "console", "log format %q (want json or console)", c.LogFormat)

	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		check(c.MongoURI != "", "MONGODB_URI is required for the mongo store")
	case StorePostgres:
		check(c.PostgresDSN != "", "POSTGRES_DSN is required for the postgres store")
	default:
		check(false, "store %q (want memory, mongo or postgres)", c.Store)
	}

	return errors.Join(errs...)
}

// ParseClass parses a token class argument.
func ParseClass(s string) (domain.TokenClass, error) {
	c := domain.TokenClass(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: class %q (want all, bonded or recent)", ErrInvalidArgument, s)
	}
	return c, nil
}

// ParseBudget parses a positive budget argument.
func ParseBudget(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: budget %q must be a positive integer", ErrInvalidArgument, s)
	}
	return n, nil
}

// ParseCookies parses a Cookie header value into a name/value map.
func ParseCookies(s string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return cookies
}

// parser reads typed values and keeps the first parse error.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return d
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	}
	p.fail(key, v)
	return def
}

func (p *parser) fail(key, v string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q", ErrInvalidArgument, key, v)
	}
}
