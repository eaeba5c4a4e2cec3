package leadpress

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/ssr"
)

// Config holds all configuration for a leadpress service.
type Config struct {
	Name        string // Site name (default "Northwind AI")
	URL         string // Canonical SPA origin (default "http://localhost:5173")
	Description string // Site description for RSS and meta tags
	Author      string // Organization name for JSON-LD

	Addr        string // Listen address (default ":3000")
	DatabaseURL string // sqlite:path | postgres://... | memory: (default "sqlite:data/leadpress.db")

	ServiceRoleKey string // Bearer token accepted on internal routes
	AdminPassword  string // Admin session login password
	SessionSecret  string // Session cookie secret
	CookieSecure   bool   // Set true for HTTPS

	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	LLMImageModel string
	LLMTimeout    time.Duration // default 120s

	MediaDir        string // Upload directory (default "data/media")
	MediaURL        string // Public URL prefix of MediaDir (default "/media")
	SubstackFeedURL string

	BatchDelay   time.Duration // Pause between batch items (default 2s)
	PostCacheTTL time.Duration // Content API cache TTL (default 5min)
	SSRRedirect  ssr.RedirectPolicy

	LogLevel  string // debug|info|warn|error (default "info")
	LogFormat string // json|console (default "json")
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Northwind AI"
	}
	if c.URL == "" {
		c.URL = "http://localhost:5173"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "sqlite:data/leadpress.db"
	}
	if c.LLMTimeout == 0 {
		c.LLMTimeout = 120 * time.Second
	}
	if c.MediaDir == "" {
		c.MediaDir = "data/media"
	}
	if c.MediaURL == "" {
		c.MediaURL = "/media"
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = 2 * time.Second
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.SSRRedirect == "" {
		c.SSRRedirect = ssr.RedirectScript
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

func (c Config) site() ssr.Site {
	return ssr.Site{
		Name:        c.Name,
		URL:         c.URL,
		Description: c.Description,
		Author:      c.Author,
	}
}

func (c Config) llm() llm.Config {
	return llm.Config{
		APIKey:     c.LLMAPIKey,
		BaseURL:    c.LLMBaseURL,
		Model:      c.LLMModel,
		ImageModel: c.LLMImageModel,
		Timeout:    c.LLMTimeout,
	}
}

// LoadConfig reads Config from the environment after loading an optional
// .env file. Unset values keep their defaults.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Name:            os.Getenv("SITE_NAME"),
		URL:             os.Getenv("SITE_URL"),
		Description:     os.Getenv("SITE_DESCRIPTION"),
		Author:          os.Getenv("SITE_AUTHOR"),
		Addr:            os.Getenv("ADDR"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ServiceRoleKey:  os.Getenv("SERVICE_ROLE_KEY"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMBaseURL:      os.Getenv("LLM_BASE_URL"),
		LLMModel:        os.Getenv("LLM_MODEL"),
		LLMImageModel:   os.Getenv("LLM_IMAGE_MODEL"),
		MediaDir:        os.Getenv("MEDIA_DIR"),
		MediaURL:        os.Getenv("MEDIA_URL"),
		SubstackFeedURL: os.Getenv("SUBSTACK_FEED_URL"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		LogFormat:       os.Getenv("LOG_FORMAT"),
	}

	var err error
	if cfg.CookieSecure, err = envBool("COOKIE_SECURE"); err != nil {
		return Config{}, err
	}
	if cfg.LLMTimeout, err = envDuration("LLM_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.BatchDelay, err = envDuration("BATCH_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.PostCacheTTL, err = envDuration("POST_CACHE_TTL"); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("SSR_REDIRECT"); v != "" {
		if cfg.SSRRedirect, err = ssr.ParseRedirectPolicy(v); err != nil {
			return Config{}, err
		}
	}
	cfg.setDefaults()
	return cfg, nil
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore uses s instead of opening Config.DatabaseURL.
func WithStore(s content.Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithGateway uses gw instead of building an llm.Client from Config.
func WithGateway(gw llm.Gateway) Option {
	return func(a *App) {
		a.gateway = gw
	}
}

// WithLogger sets the application logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
