// Package leadpress is the backend of an AI consultancy's marketing site:
// lead capture, LLM-written blog posts with an editorial review gate,
// crawler snapshots, brand-voice sync and topic recommendations.
//
// The App wires the store, gateway, pipelines, middleware and routes.
// The SPA talks to it through /functions/* and the /api content routes.
package leadpress

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/analytics"
	"github.com/eringen/leadpress/brandvoice"
	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/generate"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/media"
	"github.com/eringen/leadpress/recommend"
	"github.com/eringen/leadpress/review"
	"github.com/eringen/leadpress/ssr"
	"github.com/eringen/leadpress/store"
)

// App is the central leadpress application.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Store    content.Store
	Cache    *PostCache
	Logger   *zap.Logger
	Renderer *ssr.Renderer
	Media    *media.LocalStore

	// Gateway-backed services; nil when no LLM key is configured.
	Reviewer  *review.Reviewer
	Batch     *review.BatchRunner
	Generator *generate.Generator
	Syncer    *brandvoice.Syncer

	Recommender *recommend.Recommender

	gateway        llm.Gateway
	metrics        *metrics
	loginLimiter   *LoginLimiter
	contactLimiter *analytics.RateLimiter
	viewLimiter    *analytics.RateLimiter
	ipSalt         string
	customRoutes   []func(*App)
	ready          bool
}

// New creates a leadpress App. Call Setup (or Start) before serving.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:  cfg,
		Echo:    echo.New(),
		metrics: newMetrics(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = zap.NewNop()
	}
	return a
}

// Setup opens the store, builds the pipelines and registers middleware and
// routes. It is idempotent.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}

	if a.Store == nil {
		s, err := store.Open(ctx, a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("leadpress: open store: %w", err)
		}
		a.Store = s
	}
	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.Renderer = ssr.NewRenderer(a.Config.site(), a.Config.SSRRedirect)
	a.Media = media.NewLocalStore(a.Config.MediaDir, a.Config.MediaURL)

	salt, err := randomHex(16)
	if err != nil {
		return fmt.Errorf("leadpress: ip salt: %w", err)
	}
	a.ipSalt = salt
	if a.Config.SessionSecret == "" {
		if a.Config.SessionSecret, err = randomHex(32); err != nil {
			return fmt.Errorf("leadpress: session secret: %w", err)
		}
		a.Logger.Warn("SESSION_SECRET not set; admin sessions will not survive a restart")
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.contactLimiter = analytics.NewRateLimiter(5, time.Minute)
	a.viewLimiter = analytics.NewRateLimiter(1, 30*time.Minute)

	if a.gateway == nil {
		client, err := llm.NewClient(a.Config.llm(),
			llm.WithLogger(a.Logger.Named("llm")),
			llm.WithCallCounter(a.metrics.llmCalls),
		)
		switch {
		case errors.Is(err, llm.ErrNoAPIKey):
			a.Logger.Warn("LLM_API_KEY not set; generation, review and sync endpoints are disabled")
		case err != nil:
			return fmt.Errorf("leadpress: llm client: %w", err)
		default:
			a.gateway = client
		}
	}
	if a.gateway != nil {
		a.Reviewer = review.New(a.gateway, a.Store,
			review.WithLogger(a.Logger.Named("review")),
			review.WithBrandVoiceSource(brandvoice.Source),
			review.WithMetrics(a.metrics.registry),
		)
		a.Batch = review.NewBatchRunner(a.Reviewer, a.Store, a.Config.BatchDelay, a.Logger.Named("batch-review"))
		a.Generator = generate.New(a.gateway, a.Store,
			generate.WithReviewer(a.Reviewer),
			generate.WithUploader(a.Media),
			generate.WithLogger(a.Logger.Named("generate")),
			generate.WithBatchDelay(a.Config.BatchDelay),
			generate.WithAuthor(generate.Author{Name: a.Config.Author, Role: "AI Consultants"}),
		)
		a.Syncer = brandvoice.New(a.gateway, a.Store, a.Config.SubstackFeedURL, a.Logger.Named("brandvoice"))
		a.Recommender = recommend.New(a.gateway, a.Store, a.Logger.Named("recommend"))
	} else {
		a.Recommender = recommend.New(nil, a.Store, a.Logger.Named("recommend"))
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start sets the App up and serves until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}
	a.Logger.Info("leadpress listening",
		zap.String("addr", a.Config.Addr),
		zap.String("store", store.Backend(a.Config.DatabaseURL)),
		zap.Bool("llm", a.gateway != nil),
	)
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/healthz", handleHealth)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.metrics.registry,
	}))
	e.Static(a.Config.MediaURL, a.Config.MediaDir)

	api := e.Group("/api")
	api.GET("/posts", a.handleListPosts)
	api.GET("/posts/:slug", a.handleGetPost)
	api.POST("/posts/:slug/view", a.handleRecordView)
	api.GET("/case-studies", a.handleListCaseStudies)
	api.GET("/case-studies/:id", a.handleGetCaseStudy)

	fn := e.Group("/functions")
	internal := a.requireInternal
	fn.POST("/submit-contact", a.handleSubmitContact)
	fn.GET("/blog-ssr", a.handleBlogSSR)
	fn.GET("/case-study-ssr", a.handleCaseStudySSR)
	fn.POST("/generate-blog-post", a.handleGeneratePost)
	fn.POST("/batch-generate-posts", a.handleBatchGenerate, internal)
	fn.POST("/editor-agent", a.handleEditorAgent, internal)
	fn.POST("/batch-review-posts", a.handleBatchReview, internal)
	fn.POST("/analytics-recommender", a.handleRecommender)
	fn.POST("/sync-substack", a.handleSyncSubstack, internal)

	e.GET("/admin/session", a.handleAdminSession)
	e.POST("/admin/login", a.handleAdminLogin)
	e.POST("/admin/logout", handleAdminLogout)
	e.GET("/admin/posts", a.handleAdminPosts, a.requireAdmin)
	e.POST("/admin/images", a.handleImageUpload, a.requireAdmin)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.contactLimiter != nil {
		a.contactLimiter.Close()
	}
	if a.viewLimiter != nil {
		a.viewLimiter.Close()
	}
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	_ = a.Logger.Sync()
	return err
}
