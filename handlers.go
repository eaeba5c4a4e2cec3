package leadpress

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/analytics"
	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/ssr"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

func (a *App) handleListPosts(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Cache.ListPosts(ctx, c.QueryParam("category"), c.QueryParam("tag"))
	if err != nil {
		return err
	}
	tags, err := a.Cache.ListTags(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"posts": posts, "tags": tags})
}

func (a *App) handleGetPost(c echo.Context) error {
	post, err := a.Cache.GetPost(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

// handleRecordView counts one view per visitor and post within the dedupe
// window. Crawlers are never counted.
func (a *App) handleRecordView(c echo.Context) error {
	slug := c.Param("slug")
	if analytics.IsBot(c.Request().UserAgent()) {
		return c.JSON(http.StatusOK, map[string]bool{"counted": false})
	}
	key := analytics.HashIP(a.ipSalt, c.RealIP()) + "|" + slug
	if !a.viewLimiter.Allow(key) {
		return c.JSON(http.StatusOK, map[string]bool{"counted": false})
	}
	if err := a.Store.IncrementViews(c.Request().Context(), slug); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"counted": true})
}

func (a *App) handleListCaseStudies(c echo.Context) error {
	studies, err := a.Store.ListCaseStudies(c.Request().Context())
	if err != nil {
		return err
	}
	if studies == nil {
		studies = []content.CaseStudy{}
	}
	return c.JSON(http.StatusOK, studies)
}

func (a *App) handleGetCaseStudy(c echo.Context) error {
	cs, err := a.Store.GetCaseStudy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Cache.ListPosts(ctx, "", "")
	if err != nil {
		return err
	}
	studies, err := a.Store.ListCaseStudies(ctx)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts, studies)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), "", "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /admin\nDisallow: /functions/\n\nSitemap: %s\n",
		ssr.BuildURL(a.Config.URL, "sitemap.xml"))
	return c.String(http.StatusOK, body)
}

func isNotFound(err error) bool {
	return errors.Is(err, content.ErrNotFound)
}

// plainTextRoute reports whether errors on the request's path are
// answered as text/plain rather than JSON.
func plainTextRoute(path string) bool {
	return strings.HasPrefix(path, "/functions/blog-ssr") ||
		strings.HasPrefix(path, "/functions/case-study-ssr") ||
		path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt"
}

// classifyError maps an error to a status and a client-safe message.
func classifyError(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, msg
	}
	var ge *llm.GatewayError
	switch {
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, content.ErrConflict):
		return http.StatusConflict, "the post changed while this request ran; retry"
	case errors.Is(err, llm.ErrNoAPIKey):
		return http.StatusInternalServerError, "AI service is not configured"
	case errors.As(err, &ge) && ge.RateLimited():
		return http.StatusTooManyRequests, "AI service rate limit exceeded, try again later"
	case errors.As(err, &ge) && ge.PaymentRequired():
		return http.StatusPaymentRequired, "AI service credits exhausted"
	}
	return http.StatusInternalServerError, "internal server error"
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := classifyError(err)
	if code >= 500 {
		a.Logger.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", code),
			zap.Error(err),
		)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if plainTextRoute(c.Request().URL.Path) {
		_ = c.String(code, msg)
		return
	}
	_ = c.JSON(code, errorBody{Error: msg})
}
