package leadpress

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/leadpress/analytics"
)

// renderStatus writes a templ component with a specific HTTP status code.
func renderStatus(ctx context.Context, c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(ctx, c.Response().Writer)
}

func (a *App) handleBlogSSR(c echo.Context) error {
	slug := strings.TrimSpace(c.QueryParam("slug"))
	if slug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing slug parameter")
	}
	post, err := a.Store.GetPostBySlug(c.Request().Context(), slug, true)
	if err != nil {
		if isNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return fmt.Errorf("blog-ssr %q: %w", slug, err)
	}
	return a.renderSnapshot(c, "blog", a.Renderer.BlogPost(post))
}

func (a *App) handleCaseStudySSR(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing id parameter")
	}
	cs, err := a.Store.GetCaseStudy(c.Request().Context(), id)
	if err != nil {
		if isNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Case study not found")
		}
		return fmt.Errorf("case-study-ssr %q: %w", id, err)
	}
	return a.renderSnapshot(c, "case_study", a.Renderer.CaseStudy(cs))
}

// renderSnapshot serves an SSR document under a per-response CSP whose
// nonce admits only the document's own redirect script.
func (a *App) renderSnapshot(c echo.Context, kind string, doc templ.Component) error {
	nonce, err := newNonce()
	if err != nil {
		return fmt.Errorf("ssr nonce: %w", err)
	}
	c.Response().Header().Set("Content-Security-Policy", snapshotCSP(nonce))
	a.metrics.ssrRenders.WithLabelValues(kind, analytics.ClientClass(c.Request().UserAgent())).Inc()
	ctx := templ.WithNonce(c.Request().Context(), nonce)
	return renderStatus(ctx, c, http.StatusOK, doc)
}

func snapshotCSP(nonce string) string {
	return "default-src 'none'; script-src 'nonce-" + nonce + "'; style-src 'unsafe-inline'; img-src 'self' https: data:; base-uri 'none'; frame-ancestors 'none'"
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
