package leadpress

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/content"
)

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrfToken"`
}

// handleAdminSession reports the session state and hands out the CSRF
// token required by the other /admin routes.
func (a *App) handleAdminSession(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: IsAdmin(c), CSRFToken: CsrfToken(c)})
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	if a.Config.AdminPassword == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "admin login is not configured")
	}
	var body struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if subtle.ConstantTimeCompare([]byte(body.Password), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("admin login failed", zap.String("ip", ip))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, CSRFToken: CsrfToken(c)})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{})
}

// handleAdminPosts lists posts of every status for the review queue.
func (a *App) handleAdminPosts(c echo.Context) error {
	status := content.PostStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}
	posts, err := a.Store.ListPosts(c.Request().Context(), content.PostFilter{Status: status})
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []content.BlogPost{}
	}
	return c.JSON(http.StatusOK, posts)
}
