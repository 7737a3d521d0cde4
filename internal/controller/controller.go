package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/service"
	"github.com/slotbook/slotbook/internal/util"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/auth"
)

type Controller struct {
	log       *zap.SugaredLogger
	auth      *service.AuthService
	reset     *service.ResetService
	refresh   *service.RefreshService
	accessTTL time.Duration
	cookieTTL time.Duration
}

func NewController(
	log *zap.SugaredLogger,
	auth *service.AuthService,
	reset *service.ResetService,
	refresh *service.RefreshService,
	tokenCfg *util.TokenConfig,
) *Controller {
	return &Controller{
		log:       log,
		auth:      auth,
		reset:     reset,
		refresh:   refresh,
		accessTTL: tokenCfg.AccessTTL,
		cookieTTL: tokenCfg.RefreshTTL,
	}
}

// RegisterRoutes wires the auth endpoints onto the /api group. The sessions
// endpoints additionally require a verified bearer token.
func (c *Controller) RegisterRoutes(g *echo.Group, bearerAuth echo.MiddlewareFunc) {
	g.GET("/ping", c.CheckServer)

	g.POST("/auth/signin", c.SignIn)
	g.POST("/auth/refresh", c.Refresh)
	g.POST("/auth/signout", c.SignOut)
	g.POST("/auth/forgot-password", c.ForgotPassword)
	g.POST("/auth/reset-password", c.ResetPassword)

	sessions := g.Group("/auth/sessions", bearerAuth)
	sessions.GET("", c.ListSessions)
	sessions.DELETE("/:tokenId", c.RevokeSession)
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

func clientMetadata(ctx echo.Context) models.UserMetadata {
	return models.UserMetadata{
		DeviceInfo: ctx.Request().UserAgent(),
		IPAddress:  ctx.RealIP(),
	}
}

// setRefreshCookie delivers the raw refresh token as an HttpOnly cookie
// scoped to the auth endpoints. clearRefreshCookie must use the same
// attributes or browsers will keep the stale cookie around.
func (c *Controller) setRefreshCookie(ctx echo.Context, rawToken string) {
	ctx.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    rawToken,
		Path:     refreshCookiePath,
		MaxAge:   int(c.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *Controller) clearRefreshCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshTokenFromRequest prefers the HttpOnly cookie and falls back to the
// JSON body for non-browser clients.
func refreshTokenFromRequest(ctx echo.Context) string {
	if cookie, err := ctx.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := ctx.Bind(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}
