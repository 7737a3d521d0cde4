package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/service"
)

const (
	msgAccepted       = "if the account exists, a reset link has been sent"
	msgSignedOut      = "signed out"
	msgPasswordReset  = "password has been reset"
	msgSessionRevoked = "session revoked"
)

// (POST /api/auth/signin).
func (c *Controller) SignIn(ctx echo.Context) error {
	var req models.SignInRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	result, err := c.auth.SignIn(ctx.Request().Context(), req.Email, req.Password, clientMetadata(ctx))
	if err != nil {
		return err
	}

	c.setRefreshCookie(ctx, result.RefreshToken)

	return ctx.JSON(http.StatusOK, models.SignInResponse{
		TokenPairResponse: models.TokenPairResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			ExpiresIn:    int64(c.accessTTL.Seconds()),
		},
		User: result.User,
	})
}

// (POST /api/auth/refresh).
func (c *Controller) Refresh(ctx echo.Context) error {
	rawToken := refreshTokenFromRequest(ctx)
	if rawToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	result, err := c.auth.Refresh(ctx.Request().Context(), rawToken, clientMetadata(ctx))
	if err != nil {
		return err
	}

	c.setRefreshCookie(ctx, result.RefreshToken)

	return ctx.JSON(http.StatusOK, models.SignInResponse{
		TokenPairResponse: models.TokenPairResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			ExpiresIn:    int64(c.accessTTL.Seconds()),
		},
		User: result.User,
	})
}

// (POST /api/auth/signout). Always reports success: sign-out must not leak
// whether the presented token was valid.
func (c *Controller) SignOut(ctx echo.Context) error {
	rawToken := refreshTokenFromRequest(ctx)
	if rawToken != "" {
		if err := c.auth.SignOut(ctx.Request().Context(), rawToken); err != nil {
			c.log.Errorw("sign-out failed", "error", err)
		}
	}

	c.clearRefreshCookie(ctx)

	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: msgSignedOut})
}

// (POST /api/auth/forgot-password). The response is identical for known and
// unknown emails; only mail delivery trouble is surfaced.
func (c *Controller) ForgotPassword(ctx echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	err := c.reset.RequestReset(ctx.Request().Context(), req.Email, clientMetadata(ctx))
	if err != nil {
		c.log.Errorw("forgot-password failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "could not send reset mail")
	}

	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: msgAccepted})
}

// (POST /api/auth/reset-password).
func (c *Controller) ResetPassword(ctx echo.Context) error {
	var req models.ResetPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	if err := c.reset.ResetPassword(ctx.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: msgPasswordReset})
}

// (GET /api/auth/sessions).
func (c *Controller) ListSessions(ctx echo.Context) error {
	claims, _ := ctx.Get(models.MwClaimsKey).(*service.TokenClaims)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}

	records, err := c.refresh.ListSessions(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}

	sessions := make([]models.SessionResponse, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, models.SessionResponse{
			TokenID:    r.TokenID,
			DeviceInfo: r.DeviceInfo,
			IPAddress:  r.IPAddress,
			CreatedAt:  r.CreatedAt,
			LastUsedAt: r.LastUsedAt,
			ExpiresAt:  r.ExpiresAt,
		})
	}

	return ctx.JSON(http.StatusOK, sessions)
}

// (DELETE /api/auth/sessions/{tokenId}).
func (c *Controller) RevokeSession(ctx echo.Context) error {
	claims, _ := ctx.Get(models.MwClaimsKey).(*service.TokenClaims)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}

	tokenID := ctx.Param("tokenId")
	if err := c.refresh.RevokeSession(ctx.Request().Context(), claims.UserID, tokenID); err != nil {
		if errors.Is(err, service.ErrInvalidOrExpiredToken) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return err
	}

	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: msgSessionRevoked})
}
