package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/service"
	"github.com/slotbook/slotbook/internal/util"
)

type errorResponse struct {
	Reason     string   `json:"reason"`
	Violations []string `json:"violations,omitempty"`
}

// ErrorHandler maps the service error taxonomy onto HTTP statuses. Security
// failures keep their single generic message; internal failures are logged in
// full and surfaced as a bare 500.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var validationErr *service.ValidationError
		var responseErr util.ResponseError
		var httpErr *echo.HTTPError

		switch {
		case errors.Is(err, service.ErrInvalidCredentials),
			errors.Is(err, service.ErrInvalidOrExpiredToken):
			writeJSON(c, log, http.StatusUnauthorized, errorResponse{Reason: err.Error()})

		case errors.Is(err, service.ErrAccountNotActive):
			writeJSON(c, log, http.StatusForbidden, errorResponse{Reason: err.Error()})

		case errors.As(err, &validationErr):
			writeJSON(c, log, http.StatusBadRequest, errorResponse{
				Reason:     "validation failed",
				Violations: validationErr.Violations,
			})

		case errors.As(err, &responseErr):
			writeJSON(c, log, responseErr.Status, errorResponse{Reason: responseErr.Msg})

		case errors.As(err, &httpErr):
			if httpErr.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			reason, ok := httpErr.Message.(string)
			if !ok {
				reason = http.StatusText(httpErr.Code)
			}
			writeJSON(c, log, httpErr.Code, errorResponse{Reason: reason})

		default:
			log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
			writeJSON(c, log, http.StatusInternalServerError, errorResponse{Reason: "internal server error"})
		}
	}
}

func writeJSON(c echo.Context, log *zap.SugaredLogger, status int, body errorResponse) {
	if err := c.JSON(status, body); err != nil {
		log.Errorw("failed to write json response", "error", err)
	}
}
