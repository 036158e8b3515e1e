package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/metrics"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler renders every error as {code, message} with the status of
// its apperr code. Causes of server-side failures are logged, never returned.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   errorResponse
		)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body = errorResponse{Code: http.StatusText(he.Code), Message: fmt.Sprint(he.Message)}
		} else {
			code := apperr.ErrorCode(err)
			status = apperr.HTTPStatus(code)
			body = errorResponse{Code: code, Message: apperr.ErrorMessage(err)}
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", status),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

// observe counts each call of a handler by outcome.
func observe(op string, h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := h(c)
		outcome := "ok"
		if err != nil {
			outcome = apperr.ErrorCode(err)
		}
		metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
		return err
	}
}
