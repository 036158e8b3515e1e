package http

import (
	"encoding/json"
	"net/http"

	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/http/middleware"
	"github.com/jmehdipour/linkdb/internal/service/credential"
	"github.com/jmehdipour/linkdb/internal/service/usage"
	"github.com/labstack/echo/v4"
)

func generateAPIKeyHandler(creds *credential.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		cred, err := creds.Issue(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"api_key": cred.APIKey})
	}
}

func usageCostsHandler(meter *usage.Meter) echo.HandlerFunc {
	return func(c echo.Context) error {
		apiKey, ok := middleware.APIKeyFromCtx(c)
		if !ok {
			return apperr.New(apperr.EUnauthorized, "API key is missing")
		}
		cost, err := meter.Cost(c.Request().Context(), apiKey)
		if err != nil {
			return err
		}
		// decimal rendered as a JSON number without float rounding
		return c.JSON(http.StatusOK, map[string]any{
			"api_key": apiKey,
			"cost":    json.Number(cost.String()),
		})
	}
}
