package middleware

import (
	"context"
	"strings"

	"github.com/jmehdipour/linkdb/internal/apperr"
	echo "github.com/labstack/echo/v4"
)

const (
	// HeaderAPIKey carries the credential.
	HeaderAPIKey = "API-Key"
	// HeaderAPIKeyAlt is accepted when HeaderAPIKey is absent.
	HeaderAPIKeyAlt = "X-API-Key"

	ctxAPIKey    = "api_key"
	ctxNamespace = "namespace"
)

// Resolver maps a presented credential to its namespace.
type Resolver interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// APIKeyFromCtx returns the authenticated credential set by APIKeyMiddleware.
func APIKeyFromCtx(c echo.Context) (string, bool) {
	v, ok := c.Get(ctxAPIKey).(string)
	return v, ok && v != ""
}

// NamespaceFromCtx returns the namespace resolved by APIKeyMiddleware.
func NamespaceFromCtx(c echo.Context) (string, bool) {
	v, ok := c.Get(ctxNamespace).(string)
	return v, ok && v != ""
}

// APIKeyMiddleware authenticates requests using the API-Key header.
// On success it stores the credential and its namespace in the context.
func APIKeyMiddleware(resolver Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			key := strings.TrimSpace(h.Get(HeaderAPIKey))
			if key == "" {
				key = strings.TrimSpace(h.Get(HeaderAPIKeyAlt))
			}
			if key == "" {
				return apperr.New(apperr.EUnauthorized, "API key is missing")
			}

			ns, err := resolver.Resolve(c.Request().Context(), key)
			if err != nil {
				return err
			}
			c.Set(ctxAPIKey, key)
			c.Set(ctxNamespace, ns)
			return next(c)
		}
	}
}
