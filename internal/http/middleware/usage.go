package middleware

import (
	echo "github.com/labstack/echo/v4"
)

// Recorder receives one usage event per billable request.
type Recorder interface {
	Record(apiKey, endpoint string)
}

// UsageMiddleware records a usage event after the handler has run, whatever
// its outcome. The endpoint is the method and route pattern, e.g.
// "POST /:table/insert_data". Recording never fails the request.
func UsageMiddleware(rec Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if apiKey, ok := APIKeyFromCtx(c); ok {
				rec.Record(apiKey, c.Request().Method+" "+c.Path())
			}
			return err
		}
	}
}
