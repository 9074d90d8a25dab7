package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CronSecretHeader carries the shared secret for internal trigger endpoints.
const CronSecretHeader = "X-Cron-Secret"

// SharedSecret guards internal endpoints called by the external scheduler or
// sibling services. An empty secret disables the check (development only;
// config validation requires one in production).
func SharedSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			got := c.Request().Header.Get(CronSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid cron secret")
			}
			return next(c)
		}
	}
}
