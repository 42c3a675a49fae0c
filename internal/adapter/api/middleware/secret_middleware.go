package middleware

import (
	"crypto/subtle"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
	"bibomarket/pkg/response"
)

const (
	HeaderGatewaySecret = "X-Gateway-Secret"
	// Browsers cannot set headers on a websocket handshake.
	QueryGatewaySecret = "secret"
)

// GatewaySecret rejects requests under any of prefixes that do not carry
// the gateway secret. An empty secret rejects them all.
func GatewaySecret(secret string, prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !hasPrefix(c.Request().URL.Path, prefixes) {
				return next(c)
			}

			presented := c.Request().Header.Get(HeaderGatewaySecret)
			if presented == "" && c.IsWebSocket() {
				presented = c.QueryParam(QueryGatewaySecret)
			}
			if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				logger.Warn("GatewaySecret: rejected %s %s from %s", c.Request().Method, c.Request().URL.Path, c.RealIP())
				return response.Error(c, errors.Unauthorized("Missing or invalid gateway secret", nil))
			}
			return next(c)
		}
	}
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// RequireBodyType accepts request bodies in JSON or multipart form only.
// Requests without a Content-Type pass.
func RequireBodyType() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderContentType)
			if header == "" {
				return next(c)
			}
			mediaType, _, err := mime.ParseMediaType(header)
			if err != nil || (mediaType != echo.MIMEApplicationJSON && mediaType != echo.MIMEMultipartForm) {
				return response.Error(c, errors.UnsupportedMediaType(header))
			}
			return next(c)
		}
	}
}
