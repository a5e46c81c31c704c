package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"humormapper/internal/handler"
	"humormapper/internal/logger"
	"humormapper/internal/service"
)

// RequestLoggerMiddleware logs HTTP requests using logger. Server errors log
// at error level, client errors at warn, everything else at debug.
func RequestLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			result := "ok"
			logFn := logger.Debug
			switch {
			case status >= 500:
				result, logFn = "failed", logger.Error
			case status >= 400:
				result, logFn = "failed", logger.Warn
			}

			logFn("http request",
				"module", "http",
				"action", "request",
				"resource", "http",
				"result", result,
				"method", req.Method,
				"path", req.URL.Path,
				"status_code", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", c.RealIP(),
				"user_agent", req.UserAgent(),
			)
			return nil
		}
	}
}

// SessionAuthMiddleware resolves the caller's session and stores it on the
// request context. It checks the Authorization header first, then the
// auth cookie set by the browser UI.
func SessionAuthMiddleware(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				if cookie, err := c.Cookie(handler.AuthCookieName); err == nil && cookie.Value != "" {
					token = cookie.Value
				}
			}

			if token == "" {
				logAuthFailure(c, "auth missing")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing authentication",
				})
			}

			session, err := authService.Authenticate(c.Request().Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidToken) {
					c.Logger().Error(err)
					return c.JSON(http.StatusInternalServerError, map[string]string{
						"error": "internal error",
					})
				}
				logAuthFailure(c, "auth invalid")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
			}

			c.SetRequest(c.Request().WithContext(service.WithSession(c.Request().Context(), session)))
			return next(c)
		}
	}
}

func bearerToken(req *http.Request) string {
	parts := strings.SplitN(req.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func logAuthFailure(c echo.Context, msg string) {
	logger.Warn(msg,
		"module", "http",
		"action", "request",
		"resource", "auth",
		"result", "failed",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"remote_ip", c.RealIP(),
	)
}
