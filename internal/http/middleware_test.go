package http

import (
	"bytes"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"humormapper/internal/logger"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		require.Equal(t, want, bearerToken(req), header)
	}
}

func TestRequestLoggerMiddleware_LevelByStatus(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	logger.SetOutput(&buf, slog.LevelDebug)

	e := echo.New()
	e.Use(RequestLoggerMiddleware())
	e.GET("/ok", func(c echo.Context) error { return c.String(nethttp.StatusOK, "ok") })
	e.GET("/bad", func(c echo.Context) error { return echo.NewHTTPError(nethttp.StatusBadRequest, "bad") })
	e.GET("/boom", func(c echo.Context) error { return c.String(nethttp.StatusInternalServerError, "boom") })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(nethttp.MethodGet, path, nil))
	}

	out := buf.String()
	require.Contains(t, out, "level=debug msg=\"http request\"")
	require.Contains(t, out, "level=warn msg=\"http request\"")
	require.Contains(t, out, "level=error msg=\"http request\"")
	require.Contains(t, out, "status_code=400")
	require.Contains(t, out, "path=/boom")
}
