package middlewares_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/middlewares"
	"github.com/dmitrymomot/letterpress/pkg/logger"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("generates new request ID when not present", func(t *testing.T) {
		t.Parallel()

		var captured string
		h := middlewares.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			captured = middlewares.GetRequestID(r.Context())
		}))

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Len(t, captured, 26)
		assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "existing-123")

		rec := serve(middlewares.RequestID()(okHandler()), req)
		assert.Equal(t, "existing-123", rec.Header().Get("X-Request-ID"))
	})

	t.Run("header priority follows configured order", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Correlation-ID", "corr")
		req.Header.Set("X-Trace", "trace")

		mw := middlewares.RequestID(middlewares.WithRequestIDHeaders("X-Trace", "X-Correlation-ID"))
		rec := serve(mw(okHandler()), req)
		assert.Equal(t, "trace", rec.Header().Get("X-Request-ID"))
	})

	t.Run("custom generator and response header", func(t *testing.T) {
		t.Parallel()

		mw := middlewares.RequestID(
			middlewares.WithRequestIDGenerator(func() string { return "fixed" }),
			middlewares.WithRequestIDResponseHeader("X-Trace-ID"),
		)
		rec := serve(mw(okHandler()), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "fixed", rec.Header().Get("X-Trace-ID"))
		assert.Empty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestGetRequestID_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, middlewares.GetRequestID(context.Background()))
}

func TestRequestIDExtractor(t *testing.T) {
	t.Parallel()

	extract := middlewares.RequestIDExtractor()

	attr, ok := extract(middlewares.WithRequestID(context.Background(), "abc"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.String())

	_, ok = extract(context.Background())
	assert.False(t, ok)

	t.Run("decorates log records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.NewWithWriter(&buf, logger.Config{Level: "info", Format: "json"}, middlewares.RequestIDExtractor())
		log.InfoContext(middlewares.WithRequestID(context.Background(), "req-1"), "hello", slog.Int("n", 1))
		assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	})
}
