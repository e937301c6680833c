package tracking_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/internal/tracking"
)

type call struct {
	token, ip, ua string
}

type blockingRecorder struct {
	release chan struct{}
	mu      sync.Mutex
	calls   []call
}

func (b *blockingRecorder) RecordOpen(_ context.Context, token, ip, ua string) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{token, ip, ua})
	return nil
}

func (b *blockingRecorder) recorded() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]call(nil), b.calls...)
}

func router(rec *tracking.Recorder) http.Handler {
	r := chi.NewRouter()
	r.Get("/track/{token}", rec.ServeHTTP)
	return r
}

func TestRecorder_RespondsWithoutWaiting(t *testing.T) {
	t.Parallel()

	svc := &blockingRecorder{release: make(chan struct{})}
	rec := tracking.NewRecorder(svc)

	req := httptest.NewRequest(http.MethodGet, "/track/abc123", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "Thunderbird")
	w := httptest.NewRecorder()

	router(rec).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
	assert.Equal(t, "0", w.Header().Get("Expires"))
	assert.Equal(t, tracking.PixelGIF(), w.Body.Bytes())
	assert.Empty(t, svc.recorded(), "recording must not block the response")

	close(svc.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rec.Wait(ctx))

	assert.Equal(t, []call{{"abc123", "203.0.113.7", "Thunderbird"}}, svc.recorded())
}

func TestRecorder_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	svc := &blockingRecorder{release: make(chan struct{})}
	defer close(svc.release)
	rec := tracking.NewRecorder(svc)

	router(rec).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/track/abc", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, rec.Wait(ctx), context.DeadlineExceeded)
}

type errRecorder struct{}

func (errRecorder) RecordOpen(context.Context, string, string, string) error {
	return assert.AnError
}

func TestRecorder_StoreErrorStillServesPixel(t *testing.T) {
	t.Parallel()

	rec := tracking.NewRecorder(errRecorder{})
	w := httptest.NewRecorder()
	router(rec).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/track/whatever", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Body.Bytes(), 43)
	require.NoError(t, rec.Wait(context.Background()))
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": " 198.51.100.1 , 10.0.0.2"}, "10.0.0.3:1234", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.9"}, "10.0.0.3:1234", "198.51.100.9"},
		{"remote addr host", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.11", "192.0.2.11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tracking.ClientIP(req))
		})
	}
}
