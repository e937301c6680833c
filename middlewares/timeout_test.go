package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/letterpress/middlewares"
)

func TestTimeout(t *testing.T) {
	t.Parallel()

	t.Run("slow handler gets 503", func(t *testing.T) {
		t.Parallel()

		h := middlewares.Timeout(10 * time.Millisecond)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("fast handler untouched", func(t *testing.T) {
		t.Parallel()

		rec := serve(middlewares.Timeout(time.Second)(okHandler()), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("written response is kept", func(t *testing.T) {
		t.Parallel()

		var handled bool
		mw := middlewares.Timeout(10*time.Millisecond, middlewares.WithTimeoutErrorHandler(
			func(http.ResponseWriter, *http.Request, error) { handled = true },
		))
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			<-r.Context().Done()
		}))

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.False(t, handled)
	})

	t.Run("non-positive falls back to default", func(t *testing.T) {
		t.Parallel()

		var deadline time.Time
		h := middlewares.Timeout(0)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			deadline, _ = r.Context().Deadline()
		}))
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.WithinDuration(t, time.Now().Add(middlewares.DefaultTimeout), deadline, time.Second)
	})
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	te := &middlewares.TimeoutError{Duration: time.Second}
	assert.Equal(t, "request timeout after 1s", te.Error())
	assert.True(t, middlewares.IsTimeoutError(errors.Join(errors.New("x"), te)))
	assert.False(t, middlewares.IsPanicError(te))

	_, ok := middlewares.AsPanicError(errors.New("plain"))
	assert.False(t, ok)

	rec := httptest.NewRecorder()
	middlewares.DefaultErrorHandler(rec, nil, errors.New("x"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
