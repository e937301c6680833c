package server_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/internal/server"
)

type recorder struct {
	calls []string
	mu    sync.Mutex
}

func (r *recorder) hook(name string, err error) server.Hook {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		return err
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := server.New(handler,
		server.WithListener(ln),
		server.WithContext(ctx),
		server.WithShutdownTimeout(time.Second),
		server.WithStartupHook(rec.hook("start", nil)),
		server.WithShutdownHook(rec.hook("stop-a", nil)),
		server.WithShutdownHook(rec.hook("stop-b", nil)),
	)

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "pong"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, []string{"start", "stop-a", "stop-b"}, rec.list())
}

func TestServer_StartupHookFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("migrations failed")
	rec := &recorder{}

	srv := server.New(http.NotFoundHandler(),
		server.WithAddress("127.0.0.1:0"),
		server.WithStartupHook(rec.hook("start", boom)),
		server.WithStartupHook(rec.hook("never", nil)),
		server.WithShutdownHook(rec.hook("stop", nil)),
	)

	err := srv.Run()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start", "stop"}, rec.list())
}

func TestServer_ShutdownHookErrorsJoined(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errA, errB := errors.New("a"), errors.New("b")
	rec := &recorder{}
	srv := server.New(http.NotFoundHandler(),
		server.WithAddress("127.0.0.1:0"),
		server.WithContext(ctx),
		server.WithShutdownHook(rec.hook("a", errA)),
		server.WithShutdownHook(rec.hook("b", errB)),
	)

	err := srv.Run()
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"a", "b"}, rec.list())
}
