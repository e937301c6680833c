package tracking

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// DefaultRecordTimeout bounds one background open recording.
const DefaultRecordTimeout = 10 * time.Second

// OpenRecorder applies pixel hits.
type OpenRecorder interface {
	RecordOpen(ctx context.Context, token, ip, userAgent string) error
}

// Recorder serves the tracking pixel and records opens off the request path.
type Recorder struct {
	svc     OpenRecorder
	logger  *slog.Logger
	param   string
	timeout time.Duration
	wg      sync.WaitGroup
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger for recording failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecordTimeout overrides DefaultRecordTimeout.
func WithRecordTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithTokenParam sets the chi URL parameter holding the token. Default: "token".
func WithTokenParam(name string) RecorderOption {
	return func(r *Recorder) {
		if name != "" {
			r.param = name
		}
	}
}

// NewRecorder creates the pixel handler.
func NewRecorder(svc OpenRecorder, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		svc:     svc,
		logger:  slog.New(slog.DiscardHandler),
		param:   "token",
		timeout: DefaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ServeHTTP always answers 200 with the pixel image. The open is recorded on a
// detached goroutine so a slow store never delays the mail client.
func (rec *Recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, rec.param)
	if token != "" {
		ip := ClientIP(r)
		ua := r.UserAgent()
		ctx := context.WithoutCancel(r.Context())

		rec.wg.Add(1)
		go func() {
			defer rec.wg.Done()
			rec.record(ctx, token, ip, ua)
		}()
	}

	h := w.Header()
	h.Set("Content-Type", "image/gif")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixelGIF)
}

func (rec *Recorder) record(ctx context.Context, token, ip, ua string) {
	ctx, cancel := context.WithTimeout(ctx, rec.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			rec.logger.ErrorContext(ctx, "panic while recording open", slog.Any("panic", p))
		}
	}()

	if err := rec.svc.RecordOpen(ctx, token, ip, ua); err != nil {
		rec.logger.ErrorContext(ctx, "failed to record open",
			slog.String("token", token),
			slog.Any("error", err),
		)
	}
}

// Wait blocks until in-flight recordings finish or ctx is done.
func (rec *Recorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rec.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientIP returns the first X-Forwarded-For hop, else X-Real-IP, else the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
