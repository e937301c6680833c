package job

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name  string
		check func(t *testing.T, cfg *config)
		opts  []Option
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *config) {
				assert.NotNil(t, cfg.tasks)
				assert.Empty(t, cfg.queues)
				assert.Nil(t, cfg.logger)
				assert.Zero(t, cfg.maxWorkers)
			},
		},
		{
			name: "task is registered under its name",
			opts: []Option{WithTask[welcomePayload](&welcomeTask{})},
			check: func(t *testing.T, cfg *config) {
				_, err := cfg.tasks.lookup("newsletter.send_welcome")
				assert.NoError(t, err)
			},
		},
		{
			name: "queues with positive workers only",
			opts: []Option{WithQueue("email", 10), WithQueue("zero", 0), WithQueue("negative", -1)},
			check: func(t *testing.T, cfg *config) {
				assert.Equal(t, map[string]int{"email": 10}, cfg.queues)
			},
		},
		{
			name: "logger",
			opts: []Option{WithLogger(logger), WithLogger(nil)},
			check: func(t *testing.T, cfg *config) {
				assert.Same(t, logger, cfg.logger)
			},
		},
		{
			name: "max workers ignores non-positive",
			opts: []Option{WithMaxWorkers(25), WithMaxWorkers(0), WithMaxWorkers(-3)},
			check: func(t *testing.T, cfg *config) {
				assert.Equal(t, 25, cfg.maxWorkers)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := newConfig()
			for _, opt := range tt.opts {
				opt(cfg)
			}
			tt.check(t, cfg)
		})
	}
}
