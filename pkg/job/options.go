package job

import "log/slog"

type config struct {
	tasks      registry
	queues     map[string]int
	logger     *slog.Logger
	maxWorkers int
}

func newConfig() *config {
	return &config{
		tasks:  registry{},
		queues: map[string]int{},
	}
}

// Option configures the job manager.
type Option func(*config)

// WithTask registers task under task.Name(). Registering a second task with
// the same name replaces the first.
//
//	job.WithTask[tasks.WelcomePayload](tasks.NewSendWelcome(store, m, baseURL, log))
func WithTask[P any](task Task[P]) Option {
	return func(c *config) {
		c.tasks[task.Name()] = typedHandler[P]{task: task}
	}
}

// WithQueue adds a named queue with its own worker count.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if name != "" && workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithLogger sets the logger handed to River and used for task logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers sets the worker count of the default queue. Default: 100.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}
