package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
)

const defaultMaxWorkers = 100

// Manager enqueues and works background tasks on River.
// Jobs may be enqueued before Start; they run once the manager is started.
type Manager struct {
	pool    *pgxpool.Pool
	client  *river.Client[pgx.Tx]
	tasks   registry
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
}

// NewManager creates the River client with one worker that dispatches every
// job to the task registered under its name.
func NewManager(pool *pgxpool.Pool, opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.maxWorkers == 0 {
		cfg.maxWorkers = defaultMaxWorkers
	}

	queues := map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: cfg.maxWorkers},
	}
	for name, n := range cfg.queues {
		queues[name] = river.QueueConfig{MaxWorkers: n}
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &taskWorker{tasks: cfg.tasks, logger: cfg.logger})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  queues,
		Workers: workers,
		Logger:  cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job: create client: %w", err)
	}

	return &Manager{
		pool:   pool,
		client: client,
		tasks:  cfg.tasks,
		logger: cfg.logger,
	}, nil
}

// Start begins working jobs. The client stops when ctx is cancelled, so pass
// a context that outlives the caller when Stop is used for shutdown.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("job: start client: %w", err)
	}
	m.started = true
	m.logger.InfoContext(ctx, "job manager started", slog.Int("tasks", len(m.tasks)))
	return nil
}

// Stop waits for running jobs to finish, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("job: stop client: %w", err)
	}
	m.started = false
	m.logger.InfoContext(ctx, "job manager stopped")
	return nil
}

// Shutdown returns Stop as a shutdown hook.
func (m *Manager) Shutdown() func(context.Context) error {
	return m.Stop
}

// EnqueueTx inserts a job for a registered task within tx. The job becomes
// visible only on commit and disappears with a rollback.
func (m *Manager) EnqueueTx(ctx context.Context, tx pgx.Tx, name string, payload any, opts ...EnqueueOption) error {
	args, insert, err := m.prepare(name, payload, opts)
	if err != nil {
		return err
	}
	res, err := m.client.InsertTx(ctx, tx, args, insert)
	if err != nil {
		return fmt.Errorf("job: enqueue %s: %w", name, err)
	}
	m.logInsert(ctx, name, res)
	return nil
}

func (m *Manager) prepare(name string, payload any, opts []EnqueueOption) (*taskArgs, *river.InsertOpts, error) {
	if _, err := m.tasks.lookup(name); err != nil {
		return nil, nil, err
	}
	return insertParams(name, payload, opts...)
}

func (m *Manager) logInsert(ctx context.Context, name string, res *rivertype.JobInsertResult) {
	if res != nil && res.UniqueSkippedAsDuplicate {
		m.logger.DebugContext(ctx, "duplicate job skipped",
			slog.String("task", name),
			slog.Int64("job_id", res.Job.ID),
		)
	}
}

// taskWorker is the only River worker; it routes by task name.
type taskWorker struct {
	river.WorkerDefaults[taskArgs]
	tasks  registry
	logger *slog.Logger
}

func (w *taskWorker) Work(ctx context.Context, job *river.Job[taskArgs]) error {
	log := w.logger.With(
		slog.String("task", job.Args.TaskName),
		slog.Int64("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
	)

	h, err := w.tasks.lookup(job.Args.TaskName)
	if err != nil {
		// retrying cannot register the task
		return river.JobCancel(err)
	}
	if err := h.run(ctx, job.Args.Payload); err != nil {
		log.ErrorContext(ctx, "task failed", slog.Any("error", err))
		return err
	}
	log.DebugContext(ctx, "task completed")
	return nil
}
