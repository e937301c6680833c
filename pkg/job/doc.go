// Package job runs background tasks on River, the Postgres-native queue.
//
// Every task travels as one River job kind carrying a task name and a JSON
// payload; the manager dispatches it to the handler registered under that name.
//
// # Features
//
//   - Type-safe task registration with structural typing (no interface imports needed)
//   - Transactional enqueueing (jobs only visible after commit)
//   - Named queues with configurable worker counts
//   - Retry with River's backoff and per-key deduplication
//   - Health check for pkg/health
//
// # Task Definition
//
// A task is any type with Name() and Handle(ctx, P) methods:
//
//	type SendWelcome struct {
//	    store  Store
//	    mailer *mailer.Mailer
//	}
//
//	func (t *SendWelcome) Name() string { return "newsletter.send_welcome" }
//
//	func (t *SendWelcome) Handle(ctx context.Context, p WelcomePayload) error {
//	    n, err := t.store.GetNewsletter(ctx, p.NewsletterID)
//	    if err != nil {
//	        return err
//	    }
//	    return t.mailer.Send(ctx, mailer.SendParams{To: p.Email, Template: "welcome.md", Data: n})
//	}
//
// # Setup
//
//	if err := job.Migrate(ctx, pool); err != nil {
//	    return err
//	}
//	manager, err := job.NewManager(pool,
//	    job.WithTask[tasks.WelcomePayload](tasks.NewSendWelcome(store, m, baseURL, log)),
//	    job.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := manager.Start(ctx); err != nil {
//	    return err
//	}
//	defer manager.Stop(context.Background())
//
// # Enqueueing
//
// Jobs are inserted inside the caller's transaction, so they exist exactly
// when the rows that caused them do:
//
//	err := manager.EnqueueTx(ctx, tx, "newsletter.send_welcome", payload,
//	    job.InQueue("email"),
//	    job.UniqueKey(fmt.Sprintf("welcome:%d:%d", nid, sid)),
//	)
//
// EnqueueTx rejects names that were not registered with [ErrUnknownTask].
// A duplicate unique key is skipped without error.
//
// # Errors
//
//   - [ErrUnknownTask] - task name not registered
//   - [ErrInvalidPayload] - payload does not decode into the handler's type
//   - [ErrAlreadyStarted], [ErrNotStarted] - lifecycle misuse
//   - [ErrPoolRequired] - nil pool
//   - [ErrHealthcheckFailed] - manager stopped or database unreachable
package job
