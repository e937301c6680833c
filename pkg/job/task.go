package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Task is a named unit of background work with a typed payload.
type Task[P any] interface {
	Name() string
	Handle(ctx context.Context, payload P) error
}

// handler runs a task from the JSON payload stored with the job.
type handler interface {
	run(ctx context.Context, raw json.RawMessage) error
}

// registry maps task names to handlers. It is filled by options before the
// manager exists and only read afterwards.
type registry map[string]handler

func (r registry) lookup(name string) (handler, error) {
	h, ok := r[name]
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return h, nil
}

type typedHandler[P any] struct {
	task Task[P]
}

func (h typedHandler[P]) run(ctx context.Context, raw json.RawMessage) error {
	var payload P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errors.Join(ErrInvalidPayload, err)
		}
	}
	return h.task.Handle(ctx, payload)
}
