package job

import (
	"encoding/json"
	"fmt"

	"github.com/riverqueue/river"
)

type enqueueConfig struct {
	queue       string
	uniqueKey   string
	maxAttempts int
}

// EnqueueOption configures a single enqueue call.
type EnqueueOption func(*enqueueConfig)

// InQueue routes the job to a named queue registered with WithQueue.
func InQueue(name string) EnqueueOption {
	return func(c *enqueueConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// MaxAttempts caps retries. River's default (25) applies otherwise.
func MaxAttempts(n int) EnqueueOption {
	return func(c *enqueueConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// UniqueKey deduplicates jobs of one task by key. A second job with the same
// task and key is skipped while the first one is pending, running, retrying
// or still retained as completed.
//
//	job.UniqueKey(fmt.Sprintf("welcome:%d:%d", newsletterID, subscriberID))
func UniqueKey(key string) EnqueueOption {
	return func(c *enqueueConfig) {
		c.uniqueKey = key
	}
}

// taskArgs is the single River job kind every task travels as. Only the
// fields tagged unique take part in deduplication.
type taskArgs struct {
	TaskName  string          `json:"task_name" river:"unique"`
	UniqueKey string          `json:"unique_key,omitempty" river:"unique"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (taskArgs) Kind() string {
	return "letterpress:task"
}

func insertParams(name string, payload any, opts ...EnqueueOption) (*taskArgs, *river.InsertOpts, error) {
	cfg := &enqueueConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	args := &taskArgs{TaskName: name}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("job: marshal payload: %w", err)
		}
		args.Payload = raw
	}

	insert := &river.InsertOpts{
		Queue:       cfg.queue,
		MaxAttempts: cfg.maxAttempts,
	}
	if cfg.uniqueKey != "" {
		args.UniqueKey = cfg.uniqueKey
		insert.UniqueOpts = river.UniqueOpts{ByArgs: true}
	}
	return args, insert, nil
}
