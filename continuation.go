package taskstatus

import (
	"context"
	"sync"

	"github.com/sharnoff/taskstatus/internal/errors"
)

// Continuation is a one-shot handle for resuming a task that suspended waiting on something outside
// the runtime, like a callback from a C library or a network event.
type Continuation struct {
	task *Task

	once    sync.Once
	value   any
	resumed chan struct{}
}

// NewContinuation creates a continuation for t. Only t should Await it.
func NewContinuation(t *Task) *Continuation {
	return &Continuation{
		task:    t,
		resumed: make(chan struct{}),
	}
}

// Task returns the task that awaits the continuation.
func (c *Continuation) Task() *Task { return c.task }

// Resume wakes the awaiting task with v. Only the first call has any effect; Resume reports whether
// it was the one.
func (c *Continuation) Resume(v any) bool {
	first := false
	c.once.Do(func() {
		c.value = v
		close(c.resumed)
		first = true
	})
	return first
}

// Resumed reports whether Resume has been called.
func (c *Continuation) Resumed() bool { return isClosed(c.resumed) }

// Await blocks until the continuation is resumed and returns the value it was resumed with. While
// blocked, the task carries a dependency record for the continuation.
func (c *Continuation) Await(ctx context.Context) (any, error) {
	if c.Resumed() {
		return c.value, nil
	}

	dep := NewContinuationDependency(c.task, c)
	AddStatusRecord(c.task, dep)
	defer RemoveStatusRecord(c.task, dep)

	select {
	case <-c.resumed:
		return c.value, nil
	case <-ctx.Done():
		return nil, errors.WithStackTrace(ctx.Err())
	}
}
