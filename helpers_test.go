package taskstatus_test

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharnoff/taskstatus"
)

func collect[T any](seq iter.Seq[T]) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

func records(task *taskstatus.Task) []taskstatus.Record {
	return collect(task.Records())
}

func newTask(t *testing.T, opts ...taskstatus.TaskOption) *taskstatus.Task {
	t.Helper()
	task := taskstatus.NewTask(context.Background(), opts...)
	t.Cleanup(task.Complete)
	return task
}

// requireInvariantPanic runs fn and checks that it panicked with an *InvariantError.
func requireInvariantPanic(t *testing.T, fn func()) *taskstatus.InvariantError {
	t.Helper()
	if !taskstatus.ChecksEnabled {
		t.Skip("invariant checks are compiled out")
	}

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	require.NotNil(t, recovered, "expected a panic")

	err, ok := recovered.(error)
	require.True(t, ok, "panic value %#v is not an error", recovered)
	var ierr *taskstatus.InvariantError
	require.True(t, errors.As(err, &ierr), "panic %v is not an invariant error", err)
	return ierr
}

// blockUntilCancelled is a task body that runs until its task is cancelled.
func blockUntilCancelled(task *taskstatus.Task) {
	<-task.Context().Done()
}
