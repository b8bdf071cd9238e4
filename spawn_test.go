package taskstatus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/taskstatus"
)

func TestSpawnChildRecord(t *testing.T) {
	t.Parallel()

	parent := newTask(t)
	release := make(chan struct{})
	child := taskstatus.SpawnChild(parent, func(*taskstatus.Task) { <-release }, taskstatus.WithName("worker"))

	recs := records(parent)
	require.Len(t, recs, 1)
	rec, ok := recs[0].(*taskstatus.ChildTaskRecord)
	require.True(t, ok)
	assert.Same(t, child, rec.FirstChild())
	assert.Equal(t, []*taskstatus.Task{child}, collect(rec.Children()))
	assert.Same(t, parent, child.Parent())
	assert.Nil(t, child.Group())
	assert.Equal(t, "worker", child.Name())

	close(release)
	require.NoError(t, taskstatus.AwaitChild(context.Background(), child))
	assert.Empty(t, records(parent))
	assert.Equal(t, 1, child.RefCount())

	requireInvariantPanic(t, func() { parent.DetachChildRecord(child) })
}

func TestAwaitRegistersDependency(t *testing.T) {
	t.Parallel()

	waiter := newTask(t)
	target := newTask(t)

	errs := make(chan error)
	go func() { errs <- taskstatus.Await(context.Background(), waiter, target) }()

	require.Eventually(t, func() bool {
		dep := waiter.Dependency()
		return dep != nil && dep.Task() == target
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, 2, target.RefCount())

	// escalating the waiter escalates what it waits on
	waiter.Escalate(taskstatus.PriorityHigh)
	assert.Equal(t, taskstatus.PriorityHigh, target.Priority())

	target.Complete()
	require.NoError(t, <-errs)
	assert.Nil(t, waiter.Dependency())
	assert.Equal(t, 1, target.RefCount())

	// a finished target doesn't register anything
	require.NoError(t, taskstatus.Await(context.Background(), waiter, target))
	assert.Equal(t, 1, target.RefCount())
}

func TestAwaitContext(t *testing.T) {
	t.Parallel()

	waiter := newTask(t)
	target := newTask(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, taskstatus.Await(ctx, waiter, target), context.DeadlineExceeded)
	assert.Nil(t, waiter.Dependency())
	assert.Equal(t, 1, target.RefCount())
}

func TestDetachChildRecordOfStranger(t *testing.T) {
	t.Parallel()

	parent := newTask(t)
	stranger := newTask(t)
	requireInvariantPanic(t, func() { parent.DetachChildRecord(stranger) })
}

func TestAwaitRaisesTargetToWaiterPriority(t *testing.T) {
	t.Parallel()

	waiter := newTask(t, taskstatus.WithPriority(taskstatus.PriorityHigh))
	target := newTask(t, taskstatus.WithPriority(taskstatus.PriorityLow))

	errs := make(chan error)
	go func() { errs <- taskstatus.Await(context.Background(), waiter, target) }()

	require.Eventually(t, func() bool {
		return target.Priority() == taskstatus.PriorityHigh
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, taskstatus.PriorityHigh, waiter.Priority())

	target.Complete()
	require.NoError(t, <-errs)
}
