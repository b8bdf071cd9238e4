package taskstatus_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/taskstatus"
	"github.com/sharnoff/taskstatus/internal/idgen"
)

func TestGroupBasic(t *testing.T) {
	t.Parallel()

	owner := newTask(t)
	g := taskstatus.NewGroup(owner)
	require.Equal(t, []taskstatus.Record{g.Record()}, records(owner))
	assert.Same(t, owner, g.Owner())

	closed := g.Wait()
	assert.True(t, isClosed(closed))
	assert.True(t, g.Finished())

	release := make(chan struct{})
	wait := func(*taskstatus.Task) { <-release }
	c1 := g.Spawn(wait, taskstatus.WithName("task-1"))
	c2 := g.Spawn(wait, taskstatus.WithName("task-2"))

	assert.Same(t, g, c1.Group())
	assert.Same(t, owner, c1.Parent())
	assert.Equal(t, []*taskstatus.Task{c1, c2}, collect(g.Record().Children()))

	waitCh := g.Wait()
	assert.False(t, isClosed(waitCh))
	assert.False(t, g.Finished())

	close(release)
	<-waitCh
	assert.True(t, g.Finished())

	// completed children stay attached until they're collected
	assert.Len(t, collect(g.Record().Children()), 2)

	var got []*taskstatus.Task
	for {
		child, err := g.Next(context.Background())
		require.NoError(t, err)
		if child == nil {
			break
		}
		got = append(got, child)
	}
	assert.ElementsMatch(t, []*taskstatus.Task{c1, c2}, got)
	assert.Empty(t, collect(g.Record().Children()))

	require.NoError(t, g.Close(context.Background()))
	assert.Empty(t, records(owner))
	require.NoError(t, g.Close(context.Background()))
}

func TestGroupNextOrderAndDependency(t *testing.T) {
	t.Parallel()

	owner := newTask(t)
	g := taskstatus.NewGroup(owner)

	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	a := g.Spawn(func(*taskstatus.Task) { <-releaseA })
	b := g.Spawn(func(*taskstatus.Task) { <-releaseB })

	type result struct {
		child *taskstatus.Task
		err   error
	}
	results := make(chan result)
	go func() {
		for i := 0; i < 2; i++ {
			child, err := g.Next(context.Background())
			results <- result{child, err}
		}
	}()

	// Next is blocked, so the owner says it's waiting on the group
	require.Eventually(t, func() bool {
		dep := owner.Dependency()
		return dep != nil && dep.DependencyKind() == taskstatus.WaitingOnTaskGroup && dep.Group() == g
	}, 5*time.Second, time.Millisecond)

	close(releaseB)
	r := <-results
	require.NoError(t, r.err)
	assert.Same(t, b, r.child)
	assert.Equal(t, []*taskstatus.Task{a}, collect(g.Record().Children()))

	close(releaseA)
	r = <-results
	require.NoError(t, r.err)
	assert.Same(t, a, r.child)

	assert.Nil(t, owner.Dependency())
	require.NoError(t, g.Close(context.Background()))
}

func TestGroupNextContext(t *testing.T) {
	t.Parallel()

	owner := newTask(t)
	g := taskstatus.NewGroup(owner)
	g.Spawn(blockUntilCancelled)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	child, err := g.Next(ctx)
	assert.Nil(t, child)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, owner.Dependency())

	g.CancelAll()
	assert.False(t, owner.IsCancelled())
	require.NoError(t, g.Close(context.Background()))
}

func TestGroupTryWait(t *testing.T) {
	t.Parallel()

	owner := newTask(t)
	g := taskstatus.NewGroup(owner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing running, but a canceled context always wins
	assert.ErrorIs(t, g.TryWait(ctx), context.Canceled)
	assert.NoError(t, g.TryWait(context.Background()))

	release := make(chan struct{})
	g.Spawn(func(*taskstatus.Task) { <-release })

	done := make(chan error)
	go func() { done <- g.TryWait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("TryWait returned while a child was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	assert.NoError(t, <-done)
	require.NoError(t, g.Close(context.Background()))
}

// Not parallel: it counts calls to the shared id generator.
func TestGroupSpawnAfterClose(t *testing.T) {
	owner := newTask(t)
	g := taskstatus.NewGroup(owner)
	require.NoError(t, g.Close(context.Background()))

	var created atomic.Int32
	prev := idgen.NewFunc
	idgen.NewFunc = func() string {
		created.Add(1)
		return prev()
	}
	defer func() { idgen.NewFunc = prev }()

	requireInvariantPanic(t, func() { g.Spawn(blockUntilCancelled) })

	// the rejected spawn never made a task
	assert.Zero(t, created.Load())
}

func TestGroupMemberCompletes(t *testing.T) {
	t.Parallel()

	owner := newTask(t)
	g := taskstatus.NewGroup(owner)
	child := g.Spawn(func(*taskstatus.Task) {})

	<-child.Done()
	_, live := taskstatus.Lookup(child.ID())
	assert.False(t, live)

	got, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Same(t, child, got)
	require.NoError(t, g.Close(context.Background()))
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
