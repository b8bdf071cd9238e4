package taskstatus

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/sharnoff/taskstatus/internal/errors"
)

// Group is a set of child tasks owned by a single task, collected one at a time as they finish.
//
// The group registers its [TaskGroupRecord] on the owner when created, so cancelling or escalating
// the owner reaches every child that hasn't been collected yet. Children stay in the record after
// they complete, until the owner takes them out with [Group.Next].
//
// Spawn, Next and Close are meant to be called from the goroutine running the owner; the other
// methods may be called from anywhere.
type Group struct {
	owner  *Task
	record TaskGroupRecord

	mu        sync.Mutex
	running   uint
	completed []*Task
	allDone   chan struct{}
	closed    bool

	// notify holds at most one pending wakeup for Next.
	notify chan struct{}
}

// NewGroup creates a group owned by owner and registers its record on owner's chain.
func NewGroup(owner *Task) *Group {
	g := &Group{
		owner:  owner,
		notify: make(chan struct{}, 1),
	}
	g.record.initGroup(g)
	AddStatusRecord(owner, &g.record)
	return g
}

// Owner returns the task that owns the group.
func (g *Group) Owner() *Task { return g.owner }

// Record returns the group's status record.
func (g *Group) Record() *TaskGroupRecord { return &g.record }

// Spawn starts fn on a new member task and attaches it to the group. The task is completed when fn
// returns.
//
// The child starts at the owner's priority or higher, and starts cancelled if the owner already
// is. Spawning into a closed group panics.
func (g *Group) Spawn(fn func(t *Task), opts ...TaskOption) *Task {
	g.mu.Lock()
	closed := g.closed
	if !closed {
		g.running += 1
	}
	g.mu.Unlock()
	invariant(!closed, &g.record.header, "spawning into a closed group owned by task %s", g.owner.id)

	child := newTask(g.owner.ctx, g.owner, g, opts)

	sg := g.owner.LockStatus()
	g.record.AttachChild(sg, child)
	// Sweeps update the owner before taking its lock, so anything they did without seeing the
	// child is visible here.
	cancelled := g.owner.IsCancelled()
	priority := g.owner.Priority()
	sg.Unlock()

	if cancelled {
		child.Cancel()
	}
	child.Escalate(priority)

	go func() {
		defer child.Complete()
		fn(child)
	}()
	return child
}

// childCompleted is called by Task.Complete for member tasks.
func (g *Group) childCompleted(child *Task) {
	g.mu.Lock()
	g.running -= 1
	g.completed = append(g.completed, child)
	if g.running == 0 && g.allDone != nil {
		close(g.allDone)
		g.allDone = nil
	}
	g.mu.Unlock()

	poke(g.notify)
}

// Next waits for a child to complete, detaches it from the group's record, and returns it. Children
// are returned in the order they completed. If there are no children left to wait for, Next
// returns nil with a nil error.
//
// While Next is blocked, the owner carries a dependency record saying it is waiting on this group.
func (g *Group) Next(ctx context.Context) (*Task, error) {
	for {
		g.mu.Lock()
		if len(g.completed) != 0 {
			child := g.completed[0]
			g.completed = slices.Delete(g.completed, 0, 1)
			g.mu.Unlock()

			sg := g.owner.LockStatus()
			g.record.DetachChild(sg, child)
			sg.Unlock()
			return child, nil
		}
		running := g.running
		g.mu.Unlock()

		if running == 0 {
			return nil, nil
		}
		if err := g.waitForCompletion(ctx); err != nil {
			return nil, err
		}
	}
}

func (g *Group) waitForCompletion(ctx context.Context) error {
	dep := NewTaskGroupDependency(g.owner, g)
	AddStatusRecord(g.owner, dep)
	defer RemoveStatusRecord(g.owner, dep)

	select {
	case <-g.notify:
		return nil
	case <-ctx.Done():
		return errors.WithStackTrace(ctx.Err())
	}
}

// Wait returns a channel that is closed once every child spawned so far has completed.
func (g *Group) Wait() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running == 0 {
		return alwaysClosed
	}

	if g.allDone == nil {
		g.allDone = make(chan struct{})
	}

	return g.allDone
}

// TryWait waits on the group, returning early with ctx.Err() if the context is canceled.
//
// If the context is already canceled when TryWait is called, this method will always return the
// context's error.
func (g *Group) TryWait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.WithStackTrace(ctx.Err())
	default:
		select {
		case <-ctx.Done():
			return errors.WithStackTrace(ctx.Err())
		case <-g.Wait():
			return nil
		}
	}
}

// Finished returns whether all children are finished, i.e. if waiting will immediately complete.
func (g *Group) Finished() bool {
	return isClosed(g.Wait())
}

// CancelAll cancels every child still attached to the group. The owner is not cancelled.
func (g *Group) CancelAll() {
	sg := g.owner.LockStatus()
	defer sg.Unlock()

	for child := range g.record.Children() {
		child.Cancel()
	}
}

// Close stops further spawning, collects every remaining child, and removes the group's record
// from the owner. If ctx is cancelled first, Close returns its error and leaves the record in
// place; calling Close again resumes collecting. Closing a closed group does nothing.
func (g *Group) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	for {
		child, err := g.Next(ctx)
		if err != nil {
			return err
		}
		if child == nil {
			break
		}
	}

	if g.record.linked.Load() {
		RemoveStatusRecord(g.owner, &g.record)
		g.owner.log.Debug("task group closed")
	}
	return nil
}
