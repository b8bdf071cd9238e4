package taskstatus

import (
	"context"

	"github.com/sharnoff/taskstatus/internal/errors"
)

// SpawnChild starts fn on a new unstructured child of parent, tracked by a [ChildTaskRecord] on
// parent's chain. The child is completed when fn returns, but the record stays until the parent
// removes it with [Task.DetachChildRecord] or [AwaitChild].
//
// Like group members, the child starts at the parent's priority or higher, and starts cancelled if
// the parent already is.
func SpawnChild(parent *Task, fn func(t *Task), opts ...TaskOption) *Task {
	child := newTask(parent.ctx, parent, nil, opts)
	rec := NewChildTaskRecord(child)
	child.childRec = rec

	g := parent.LockStatus()
	g.Add(rec)
	cancelled := parent.IsCancelled()
	priority := parent.Priority()
	g.Unlock()

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

// DetachChildRecord removes the child-task record that SpawnChild registered for child.
func (t *Task) DetachChildRecord(child *Task) {
	invariant(child != nil && child.parent == t, nil, "task %s is not a child of task %s", child.ID(), t.ID())

	g := t.LockStatus()
	defer g.Unlock()

	rec := child.childRec
	invariant(rec != nil, nil, "task %s has no child-task record to detach", child.id)
	if rec == nil {
		return
	}
	g.Remove(rec)
	child.childRec = nil
}

// Await blocks waiter until target completes. While blocked, waiter carries a dependency record for
// target, so escalating waiter escalates target too. target is raised to waiter's priority when the
// wait starts.
func Await(ctx context.Context, waiter, target *Task) error {
	if isClosed(target.Done()) {
		return nil
	}

	dep := NewTaskDependency(waiter, target)
	AddStatusRecord(waiter, dep)
	defer RemoveStatusRecord(waiter, dep)
	// Escalations of waiter from here on reach target through dep; this covers the ones before.
	target.Escalate(waiter.Priority())

	select {
	case <-target.Done():
		return nil
	case <-ctx.Done():
		return errors.WithStackTrace(ctx.Err())
	}
}

// AwaitChild waits for a child started with SpawnChild and then removes its record from the
// parent. On error the record is left in place.
func AwaitChild(ctx context.Context, child *Task) error {
	parent := child.parent
	invariant(parent != nil && child.group == nil, nil, "task %s was not started with SpawnChild", child.id)

	if err := Await(ctx, parent, child); err != nil {
		return err
	}
	parent.DetachChildRecord(child)
	return nil
}
