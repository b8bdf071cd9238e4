package taskstatus

import (
	"time"

	"github.com/sharnoff/taskstatus/internal/clock"
	"github.com/sharnoff/taskstatus/internal/tracing"
)

// Cancel cancels t and every child reachable through its child-task and task-group records.
//
// Cancellation notifications run with t's status lock held, from innermost to outermost. Children
// are cancelled while the parent's lock is still held, so the lock order is always parent before
// child. Cancelling an already cancelled task does nothing.
func (t *Task) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}

	_, span := tracing.StartSpan(t.ctx, "taskstatus.cancel")
	span.WithAttributes(map[string]string{"task": t.id, "name": t.name})
	defer tracing.EndSpan(span, nil)

	t.log.Debug("cancelling task")
	t.cancel()

	g := t.LockStatus()
	defer g.Unlock()

	for r := range recordSeq(t) {
		span.AddEvent("record", map[string]string{"kind": r.Kind().String()})

		switch r := r.(type) {
		case *CancellationNotificationRecord:
			r.Run()
		case *ChildTaskRecord:
			for child := range r.Children() {
				child.Cancel()
			}
		case *TaskGroupRecord:
			for child := range r.Children() {
				child.Cancel()
			}
		}
	}
}

// Escalate raises t's priority to p, if p is higher than its current priority, and passes the
// escalation on to t's children and whatever t is waiting on. It reports whether the priority
// changed; escalating to a priority t already has (or exceeds) does nothing.
//
// Tasks that t or its children are waiting on are escalated after every status lock taken by the
// sweep has been released, since the waited-on task may be one of t's ancestors.
func (t *Task) Escalate(p Priority) bool {
	var waitedOn []*Task
	changed := t.escalate(p, &waitedOn)

	for _, target := range waitedOn {
		target.Escalate(p)
		target.Release()
	}
	return changed
}

// escalate is the locked part of Escalate. Targets of waiting-on-task dependencies are retained
// and appended to waitedOn instead of being escalated in place.
func (t *Task) escalate(p Priority, waitedOn *[]*Task) bool {
	for {
		old := t.priority.Load()
		if Priority(old) >= p {
			return false
		}
		if t.priority.CompareAndSwap(old, uint32(p)) {
			break
		}
	}

	_, span := tracing.StartSpan(t.ctx, "taskstatus.escalate")
	span.WithAttributes(map[string]string{"task": t.id, "priority": p.String()})
	defer tracing.EndSpan(span, nil)

	t.log.WithField("priority", p).Debug("escalating task")

	g := t.LockStatus()
	defer g.Unlock()

	for r := range recordSeq(t) {
		span.AddEvent("record", map[string]string{"kind": r.Kind().String()})

		switch r := r.(type) {
		case *EscalationNotificationRecord:
			r.Run(p)
		case *ChildTaskRecord:
			for child := range r.Children() {
				child.escalate(p, waitedOn)
			}
		case *TaskGroupRecord:
			for child := range r.Children() {
				child.escalate(p, waitedOn)
			}
		case *DependencyRecord:
			if r.dependency == WaitingOnTask {
				r.task.Retain()
				*waitedOn = append(*waitedOn, r.task)
				continue
			}
			r.PerformEscalationAction(p)
		}
	}
	return true
}

// EarliestDeadline returns the soonest deadline among t's deadline records.
func (t *Task) EarliestDeadline() (Deadline, bool) {
	g := t.LockStatus()
	defer g.Unlock()

	var (
		earliest Deadline
		found    bool
	)
	for r := range recordSeq(t) {
		if d, ok := r.(*DeadlineRecord); ok {
			if !found || d.Deadline().Less(earliest) {
				earliest = d.Deadline()
				found = true
			}
		}
	}
	return earliest, found
}

// ExpireDeadlines cancels t if any of its deadlines is at or before now, and reports whether it
// did.
func (t *Task) ExpireDeadlines(now Deadline) bool {
	d, ok := t.EarliestDeadline()
	if !ok || now.Less(d) {
		return false
	}
	t.log.WithField("deadline", d.Time()).Debug("deadline expired")
	t.Cancel()
	return true
}

// CheckDeadlines is ExpireDeadlines at the current time.
func (t *Task) CheckDeadlines() bool {
	return t.ExpireDeadlines(DeadlineAt(clock.Now()))
}

// AddDeadline registers a deadline record for at and arms a timer that checks t's deadlines when
// it passes. The returned function stops the timer and removes the record.
func AddDeadline(t *Task, at time.Time) (remove func()) {
	rec := NewDeadlineRecord(DeadlineAt(at))
	AddStatusRecord(t, rec)

	timer := time.AfterFunc(at.Sub(clock.Now()), func() {
		t.CheckDeadlines()
	})
	return func() {
		timer.Stop()
		RemoveStatusRecord(t, rec)
	}
}
