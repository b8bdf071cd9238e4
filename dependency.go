package taskstatus

import "fmt"

// DependencyKind says what a suspended task is waiting on.
type DependencyKind uint8

const (
	// WaitingOnContinuation: the task is waiting for a Continuation to be resumed, most likely by
	// a callback from outside the runtime.
	WaitingOnContinuation DependencyKind = iota
	// WaitingOnTask: the task is waiting for another task to finish.
	WaitingOnTask
	// WaitingOnTaskGroup: the task is waiting for a child of a group it owns.
	WaitingOnTaskGroup
	// WaitingOnActor: the task is queued on an actor that is busy with something else.
	WaitingOnActor
)

func (k DependencyKind) String() string {
	switch k {
	case WaitingOnContinuation:
		return "continuation"
	case WaitingOnTask:
		return "task"
	case WaitingOnTaskGroup:
		return "task-group"
	case WaitingOnActor:
		return "actor"
	default:
		return fmt.Sprintf("DependencyKind(%d)", uint8(k))
	}
}

// DependencyRecord records the one thing a suspended task is blocked on. It is added when the
// task suspends and removed when it resumes; waiting on something else means a new record. A task
// has at most one at a time.
//
// Only the waiting-on-task form holds a reference: it retains the target when constructed and
// releases it when the record is removed from its chain. The continuation lives in the waiting
// task, the group outlives any wait on it, and the actor is borrowed from the task's place in the
// actor's queue.
type DependencyRecord struct {
	header
	dependency DependencyKind
	waiter     *Task

	continuation *Continuation
	task         *Task
	group        *Group
	actor        Actor
}

func newDependency(waiter *Task, kind DependencyKind) *DependencyRecord {
	r := &DependencyRecord{dependency: kind, waiter: waiter}
	r.init(KindDependency, r)
	invariant(waiter != nil, &r.header, "dependency record requires the waiting task")
	return r
}

// NewContinuationDependency records that waiter is suspended on c.
func NewContinuationDependency(waiter *Task, c *Continuation) *DependencyRecord {
	r := newDependency(waiter, WaitingOnContinuation)
	r.continuation = c
	return r
}

// NewTaskDependency retains target; the reference is dropped when the record is removed.
func NewTaskDependency(waiter, target *Task) *DependencyRecord {
	r := newDependency(waiter, WaitingOnTask)
	invariant(target != nil, &r.header, "cannot wait on a nil task")
	target.Retain()
	r.task = target
	return r
}

// NewTaskGroupDependency records that waiter is waiting for a member of g to finish. Escalating it
// forwards nowhere: the members already sit below the waiter in the tree.
func NewTaskGroupDependency(waiter *Task, g *Group) *DependencyRecord {
	r := newDependency(waiter, WaitingOnTaskGroup)
	r.group = g
	return r
}

// NewActorDependency records that waiter has a job queued on a. Escalation is passed to the actor.
func NewActorDependency(waiter *Task, a Actor) *DependencyRecord {
	r := newDependency(waiter, WaitingOnActor)
	r.actor = a
	return r
}

func (r *DependencyRecord) DependencyKind() DependencyKind { return r.dependency }

// Waiter returns the suspended task.
func (r *DependencyRecord) Waiter() *Task { return r.waiter }

func (r *DependencyRecord) Continuation() *Continuation { return r.continuation }

func (r *DependencyRecord) Task() *Task { return r.task }

func (r *DependencyRecord) Group() *Group { return r.group }

func (r *DependencyRecord) Actor() Actor { return r.actor }

// PerformEscalationAction passes an escalation of the waiting task on to whatever it is blocked
// on.
//
// For a waiting-on-task record this escalates the target, which takes the target's status lock, so
// it must not be called with any status lock held. [Task.Escalate] forwards those itself once its
// locks are released.
func (r *DependencyRecord) PerformEscalationAction(newPriority Priority) {
	switch r.dependency {
	case WaitingOnContinuation:
		// Nothing reachable to escalate.
		r.waiter.log.WithField("priority", newPriority).
			Debug("escalated while waiting on a continuation; possible priority inversion")
	case WaitingOnTaskGroup:
		// The owner also carries the group's TaskGroupRecord, and the sweep escalates the
		// children through that.
	case WaitingOnTask:
		// May be redundant for a child task the sweep already reached, but a second escalation
		// to the same priority is a no-op.
		r.task.Escalate(newPriority)
	case WaitingOnActor:
		r.actor.Escalate(r.waiter, newPriority)
	}
}

// unregistered is called once the record has been removed from the waiter's chain.
func (r *DependencyRecord) unregistered() {
	if r.dependency == WaitingOnTask {
		r.task.Release()
	}
}
