package taskstatus

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/sharnoff/taskstatus/internal/idgen"
	"github.com/sharnoff/taskstatus/internal/log"
)

// Task is a unit of concurrently scheduled work that owns a chain of status records.
//
// The chain is guarded by the task's status lock. Any goroutine may cancel or escalate a task;
// doing so walks the chain under the lock. The goroutine running the task may read its own chain
// without the lock, as long as it is the only one changing it.
type Task struct {
	id   string
	name string

	ctx    context.Context
	cancel context.CancelFunc

	statusMu   sync.Mutex
	innermost  atomic.Pointer[header]
	dependency *DependencyRecord // guarded by statusMu

	priority  atomic.Uint32
	cancelled atomic.Bool
	refs      atomic.Int32

	// Child linkage. nextChild is the successor slot used by the intrusive child lists of
	// ChildTaskRecord and TaskGroupRecord.
	parent    *Task
	group     *Group
	nextChild atomic.Pointer[Task]
	childRec  *ChildTaskRecord

	done     chan struct{}
	doneOnce sync.Once

	spawn *StackTrace
	log   *logrus.Entry
}

// TaskOption configures a task at creation.
type TaskOption func(t *Task)

// WithPriority sets the task's starting priority. Children never start below their parent.
func WithPriority(p Priority) TaskOption {
	return func(t *Task) {
		t.priority.Store(uint32(p))
	}
}

// WithName gives the task a human readable name for logs and trees.
func WithName(name string) TaskOption {
	return func(t *Task) {
		t.name = name
	}
}

// live indexes incomplete tasks by ID for Lookup.
var live = xsync.NewMapOf[string, *Task]()

// NewTask creates a top-level task. ctx supplies values and the trace the task runs under;
// cancelling ctx does not cancel the task.
//
// The caller holds the task's initial reference.
func NewTask(ctx context.Context, opts ...TaskOption) *Task {
	return newTask(ctx, nil, nil, opts)
}

func newTask(ctx context.Context, parent *Task, group *Group, opts []TaskOption) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &Task{
		id:     idgen.New(),
		parent: parent,
		group:  group,
		done:   make(chan struct{}),
	}
	t.refs.Store(1)
	for _, opt := range opts {
		opt(t)
	}
	if parent != nil && parent.Priority() > t.Priority() {
		t.priority.Store(uint32(parent.Priority()))
	}
	t.ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))
	t.log = log.WithTask(t.id, t.name)

	var parentTrace *StackTrace
	if parent != nil {
		parentTrace = parent.spawn
	}
	t.spawn = captureTrace(parentTrace, 2)

	live.Store(t.id, t)
	return t
}

// Lookup returns the incomplete task with the given ID.
func Lookup(id string) (*Task, bool) {
	return live.Load(id)
}

// LiveTasks returns the number of tasks that have been created and not yet completed.
func LiveTasks() int {
	return live.Size()
}

func (t *Task) ID() string {
	if t == nil {
		return "<nil>"
	}
	return t.id
}

func (t *Task) Name() string { return t.name }

// Priority returns the task's current, possibly escalated, priority.
func (t *Task) Priority() Priority { return Priority(t.priority.Load()) }

func (t *Task) IsCancelled() bool { return t.cancelled.Load() }

// Context returns a context that is cancelled when the task is cancelled.
func (t *Task) Context() context.Context { return t.ctx }

// Parent returns the task that spawned t, or nil for a top-level task.
func (t *Task) Parent() *Task { return t.parent }

// Group returns the group t is a member of, or nil.
func (t *Task) Group() *Group { return t.group }

// NextChild returns t's successor in whichever child list it is linked into.
func (t *Task) NextChild() *Task { return t.nextChild.Load() }

func (t *Task) setNextChild(next *Task) { t.nextChild.Store(next) }

// SpawnTrace returns where the task was created, when stack capture is enabled.
func (t *Task) SpawnTrace() *StackTrace { return t.spawn }

// Retain adds a reference to t.
func (t *Task) Retain() {
	n := t.refs.Add(1)
	invariant(n > 1, nil, "retained task %s after its last reference was released", t.id)
}

// Release drops a reference to t.
func (t *Task) Release() {
	n := t.refs.Add(-1)
	invariant(n >= 0, nil, "released task %s more times than it was retained", t.id)
	if n == 0 {
		t.log.Debug("last reference released")
	}
}

// RefCount returns the current number of references.
func (t *Task) RefCount() int { return int(t.refs.Load()) }

// Done returns a channel that is closed once the task has completed.
func (t *Task) Done() <-chan struct{} { return t.done }

// Complete marks the task as finished. Group members are handed to their group so the owner can
// collect them with [Group.Next]. Completing twice is a no-op.
func (t *Task) Complete() {
	t.doneOnce.Do(func() {
		close(t.done)
		live.Delete(t.id)
		t.log.Debug("task completed")
		if t.group != nil {
			t.group.childCompleted(t)
		}
	})
}

// Dependency returns the dependency record currently attached to t, or nil if t isn't waiting on
// anything.
func (t *Task) Dependency() *DependencyRecord {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.dependency
}

// Records yields t's status records from the innermost outward, without taking the status lock.
//
// Only the goroutine running t should use this, and only while nothing else can be adding or
// removing records for t. Other goroutines should walk the chain with [StatusGuard.Records].
func (t *Task) Records() iter.Seq[Record] {
	return recordSeq(t)
}

func recordSeq(t *Task) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for h := t.innermost.Load(); h != nil; h = h.parent.Load() {
			if !yield(h.self) {
				return
			}
		}
	}
}

// StatusGuard is proof that the holder has taken a task's status lock. Operations that must only
// happen under the lock take one as a parameter.
type StatusGuard struct {
	task *Task
	held bool
}

// LockStatus takes t's status lock. The caller must call Unlock on the returned guard.
func (t *Task) LockStatus() *StatusGuard {
	t.statusMu.Lock()
	return &StatusGuard{task: t, held: true}
}

// Task returns the task whose lock is held.
func (g *StatusGuard) Task() *Task { return g.task }

// Unlock releases the lock. The guard can't be used afterwards.
func (g *StatusGuard) Unlock() {
	invariant(g.held, nil, "status guard for task %s unlocked twice", g.task.ID())
	g.held = false
	g.task.statusMu.Unlock()
}

func (g *StatusGuard) check(t *Task) {
	invariant(g != nil && g.held, nil, "status lock of task %s is not held", t.ID())
	invariant(g.task == t, nil, "holding the status lock of task %s, not %s", g.task.ID(), t.ID())
}

// Records yields the chain from the innermost record outward. The guard must stay held for the
// whole iteration.
func (g *StatusGuard) Records() iter.Seq[Record] {
	g.check(g.task)
	return recordSeq(g.task)
}

// AddStatusRecord links r into t's chain as the new innermost record, taking t's status lock.
func AddStatusRecord(t *Task, r Record) {
	g := t.LockStatus()
	defer g.Unlock()
	g.Add(r)
}

// RemoveStatusRecord unlinks r from t's chain, taking t's status lock. Once it returns, no
// goroutine is still using r and r may be discarded.
func RemoveStatusRecord(t *Task, r Record) {
	g := t.LockStatus()
	defer g.Unlock()
	g.Remove(r)
}

// Add is AddStatusRecord for a caller already holding the lock.
func (g *StatusGuard) Add(r Record) {
	g.check(g.task)
	t := g.task
	h := headerOf(r)
	invariant(h != nil, nil, "cannot add a nil status record")
	invariant(h.self != nil, h, "status record was not created by its constructor")
	invariant(!h.linked.Load(), h, "status record is already registered")

	if dep, ok := r.(*DependencyRecord); ok {
		invariant(t.dependency == nil, h, "task %s already has a dependency record", t.id)
		invariant(dep.waiter == t, h, "dependency record of task %s added to task %s", dep.waiter.ID(), t.id)
		t.dependency = dep
	}

	h.origin = captureTrace(t.spawn, 1)
	h.resetParent(t.innermost.Load())
	h.linked.Store(true)
	t.innermost.Store(h)

	t.log.WithField("kind", h.kind).Debug("status record added")
}

// Remove is RemoveStatusRecord for a caller already holding the lock.
func (g *StatusGuard) Remove(r Record) {
	g.check(g.task)
	t := g.task
	h := headerOf(r)
	invariant(h != nil, nil, "cannot remove a nil status record")
	invariant(h.linked.Load(), h, "status record is not registered")

	if cur := t.innermost.Load(); cur == h {
		t.innermost.Store(h.parent.Load())
	} else {
		for cur != nil && cur.parent.Load() != h {
			cur = cur.parent.Load()
		}
		invariant(cur != nil, h, "status record is not in the chain of task %s", t.id)
		if cur == nil {
			return
		}
		// h keeps its own parent link, so a lock-free walk standing on h still finds the rest.
		cur.SpliceParent(h.parent.Load().recordOrNil())
	}
	h.linked.Store(false)

	if dep, ok := r.(*DependencyRecord); ok && t.dependency == dep {
		t.dependency = nil
		dep.unregistered()
	}

	t.log.WithField("kind", h.kind).Debug("status record removed")
}

func (h *header) recordOrNil() Record {
	if h == nil {
		return nil
	}
	return h.self
}
