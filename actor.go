package taskstatus

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/sharnoff/taskstatus/internal/errors"
	"github.com/sharnoff/taskstatus/internal/log"
)

// Actor is a serial executor that tasks can be queued on. A task waiting for an actor carries a
// dependency record pointing at it, and escalating the task escalates the actor through Escalate.
//
// Escalate is called with the waiting task's status lock held. Implementations must not block, and
// must not take any task's status lock.
type Actor interface {
	Escalate(waiting *Task, p Priority)
}

// ErrActorStopped is returned by Enqueue after Stop has been called.
var ErrActorStopped = errors.Errorf("actor is stopped")

// DefaultActor runs one job at a time, in priority order. Jobs of equal priority run in the order
// they were enqueued.
type DefaultActor struct {
	name string
	log  *logrus.Entry

	mu       sync.Mutex
	queue    []*actorJob
	priority Priority
	stopping bool

	// jobs indexes queued jobs by task.
	jobs *xsync.MapOf[*Task, *actorJob]

	wake    chan struct{}
	stopped chan struct{}
}

type actorJob struct {
	task     *Task
	fn       func(t *Task)
	dep      *DependencyRecord
	priority Priority
	done     chan struct{}
}

// NewDefaultActor starts an actor's run loop. Stop must be called to end it.
func NewDefaultActor(name string) *DefaultActor {
	a := &DefaultActor{
		name:    name,
		log:     log.Logger().WithField("actor", name),
		jobs:    xsync.NewMapOf[*Task, *actorJob](),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *DefaultActor) Name() string { return a.name }

// Priority returns the priority the actor is currently running at: that of the running job, raised
// by any escalation since it started.
func (a *DefaultActor) Priority() Priority {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.priority
}

// Queued reports whether t has a job waiting to run.
func (a *DefaultActor) Queued(t *Task) bool {
	_, ok := a.jobs.Load(t)
	return ok
}

// Len returns the number of jobs waiting to run.
func (a *DefaultActor) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Enqueue queues fn to run on the actor on behalf of t. Until fn starts, t carries a dependency
// record for the actor. The returned channel is closed once fn has returned.
//
// A task may have only one job queued at a time, since it can only carry one dependency record.
func (a *DefaultActor) Enqueue(t *Task, fn func(t *Task)) (<-chan struct{}, error) {
	dep := NewActorDependency(t, a)
	AddStatusRecord(t, dep)

	job := &actorJob{task: t, fn: fn, dep: dep, done: make(chan struct{})}

	a.mu.Lock()
	if a.stopping {
		a.mu.Unlock()
		RemoveStatusRecord(t, dep)
		return nil, errors.WithStackTrace(ErrActorStopped)
	}
	// Read under mu: an escalation that raced with AddStatusRecord either finds the job in the
	// index below or has already stored the new priority.
	job.priority = t.Priority()
	a.insert(job)
	a.jobs.Store(t, job)
	a.mu.Unlock()

	poke(a.wake)
	return job.done, nil
}

// insert places job after every queued job of equal or higher priority. a.mu must be held.
func (a *DefaultActor) insert(job *actorJob) {
	i := slices.IndexFunc(a.queue, func(j *actorJob) bool { return j.priority < job.priority })
	if i == -1 {
		a.queue = append(a.queue, job)
	} else {
		a.queue = slices.Insert(a.queue, i, job)
	}
}

// Escalate raises the actor's priority to p and moves waiting's queued job, if any, ahead of jobs
// with lower priority.
func (a *DefaultActor) Escalate(waiting *Task, p Priority) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p > a.priority {
		a.priority = p
	}

	job, ok := a.jobs.Load(waiting)
	if !ok || job.priority >= p {
		return
	}

	if i := slices.Index(a.queue, job); i != -1 {
		a.queue = slices.Delete(a.queue, i, i+1)
	}
	job.priority = p
	a.insert(job)
	a.log.WithField("task", waiting.id).WithField("priority", p).Debug("escalated queued job")
}

// Stop lets the queued jobs finish, then ends the run loop. Enqueue fails from then on. Stop
// blocks until the loop has exited.
func (a *DefaultActor) Stop() {
	a.mu.Lock()
	a.stopping = true
	a.mu.Unlock()

	poke(a.wake)
	<-a.stopped
}

func (a *DefaultActor) run() {
	defer close(a.stopped)

	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			stopping := a.stopping
			a.priority = PriorityUnspecified
			a.mu.Unlock()
			if stopping {
				return
			}
			<-a.wake
			continue
		}

		job := a.queue[0]
		a.queue = slices.Delete(a.queue, 0, 1)
		a.jobs.Delete(job.task)
		a.priority = job.priority
		a.mu.Unlock()

		// The task lock must not be taken while holding mu.
		RemoveStatusRecord(job.task, job.dep)

		job.fn(job.task)
		close(job.done)
	}
}
