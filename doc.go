// obligatory // comment

/*
Package taskstatus tracks the dynamic status of concurrently running tasks, so that other goroutines
can cancel a task, raise its priority, or look at its children without stopping it.

Each [Task] owns a chain of status records, newest first. The records are:

- [DeadlineRecord]: the task has an active deadline
- [ChildTaskRecord]: the task has unstructured children, started with [SpawnChild]
- [TaskGroupRecord]: the task owns a [Group]
- [CancellationNotificationRecord] and [EscalationNotificationRecord]: call this when cancelled or
  escalated
- [DependencyRecord]: what the task is currently blocked on

# Registration

Records are constructed by the task that owns them, registered with [AddStatusRecord] and
unregistered with [RemoveStatusRecord], each exactly once. Both take the task's status lock. Once
RemoveStatusRecord returns, nothing else is using the record.

The owning task may read its own chain with [Task.Records] without the lock. Any other goroutine
must hold the lock, via [Task.LockStatus]; the [StatusGuard] it returns is also required by the
operations that may only happen under the lock, like [TaskGroupRecord.AttachChild].

# Sweeps

[Task.Cancel] and [Task.Escalate] take the task's status lock and walk the chain from innermost to
outermost, acting on the records they care about: running notifications, recursing into children,
and passing escalations on to whatever the task depends on. Sweeps never block and never fail.

# Misuse

Registering a record twice, removing one that isn't registered, attaching a child to the wrong
group and the like are programming errors. They panic with an [*InvariantError]. Building with the
taskstatus_unchecked tag removes the checks.

# Diagnostics

With [DiagnosticsConfig.CaptureStacks] set, tasks remember where they were spawned and records
remember where they were registered, as linked [StackTrace]s. [Task.Tree] returns a snapshot of a
task's children, for finding what is still running.
*/
package taskstatus
