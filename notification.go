package taskstatus

// CancellationNotificationRecord holds a function to call if the task is cancelled.
//
// Any call to the function finishes before [RemoveStatusRecord] for this record returns, so once
// removal returns the caller may assume the function won't be used again. The function runs with
// the task's status lock held and must not add or remove records on the same task.
type CancellationNotificationRecord struct {
	header
	fn  func(arg any)
	arg any
}

// NewCancellationNotificationRecord returns a record that calls fn(arg) when its task is cancelled.
func NewCancellationNotificationRecord(fn func(arg any), arg any) *CancellationNotificationRecord {
	r := &CancellationNotificationRecord{fn: fn, arg: arg}
	r.init(KindCancellationNotification, r)
	invariant(fn != nil, &r.header, "cancellation notification requires a function")
	return r
}

// Run calls the function with the stored argument. It is invoked by the cancellation sweep.
func (r *CancellationNotificationRecord) Run() { r.fn(r.arg) }

// EscalationNotificationRecord holds a function to call if the task's priority is escalated. It
// has the same ordering guarantee as CancellationNotificationRecord.
type EscalationNotificationRecord struct {
	header
	fn  func(arg any, p Priority)
	arg any
}

// NewEscalationNotificationRecord is the escalation counterpart of
// [NewCancellationNotificationRecord]; fn also receives the new priority.
func NewEscalationNotificationRecord(fn func(arg any, p Priority), arg any) *EscalationNotificationRecord {
	r := &EscalationNotificationRecord{fn: fn, arg: arg}
	r.init(KindEscalationNotification, r)
	invariant(fn != nil, &r.header, "escalation notification requires a function")
	return r
}

// Run calls the function with the stored argument and the new priority. It is invoked by the
// escalation sweep.
func (r *EscalationNotificationRecord) Run(newPriority Priority) { r.fn(r.arg, newPriority) }

// OnCancel arranges for fn to be called when t is cancelled, and returns a function that
// unregisters it. If t has already been cancelled, fn is called right away and nothing is
// registered.
//
// Like any cancellation notification, fn runs with t's status lock held.
func OnCancel(t *Task, fn func()) (remove func()) {
	rec := NewCancellationNotificationRecord(func(any) { fn() }, nil)

	g := t.LockStatus()
	// Cancel sets the flag before it takes the lock, so checking under the lock can't miss a sweep.
	if t.IsCancelled() {
		g.Unlock()
		fn()
		return func() {}
	}
	g.Add(rec)
	g.Unlock()

	return func() { RemoveStatusRecord(t, rec) }
}

// OnEscalate arranges for fn to be called with the new priority whenever t is escalated, and
// returns a function that unregisters it.
func OnEscalate(t *Task, fn func(Priority)) (remove func()) {
	rec := NewEscalationNotificationRecord(func(_ any, p Priority) { fn(p) }, nil)
	AddStatusRecord(t, rec)
	return func() { RemoveStatusRecord(t, rec) }
}
