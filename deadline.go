package taskstatus

import (
	"math"
	"time"
)

// Deadline is an absolute point in time after which a task should be cancelled. The value is
// opaque to the chain; DeadlineAt and Time interpret it as Unix nanoseconds.
type Deadline struct {
	Value uint64
}

// DeadlineAt converts t to a Deadline. Times before the Unix epoch clamp to zero.
func DeadlineAt(t time.Time) Deadline {
	ns := t.UnixNano()
	if ns < 0 {
		return Deadline{}
	}
	return Deadline{Value: uint64(ns)}
}

// Time converts the deadline back to wall time.
func (d Deadline) Time() time.Time {
	if d.Value > math.MaxInt64 {
		return time.Unix(0, math.MaxInt64)
	}
	return time.Unix(0, int64(d.Value))
}

// Equal reports whether d and other name the same instant.
func (d Deadline) Equal(other Deadline) bool { return d.Value == other.Value }

// Less reports whether d is earlier than other.
func (d Deadline) Less(other Deadline) bool { return d.Value < other.Value }

// DeadlineRecord states that the task has an active deadline.
type DeadlineRecord struct {
	header
	deadline Deadline
}

// NewDeadlineRecord returns an unregistered record for d. It has no effect until added to a task's
// chain, where [Task.EarliestDeadline] and the deadline sweeps see it.
func NewDeadlineRecord(d Deadline) *DeadlineRecord {
	r := &DeadlineRecord{deadline: d}
	r.init(KindDeadline, r)
	return r
}

func (r *DeadlineRecord) Deadline() Deadline { return r.deadline }
