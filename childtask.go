package taskstatus

import "iter"

// ChildTaskRecord states that a task has one or more unstructured child tasks.
//
// The children form an intrusive list through each child's own successor slot (see
// [Task.NextChild]); the record only holds the head. Group members are never tracked here, only
// by their group's [TaskGroupRecord].
type ChildTaskRecord struct {
	header
	firstChild *Task
}

// NewChildTaskRecord creates a record whose list starts at child, which may be nil. It panics if
// child belongs to a task group.
func NewChildTaskRecord(child *Task) *ChildTaskRecord {
	r := &ChildTaskRecord{firstChild: child}
	r.init(KindChildTask, r)
	invariant(child == nil || child.group == nil, &r.header,
		"group child task %s must be tracked by its group, not by a child-task record", child.ID())
	return r
}

// FirstChild returns the head of the list, or nil.
func (r *ChildTaskRecord) FirstChild() *Task { return r.firstChild }

// Children yields the linked children in order. The sequence can be ranged over more than once.
func (r *ChildTaskRecord) Children() iter.Seq[*Task] {
	return childSeq(r.firstChild)
}

func childSeq(first *Task) iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		for c := first; c != nil; c = c.NextChild() {
			if !yield(c) {
				return
			}
		}
	}
}
