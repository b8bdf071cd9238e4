package taskstatus

import "iter"

// TaskGroupRecord is the status record of exactly one [Group]. It holds the group's children that
// have not yet been consumed, in attach order, as an intrusive list through each child's successor
// slot.
//
// The list is only ever modified:
//   - while holding the owning task's status lock, so cancelling and escalating goroutines can walk
//     it without a second lock, and
//   - synchronously with the owning task, so the owner can walk it without taking the lock at all.
//
// The first rule is enforced by requiring a [StatusGuard]; the second is up to the caller.
type TaskGroupRecord struct {
	header
	group      *Group
	firstChild *Task
	lastChild  *Task
}

// DetachMissingHook is called when DetachChild is asked to remove a task that isn't in the list.
// The list is left unchanged either way; the hook only exists to make the misuse visible.
var DetachMissingHook = func(r *TaskGroupRecord, child *Task) {
	child.log.WithField("group_owner", r.group.owner.ID()).
		Warn("detaching a task that is not in the group's child list")
}

func (r *TaskGroupRecord) initGroup(g *Group) {
	r.init(KindTaskGroup, r)
	r.group = g
}

// Group returns the group this record belongs to.
func (r *TaskGroupRecord) Group() *Group { return r.group }

// FirstChild returns the oldest attached child, or nil when the list is empty.
func (r *TaskGroupRecord) FirstChild() *Task { return r.firstChild }

// LastChild returns the most recently attached child, or nil when the list is empty.
func (r *TaskGroupRecord) LastChild() *Task { return r.lastChild }

// Children yields the attached children in attach order.
func (r *TaskGroupRecord) Children() iter.Seq[*Task] {
	return childSeq(r.firstChild)
}

// AttachChild appends child to the tail of the list. child must have been created as a member of
// this record's group, and g must be the held guard of the group's owner.
func (r *TaskGroupRecord) AttachChild(g *StatusGuard, child *Task) {
	g.check(r.group.owner)
	invariant(child != nil, &r.header, "cannot attach a nil child to a group")
	invariant(child.group == r.group, &r.header, "task %s is not a member of this group", child.ID())
	invariant(child.NextChild() == nil && child != r.lastChild, &r.header,
		"task %s is already linked into a child list", child.ID())

	oldLast := r.lastChild
	r.lastChild = child
	if r.firstChild == nil {
		r.firstChild = child
		return
	}
	oldLast.setNextChild(child)
}

// DetachChild removes child from the list. Removing the head is O(1); anything else scans from the
// head. If child isn't in the list nothing changes and DetachMissingHook is called.
func (r *TaskGroupRecord) DetachChild(g *StatusGuard, child *Task) {
	g.check(r.group.owner)
	invariant(child != nil, &r.header, "cannot remove a nil child from a group")

	if r.firstChild == child {
		r.firstChild = child.NextChild()
		if r.firstChild == nil {
			r.lastChild = nil
		}
		return
	}

	// prev -> child -> afterChild  becomes  prev -> afterChild
	for prev := r.firstChild; prev != nil; prev = prev.NextChild() {
		if prev.NextChild() != child {
			continue
		}
		prev.setNextChild(child.NextChild())
		if child == r.lastChild {
			r.lastChild = prev
		}
		return
	}

	if hook := DetachMissingHook; hook != nil {
		hook(r, child)
	}
}
