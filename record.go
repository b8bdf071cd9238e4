package taskstatus

import (
	"fmt"
	"sync/atomic"
)

// Kind identifies which variant of status record a Record is.
type Kind uint8

const (
	KindDeadline Kind = iota + 1
	KindChildTask
	KindTaskGroup
	KindCancellationNotification
	KindEscalationNotification
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindDeadline:
		return "deadline"
	case KindChildTask:
		return "child-task"
	case KindTaskGroup:
		return "task-group"
	case KindCancellationNotification:
		return "cancellation-notification"
	case KindEscalationNotification:
		return "escalation-notification"
	case KindDependency:
		return "dependency"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Record is a node in a task's status record chain.
//
// The set of records is closed: only *DeadlineRecord, *ChildTaskRecord, *TaskGroupRecord,
// *CancellationNotificationRecord, *EscalationNotificationRecord and *DependencyRecord implement
// it. Code walking a chain should use a type switch and ignore types it doesn't care about.
//
// Records are created unlinked, registered with [AddStatusRecord] exactly once, and unregistered
// with [RemoveStatusRecord] exactly once. While registered, any goroutine holding the task's status
// lock may read them; after removal the owner is free to drop or reuse the memory.
type Record interface {
	// Kind returns the tag fixed at construction.
	Kind() Kind
	// Parent returns the next-outer record in the chain, or nil.
	Parent() Record
	// ResetParent sets the outer link of a record that isn't linked into a chain yet.
	ResetParent(parent Record)
	// SpliceParent rewrites the outer link of a linked record in a single atomic store.
	SpliceParent(parent Record)

	statusHeader() *header
}

// header is embedded in every record type. The parent link is atomic so that the owning task can
// walk its own chain without the status lock while another goroutine splices it.
type header struct {
	kind   Kind
	self   Record
	parent atomic.Pointer[header]
	linked atomic.Bool

	// origin is where the record was registered; only set when stack capture is on.
	origin *StackTrace
}

func (h *header) init(kind Kind, self Record) {
	h.kind = kind
	h.self = self
}

func (h *header) Kind() Kind { return h.kind }

func (h *header) Parent() Record {
	if p := h.parent.Load(); p != nil {
		return p.self
	}
	return nil
}

// ResetParent is for records initialised before their true parent was known. If the chain ever
// caches aggregate information in the innermost record (e.g. the earliest deadline), this is where
// it would be pulled from the new parent; today it only updates the link.
func (h *header) ResetParent(parent Record) {
	invariant(!h.linked.Load(), h, "cannot reset the parent of a %s record that is linked into a chain", h.kind)
	h.resetParent(headerOf(parent))
}

func (h *header) resetParent(parent *header) {
	h.parent.Store(parent)
}

// SpliceParent removes one or more records between h and parent. Unlike ResetParent it never
// touches cached state.
func (h *header) SpliceParent(parent Record) {
	invariant(h.linked.Load(), h, "cannot splice the parent of a %s record that is not linked", h.kind)
	h.parent.Store(headerOf(parent))
}

func (h *header) statusHeader() *header { return h }

func headerOf(r Record) *header {
	if r == nil {
		return nil
	}
	return r.statusHeader()
}
