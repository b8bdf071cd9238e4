package taskstatus

// TaskTree is a snapshot of a task and the children reachable through its status records, returned
// by [Task.Tree].
type TaskTree struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Priority  Priority   `json:"priority"`
	Cancelled bool       `json:"cancelled"`
	Completed bool       `json:"completed"`
	InGroup   bool       `json:"inGroup"`
	Children  []TaskTree `json:"children,omitempty"`
}

// Tree returns a snapshot of t and its children, as reachable through child-task and task-group
// records. Children are listed innermost record first, and within a record in list order.
//
// Each task's records are read under its own status lock, but the locks aren't held across the
// whole walk, so the result may not match the state at any particular point in time. Anything that
// stays true for the whole call (like "task X is a child of task Y") is represented correctly.
//
// This is meant for runtime diagnostics, e.g. figuring out which
// children are still holding a task up.
func (t *Task) Tree() TaskTree {
	g := t.LockStatus()

	var children []*Task
	for r := range recordSeq(t) {
		switch r := r.(type) {
		case *ChildTaskRecord:
			for c := range r.Children() {
				children = append(children, c)
			}
		case *TaskGroupRecord:
			for c := range r.Children() {
				children = append(children, c)
			}
		}
	}

	// Unlock during tree traversal; a child's lock is only ever taken while holding its parent's
	// by the sweeps, and there's no need to add to that here.
	g.Unlock()

	tree := TaskTree{
		ID:        t.id,
		Name:      t.name,
		Priority:  t.Priority(),
		Cancelled: t.IsCancelled(),
		Completed: isClosed(t.done),
		InGroup:   t.group != nil,
	}
	for _, c := range children {
		tree.Children = append(tree.Children, c.Tree())
	}
	return tree
}
