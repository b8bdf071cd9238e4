package taskstatus

import "fmt"

// Priority is a task's scheduling priority. Only the ordering matters to this package: escalation
// never lowers a priority, and a higher value is more urgent.
type Priority uint8

const (
	PriorityUnspecified Priority = iota
	PriorityBackground
	PriorityLow
	PriorityDefault
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityUnspecified:
		return "unspecified"
	case PriorityBackground:
		return "background"
	case PriorityLow:
		return "low"
	case PriorityDefault:
		return "default"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
}
