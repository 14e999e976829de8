package plan

// PlanEvent identifies a structural diagnostics counter.
type PlanEvent int

const (
	// PlanScan counts scan nodes in executed plans.
	PlanScan PlanEvent = iota
	// PlanUnion counts union nodes in executed plans.
	PlanUnion
)

func (e PlanEvent) String() string {
	switch e {
	case PlanScan:
		return "plan_scan"
	case PlanUnion:
		return "plan_union"
	default:
		return "plan_unknown"
	}
}

// StructureTimer is an increment-only sink for plan structure events.
type StructureTimer interface {
	Increment(event PlanEvent)
}

// CountingTimer is an in-memory StructureTimer. Not safe for concurrent use.
type CountingTimer map[PlanEvent]int

// Increment implements StructureTimer.
func (c CountingTimer) Increment(event PlanEvent) { c[event]++ }
