package ir

// Version constants.
const (
	// PlanHashVersion is bumped whenever any PlanHash input changes shape.
	// It is also the suffix of DomainPlan and DomainComparisons.
	PlanHashVersion = "2"

	// EngineVersion is the rangeplan release.
	EngineVersion = "0.1.0"
)
