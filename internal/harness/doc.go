// Package harness runs plan scenarios end to end.
//
// A scenario names a CUE plan description, the records to load, and the
// keys a full paged read must return. Run loads the records into a fresh
// store, compiles the plan, and executes it page by page, feeding each
// page's continuation into the next execution until the plan is exhausted.
// The per-page trace is what golden files capture, so any change to range
// boundaries, ordering or continuation handling shows up as a diff.
//
// Scenario files are YAML, decoded strictly:
//
//	name: in_list_paging
//	description: IN list rewritten as a union, read two rows at a time
//	plan: in_list.cue
//	page_size: 2
//	records:
//	  - key: [1]
//	    fields: {name: one}
//	expect:
//	  keys: [[1]]
//
// Runs are deterministic: execution IDs come from a fixed generator and the
// default store is an in-memory badger instance.
package harness
