// Package engine executes plans against a record store.
//
// The engine is a thin layer over plan.Plan.Execute. Each execution gets a
// time-sortable ID and a sequence number, both attached to every log line.
// The plan structure is reported once per execution to the metrics sink,
// and failures come back as *ExecutionError with a stable code.
//
// Executions are independent. Plans are immutable and may be shared across
// goroutines; an Execution is a single-threaded pull cursor.
package engine
