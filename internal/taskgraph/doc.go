// Package taskgraph runs named tasks as a validated dependency graph.
//
// A task starts once all of its dependencies have succeeded; tasks whose
// dependencies are satisfied run concurrently. When a task fails, every task
// that transitively depends on it is marked skipped while unrelated tasks
// run to completion.
package taskgraph
