package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a task within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result is the outcome of one task.
type Result struct {
	Task     string
	Status   Status
	Duration time.Duration
	Err      error
}

// Observer is notified as tasks start and finish. Calls are made from the
// goroutine driving the run, never concurrently.
type Observer interface {
	TaskStarted(name string)
	TaskFinished(r Result)
}

// Report lists the results of a run in topological order.
type Report struct {
	Results  []Result
	Duration time.Duration
}

// Result returns the outcome of the named task.
func (r *Report) Result(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Task == name {
			return res, true
		}
	}
	return Result{}, false
}

// Failed returns the tasks that failed, excluding skipped ones.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Run executes targets and their transitive dependencies. The returned error
// joins the errors of every failed task, each wrapped in a *TaskError.
// Cancelling ctx stops new tasks from starting; running tasks are expected
// to return on their own.
func Run(ctx context.Context, g *Graph, obs Observer, targets ...string) (*Report, error) {
	names, err := g.Closure(targets...)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		obs = nopObserver{}
	}

	start := time.Now()
	status := make(map[string]Status, len(names))
	results := make(map[string]Result, len(names))
	for _, n := range names {
		status[n] = StatusPending
	}

	done := make(chan Result)
	running := 0

	launch := func() {
		for _, n := range names {
			if status[n] != StatusPending || !depsSucceeded(g, status, n) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			status[n] = StatusRunning
			running++
			obs.TaskStarted(n)
			go func(t Task) {
				begin := time.Now()
				err := runTask(ctx, t)
				res := Result{Task: t.Name, Status: StatusSucceeded, Duration: time.Since(begin), Err: err}
				if err != nil {
					res.Status = StatusFailed
				}
				done <- res
			}(g.tasks[n])
		}
	}

	launch()
	for running > 0 {
		res := <-done
		running--
		status[res.Task] = res.Status
		results[res.Task] = res
		obs.TaskFinished(res)
		if res.Status == StatusFailed {
			for _, s := range skipDependents(g, status, res.Task) {
				results[s] = Result{Task: s, Status: StatusSkipped, Err: fmt.Errorf("%w: %s failed", ErrSkipped, res.Task)}
				obs.TaskFinished(results[s])
			}
		}
		launch()
	}

	// Anything still pending was never started because of cancellation.
	canceled := false
	for _, n := range names {
		if status[n] == StatusPending {
			canceled = true
			status[n] = StatusSkipped
			results[n] = Result{Task: n, Status: StatusSkipped, Err: ctx.Err()}
			obs.TaskFinished(results[n])
		}
	}

	report := &Report{Duration: time.Since(start)}
	var errs []error
	for _, n := range names {
		res := results[n]
		report.Results = append(report.Results, res)
		if res.Status == StatusFailed {
			errs = append(errs, &TaskError{Task: n, Err: res.Err})
		}
	}
	if canceled {
		errs = append(errs, ctx.Err())
	}
	return report, errors.Join(errs...)
}

func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}

func depsSucceeded(g *Graph, status map[string]Status, name string) bool {
	for _, d := range g.tasks[name].Deps {
		if status[d] != StatusSucceeded {
			return false
		}
	}
	return true
}

// skipDependents marks every pending task reachable from failed as skipped
// and returns their names in discovery order.
func skipDependents(g *Graph, status map[string]Status, failed string) []string {
	var out []string
	queue := []string{failed}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[n] {
			if status[d] != StatusPending {
				continue
			}
			status[d] = StatusSkipped
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	return out
}

type nopObserver struct{}

func (nopObserver) TaskStarted(string)   {}
func (nopObserver) TaskFinished(Result) {}
