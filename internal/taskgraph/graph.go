package taskgraph

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Func is the body of a task.
type Func func(ctx context.Context) error

// Task is a named unit of work and the names of the tasks it depends on.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Run         Func
}

// Graph is an immutable, validated task DAG. It is safe for concurrent use.
type Graph struct {
	tasks      map[string]Task
	dependents map[string][]string
	order      []string // topological, ties broken by name
}

// New validates tasks and builds the graph. It rejects empty or duplicate
// names, missing bodies, unknown or repeated dependencies, self-loops and
// cycles.
func New(tasks ...Task) (*Graph, error) {
	if len(tasks) == 0 {
		return nil, invalidf("no tasks")
	}
	g := &Graph{
		tasks:      make(map[string]Task, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
	}
	for _, t := range tasks {
		if t.Name == "" {
			return nil, invalidf("task name is required")
		}
		if _, dup := g.tasks[t.Name]; dup {
			return nil, invalidf("duplicate task name: %q", t.Name)
		}
		if t.Run == nil {
			return nil, invalidf("task %q has no body", t.Name)
		}
		t.Deps = append([]string(nil), t.Deps...)
		g.tasks[t.Name] = t
	}
	for _, t := range tasks {
		seen := make(map[string]struct{}, len(t.Deps))
		for _, d := range t.Deps {
			if d == t.Name {
				return nil, invalidf("self-loop: %q", d)
			}
			if _, ok := g.tasks[d]; !ok {
				return nil, invalidf("task %q depends on unknown task %q", t.Name, d)
			}
			if _, dup := seen[d]; dup {
				return nil, invalidf("task %q lists dependency %q twice", t.Name, d)
			}
			seen[d] = struct{}{}
			g.dependents[d] = append(g.dependents[d], t.Name)
		}
	}
	for name := range g.dependents {
		sort.Strings(g.dependents[name])
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, cycleError(cycle)
	}
	g.order = g.topoOrder()
	return g, nil
}

// Task returns the task registered under name.
func (g *Graph) Task(name string) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Names returns all task names in topological order.
func (g *Graph) Names() []string { return append([]string(nil), g.order...) }

// Closure returns targets and everything they transitively depend on, in
// topological order.
func (g *Graph) Closure(targets ...string) ([]string, error) {
	want := make(map[string]struct{})
	var visit func(string)
	visit = func(name string) {
		if _, ok := want[name]; ok {
			return
		}
		want[name] = struct{}{}
		for _, d := range g.tasks[name].Deps {
			visit(d)
		}
	}
	for _, t := range targets {
		if _, ok := g.tasks[t]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, t)
		}
		visit(t)
	}
	out := make([]string, 0, len(want))
	for _, name := range g.order {
		if _, ok := want[name]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// topoOrder is Kahn's algorithm with a name-ordered ready list.
func (g *Graph) topoOrder() []string {
	indeg := make(map[string]int, len(g.tasks))
	var ready []string
	for name, t := range g.tasks {
		indeg[name] = len(t.Deps)
		if len(t.Deps) == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	out := make([]string, 0, len(g.tasks))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		for _, m := range g.dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
				sort.Strings(ready)
			}
		}
	}
	return out
}

// findCycle returns one cycle as a closed path of names, or nil.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	names := make([]string, 0, len(g.tasks))
	for n := range g.tasks {
		names = append(names, n)
	}
	sort.Strings(names)

	color := make(map[string]int, len(names))
	var stack []string
	var cycle []string
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.dependents[u] {
			switch color[v] {
			case white:
				if dfs(v) {
					return true
				}
			case gray:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append([]string(nil), stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}
	for _, n := range names {
		if color[n] == white && dfs(n) {
			return cycle
		}
	}
	return nil
}

// WriteText prints one line per task: name, dependencies and description.
func (g *Graph) WriteText(w io.Writer) error {
	for _, name := range g.order {
		t := g.tasks[name]
		line := name
		if len(t.Deps) > 0 {
			line += " <- " + strings.Join(t.Deps, ", ")
		}
		if t.Description != "" {
			line += "  # " + t.Description
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteMermaid prints the graph as a Mermaid flowchart.
func (g *Graph) WriteMermaid(w io.Writer) error {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, name := range g.order {
		t := g.tasks[name]
		if len(t.Deps) == 0 && len(g.dependents[name]) == 0 {
			fmt.Fprintf(&b, "    %s\n", name)
		}
		for _, d := range t.Deps {
			fmt.Fprintf(&b, "    %s --> %s\n", d, name)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
