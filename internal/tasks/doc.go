// Package tasks registers the themebuilder tasks on a taskgraph.Graph and
// runs them.
//
// Every pipeline, the dev server, the watcher and the packager is a named
// task. The compositions dev, build and bundle run a task together with its
// dependencies; any other name runs just that task.
package tasks
