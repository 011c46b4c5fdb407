// Package pipeline implements the asset pipelines: clean, styles, scripts,
// images and copy.
//
// Every pipeline reads exactly the sources of its registry group and writes
// only under that group's destination, so pipelines of different groups can
// run concurrently without coordination. The build mode is passed explicitly
// through Options and never read from process state.
package pipeline
