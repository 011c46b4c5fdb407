// Package workspace manages the staging directories used while packaging.
//
// A staging directory is created under the system temp dir (or a caller
// supplied base) with a unique themebuilder-stage-* name and is removed by
// Cleanup once the archive has been written.
package workspace
