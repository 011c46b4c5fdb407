// Package errors provides the classified error primitives used across themebuilder.
//
// Every pipeline reports failures as a ClassifiedError so that task
// compositions can decide whether a failure is fatal (abort at the next join
// point) or a warning (log and continue), and so the CLI can map failures to
// exit codes.
//
// Example usage:
//
//	err := errors.ScriptError("bundle failed").
//		WithContext("entry", "src/assets/js/bundle.js").
//		WithCause(buildErr).
//		Build()
package errors
