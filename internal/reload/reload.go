// Package reload defines the browser refresh notifications produced by the
// pipelines and the watcher and consumed by the dev server.
package reload

// Kind selects how connected browsers refresh.
type Kind string

const (
	// CSS swaps changed stylesheets in place without a page reload.
	CSS Kind = "css"
	// Page performs a full page reload.
	Page Kind = "reload"
)

// Notifier receives reload requests. Paths are project-relative output files.
type Notifier interface {
	Reload(kind Kind, paths ...string)
}

// Nop discards reload requests.
type Nop struct{}

func (Nop) Reload(Kind, ...string) {}

// OrNop returns n, or Nop when n is nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}

// Func adapts a function to Notifier.
type Func func(kind Kind, paths ...string)

func (f Func) Reload(kind Kind, paths ...string) { f(kind, paths...) }
