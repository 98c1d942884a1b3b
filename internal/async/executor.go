package async

// Executor decides where continuations run.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func())

// Execute calls e(fn).
func (e ExecutorFunc) Execute(fn func()) { e(fn) }

var (
	// Inline runs continuations on the goroutine that settles the future, or
	// on the attaching goroutine when the future already settled.
	Inline Executor = ExecutorFunc(func(fn func()) { fn() })

	// Background runs every continuation on a fresh goroutine.
	Background Executor = ExecutorFunc(func(fn func()) { go fn() })
)
