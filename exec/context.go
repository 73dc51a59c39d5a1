package exec

import "context"

type ctxKey struct{}

// Current returns the Execution that owns the currently running
// continuation. Every continuation receives a context carrying its
// Execution, so any code on the asynchronous path can rebind promises
// correctly without smuggling handles through globals.
func Current(ctx context.Context) (*Execution, bool) {
	e, ok := ctx.Value(ctxKey{}).(*Execution)
	return e, ok
}

func mustCurrent(ctx context.Context) *Execution {
	e, ok := Current(ctx)
	if !ok {
		panic("exec: context does not carry an execution; promises can only be created on an execution")
	}
	return e
}
