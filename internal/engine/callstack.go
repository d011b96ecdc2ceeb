package engine

import "context"

type callStackKey struct{}

// withRuntime returns a context whose call stack has w pushed on top.
// The stack records which workflow runtimes are starting runs on the
// current synchronous call path.
func withRuntime(ctx context.Context, w *WorkflowRuntime) context.Context {
	prev := callStack(ctx)
	stack := make([]*WorkflowRuntime, len(prev), len(prev)+1)
	copy(stack, prev)
	return context.WithValue(ctx, callStackKey{}, append(stack, w))
}

func callStack(ctx context.Context) []*WorkflowRuntime {
	stack, _ := ctx.Value(callStackKey{}).([]*WorkflowRuntime)
	return stack
}

func inCallStack(ctx context.Context, w *WorkflowRuntime) bool {
	for _, s := range callStack(ctx) {
		if s == w {
			return true
		}
	}
	return false
}

func callDepth(ctx context.Context) int {
	return len(callStack(ctx))
}
