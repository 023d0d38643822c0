package http

import (
	"context"

	"github.com/example/telehealth-gateway/internal/application"
)

type contextKey string

const callerContextKey contextKey = "caller"

// ContextWithCaller returns a derived context containing the resolved caller.
func ContextWithCaller(ctx context.Context, caller application.CallerIdentity) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext extracts the caller resolved by ResolveIdentity. Requests
// without one are anonymous.
func CallerFromContext(ctx context.Context) (application.CallerIdentity, bool) {
	caller, ok := ctx.Value(callerContextKey).(application.CallerIdentity)
	return caller, ok
}
