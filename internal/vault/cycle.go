package vault

import "context"

type cycleIDKey struct{}

// ContextWithCycleID tags ctx with the run loop cycle id recorded on audit events.
func ContextWithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, cycleID)
}

// CycleIDFromContext returns the cycle id set by ContextWithCycleID, or "".
func CycleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}
