package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated actor's user ID in context.
// Authentication happens upstream; by the time the engine runs the actor is
// a fact, not a claim.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the actor's user ID from context.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}
