package httpapi

import "context"

type contextKey string

const actorContextKey contextKey = "guild_actor"

// actor is the caller a command is performed on behalf of. The command layer that
// fronts this API has already authenticated the user and forwards identity in headers.
type actor struct {
	TenantID string
	UserID   string
	Name     string
	IsAdmin  bool
}

func withActor(ctx context.Context, a actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

func actorFromContext(ctx context.Context) (actor, bool) {
	a, ok := ctx.Value(actorContextKey).(actor)
	return a, ok
}
