package owner

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey int

const (
	// ownerContextKey is the key for storing an owner.Context in a context.Context
	ownerContextKey contextKey = iota
)

// ContextWithOwnerID adds an owner ID to a context.Context.
func ContextWithOwnerID(ctx context.Context, ownerID ID) context.Context {
	return context.WithValue(ctx, ownerContextKey, Context{OwnerID: ownerID})
}

// ContextWithOwner adds a full owner.Context to a context.Context.
func ContextWithOwner(ctx context.Context, ownerCtx Context) context.Context {
	return context.WithValue(ctx, ownerContextKey, ownerCtx)
}

// GetOwnerContext retrieves the owner.Context from a context.Context.
// If no owner.Context is found, it returns a zero-valued owner.Context and false.
func GetOwnerContext(ctx context.Context) (Context, bool) {
	ownerCtx, ok := ctx.Value(ownerContextKey).(Context)
	return ownerCtx, ok
}

// MustGetOwnerContext retrieves the owner.Context from a context.Context.
// Panics if no owner.Context is found, so only use when you are sure a Context exists.
func MustGetOwnerContext(ctx context.Context) Context {
	ownerCtx, ok := GetOwnerContext(ctx)
	if !ok {
		panic("owner.Context not found in context.Context")
	}
	return ownerCtx
}
