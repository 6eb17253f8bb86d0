package owner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithOwner(t *testing.T) {
	ownerCtx := NewContext("team-platform", "session-42")
	ctx := ContextWithOwner(context.Background(), ownerCtx)

	got, ok := GetOwnerContext(ctx)
	require.True(t, ok)
	assert.Equal(t, ID("team-platform"), got.OwnerID)
	assert.Equal(t, "session-42", got.SessionID)
}

func TestContextWithOwnerID(t *testing.T) {
	ctx := ContextWithOwnerID(context.Background(), "team-platform")

	got, ok := GetOwnerContext(ctx)
	require.True(t, ok)
	assert.Equal(t, ID("team-platform"), got.OwnerID)
	assert.Empty(t, got.SessionID)
}

func TestGetOwnerContext_Missing(t *testing.T) {
	got, ok := GetOwnerContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, got.OwnerID)
}

func TestMustGetOwnerContext(t *testing.T) {
	ctx := ContextWithOwnerID(context.Background(), "team-platform")
	assert.Equal(t, ID("team-platform"), MustGetOwnerContext(ctx).OwnerID)

	assert.Panics(t, func() {
		MustGetOwnerContext(context.Background())
	})
}
