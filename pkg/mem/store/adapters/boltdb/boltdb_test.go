package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "opsmind_test.bolt.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewBoltStore(db)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func ownerContext(id string) context.Context {
	return owner.ContextWithOwnerID(context.Background(), owner.ID(id))
}

func TestBoltStore_AppendAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := ownerContext("team-platform")

	id, err := s.Append(ctx, store.MemoryRecord{
		Kind:    store.KindGeneratedResponse,
		Content: "Run terraform plan before every apply",
		Metadata: map[string]interface{}{
			"source": "assistant",
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	results, err := s.Search(ctx, store.Query{Text: "terraform plan apply"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, store.KindGeneratedResponse, results[0].Kind)
	assert.Equal(t, "assistant", results[0].Metadata["source"])
	assert.WithinDuration(t, time.Now(), results[0].CreatedAt, 5*time.Second)
}

func TestBoltStore_OwnerIsolation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append(ownerContext("team-platform"), store.MemoryRecord{Content: "platform incident notes"})
	require.NoError(t, err)
	_, err = s.Append(ownerContext("team-billing"), store.MemoryRecord{Content: "billing incident notes"})
	require.NoError(t, err)

	results, err := s.Search(ownerContext("team-platform"), store.Query{Text: "incident notes"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "platform incident notes", results[0].Content)
}

func TestBoltStore_SearchRankingAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := ownerContext("team-platform")

	_, err := s.Append(ctx, store.MemoryRecord{Content: "Use Docker for packaging services"})
	require.NoError(t, err)
	_, err = s.Append(ctx, store.MemoryRecord{Content: "Use Terraform for provisioning infrastructure"})
	require.NoError(t, err)

	results, err := s.Search(ctx, store.Query{
		Text:  "how do I provision infrastructure",
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Use Terraform for provisioning infrastructure", results[0].Content)
}

func TestBoltStore_KindFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := ownerContext("team-platform")

	_, err := s.Append(ctx, store.MemoryRecord{
		Kind:    store.KindUserRequest,
		Content: "upgrade the postgres cluster",
	})
	require.NoError(t, err)
	_, err = s.Append(ctx, store.MemoryRecord{
		Kind:    store.KindGeneratedResponse,
		Content: "postgres upgrades need a replica failover first",
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, store.Query{
		Text: "postgres",
		Kind: store.KindGeneratedResponse,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, store.KindGeneratedResponse, results[0].Kind)
}

func TestBoltStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := ownerContext("team-platform")

	id, err := s.Append(ctx, store.MemoryRecord{Content: "ephemeral"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))

	err = s.Delete(ctx, id)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// Other owners cannot delete across buckets
	err = s.Delete(ownerContext("team-billing"), id)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBoltStore_MissingOwnerContext(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append(context.Background(), store.MemoryRecord{Content: "orphan"})
	assert.ErrorIs(t, err, owner.ErrMissingOwnerContext)

	_, err = s.Search(context.Background(), store.Query{Text: "orphan"})
	assert.ErrorIs(t, err, owner.ErrMissingOwnerContext)
}
