// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package docstoretest provides a shared conformance suite for
// docstore.Store implementations. Each backend calls RunConformanceTests from
// its own _test.go file.
package docstoretest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadagpt/conversation-gateway/pkg/docstore"
)

type record struct {
	Status       string            `json:"status"`
	MessageCount int               `json:"messageCount"`
	AutoDeleteAt int64             `json:"autoDeleteAt"`
	Headers      map[string]string `json:"headers,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

// RunConformanceTests exercises a Store against the shared contract. newStore
// is called once per sub-test to provide an isolated instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Helper()

	t.Run("SetAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		in := record{Status: "active", MessageCount: 2, AutoDeleteAt: 1735689600000, Tags: []string{"a", "b"}}
		require.NoError(t, store.Set(ctx, "clients/c1/conversations/x", in))

		var out record
		found, err := store.Get(ctx, "clients/c1/conversations/x", &out)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, in, out)
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		var out record
		found, err := store.Get(context.Background(), "clients/nobody", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("GetSubtree", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "clients/c1/conversations/a", record{Status: "active"}))
		require.NoError(t, store.Set(ctx, "clients/c1/conversations/b", record{Status: "expired"}))

		var all map[string]record
		found, err := store.Get(ctx, "clients/c1/conversations", &all)
		require.NoError(t, err)
		require.True(t, found)
		assert.Len(t, all, 2)
		assert.Equal(t, "expired", all["b"].Status)

		var exists map[string]any
		found, err = store.Get(ctx, "clients/c1", &exists)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("SetReplaces", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "doc", record{Status: "active", Headers: map[string]string{"X-A": "1"}}))
		require.NoError(t, store.Set(ctx, "doc", record{Status: "completed"}))

		var out record
		_, err := store.Get(ctx, "doc", &out)
		require.NoError(t, err)
		assert.Equal(t, "completed", out.Status)
		assert.Nil(t, out.Headers)
	})

	t.Run("UpdateMerges", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "doc", record{Status: "active", MessageCount: 1}))
		require.NoError(t, store.Update(ctx, "doc", map[string]any{
			"messageCount": 2,
			"endedAt":      int64(1735689600123),
		}))

		var out map[string]any
		_, err := store.Get(ctx, "doc", &out)
		require.NoError(t, err)
		assert.Equal(t, "active", out["status"])
		assert.EqualValues(t, 2, out["messageCount"])
		assert.EqualValues(t, 1735689600123, out["endedAt"])
	})

	t.Run("UpdateNestedKeyAndNilDeletes", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "doc", map[string]any{"a": map[string]any{"b": 1, "c": 2}, "d": 3}))
		require.NoError(t, store.Update(ctx, "doc", map[string]any{"a/b": 10, "d": nil}))

		var out map[string]any
		_, err := store.Get(ctx, "doc", &out)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": map[string]any{"b": float64(10), "c": float64(2)}}, out)
	})

	t.Run("UpdateMissingIsNotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		err := store.Update(ctx, "clients/c1/conversations/gone", map[string]any{"status": "expired"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, docstore.ErrNotFound))

		var out map[string]any
		found, err := store.Get(ctx, "clients/c1/conversations/gone", &out)
		require.NoError(t, err)
		assert.False(t, found, "update must not recreate a deleted document")
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "clients/c1/conversations/a", record{Status: "active"}))
		require.NoError(t, store.Set(ctx, "clients/c1/info", map[string]any{"name": "Acme"}))
		require.NoError(t, store.Delete(ctx, "clients/c1/conversations/a"))
		require.NoError(t, store.Delete(ctx, "clients/c1/conversations/a"))

		keys, err := store.Keys(ctx, "clients/c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"info"}, keys)
	})

	t.Run("Keys", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "clients/b/info", map[string]any{"name": "B"}))
		require.NoError(t, store.Set(ctx, "clients/a/info", map[string]any{"name": "A"}))
		require.NoError(t, store.Set(ctx, "clients/a/assistants/x", map[string]any{"name": "X"}))

		keys, err := store.Keys(ctx, "clients")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, keys)

		keys, err = store.Keys(ctx, "clients/zzz")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("SetNilDeletes", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "doc", record{Status: "active"}))
		require.NoError(t, store.Set(ctx, "doc", nil))

		var out record
		found, err := store.Get(ctx, "doc", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		err := store.Set(context.Background(), "clients/a.b", record{})
		assert.ErrorIs(t, err, docstore.ErrInvalidPath)
		err = store.Set(context.Background(), "", record{})
		assert.ErrorIs(t, err, docstore.ErrInvalidPath)
	})
}
