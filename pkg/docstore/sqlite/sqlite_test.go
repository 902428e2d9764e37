// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadagpt/conversation-gateway/pkg/docstore"
	"github.com/tadagpt/conversation-gateway/pkg/docstore/docstoretest"
)

func TestConformance(t *testing.T) {
	docstoretest.RunConformanceTests(t, func(t *testing.T) docstore.Store {
		store, err := New(context.Background(), ":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs.db")

	store, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "clients/c1/info", map[string]any{"name": "Acme", "plan": "basic"}))
	require.NoError(t, store.Close(ctx))

	store, err = New(ctx, path)
	require.NoError(t, err)
	defer store.Close(ctx)

	var info map[string]string
	found, err := store.Get(ctx, "clients/c1/info", &info)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]string{"name": "Acme", "plan": "basic"}, info)
}

func TestRegisteredProvider(t *testing.T) {
	store, err := docstore.Providers.New(context.Background(), "sqlite", map[string]string{"path": ":memory:"})
	require.NoError(t, err)
	assert.NoError(t, store.Close(context.Background()))
}
