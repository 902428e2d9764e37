// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/docstore/memory"
)

func TestRepository_ConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	conv := &Conversation{
		ID:             "conv-1",
		ThreadID:       "thread_abc",
		AssistantID:    "asst_123",
		ExternalUserID: "mc-42",
		Status:         StatusActive,
		StartedAt:      1000,
		LastActivity:   1000,
		AutoDeleteAt:   3601000,
		ExpiresIn:      60,
		MaxMessages:    50,
	}
	require.NoError(t, repo.PutConversation(ctx, "c1", conv))

	got, err := repo.GetConversation(ctx, "c1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, conv, got)

	require.NoError(t, repo.UpdateConversation(ctx, "c1", "conv-1", map[string]any{"messageCount": 1}))
	got, err = repo.GetConversation(ctx, "c1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)
	assert.Equal(t, StatusActive, got.Status)
}

func TestRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	_, err := repo.GetConversation(ctx, "c1", "missing")
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	err = repo.UpdateConversation(ctx, "c1", "missing", map[string]any{"status": "expired"})
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	_, err = repo.GetAssistant(ctx, "c1", "a1")
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	_, err = repo.GetClient(ctx, "c1")
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	exists, err := repo.ClientExists(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_InvalidIdentifier(t *testing.T) {
	_, err := NewRepository(memory.New()).GetConversation(context.Background(), "c1", "bad.id")
	assert.True(t, apierror.Is(err, apierror.KindValidation))
}

func TestRepository_Assistants(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	require.NoError(t, repo.PutAssistant(ctx, "c1", &ClientAssistant{
		ID: "a2", OpenAIAssistantID: "asst_2", Name: "Second", Status: AssistantActive, CreatedAt: 20,
	}))
	require.NoError(t, repo.PutAssistant(ctx, "c1", &ClientAssistant{
		ID: "a1", OpenAIAssistantID: "asst_1", Name: "First", Status: AssistantActive, CreatedAt: 10,
		CustomFunctions: []CustomFunction{{
			Name:     "buscar_produtos",
			Endpoint: "https://hooks.example.com/search",
			Method:   "POST",
			Headers:  map[string]string{"X-Api-Key": "k"},
		}},
	}))

	list, err := repo.ListAssistants(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].ID)
	assert.Equal(t, "a2", list[1].ID)

	fn, ok := list[0].Function("buscar_produtos")
	require.True(t, ok)
	assert.Equal(t, "k", fn.Headers["X-Api-Key"])

	found, err := repo.FindAssistantByProviderID(ctx, "c1", "asst_2")
	require.NoError(t, err)
	assert.Equal(t, "a2", found.ID)

	_, err = repo.FindAssistantByProviderID(ctx, "c1", "asst_9")
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	exists, err := repo.ClientExists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRepository_ListConversationsOrdered(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	for _, c := range []*Conversation{
		{ID: "b", StartedAt: 2, Status: StatusActive},
		{ID: "a", StartedAt: 1, Status: StatusExpired},
		{ID: "c", StartedAt: 2, Status: StatusCompleted},
	} {
		require.NoError(t, repo.PutConversation(ctx, "c1", c))
	}

	list, err := repo.ListConversations(ctx, "c1")
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, repo.DeleteConversation(ctx, "c1", "a"))
	require.NoError(t, repo.DeleteConversation(ctx, "c1", "a"))
	list, err = repo.ListConversations(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestConversation_Helpers(t *testing.T) {
	conv := &Conversation{AutoDeleteAt: time.UnixMilli(10_000).UnixMilli()}
	conv.ApplyDefaults(60, 50)
	assert.Equal(t, 60, conv.ExpiresIn)
	assert.Equal(t, 50, conv.MaxMessages)
	assert.Equal(t, time.Hour, conv.TTL())

	assert.Equal(t, 4*time.Second, conv.TimeRemaining(time.UnixMilli(6_000)))
	assert.Zero(t, conv.TimeRemaining(time.UnixMilli(20_000)))

	assert.True(t, StatusExpired.Terminal())
	assert.False(t, StatusActive.Terminal())
}

func TestRepository_ThreadRecords(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	none, err := repo.ListThreads(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, repo.PutThread(ctx, &ThreadRecord{ID: "r2", ThreadID: "thread_b", AssistantID: "asst_1", CreatedAt: 20}))
	require.NoError(t, repo.PutThread(ctx, &ThreadRecord{ID: "r1", ThreadID: "thread_a", CreatedAt: 10}))
	require.NoError(t, repo.PutThread(ctx, &ThreadRecord{ID: "r3", ThreadID: "thread_b", CreatedAt: 30}))

	all, err := repo.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r1", "r2", "r3"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "asst_1", all[1].AssistantID)

	removed, err := repo.DeleteThreadRecords(ctx, "thread_b")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err = repo.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "thread_a", all[0].ThreadID)

	removed, err = repo.DeleteThreadRecords(ctx, "thread_missing")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
