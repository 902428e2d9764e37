// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package archivetest provides a shared conformance test suite for
// archive.Archive implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package archivetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tadagpt/conversation-gateway/pkg/archive"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

// Sample returns a transcript with two messages for the given ids.
func Sample(clientID, conversationID string) *archive.Transcript {
	now := time.Now().Truncate(time.Millisecond).UTC()
	return &archive.Transcript{
		ClientID:       clientID,
		ConversationID: conversationID,
		Conversation: &state.Conversation{
			ThreadID:       "thread_" + conversationID,
			AssistantID:    "asst_1",
			ExternalUserID: "user_1",
			Status:         state.StatusExpired,
			StartedAt:      now.Add(-2 * time.Hour).UnixMilli(),
			LastActivity:   now.Add(-90 * time.Minute).UnixMilli(),
			AutoDeleteAt:   now.Add(-30 * time.Minute).UnixMilli(),
			ExpiresIn:      60,
			MessageCount:   1,
			MaxMessages:    50,
		},
		Messages: []api.ThreadMessage{
			api.NewTextMessage("msg_1", "thread_"+conversationID, "user", "Oi", now.Add(-90*time.Minute).Unix()),
			api.NewTextMessage("msg_2", "thread_"+conversationID, "assistant", "Olá! Como posso ajudar?", now.Add(-89*time.Minute).Unix()),
		},
		ArchivedAt: now,
	}
}

// RunConformanceTests exercises an Archive implementation against the shared
// contract. The newStore function is called once per sub-test to provide an
// isolated store instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) archive.Archive) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		want := Sample("client_a", "conv_1")
		if err := store.Put(ctx, want); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, "client_a", "conv_1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ClientID != want.ClientID || got.ConversationID != want.ConversationID {
			t.Errorf("unexpected identity %s/%s", got.ClientID, got.ConversationID)
		}
		if !reflect.DeepEqual(got.Conversation, want.Conversation) {
			t.Errorf("conversation mismatch:\n got %+v\nwant %+v", got.Conversation, want.Conversation)
		}
		if len(got.Messages) != 2 || got.Messages[1].Text() != "Olá! Como posso ajudar?" {
			t.Errorf("unexpected messages %+v", got.Messages)
		}
		if !got.ArchivedAt.Equal(want.ArchivedAt) {
			t.Errorf("archivedAt %v, want %v", got.ArchivedAt, want.ArchivedAt)
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		first := Sample("client_a", "conv_1")
		if err := store.Put(ctx, first); err != nil {
			t.Fatalf("Put: %v", err)
		}
		second := Sample("client_a", "conv_1")
		second.Messages = nil
		if err := store.Put(ctx, second); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, "client_a", "conv_1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got.Messages) != 0 {
			t.Errorf("expected the second transcript, got %d messages", len(got.Messages))
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		_, err := store.Get(context.Background(), "client_a", "missing")
		if !errors.Is(err, archive.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		if err := store.Put(ctx, Sample("client_a", "conv_1")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Delete(ctx, "client_a", "conv_1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, "client_a", "conv_1"); !errors.Is(err, archive.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, "client_a", "conv_1"); !errors.Is(err, archive.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("ListIsScopedAndSorted", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		for _, s := range []struct{ client, conv string }{
			{"client_a", "conv_b"},
			{"client_a", "conv_a"},
			{"client_b", "conv_c"},
		} {
			if err := store.Put(ctx, Sample(s.client, s.conv)); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}

		got, err := store.List(ctx, "client_a")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if want := []string{"conv_a", "conv_b"}; !reflect.DeepEqual(got, want) {
			t.Errorf("List = %v, want %v", got, want)
		}

		empty, err := store.List(ctx, "client_z")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("expected no transcripts, got %v", empty)
		}
	})

	t.Run("RejectsInvalidIdentifiers", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		if err := store.Put(ctx, Sample("client_a", "../escape")); err == nil {
			t.Error("expected error for path traversal id")
		}
		noRecord := Sample("client_a", "conv_1")
		noRecord.Conversation = nil
		if err := store.Put(ctx, noRecord); err == nil {
			t.Error("expected error for transcript without conversation")
		}
	})
}
