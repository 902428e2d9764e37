// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive keeps transcripts of purged conversations.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/provider"
)

// ErrNotFound is returned when no transcript exists for a conversation.
var ErrNotFound = errors.New("transcript not found")

// Providers is the registry of archive backends.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/tadagpt/conversation-gateway/pkg/archive/memory"
//	import _ "github.com/tadagpt/conversation-gateway/pkg/archive/filesystem"
//	import _ "github.com/tadagpt/conversation-gateway/pkg/archive/s3"
var Providers = provider.NewRegistry[Archive]("transcript_archive")

// Transcript is the final state of a conversation and its thread history.
type Transcript struct {
	ClientID       string              `json:"clientId"`
	ConversationID string              `json:"conversationId"`
	Conversation   *state.Conversation `json:"conversation"`
	Messages       []api.ThreadMessage `json:"messages"` // oldest first; empty when the thread was unreadable
	ArchivedAt     time.Time           `json:"archivedAt"`
}

// Archive stores transcripts.
type Archive interface {
	// Put writes t, replacing any earlier transcript of the same conversation.
	Put(ctx context.Context, t *Transcript) error
	Get(ctx context.Context, clientID, conversationID string) (*Transcript, error)
	Delete(ctx context.Context, clientID, conversationID string) error
	// List returns the archived conversation ids of a client, sorted.
	List(ctx context.Context, clientID string) ([]string, error)
	Close(ctx context.Context) error
}

// Key returns the relative object key of a transcript, "<client>/<conversation>.json".
func Key(clientID, conversationID string) (string, error) {
	for _, id := range []string{clientID, conversationID} {
		if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
			return "", fmt.Errorf("invalid transcript identifier %q", id)
		}
	}
	return clientID + "/" + conversationID + ".json", nil
}

// Validate checks that t can be stored.
func (t *Transcript) Validate() error {
	if _, err := Key(t.ClientID, t.ConversationID); err != nil {
		return err
	}
	if t.Conversation == nil {
		return errors.New("transcript has no conversation record")
	}
	return nil
}
