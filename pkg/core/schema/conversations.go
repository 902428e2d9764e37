// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

// StartConversationRequest opens or resumes a conversation.
type StartConversationRequest struct {
	AssistantID    string `json:"assistantId"`           // Required, client-scoped assistant id
	ExternalUserID string `json:"externalUserId"`        // Required
	ExpiresIn      int    `json:"expiresIn,omitempty"`   // Minutes, default 60
	MaxMessages    int    `json:"maxMessages,omitempty"` // Default 50
}

// StartConversationResponse is returned for both new and resumed
// conversations. MaxMessages is only set for new ones.
type StartConversationResponse struct {
	ConversationID string `json:"conversationId"`
	ThreadID       string `json:"threadId"`
	Message        string `json:"message"`
	ExpiresAt      int64  `json:"expiresAt"`     // Epoch milliseconds
	TimeRemaining  int64  `json:"timeRemaining"` // Milliseconds
	MaxMessages    int    `json:"maxMessages,omitempty"`
}

// PostMessageRequest carries one user message.
type PostMessageRequest struct {
	Message string `json:"message"`
}

// EndConversationRequest closes a conversation. Reason defaults to "manual".
type EndConversationRequest struct {
	Reason string `json:"reason,omitempty"` // manual, completed, abandoned, expired
}

// EndConversationResponse confirms an ended conversation.
type EndConversationResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// CleanupResponse reports how many conversations a cleanup purged.
type CleanupResponse struct {
	Message              string `json:"message"`
	ConversationsRemoved int    `json:"conversationsRemoved"`
}

// ConversationResponse is a stored conversation with its id and the
// milliseconds left before it expires.
type ConversationResponse struct {
	ID string `json:"id"`
	*state.Conversation
	TimeRemaining int64 `json:"timeRemaining"`
}

// ListTranscriptsResponse lists the archived conversations of a client.
type ListTranscriptsResponse struct {
	ClientID        string   `json:"clientId"`
	ConversationIDs []string `json:"conversationIds"`
}

// DeleteTranscriptResponse confirms a removed transcript.
type DeleteTranscriptResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}
