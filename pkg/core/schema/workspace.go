// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

// ChatRequest continues a caller-held history. Models starting with "dall"
// generate an image from the message instead.
type ChatRequest struct {
	Message string            `json:"message"` // Required
	History []api.ChatMessage `json:"history,omitempty"`
	Model   string            `json:"model"` // Required
}

// ChatResponse carries the model reply and the updated history. Exactly one
// of Response and Images is set.
type ChatResponse struct {
	Response *api.ChatCompletion  `json:"response,omitempty"`
	Images   []api.GeneratedImage `json:"images,omitempty"`
	History  []api.ChatMessage    `json:"history"`
}

// AssistantChatRequest runs an assistant on a caller-managed thread.
type AssistantChatRequest struct {
	Message   string `json:"message"`   // Required
	Thread    string `json:"thread"`    // Required, provider thread id
	Assistant string `json:"assistant"` // Required, provider assistant id
}

// HistoryResponse is a thread history, oldest first.
type HistoryResponse struct {
	History []api.ThreadMessage `json:"history"`
}

// CreateThreadRequest opens a thread, optionally noting its assistant.
type CreateThreadRequest struct {
	Assistant string `json:"assistant,omitempty"`
}

// ThreadResponse wraps a provider thread.
type ThreadResponse struct {
	Thread *api.Thread `json:"thread"`
}

// ThreadDetailsResponse is a thread with its messages oldest first.
type ThreadDetailsResponse struct {
	Thread   *api.Thread         `json:"thread"`
	Messages []api.ThreadMessage `json:"messages"`
}

// ListThreadsResponse maps record ids to thread records.
type ListThreadsResponse struct {
	Threads map[string]*state.ThreadRecord `json:"threads"`
}

// DeletedThread confirms a thread deletion.
type DeletedThread struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// DeleteThreadResponse wraps DeletedThread.
type DeleteThreadResponse struct {
	Thread DeletedThread `json:"thread"`
}

// ProviderAssistantResponse wraps a provider assistant.
type ProviderAssistantResponse struct {
	Assistant *api.Assistant `json:"assistant"`
}

// ListProviderAssistantsResponse lists the account's provider assistants.
type ListProviderAssistantsResponse struct {
	Assistants []*api.Assistant `json:"assistants"`
}
