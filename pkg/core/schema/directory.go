// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

// Client is a stored client with its id.
type Client struct {
	ID string `json:"id"`
	*state.ClientInfo
}

// CreateClientResponse is returned after registering a client.
type CreateClientResponse struct {
	ClientID string  `json:"clientId"`
	Client   *Client `json:"client"`
	Message  string  `json:"message"`
}

// ListClientsResponse lists every registered client.
type ListClientsResponse struct {
	Clients []Client `json:"clients"`
}

// UpdateClientResponse confirms a client update.
type UpdateClientResponse struct {
	Message  string  `json:"message"`
	ClientID string  `json:"clientId"`
	Client   *Client `json:"client,omitempty"`
}

// Assistant is a stored assistant with its ids and, when it could be read,
// the provider's view of it.
type Assistant struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	*state.ClientAssistant
	OpenAIData *api.Assistant `json:"openaiData,omitempty"`
	Warning    string         `json:"warning,omitempty"`
}

// CreateAssistantResponse is returned after creating an assistant.
type CreateAssistantResponse struct {
	AssistantID string     `json:"assistantId"`
	Assistant   *Assistant `json:"assistant"`
	Message     string     `json:"message"`
}

// ListAssistantsResponse lists a client's assistants.
type ListAssistantsResponse struct {
	ClientID   string      `json:"clientId"`
	Assistants []Assistant `json:"assistants"`
}

// AssistantActionResponse confirms an assistant update or delete.
type AssistantActionResponse struct {
	Message     string     `json:"message"`
	AssistantID string     `json:"assistantId"`
	ClientID    string     `json:"clientId"`
	Assistant   *Assistant `json:"assistant,omitempty"`
}

// ExecuteFunctionRequest invokes one of an assistant's functions directly.
type ExecuteFunctionRequest struct {
	FunctionName string         `json:"functionName"`
	Arguments    map[string]any `json:"arguments,omitempty"`
}

// ExecuteFunctionResponse wraps the function's result.
type ExecuteFunctionResponse struct {
	Result any `json:"result"`
}
