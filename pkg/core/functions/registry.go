// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package functions

import (
	"context"

	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

// AssistantReader loads a client's assistant record.
type AssistantReader interface {
	GetAssistant(ctx context.Context, clientID, assistantID string) (*state.ClientAssistant, error)
}

// Registry resolves function names against an assistant's catalog of custom
// functions.
type Registry struct {
	assistants AssistantReader
}

// NewRegistry creates a registry backed by assistants.
func NewRegistry(assistants AssistantReader) *Registry {
	return &Registry{assistants: assistants}
}

// Lookup returns the first custom function of the assistant named name.
func (r *Registry) Lookup(ctx context.Context, clientID, assistantID, name string) (*state.CustomFunction, error) {
	assistant, err := r.assistants.GetAssistant(ctx, clientID, assistantID)
	if err != nil {
		return nil, err
	}
	fn, ok := assistant.Function(name)
	if !ok {
		return nil, apierror.NotFound("function %s not found for assistant %s", name, assistantID)
	}
	return fn, nil
}
