// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

func TestConversationResponseFlattensRecord(t *testing.T) {
	resp := ConversationResponse{
		ID: "conv-1",
		Conversation: &state.Conversation{
			ID:           "ignored",
			ThreadID:     "thread_1",
			Status:       state.StatusActive,
			AutoDeleteAt: 1700000000000,
			MessageCount: 3,
		},
		TimeRemaining: 1500,
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "conv-1", got["id"])
	assert.Equal(t, "thread_1", got["threadId"])
	assert.Equal(t, "active", got["status"])
	assert.EqualValues(t, 3, got["messageCount"])
	assert.EqualValues(t, 1500, got["timeRemaining"])
	assert.NotContains(t, got, "Conversation")
}

func TestAssistantOmitsProviderDataWhenAbsent(t *testing.T) {
	resp := Assistant{
		ID:       "a1",
		ClientID: "c1",
		ClientAssistant: &state.ClientAssistant{
			Name:   "Loja",
			Status: state.AssistantActive,
		},
		Warning: "Failed to retrieve data from AI LLM provider",
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "a1", got["id"])
	assert.Equal(t, "c1", got["clientId"])
	assert.Equal(t, "Loja", got["name"])
	assert.NotContains(t, got, "openaiData")
	assert.Contains(t, got, "warning")

	resp.Warning = ""
	resp.OpenAIData = &api.Assistant{ID: "asst_1", Model: "gpt-4-turbo"}
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	got = map[string]any{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotContains(t, got, "warning")
	assert.Equal(t, "asst_1", got["openaiData"].(map[string]any)["id"])
}

func TestErrorResponseStatusIsOptional(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Message: "Erro ao enviar mensagem", Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Erro ao enviar mensagem","error":"boom"}`, string(data))

	data, err = json.Marshal(ErrorResponse{Message: "m", Error: "e", Status: "failed"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"m","error":"e","status":"failed"}`, string(data))
}
