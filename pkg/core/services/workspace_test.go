// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/functions"
)

func newWorkspace(h *harness) *WorkspaceService {
	eng := h.svc.interpreter
	return NewWorkspaceService(h.repo, h.llm, eng, WorkspaceOptions{Now: h.clock.Now})
}

// --- Chat ---

func TestChat_AppendsReplyToHistory(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)

	res, err := ws.Chat(context.Background(), ChatInput{
		Model:   "gpt-4o-mini",
		Message: "Qual o prazo de entrega?",
		History: []api.ChatMessage{
			{Role: "system", Content: "Seja breve."},
			{Role: "user", Content: "Oi"},
			{Role: "assistant", Content: "Olá!"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Completion)
	assert.Empty(t, res.Images)
	assert.Equal(t, "gpt-4o-mini", res.Completion.Model)

	require.Len(t, res.History, 5)
	assert.Equal(t, api.ChatMessage{Role: "user", Content: "Qual o prazo de entrega?"}, res.History[3])
	assert.Equal(t, api.ChatMessage{Role: "assistant", Content: "Mock response to: Qual o prazo de entrega?"}, res.History[4])
}

func TestChat_ImageModelGeneratesPicture(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)

	res, err := ws.Chat(context.Background(), ChatInput{Model: "dall-e-3", Message: "um gato de óculos"})
	require.NoError(t, err)
	assert.Nil(t, res.Completion)
	require.Len(t, res.Images, 1)
	assert.Equal(t, "um gato de óculos", res.Images[0].RevisedPrompt)

	require.Len(t, res.History, 2)
	assert.Equal(t, "assistant", res.History[1].Role)
	assert.Equal(t, res.Images[0].URL, res.History[1].Content)
}

func TestChat_Validation(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()

	_, err := ws.Chat(ctx, ChatInput{Model: "gpt-4o"})
	requireKind(t, err, apierror.KindValidation)

	_, err = ws.Chat(ctx, ChatInput{Message: "oi"})
	requireKind(t, err, apierror.KindValidation)

	_, err = ws.Chat(ctx, ChatInput{Model: "gpt-4o", Message: "oi", History: []api.ChatMessage{{Role: "tool", Content: "x"}}})
	requireKind(t, err, apierror.KindValidation)
}

func TestChat_ProviderFailure(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	h.llm.ChatErr = errors.New("rate limited")

	_, err := ws.Chat(context.Background(), ChatInput{Model: "gpt-4o", Message: "oi"})
	require.Error(t, err)
	_, classified := apierror.As(err)
	assert.False(t, classified)
}

// --- AssistantChat ---

func TestAssistantChat_ReturnsHistoryOldestFirst(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()

	thread, err := ws.CreateThread(ctx, "asst_1")
	require.NoError(t, err)

	history, err := ws.AssistantChat(ctx, thread.ID, "asst_1", "Oi")
	require.NoError(t, err)
	history, err = ws.AssistantChat(ctx, thread.ID, "asst_1", "Tudo bem?")
	require.NoError(t, err)

	require.Len(t, history, 4)
	assert.Equal(t, []string{"user", "assistant", "user", "assistant"},
		[]string{history[0].Role, history[1].Role, history[2].Role, history[3].Role})
	assert.Equal(t, "Mock response to: Tudo bem?", history[3].Text())
}

func TestAssistantChat_ToolCallsHaveNoCatalog(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()

	h.llm.RunScript = func(threadID, assistantID string) *api.Run {
		return &api.Run{Status: api.RunRequiresAction, ToolCalls: []api.ToolCall{
			{ID: "call_1", Type: "function", Name: functions.CheckStockFunction, Arguments: `{"produto_id":1}`},
		}}
	}
	thread, err := ws.CreateThread(ctx, "asst_1")
	require.NoError(t, err)

	history, err := ws.AssistantChat(ctx, thread.ID, "asst_1", "Tem estoque?")
	require.NoError(t, err)
	require.NotEmpty(t, history)

	subs := h.llm.Submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0], 1)
	assert.Equal(t, "call_1", subs[0][0].ToolCallID)
	assert.Contains(t, subs[0][0].Output, "not available on this thread")
}

func TestAssistantChat_Validation(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()

	for _, tc := range []struct{ thread, assistant, message string }{
		{"thread_x", "asst_1", ""},
		{"", "asst_1", "oi"},
		{"thread_x", "", "oi"},
	} {
		_, err := ws.AssistantChat(ctx, tc.thread, tc.assistant, tc.message)
		requireKind(t, err, apierror.KindValidation)
	}
	assert.Zero(t, h.llm.RunCount())
}

func TestAssistantChat_NonCompletedRunIsProviderError(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()

	h.llm.RunScript = func(threadID, assistantID string) *api.Run {
		return &api.Run{Status: api.RunFailed, LastError: "server_error"}
	}
	thread, err := ws.CreateThread(ctx, "")
	require.NoError(t, err)

	_, err = ws.AssistantChat(ctx, thread.ID, "asst_1", "Oi")
	requireKind(t, err, apierror.KindProvider)
}

// --- Threads ---

func TestThreads_Lifecycle(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()

	first, err := ws.CreateThread(ctx, "asst_1")
	require.NoError(t, err)
	second, err := ws.CreateThread(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "thread", first.Object)

	records, err := ws.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	byThread := map[string]string{}
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		byThread[rec.ThreadID] = rec.AssistantID
	}
	assert.Equal(t, map[string]string{first.ID: "asst_1", second.ID: ""}, byThread)

	_, err = ws.AssistantChat(ctx, first.ID, "asst_1", "Oi")
	require.NoError(t, err)

	details, err := ws.GetThread(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, details.Thread.ID)
	require.Len(t, details.Messages, 2)
	assert.Equal(t, "user", details.Messages[0].Role)
	assert.Equal(t, "assistant", details.Messages[1].Role)

	require.NoError(t, ws.DeleteThread(ctx, first.ID))
	assert.Contains(t, h.llm.DeletedThreads(), first.ID)

	records, err = ws.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.ID, records[0].ThreadID)

	_, err = ws.GetThread(ctx, first.ID)
	assert.Error(t, err)
}

func TestCreateThread_ProviderFailureStoresNothing(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()
	h.llm.ThreadErr = errors.New("provider down")

	_, err := ws.CreateThread(ctx, "asst_1")
	require.Error(t, err)

	records, err := ws.ListThreads(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// --- Provider assistants ---

func TestProviderAssistants(t *testing.T) {
	h := newHarness(t)
	ws := newWorkspace(h)
	ctx := context.Background()

	_, err := ws.CreateProviderAssistant(ctx, ProviderAssistantRequest{Name: "Sem modelo"})
	requireKind(t, err, apierror.KindValidation)

	_, err = ws.CreateProviderAssistant(ctx, ProviderAssistantRequest{Model: "gpt-4o", Tools: []string{"browser"}})
	requireKind(t, err, apierror.KindValidation)

	created, err := ws.CreateProviderAssistant(ctx, ProviderAssistantRequest{
		Name:         "Tutor",
		Instructions: "Explique com calma.",
		Model:        "gpt-4o",
		Tools:        []string{"code_interpreter"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", created.Model)

	got, err := ws.GetProviderAssistant(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tutor", got.Name)

	_, err = ws.GetProviderAssistant(ctx, "asst_missing")
	assert.Error(t, err)

	all, err := ws.ListProviderAssistants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, created.ID, all[0].ID)
}
