// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	archivememory "github.com/tadagpt/conversation-gateway/pkg/archive/memory"
	"github.com/tadagpt/conversation-gateway/pkg/catalog"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/engine"
	"github.com/tadagpt/conversation-gateway/pkg/core/functions"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	docmemory "github.com/tadagpt/conversation-gateway/pkg/docstore/memory"
)

// --- Test helpers ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	repo    *state.Repository
	llm     *api.MockClient
	clock   *fakeClock
	archive *archivememory.Store
	svc     *ConversationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	repo := state.NewRepository(docmemory.New())
	require.NoError(t, repo.PutClient(ctx, &state.ClientInfo{
		ID: "c1", Name: "Loja", Email: "loja@example.com", Plan: state.PlanBasic, Status: state.ClientActive,
	}))
	require.NoError(t, repo.PutAssistant(ctx, "c1", &state.ClientAssistant{
		ID:                "a1",
		OpenAIAssistantID: "asst_1",
		Name:              "Vendedor",
		Status:            state.AssistantActive,
		CustomFunctions: []state.CustomFunction{
			{Name: functions.SearchProductsFunction},
			{Name: functions.CheckStockFunction},
		},
	}))

	llm := api.NewMockClient()
	executor := functions.NewExecutor(nil, nil)
	(&functions.Builtins{Catalog: catalog.Demo()}).Register(executor)
	eng, err := engine.New(llm, functions.NewRegistry(repo), executor, engine.Options{})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	store := archivememory.New()

	svc := NewConversationService(repo, llm, eng, ConversationOptions{
		Archive: store,
		Now:     clock.Now,
	})
	return &harness{repo: repo, llm: llm, clock: clock, archive: store, svc: svc}
}

func (h *harness) start(t *testing.T, user string) *StartResult {
	t.Helper()
	res, err := h.svc.StartOrResume(context.Background(), "c1", StartRequest{AssistantID: "a1", ExternalUserID: user})
	require.NoError(t, err)
	return res
}

func (h *harness) conversation(t *testing.T, id string) *state.Conversation {
	t.Helper()
	conv, err := h.repo.GetConversation(context.Background(), "c1", id)
	require.NoError(t, err)
	return conv
}

func requireKind(t *testing.T, err error, kind apierror.Kind) {
	t.Helper()
	apiErr, ok := apierror.As(err)
	require.Truef(t, ok, "expected %s error, got %v", kind, err)
	require.Equal(t, kind, apiErr.Kind, "error: %v", err)
}

// --- StartOrResume ---

func TestStartOrResume_CreatesConversation(t *testing.T) {
	h := newHarness(t)

	res := h.start(t, "user_1")
	assert.False(t, res.Resumed)
	assert.Equal(t, 50, res.MaxMessages)
	assert.Equal(t, h.clock.Now().Add(time.Hour).UnixMilli(), res.ExpiresAt)
	assert.Equal(t, time.Hour.Milliseconds(), res.TimeRemaining)
	assert.True(t, h.llm.HasThread(res.ThreadID))

	conv := h.conversation(t, res.ConversationID)
	assert.Equal(t, state.StatusActive, conv.Status)
	assert.Equal(t, "asst_1", conv.AssistantID)
	assert.Equal(t, "a1", conv.ClientAssistantID)
	assert.Equal(t, "user_1", conv.ExternalUserID)
	assert.Equal(t, 0, conv.MessageCount)
	assert.Equal(t, 60, conv.ExpiresIn)
}

func TestStartOrResume_RepeatedStartsResume(t *testing.T) {
	h := newHarness(t)

	first := h.start(t, "user_1")
	h.clock.Advance(30 * time.Minute)
	second := h.start(t, "user_1")

	assert.True(t, second.Resumed)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, (30 * time.Minute).Milliseconds(), second.TimeRemaining)

	other := h.start(t, "user_2")
	assert.NotEqual(t, first.ConversationID, other.ConversationID)
}

func TestStartOrResume_ExpiredConversationIsNotReused(t *testing.T) {
	h := newHarness(t)

	first := h.start(t, "user_1")
	h.clock.Advance(time.Hour + time.Millisecond)
	second := h.start(t, "user_1")

	assert.False(t, second.Resumed)
	assert.NotEqual(t, first.ConversationID, second.ConversationID)
}

func TestStartOrResume_CustomLimits(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.StartOrResume(context.Background(), "c1", StartRequest{
		AssistantID: "a1", ExternalUserID: "user_1", ExpiresIn: 5, MaxMessages: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.MaxMessages)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), res.TimeRemaining)
}

func TestStartOrResume_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		clientID string
		req      StartRequest
		kind     apierror.Kind
	}{
		{"missing assistant", "c1", StartRequest{ExternalUserID: "u"}, apierror.KindValidation},
		{"missing user", "c1", StartRequest{AssistantID: "a1"}, apierror.KindValidation},
		{"negative expiry", "c1", StartRequest{AssistantID: "a1", ExternalUserID: "u", ExpiresIn: -1}, apierror.KindValidation},
		{"negative quota", "c1", StartRequest{AssistantID: "a1", ExternalUserID: "u", MaxMessages: -5}, apierror.KindValidation},
		{"unknown client", "nope", StartRequest{AssistantID: "a1", ExternalUserID: "u"}, apierror.KindNotFound},
		{"unknown assistant", "c1", StartRequest{AssistantID: "zz", ExternalUserID: "u"}, apierror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.StartOrResume(ctx, tt.clientID, tt.req)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestStartOrResume_DeletedAssistantIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.UpdateAssistant(ctx, "c1", "a1", map[string]any{
		"status":    state.AssistantDeleted,
		"deletedAt": h.clock.Now().UnixMilli(),
	}))

	_, err := h.svc.StartOrResume(ctx, "c1", StartRequest{AssistantID: "a1", ExternalUserID: "user_1"})
	requireKind(t, err, apierror.KindNotFound)

	conversations, err := h.repo.ListConversations(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, conversations)
	assert.Zero(t, h.llm.RunCount())
}

// --- PostMessage ---

func TestPostMessage_SlidesExpiryAndCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.start(t, "user_1")
	before := h.conversation(t, res.ConversationID)

	h.clock.Advance(10 * time.Minute)
	out, err := h.svc.PostMessage(ctx, "c1", res.ConversationID, "Oi, tudo bem?")
	require.NoError(t, err)

	require.Len(t, out.History, 2)
	assert.Equal(t, "user", out.History[0].Role)
	assert.Equal(t, "Mock response to: Oi, tudo bem?", out.History[1].Text())

	after := h.conversation(t, res.ConversationID)
	assert.Greater(t, after.AutoDeleteAt, before.AutoDeleteAt)
	assert.Equal(t, before.MessageCount+1, after.MessageCount)
	assert.Equal(t, h.clock.Now().UnixMilli(), after.LastActivity)

	assert.Equal(t, after.AutoDeleteAt, out.Status.ExpiresAt)
	assert.Equal(t, 1, out.Status.MessagesUsed)
	assert.Equal(t, 49, out.Status.MessagesRemaining)
	assert.Equal(t, time.Hour.Milliseconds(), out.Status.TimeRemaining)
}

func TestPostMessage_ExpiryStrictlyIncreasesWithoutClockProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.start(t, "user_1")

	previous := h.conversation(t, res.ConversationID).AutoDeleteAt
	for i := 0; i < 3; i++ {
		_, err := h.svc.PostMessage(ctx, "c1", res.ConversationID, "de novo")
		require.NoError(t, err)
		current := h.conversation(t, res.ConversationID).AutoDeleteAt
		assert.Greater(t, current, previous)
		previous = current
	}
}

func TestPostMessage_QuotaExceededCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.StartOrResume(ctx, "c1", StartRequest{AssistantID: "a1", ExternalUserID: "u", MaxMessages: 1})
	require.NoError(t, err)

	_, err = h.svc.PostMessage(ctx, "c1", res.ConversationID, "primeira")
	require.NoError(t, err)
	runs := h.llm.RunCount()

	_, err = h.svc.PostMessage(ctx, "c1", res.ConversationID, "segunda")
	requireKind(t, err, apierror.KindQuotaExceeded)
	assert.Equal(t, runs, h.llm.RunCount())

	conv := h.conversation(t, res.ConversationID)
	assert.Equal(t, state.StatusCompleted, conv.Status)
	assert.Equal(t, 1, conv.MessageCount)

	_, err = h.svc.PostMessage(ctx, "c1", res.ConversationID, "terceira")
	requireKind(t, err, apierror.KindInvalidState)
}

func TestPostMessage_ExpiredMakesNoLLMCall(t *testing.T) {
	h := newHarness(t)
	res := h.start(t, "user_1")

	h.clock.Advance(time.Hour + time.Second)
	_, err := h.svc.PostMessage(context.Background(), "c1", res.ConversationID, "ainda aí?")
	requireKind(t, err, apierror.KindExpired)

	assert.Equal(t, 0, h.llm.RunCount())
	assert.Equal(t, state.StatusExpired, h.conversation(t, res.ConversationID).Status)
}

func TestPostMessage_CheckOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.start(t, "user_1")

	_, err := h.svc.PostMessage(ctx, "c1", "missing", "  ")
	requireKind(t, err, apierror.KindValidation)

	_, err = h.svc.PostMessage(ctx, "c1", "missing", "oi")
	requireKind(t, err, apierror.KindNotFound)

	// An ended conversation is reported as not active even once it has expired.
	require.NoError(t, h.svc.End(ctx, "c1", res.ConversationID, ReasonAbandoned))
	h.clock.Advance(2 * time.Hour)
	_, err = h.svc.PostMessage(ctx, "c1", res.ConversationID, "oi")
	requireKind(t, err, apierror.KindInvalidState)
	assert.Equal(t, state.StatusAbandoned, h.conversation(t, res.ConversationID).Status)
}

func TestPostMessage_ResolvesToolCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.start(t, "user_1")

	h.llm.RunScript = func(threadID, assistantID string) *api.Run {
		return &api.Run{Status: api.RunRequiresAction, ToolCalls: []api.ToolCall{
			{ID: "call_1", Type: "function", Name: functions.CheckStockFunction, Arguments: `{"produto_id":"4"}`},
		}}
	}

	out, err := h.svc.PostMessage(ctx, "c1", res.ConversationID, "Tem tênis?")
	require.NoError(t, err)
	require.NotEmpty(t, out.History)

	subs := h.llm.Submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0], 1)
	assert.Equal(t, "call_1", subs[0][0].ToolCallID)
	assert.Contains(t, subs[0][0].Output, `"disponivel_para_venda":20`)
	assert.Equal(t, 1, h.conversation(t, res.ConversationID).MessageCount)
}

func TestPostMessage_LegacyRecordResolvesAssistantByProviderID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	thread, err := h.llm.CreateThread(ctx)
	require.NoError(t, err)
	now := h.clock.Now().UnixMilli()
	require.NoError(t, h.repo.PutConversation(ctx, "c1", &state.Conversation{
		ID:             "legacy",
		ThreadID:       thread,
		AssistantID:    "asst_1",
		ExternalUserID: "user_1",
		Status:         state.StatusActive,
		StartedAt:      now,
		LastActivity:   now,
		AutoDeleteAt:   now + time.Hour.Milliseconds(),
	}))

	h.llm.RunScript = func(threadID, assistantID string) *api.Run {
		return &api.Run{Status: api.RunRequiresAction, ToolCalls: []api.ToolCall{
			{ID: "call_1", Type: "function", Name: functions.CheckStockFunction, Arguments: `{"produto_id":1}`},
		}}
	}

	out, err := h.svc.PostMessage(ctx, "c1", "legacy", "Tem smartphone?")
	require.NoError(t, err)
	assert.Equal(t, 49, out.Status.MessagesRemaining)
	assert.NotContains(t, h.llm.Submissions()[0][0].Output, "erro")
}

func TestPostMessage_ProviderErrorLeavesCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.start(t, "user_1")
	before := h.conversation(t, res.ConversationID)

	h.llm.RunScript = func(threadID, assistantID string) *api.Run {
		return &api.Run{Status: api.RunFailed, LastError: "rate_limit_exceeded"}
	}

	_, err := h.svc.PostMessage(ctx, "c1", res.ConversationID, "oi")
	requireKind(t, err, apierror.KindProvider)

	after := h.conversation(t, res.ConversationID)
	assert.Equal(t, before.MessageCount, after.MessageCount)
	assert.Equal(t, before.AutoDeleteAt, after.AutoDeleteAt)
	assert.Equal(t, state.StatusActive, after.Status)
}

// --- End ---

func TestEnd_Reasons(t *testing.T) {
	tests := []struct {
		reason string
		want   state.ConversationStatus
	}{
		{"", state.StatusCompleted},
		{ReasonManual, state.StatusCompleted},
		{ReasonCompleted, state.StatusCompleted},
		{ReasonAbandoned, state.StatusAbandoned},
		{ReasonExpired, state.StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			h := newHarness(t)
			res := h.start(t, "user_1")

			require.NoError(t, h.svc.End(context.Background(), "c1", res.ConversationID, tt.reason))
			conv := h.conversation(t, res.ConversationID)
			assert.Equal(t, tt.want, conv.Status)
			assert.Equal(t, h.clock.Now().UnixMilli(), conv.EndedAt)
		})
	}
}

func TestEnd_TerminalIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.start(t, "user_1")

	require.NoError(t, h.svc.End(ctx, "c1", res.ConversationID, ReasonAbandoned))
	endedAt := h.conversation(t, res.ConversationID).EndedAt

	h.clock.Advance(time.Minute)
	require.NoError(t, h.svc.End(ctx, "c1", res.ConversationID, ReasonManual))

	conv := h.conversation(t, res.ConversationID)
	assert.Equal(t, state.StatusAbandoned, conv.Status)
	assert.Equal(t, endedAt, conv.EndedAt)
}

func TestEnd_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.start(t, "user_1")

	requireKind(t, h.svc.End(ctx, "c1", res.ConversationID, "bored"), apierror.KindValidation)
	requireKind(t, h.svc.End(ctx, "c1", "missing", ReasonManual), apierror.KindNotFound)

	// No stub record is left behind.
	_, err := h.repo.GetConversation(ctx, "c1", "missing")
	requireKind(t, err, apierror.KindNotFound)
}

// --- Cleanup, Sweep, Transcript ---

func (h *harness) seed(t *testing.T, clientID, id string, status state.ConversationStatus, autoDeleteAt time.Time) *state.Conversation {
	t.Helper()
	ctx := context.Background()
	thread, err := h.llm.CreateThread(ctx)
	require.NoError(t, err)
	require.NoError(t, h.llm.AddUserMessage(ctx, thread, "mensagem de "+id))

	conv := &state.Conversation{
		ID:             id,
		ThreadID:       thread,
		AssistantID:    "asst_1",
		ExternalUserID: "user_" + id,
		Status:         status,
		StartedAt:      autoDeleteAt.Add(-time.Hour).UnixMilli(),
		LastActivity:   autoDeleteAt.Add(-time.Hour).UnixMilli(),
		AutoDeleteAt:   autoDeleteAt.UnixMilli(),
		ExpiresIn:      60,
		MaxMessages:    50,
	}
	require.NoError(t, h.repo.PutConversation(ctx, clientID, conv))
	return conv
}

func TestCleanup_PurgesAndExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clock.Now()

	stale := h.seed(t, "c1", "stale", state.StatusCompleted, now.Add(-25*time.Hour))
	lapsed := h.seed(t, "c1", "lapsed", state.StatusActive, now.Add(-time.Minute))
	live := h.seed(t, "c1", "live", state.StatusActive, now.Add(time.Minute))
	recent := h.seed(t, "c1", "recent", state.StatusCompleted, now.Add(-23*time.Hour))

	removed, err := h.svc.Cleanup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = h.repo.GetConversation(ctx, "c1", stale.ID)
	requireKind(t, err, apierror.KindNotFound)
	assert.Contains(t, h.llm.DeletedThreads(), stale.ThreadID)

	assert.Equal(t, state.StatusExpired, h.conversation(t, lapsed.ID).Status)
	assert.Equal(t, state.StatusActive, h.conversation(t, live.ID).Status)
	assert.Equal(t, state.StatusCompleted, h.conversation(t, recent.ID).Status)

	again, err := h.svc.Cleanup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestCleanup_ArchivesTranscript(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stale := h.seed(t, "c1", "stale", state.StatusExpired, h.clock.Now().Add(-48*time.Hour))

	_, err := h.svc.Cleanup(ctx, "c1")
	require.NoError(t, err)

	transcript, err := h.svc.Transcript(ctx, "c1", stale.ID)
	require.NoError(t, err)
	assert.Equal(t, stale.ThreadID, transcript.Conversation.ThreadID)
	require.Len(t, transcript.Messages, 1)
	assert.Equal(t, "mensagem de stale", transcript.Messages[0].Text())

	_, err = h.svc.Transcript(ctx, "c1", "never")
	requireKind(t, err, apierror.KindNotFound)
}

func TestTranscripts_ListAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.seed(t, "c1", "first", state.StatusExpired, h.clock.Now().Add(-48*time.Hour))
	second := h.seed(t, "c1", "second", state.StatusCompleted, h.clock.Now().Add(-72*time.Hour))

	_, err := h.svc.Cleanup(ctx, "c1")
	require.NoError(t, err)

	ids, err := h.svc.ListTranscripts(ctx, "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	require.NoError(t, h.svc.DeleteTranscript(ctx, "c1", first.ID))
	requireKind(t, h.svc.DeleteTranscript(ctx, "c1", first.ID), apierror.KindNotFound)

	ids, err = h.svc.ListTranscripts(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)

	_, err = h.svc.ListTranscripts(ctx, "a/b")
	requireKind(t, err, apierror.KindValidation)
}

func TestCleanup_ThreadFailuresAreBestEffort(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stale := h.seed(t, "c1", "stale", state.StatusExpired, h.clock.Now().Add(-48*time.Hour))
	h.llm.ThreadErr = assert.AnError

	removed, err := h.svc.Cleanup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = h.repo.GetConversation(ctx, "c1", stale.ID)
	requireKind(t, err, apierror.KindNotFound)
}

func TestSweep_CoversAllClients(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.PutClient(ctx, &state.ClientInfo{ID: "c2", Name: "Outra", Email: "o@example.com"}))

	old := h.clock.Now().Add(-30 * time.Hour)
	h.seed(t, "c1", "x1", state.StatusCompleted, old)
	h.seed(t, "c2", "y1", state.StatusCompleted, old)
	h.seed(t, "c2", "y2", state.StatusExpired, old)

	total, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	ids, err := h.archive.List(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"y1", "y2"}, ids)
}

func TestTranscript_DisabledArchive(t *testing.T) {
	h := newHarness(t)
	svc := NewConversationService(h.repo, h.llm, nil, ConversationOptions{})

	_, err := svc.Transcript(context.Background(), "c1", "any")
	requireKind(t, err, apierror.KindNotFound)
	_, err = svc.ListTranscripts(context.Background(), "c1")
	requireKind(t, err, apierror.KindNotFound)
	requireKind(t, svc.DeleteTranscript(context.Background(), "c1", "any"), apierror.KindNotFound)
}

func TestGet_AppliesLegacyDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.PutConversation(ctx, "c1", &state.Conversation{
		ID: "old", ThreadID: "t", AssistantID: "asst_1", Status: state.StatusActive,
		AutoDeleteAt: h.clock.Now().Add(time.Minute).UnixMilli(),
	}))

	conv, err := h.svc.Get(ctx, "c1", "old")
	require.NoError(t, err)
	assert.Equal(t, 60, conv.ExpiresIn)
	assert.Equal(t, 50, conv.MaxMessages)
	assert.Equal(t, time.Minute, h.svc.TimeRemaining(conv))
}
