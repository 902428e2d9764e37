// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tadagpt/conversation-gateway/pkg/archive"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/engine"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
	"github.com/tadagpt/conversation-gateway/pkg/observability/metrics"
)

// RunInterpreter turns a settled run into thread history.
// Implemented by engine.Engine.
type RunInterpreter interface {
	Interpret(ctx context.Context, scope engine.Scope, run *api.Run) ([]api.ThreadMessage, error)
}

// End reasons accepted by ConversationService.End.
const (
	ReasonManual    = "manual"
	ReasonCompleted = "completed"
	ReasonAbandoned = "abandoned"
	ReasonExpired   = "expired"
)

// ConversationOptions configures a ConversationService.
type ConversationOptions struct {
	DefaultExpiresIn   int           // minutes, default 60
	DefaultMaxMessages int           // default 50
	PurgeAfter         time.Duration // default 24h
	Archive            archive.Archive
	Logger             *logging.Logger
	Metrics            *metrics.Metrics
	Now                func() time.Time
}

// ConversationService manages the lifecycle of disposable conversations.
// It is the only writer of conversation records.
type ConversationService struct {
	repo        *state.Repository
	llm         api.AssistantsClient
	interpreter RunInterpreter

	expiresIn   int
	maxMessages int
	purgeAfter  time.Duration
	archive     archive.Archive
	logger      *logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewConversationService creates a ConversationService.
func NewConversationService(repo *state.Repository, llm api.AssistantsClient, interpreter RunInterpreter, opts ConversationOptions) *ConversationService {
	s := &ConversationService{
		repo:        repo,
		llm:         llm,
		interpreter: interpreter,
		expiresIn:   opts.DefaultExpiresIn,
		maxMessages: opts.DefaultMaxMessages,
		purgeAfter:  opts.PurgeAfter,
		archive:     opts.Archive,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
	if s.expiresIn <= 0 {
		s.expiresIn = 60
	}
	if s.maxMessages <= 0 {
		s.maxMessages = 50
	}
	if s.purgeAfter <= 0 {
		s.purgeAfter = 24 * time.Hour
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.Component("conversations")
	return s
}

// StartRequest opens or resumes a conversation.
type StartRequest struct {
	AssistantID    string `json:"assistantId"` // client-scoped assistant id
	ExternalUserID string `json:"externalUserId"`
	ExpiresIn      int    `json:"expiresIn,omitempty"`   // minutes; 0 means default
	MaxMessages    int    `json:"maxMessages,omitempty"` // 0 means default
}

// StartResult describes the conversation a caller should continue with.
// Times are epoch milliseconds.
type StartResult struct {
	ConversationID string
	ThreadID       string
	ExpiresAt      int64
	TimeRemaining  int64
	MaxMessages    int
	Resumed        bool
}

// StartOrResume returns the caller's live conversation with the assistant, or
// opens a new one backed by a fresh thread.
func (s *ConversationService) StartOrResume(ctx context.Context, clientID string, req StartRequest) (*StartResult, error) {
	if req.AssistantID == "" || req.ExternalUserID == "" {
		return nil, apierror.Validation("assistantId and externalUserId are required")
	}
	if req.ExpiresIn < 0 || req.MaxMessages < 0 {
		return nil, apierror.Validation("expiresIn and maxMessages must not be negative")
	}
	if req.ExpiresIn == 0 {
		req.ExpiresIn = s.expiresIn
	}
	if req.MaxMessages == 0 {
		req.MaxMessages = s.maxMessages
	}

	exists, err := s.repo.ClientExists(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierror.NotFound("client %s not found", clientID)
	}

	assistant, err := s.repo.GetAssistant(ctx, clientID, req.AssistantID)
	if err != nil {
		return nil, err
	}
	if assistant.Status == state.AssistantDeleted {
		return nil, apierror.NotFound("assistant %s not found", req.AssistantID)
	}

	conversations, err := s.repo.ListConversations(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	now := s.now()
	nowMs := now.UnixMilli()
	for _, conv := range conversations {
		if conv.ExternalUserID == req.ExternalUserID &&
			conv.AssistantID == assistant.OpenAIAssistantID &&
			conv.Status == state.StatusActive &&
			conv.AutoDeleteAt > nowMs {
			conv.ApplyDefaults(s.expiresIn, s.maxMessages)
			s.metrics.ConversationStarted("resumed")
			s.logger.Debug("resuming conversation",
				"client_id", clientID,
				"conversation_id", conv.ID,
			)
			return &StartResult{
				ConversationID: conv.ID,
				ThreadID:       conv.ThreadID,
				ExpiresAt:      conv.AutoDeleteAt,
				TimeRemaining:  conv.TimeRemaining(now).Milliseconds(),
				MaxMessages:    conv.MaxMessages,
				Resumed:        true,
			}, nil
		}
	}

	threadID, err := s.llm.CreateThread(ctx)
	if err != nil {
		s.metrics.ConversationStarted("error")
		return nil, fmt.Errorf("create thread: %w", err)
	}

	conv := &state.Conversation{
		ID:                uuid.NewString(),
		ThreadID:          threadID,
		AssistantID:       assistant.OpenAIAssistantID,
		ClientAssistantID: assistant.ID,
		ExternalUserID:    req.ExternalUserID,
		Status:            state.StatusActive,
		StartedAt:         nowMs,
		LastActivity:      nowMs,
		ExpiresIn:         req.ExpiresIn,
		MaxMessages:       req.MaxMessages,
	}
	conv.AutoDeleteAt = nowMs + conv.TTL().Milliseconds()

	if err := s.repo.PutConversation(ctx, clientID, conv); err != nil {
		s.metrics.ConversationStarted("error")
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	s.metrics.ConversationStarted("created")
	s.logger.Info("conversation started",
		"client_id", clientID,
		"conversation_id", conv.ID,
		"thread_id", threadID,
		"assistant_id", assistant.ID,
	)

	return &StartResult{
		ConversationID: conv.ID,
		ThreadID:       threadID,
		ExpiresAt:      conv.AutoDeleteAt,
		TimeRemaining:  conv.TTL().Milliseconds(),
		MaxMessages:    conv.MaxMessages,
	}, nil
}

// ConversationStatus is the budget left after a message. Times are epoch
// milliseconds.
type ConversationStatus struct {
	ExpiresAt         int64 `json:"expiresAt"`
	TimeRemaining     int64 `json:"timeRemaining"`
	MessagesUsed      int   `json:"messagesUsed"`
	MessagesRemaining int   `json:"messagesRemaining"`
}

// MessageResult is the outcome of an accepted message.
type MessageResult struct {
	History []api.ThreadMessage `json:"history"`
	Status  ConversationStatus  `json:"conversationStatus"`
}

// PostMessage sends message to the conversation's thread, runs the assistant
// and returns the thread history, oldest first. Each accepted message slides
// the expiry window forward and consumes one unit of the message budget.
func (s *ConversationService) PostMessage(ctx context.Context, clientID, conversationID, message string) (*MessageResult, error) {
	if strings.TrimSpace(message) == "" {
		s.metrics.MessagePosted("rejected")
		return nil, apierror.Validation("message is required")
	}

	conv, err := s.repo.GetConversation(ctx, clientID, conversationID)
	if err != nil {
		s.metrics.MessagePosted("rejected")
		return nil, err
	}
	conv.ApplyDefaults(s.expiresIn, s.maxMessages)

	if conv.Status != state.StatusActive {
		s.metrics.MessagePosted("rejected")
		return nil, apierror.InvalidState("conversation %s is %s", conversationID, conv.Status)
	}

	now := s.now()
	if now.UnixMilli() > conv.AutoDeleteAt {
		s.transition(ctx, clientID, conversationID, state.StatusExpired)
		s.metrics.MessagePosted("expired")
		return nil, apierror.Expired("conversation %s has expired", conversationID)
	}

	if conv.MessageCount >= conv.MaxMessages {
		s.transition(ctx, clientID, conversationID, state.StatusCompleted)
		s.metrics.MessagePosted("quota_exceeded")
		return nil, apierror.QuotaExceeded("conversation %s reached its limit of %d messages", conversationID, conv.MaxMessages)
	}

	scope, err := s.scope(ctx, clientID, conv)
	if err != nil {
		s.metrics.MessagePosted("error")
		return nil, err
	}

	if err := s.llm.AddUserMessage(ctx, conv.ThreadID, message); err != nil {
		s.metrics.MessagePosted("error")
		return nil, fmt.Errorf("add message: %w", err)
	}

	run, err := s.llm.CreateRun(ctx, conv.ThreadID, conv.AssistantID)
	if err != nil {
		s.metrics.MessagePosted("error")
		return nil, fmt.Errorf("create run: %w", err)
	}

	history, err := s.interpreter.Interpret(ctx, scope, run)
	if err != nil {
		s.metrics.MessagePosted("error")
		return nil, err
	}

	// The clock is read again: the run may have taken a while.
	now = s.now()
	nowMs := now.UnixMilli()
	autoDeleteAt := nowMs + conv.TTL().Milliseconds()
	if autoDeleteAt <= conv.AutoDeleteAt {
		autoDeleteAt = conv.AutoDeleteAt + 1
	}
	used := conv.MessageCount + 1

	err = s.repo.UpdateConversation(ctx, clientID, conversationID, map[string]any{
		"lastActivity": nowMs,
		"autoDeleteAt": autoDeleteAt,
		"messageCount": used,
	})
	if err != nil {
		s.metrics.MessagePosted("error")
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	s.metrics.MessagePosted("ok")

	return &MessageResult{
		History: history,
		Status: ConversationStatus{
			ExpiresAt:         autoDeleteAt,
			TimeRemaining:     autoDeleteAt - nowMs,
			MessagesUsed:      used,
			MessagesRemaining: conv.MaxMessages - used,
		},
	}, nil
}

// scope resolves whose function catalog the run's tool calls use. Records
// written before the local id was stored fall back to a provider id scan.
func (s *ConversationService) scope(ctx context.Context, clientID string, conv *state.Conversation) (engine.Scope, error) {
	scope := engine.Scope{
		ClientID:    clientID,
		AssistantID: conv.ClientAssistantID,
		ThreadID:    conv.ThreadID,
	}
	if scope.AssistantID != "" {
		return scope, nil
	}

	assistant, err := s.repo.FindAssistantByProviderID(ctx, clientID, conv.AssistantID)
	if err != nil {
		if !apierror.Is(err, apierror.KindNotFound) {
			return scope, err
		}
		// Tool calls will fail individually with a lookup error.
		s.logger.Warn("no local assistant for conversation",
			"client_id", clientID,
			"conversation_id", conv.ID,
			"provider_assistant_id", conv.AssistantID,
		)
		return scope, nil
	}
	scope.AssistantID = assistant.ID
	return scope, nil
}

// transition moves a conversation to a terminal status. Failures are logged:
// the caller is already reporting the condition that triggered it.
func (s *ConversationService) transition(ctx context.Context, clientID, conversationID string, status state.ConversationStatus) {
	err := s.repo.UpdateConversation(ctx, clientID, conversationID, map[string]any{"status": status})
	if err != nil {
		s.logger.Warn("failed to update conversation status",
			"client_id", clientID,
			"conversation_id", conversationID,
			"status", status,
			"error", err,
		)
	}
}

// End closes a conversation. "manual" records it as completed. Ending a
// conversation that is already over changes nothing.
func (s *ConversationService) End(ctx context.Context, clientID, conversationID, reason string) error {
	if reason == "" {
		reason = ReasonManual
	}
	var status state.ConversationStatus
	switch reason {
	case ReasonManual, ReasonCompleted:
		status = state.StatusCompleted
	case ReasonAbandoned:
		status = state.StatusAbandoned
	case ReasonExpired:
		status = state.StatusExpired
	default:
		return apierror.Validation("invalid reason %q", reason)
	}

	conv, err := s.repo.GetConversation(ctx, clientID, conversationID)
	if err != nil {
		return err
	}
	if conv.Status.Terminal() {
		return nil
	}

	err = s.repo.UpdateConversation(ctx, clientID, conversationID, map[string]any{
		"status":  status,
		"endedAt": s.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	s.logger.Info("conversation ended",
		"client_id", clientID,
		"conversation_id", conversationID,
		"reason", reason,
	)
	return nil
}

// Cleanup purges the client's conversations whose expiry is older than the
// purge window and marks lapsed active ones as expired. It returns the number
// of purged conversations.
func (s *ConversationService) Cleanup(ctx context.Context, clientID string) (int, error) {
	conversations, err := s.repo.ListConversations(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("list conversations: %w", err)
	}

	now := s.now()
	nowMs := now.UnixMilli()
	purgeBefore := nowMs - s.purgeAfter.Milliseconds()

	removed := 0
	for _, conv := range conversations {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		switch {
		case conv.AutoDeleteAt < purgeBefore:
			if err := s.purge(ctx, clientID, conv, now); err != nil {
				return removed, err
			}
			removed++
		case conv.AutoDeleteAt < nowMs && conv.Status == state.StatusActive:
			err := s.repo.UpdateConversation(ctx, clientID, conv.ID, map[string]any{
				"status": state.StatusExpired,
			})
			if err != nil && !apierror.Is(err, apierror.KindNotFound) {
				return removed, fmt.Errorf("expire conversation %s: %w", conv.ID, err)
			}
		}
	}

	s.metrics.CleanupRemoved(removed)
	if removed > 0 {
		s.logger.Info("conversations purged", "client_id", clientID, "count", removed)
	}
	return removed, nil
}

// purge archives the conversation and releases its thread, both best effort,
// then deletes the record.
func (s *ConversationService) purge(ctx context.Context, clientID string, conv *state.Conversation, now time.Time) error {
	if s.archive != nil {
		t := &archive.Transcript{
			ClientID:       clientID,
			ConversationID: conv.ID,
			Conversation:   conv,
			ArchivedAt:     now.UTC(),
		}
		messages, err := s.llm.ListMessages(ctx, conv.ThreadID)
		if err != nil {
			s.logger.Warn("failed to read thread for archive",
				"conversation_id", conv.ID,
				"thread_id", conv.ThreadID,
				"error", err,
			)
		} else {
			slices.Reverse(messages)
			t.Messages = messages
		}
		if err := s.archive.Put(ctx, t); err != nil {
			s.logger.Warn("failed to archive conversation",
				"conversation_id", conv.ID,
				"error", err,
			)
		}
	}

	if err := s.llm.DeleteThread(ctx, conv.ThreadID); err != nil {
		s.logger.Warn("failed to delete thread",
			"conversation_id", conv.ID,
			"thread_id", conv.ThreadID,
			"error", err,
		)
	}

	return s.repo.DeleteConversation(ctx, clientID, conv.ID)
}

// Sweep runs Cleanup for every client and returns the total purged. A failing
// client is logged and skipped.
func (s *ConversationService) Sweep(ctx context.Context) (int, error) {
	clientIDs, err := s.repo.ListClientIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list clients: %w", err)
	}

	total := 0
	for _, clientID := range clientIDs {
		n, err := s.Cleanup(ctx, clientID)
		total += n
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return total, err
			}
			s.logger.Error("cleanup failed", "client_id", clientID, "error", err)
		}
	}
	return total, nil
}

// Get returns a conversation record.
func (s *ConversationService) Get(ctx context.Context, clientID, conversationID string) (*state.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, clientID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.ApplyDefaults(s.expiresIn, s.maxMessages)
	return conv, nil
}

// TimeRemaining is the time left on conv at the service clock.
func (s *ConversationService) TimeRemaining(conv *state.Conversation) time.Duration {
	return conv.TimeRemaining(s.now())
}

// Transcript returns the archived transcript of a purged conversation.
func (s *ConversationService) Transcript(ctx context.Context, clientID, conversationID string) (*archive.Transcript, error) {
	if s.archive == nil {
		return nil, apierror.NotFound("transcript archive is disabled")
	}
	t, err := s.archive.Get(ctx, clientID, conversationID)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return nil, apierror.NotFound("transcript of conversation %s not found", conversationID)
		}
		return nil, err
	}
	return t, nil
}

// ListTranscripts returns the ids of the client's archived conversations.
func (s *ConversationService) ListTranscripts(ctx context.Context, clientID string) ([]string, error) {
	if s.archive == nil {
		return nil, apierror.NotFound("transcript archive is disabled")
	}
	if _, err := archive.Key(clientID, "_"); err != nil {
		return nil, apierror.Validation("invalid identifier").Wrap(err)
	}
	ids, err := s.archive.List(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return ids, nil
}

// DeleteTranscript removes an archived transcript.
func (s *ConversationService) DeleteTranscript(ctx context.Context, clientID, conversationID string) error {
	if s.archive == nil {
		return apierror.NotFound("transcript archive is disabled")
	}
	if err := s.archive.Delete(ctx, clientID, conversationID); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return apierror.NotFound("transcript of conversation %s not found", conversationID)
		}
		return err
	}
	s.logger.Info("deleted transcript",
		"client_id", clientID,
		"conversation_id", conversationID,
	)
	return nil
}
