// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/engine"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
)

// Image models are picked by name prefix.
const imageModelPrefix = "dall"

var chatRoles = []string{"system", "user", "assistant"}

// WorkspaceOptions configures a WorkspaceService.
type WorkspaceOptions struct {
	ImageSize string // default 1024x1024
	Logger    *logging.Logger
	Now       func() time.Time
}

// WorkspaceService serves the account-wide playground: stateless chat,
// free-standing threads and provider assistants. None of it is scoped to a
// client, so assistant runs get no function catalog.
type WorkspaceService struct {
	repo        *state.Repository
	llm         api.Client
	interpreter RunInterpreter

	imageSize string
	logger    *logging.Logger
	now       func() time.Time
}

// NewWorkspaceService creates a WorkspaceService.
func NewWorkspaceService(repo *state.Repository, llm api.Client, interpreter RunInterpreter, opts WorkspaceOptions) *WorkspaceService {
	s := &WorkspaceService{
		repo:        repo,
		llm:         llm,
		interpreter: interpreter,
		imageSize:   opts.ImageSize,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.imageSize == "" {
		s.imageSize = "1024x1024"
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.Component("workspace")
	return s
}

// --- Chat ---

// ChatInput continues a caller-held history with one more user message.
type ChatInput struct {
	Message string            `json:"message"`
	History []api.ChatMessage `json:"history,omitempty"`
	Model   string            `json:"model"`
}

// ChatResult carries the model reply and the history including it. Images is
// set instead of Completion for image models.
type ChatResult struct {
	Completion *api.ChatCompletion
	Images     []api.GeneratedImage
	History    []api.ChatMessage
}

// Chat sends the history plus the new message to the model. Image models get
// the message as a prompt and the picture links become the reply.
func (s *WorkspaceService) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, apierror.Validation("message is required")
	}
	if in.Model == "" {
		return nil, apierror.Validation("model is required")
	}
	for i, msg := range in.History {
		if !slices.Contains(chatRoles, msg.Role) {
			return nil, apierror.Validation("history[%d] has unsupported role %q", i, msg.Role)
		}
	}

	history := append(slices.Clone(in.History), api.ChatMessage{Role: "user", Content: in.Message})
	result := &ChatResult{}

	if strings.HasPrefix(in.Model, imageModelPrefix) {
		images, err := s.llm.GenerateImage(ctx, api.ImageRequest{
			Model:  in.Model,
			Prompt: in.Message,
			N:      1,
			Size:   s.imageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("generate image: %w", err)
		}
		links := make([]string, 0, len(images))
		for _, img := range images {
			if img.URL != "" {
				links = append(links, img.URL)
			} else if img.B64JSON != "" {
				links = append(links, "data:image/png;base64,"+img.B64JSON)
			}
		}
		result.Images = images
		history = append(history, api.ChatMessage{Role: "assistant", Content: strings.Join(links, "\n")})
	} else {
		completion, err := s.llm.CompleteChat(ctx, api.ChatRequest{Model: in.Model, Messages: history})
		if err != nil {
			return nil, fmt.Errorf("complete chat: %w", err)
		}
		result.Completion = completion
		history = append(history, api.ChatMessage{Role: "assistant", Content: completion.Content})
	}

	result.History = history
	return result, nil
}

// AssistantChat posts message to a caller-managed thread, runs the assistant
// and returns the thread history oldest first.
func (s *WorkspaceService) AssistantChat(ctx context.Context, threadID, assistantID, message string) ([]api.ThreadMessage, error) {
	switch {
	case strings.TrimSpace(message) == "":
		return nil, apierror.Validation("message is required")
	case threadID == "":
		return nil, apierror.Validation("thread is required")
	case assistantID == "":
		return nil, apierror.Validation("assistant is required")
	}

	if err := s.llm.AddUserMessage(ctx, threadID, message); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	run, err := s.llm.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return s.interpreter.Interpret(ctx, engine.Scope{ThreadID: threadID}, run)
}

// --- Threads ---

// ThreadDetails is a thread with its messages oldest first.
type ThreadDetails struct {
	Thread   *api.Thread
	Messages []api.ThreadMessage
}

// CreateThread opens a provider thread and records it under threads/.
func (s *WorkspaceService) CreateThread(ctx context.Context, assistantID string) (*api.Thread, error) {
	threadID, err := s.llm.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	thread, err := s.llm.GetThread(ctx, threadID)
	if err != nil {
		s.logger.Warn("failed to read new thread", "thread_id", threadID, "error", err)
		thread = &api.Thread{ID: threadID, Object: "thread", CreatedAt: s.now().Unix()}
	}

	rec := &state.ThreadRecord{
		ID:          uuid.NewString(),
		ThreadID:    thread.ID,
		AssistantID: assistantID,
		CreatedAt:   thread.CreatedAt,
	}
	if err := s.repo.PutThread(ctx, rec); err != nil {
		if delErr := s.llm.DeleteThread(ctx, threadID); delErr != nil {
			s.logger.Warn("failed to delete unrecorded thread", "thread_id", threadID, "error", delErr)
		}
		return nil, fmt.Errorf("save thread: %w", err)
	}
	s.logger.Info("thread created", "thread_id", thread.ID, "record_id", rec.ID)
	return thread, nil
}

// GetThread returns the thread and its messages.
func (s *WorkspaceService) GetThread(ctx context.Context, threadID string) (*ThreadDetails, error) {
	thread, err := s.llm.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	messages, err := s.llm.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	slices.Reverse(messages)
	return &ThreadDetails{Thread: thread, Messages: messages}, nil
}

func (s *WorkspaceService) ListThreads(ctx context.Context) ([]*state.ThreadRecord, error) {
	return s.repo.ListThreads(ctx)
}

// DeleteThread deletes the provider thread and every record pointing at it.
func (s *WorkspaceService) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.llm.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	removed, err := s.repo.DeleteThreadRecords(ctx, threadID)
	if err != nil {
		return err
	}
	s.logger.Info("thread deleted", "thread_id", threadID, "records", removed)
	return nil
}

// --- Provider assistants ---

// ProviderAssistantRequest creates an assistant directly on the provider.
type ProviderAssistantRequest struct {
	Name         string   `json:"name"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model"`
	Tools        []string `json:"tools,omitempty"`
}

func (s *WorkspaceService) CreateProviderAssistant(ctx context.Context, req ProviderAssistantRequest) (*api.Assistant, error) {
	if req.Model == "" {
		return nil, apierror.Validation("model is required")
	}
	if err := validateTools(req.Tools); err != nil {
		return nil, err
	}
	assistant, err := s.llm.CreateAssistant(ctx, api.AssistantSpec{
		Name:         req.Name,
		Instructions: req.Instructions,
		Model:        req.Model,
		Tools:        req.Tools,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider assistant: %w", err)
	}
	s.logger.Info("provider assistant created", "provider_assistant_id", assistant.ID)
	return assistant, nil
}

func (s *WorkspaceService) GetProviderAssistant(ctx context.Context, assistantID string) (*api.Assistant, error) {
	assistant, err := s.llm.GetAssistant(ctx, assistantID)
	if err != nil {
		return nil, fmt.Errorf("get provider assistant: %w", err)
	}
	return assistant, nil
}

func (s *WorkspaceService) ListProviderAssistants(ctx context.Context) ([]*api.Assistant, error) {
	assistants, err := s.llm.ListAssistants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list provider assistants: %w", err)
	}
	return assistants, nil
}
