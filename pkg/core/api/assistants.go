// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"strings"
)

// RunStatus is the provider-side state of a run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Settled reports whether polling can stop: the run either finished or is
// waiting for tool outputs.
func (s RunStatus) Settled() bool {
	switch s {
	case RunQueued, RunInProgress, RunCancelling:
		return false
	default:
		return true
	}
}

// Run is one execution of an assistant over a thread.
type Run struct {
	ID          string
	ThreadID    string
	AssistantID string
	Status      RunStatus
	ToolCalls   []ToolCall // pending calls when Status is requires_action
	LastError   string
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Type      string // "function"
	Name      string
	Arguments string // JSON-encoded
}

// ToolOutput answers one ToolCall.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// ThreadMessage is a message in a provider thread, shaped like the provider's
// own wire format so it can be handed to callers unchanged.
type ThreadMessage struct {
	ID          string           `json:"id"`
	Object      string           `json:"object"`
	CreatedAt   int64            `json:"created_at"`
	ThreadID    string           `json:"thread_id"`
	Role        string           `json:"role"`
	Content     []MessageContent `json:"content"`
	AssistantID string           `json:"assistant_id,omitempty"`
	RunID       string           `json:"run_id,omitempty"`
}

// MessageContent is one content part of a thread message.
type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// MessageText is the text payload of a content part.
type MessageText struct {
	Value       string `json:"value"`
	Annotations []any  `json:"annotations"`
}

// Text concatenates the text parts of the message.
func (m ThreadMessage) Text() string {
	var parts []string
	for _, c := range m.Content {
		if c.Text != nil {
			parts = append(parts, c.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

// NewTextMessage builds a thread message with a single text part.
func NewTextMessage(id, threadID, role, text string, createdAt int64) ThreadMessage {
	return ThreadMessage{
		ID:        id,
		Object:    "thread.message",
		CreatedAt: createdAt,
		ThreadID:  threadID,
		Role:      role,
		Content: []MessageContent{{
			Type: "text",
			Text: &MessageText{Value: text, Annotations: []any{}},
		}},
	}
}

// AssistantsClient drives threads and runs.
type AssistantsClient interface {
	CreateThread(ctx context.Context) (string, error)
	DeleteThread(ctx context.Context, threadID string) error
	AddUserMessage(ctx context.Context, threadID, content string) error
	// CreateRun starts a run and polls until it settles.
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	// SubmitToolOutputs sends all outputs in one batch and polls until the
	// run settles again.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
	// ListMessages returns the thread's messages newest first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// VisionRequest asks a vision-capable model about an image.
type VisionRequest struct {
	Model     string
	Prompt    string
	ImageURL  string
	MaxTokens int
}

// VisionClient runs a vision chat completion and returns the reply text.
type VisionClient interface {
	DescribeImage(ctx context.Context, req VisionRequest) (string, error)
}

// FunctionDef declares a function tool.
type FunctionDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// AssistantSpec is the desired provider-side assistant configuration.
type AssistantSpec struct {
	Name         string
	Instructions string
	Description  string
	Model        string
	Tools        []string // built-in tool types: code_interpreter, file_search
	Functions    []FunctionDef
}

// Assistant is the provider's view of an assistant.
type Assistant struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model"`
	Tools        []string `json:"tools"`
	CreatedAt    int64    `json:"created_at"`
}

// AssistantAdmin manages provider assistants.
type AssistantAdmin interface {
	CreateAssistant(ctx context.Context, spec AssistantSpec) (*Assistant, error)
	UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) (*Assistant, error)
	GetAssistant(ctx context.Context, assistantID string) (*Assistant, error)
	DeleteAssistant(ctx context.Context, assistantID string) error
}

// Client is everything the gateway needs from the provider.
type Client interface {
	AssistantsClient
	ThreadReader
	VisionClient
	ChatClient
	AssistantAdmin
	AssistantLister
}
