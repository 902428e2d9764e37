// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import "context"

// ChatMessage is one turn of a stateless chat history.
type ChatMessage struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// ChatRequest asks a model to continue a history.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
}

// ChatUsage is the token accounting of a completion.
type ChatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ChatCompletion is the model's reply to a ChatRequest.
type ChatCompletion struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	Content      string    `json:"content"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        ChatUsage `json:"usage"`
}

// ImageRequest asks an image model for pictures of a prompt.
type ImageRequest struct {
	Model  string
	Prompt string
	N      int
	Size   string // e.g. 1024x1024
}

// GeneratedImage is one generated picture, by URL or inline base64.
type GeneratedImage struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ChatClient runs stateless chat completions and image generation.
type ChatClient interface {
	CompleteChat(ctx context.Context, req ChatRequest) (*ChatCompletion, error)
	GenerateImage(ctx context.Context, req ImageRequest) ([]GeneratedImage, error)
}

// Thread is the provider's view of a thread.
type Thread struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
}

// ThreadReader reads thread metadata.
type ThreadReader interface {
	GetThread(ctx context.Context, threadID string) (*Thread, error)
}

// AssistantLister lists every provider assistant of the account.
type AssistantLister interface {
	ListAssistants(ctx context.Context) ([]*Assistant, error)
}
