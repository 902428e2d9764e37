// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package state

import "time"

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusActive    ConversationStatus = "active"
	StatusCompleted ConversationStatus = "completed"
	StatusAbandoned ConversationStatus = "abandoned"
	StatusExpired   ConversationStatus = "expired"
)

// Terminal reports whether the status can no longer change.
func (s ConversationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned || s == StatusExpired
}

// Conversation is a disposable chat session stored at
// clients/{clientId}/conversations/{id}. Timestamps are epoch milliseconds.
type Conversation struct {
	ID                string             `json:"-"`
	ThreadID          string             `json:"threadId"`
	AssistantID       string             `json:"assistantId"` // provider assistant id
	ClientAssistantID string             `json:"clientAssistantId,omitempty"`
	ExternalUserID    string             `json:"externalUserId"`
	Status            ConversationStatus `json:"status"`
	StartedAt         int64              `json:"startedAt"`
	LastActivity      int64              `json:"lastActivity"`
	AutoDeleteAt      int64              `json:"autoDeleteAt"`
	ExpiresIn         int                `json:"expiresIn,omitempty"` // minutes
	MessageCount      int                `json:"messageCount"`
	MaxMessages       int                `json:"maxMessages,omitempty"`
	EndedAt           int64              `json:"endedAt,omitempty"`
}

// ApplyDefaults fills limits missing from records written by older versions.
func (c *Conversation) ApplyDefaults(expiresIn, maxMessages int) {
	if c.ExpiresIn <= 0 {
		c.ExpiresIn = expiresIn
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = maxMessages
	}
}

// TTL is the sliding expiry window.
func (c *Conversation) TTL() time.Duration {
	return time.Duration(c.ExpiresIn) * time.Minute
}

// TimeRemaining is the time left before autoDeleteAt, never negative.
func (c *Conversation) TimeRemaining(now time.Time) time.Duration {
	left := time.UnixMilli(c.AutoDeleteAt).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ClientInfo is stored at clients/{clientId}/info.
type ClientInfo struct {
	ID         string `json:"-"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Plan       string `json:"plan"`
	Status     string `json:"status"`
	WebhookURL string `json:"webhookUrl,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt,omitempty"`
}

// Client plans and statuses.
const (
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"

	ClientActive    = "active"
	ClientInactive  = "inactive"
	ClientSuspended = "suspended"
)

// ClientAssistant is stored at clients/{clientId}/assistants/{id}.
type ClientAssistant struct {
	ID                string           `json:"-"`
	OpenAIAssistantID string           `json:"openaiAssistantId"`
	Name              string           `json:"name"`
	Instructions      string           `json:"instructions"`
	Description       string           `json:"description,omitempty"`
	Model             string           `json:"model"`
	Tools             []string         `json:"tools,omitempty"`
	CustomFunctions   []CustomFunction `json:"customFunctions,omitempty"`
	Status            string           `json:"status"`
	CreatedAt         int64            `json:"createdAt"`
	UpdatedAt         int64            `json:"updatedAt,omitempty"`
	DeletedAt         int64            `json:"deletedAt,omitempty"`
}

// Assistant statuses.
const (
	AssistantActive   = "active"
	AssistantInactive = "inactive"
	AssistantDeleted  = "deleted"
)

// Function returns the first custom function with the given name.
func (a *ClientAssistant) Function(name string) (*CustomFunction, bool) {
	for i := range a.CustomFunctions {
		if a.CustomFunctions[i].Name == name {
			return &a.CustomFunctions[i], true
		}
	}
	return nil, false
}

// CustomFunction is a client-defined callable exposed to the assistant as a
// function tool. Without an Endpoint it resolves to a built-in handler.
type CustomFunction struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]any    `json:"parameters,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// ThreadRecord is stored at threads/{id} for threads opened outside a
// client conversation. CreatedAt is epoch seconds, as the provider reports it.
type ThreadRecord struct {
	ID          string `json:"-"`
	ThreadID    string `json:"threadId"`
	AssistantID string `json:"assistantId,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}
