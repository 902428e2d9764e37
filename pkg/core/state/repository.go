// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/docstore"
)

// Repository gives typed access to the records of a document store:
//
//	clients/{clientId}/info
//	clients/{clientId}/assistants/{assistantId}
//	clients/{clientId}/conversations/{conversationId}
//	threads/{id}
type Repository struct {
	store docstore.Store
}

// NewRepository creates a Repository over store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func clientPath(clientID string) string {
	return docstore.Join("clients", clientID)
}

func infoPath(clientID string) string {
	return docstore.Join("clients", clientID, "info")
}

func assistantsPath(clientID string) string {
	return docstore.Join("clients", clientID, "assistants")
}

func assistantPath(clientID, assistantID string) string {
	return docstore.Join("clients", clientID, "assistants", assistantID)
}

func conversationsPath(clientID string) string {
	return docstore.Join("clients", clientID, "conversations")
}

func conversationPath(clientID, conversationID string) string {
	return docstore.Join("clients", clientID, "conversations", conversationID)
}

// translate turns store-level misses and bad ids into taxonomy errors.
func translate(err error, notFound *apierror.Error) error {
	switch {
	case err == nil:
		return nil
	case notFound != nil && errors.Is(err, docstore.ErrNotFound):
		return notFound
	case errors.Is(err, docstore.ErrInvalidPath):
		return apierror.Validation("invalid identifier").Wrap(err)
	default:
		return err
	}
}

// ClientExists reports whether anything is stored under the client.
func (r *Repository) ClientExists(ctx context.Context, clientID string) (bool, error) {
	keys, err := r.store.Keys(ctx, clientPath(clientID))
	if err != nil {
		return false, translate(err, nil)
	}
	return len(keys) > 0, nil
}

// ListClientIDs returns every client id in the store.
func (r *Repository) ListClientIDs(ctx context.Context) ([]string, error) {
	return r.store.Keys(ctx, "clients")
}

func (r *Repository) GetClient(ctx context.Context, clientID string) (*ClientInfo, error) {
	var info ClientInfo
	found, err := r.store.Get(ctx, infoPath(clientID), &info)
	if err != nil {
		return nil, translate(err, nil)
	}
	if !found {
		return nil, apierror.NotFound("client %s not found", clientID)
	}
	info.ID = clientID
	return &info, nil
}

func (r *Repository) PutClient(ctx context.Context, info *ClientInfo) error {
	return translate(r.store.Set(ctx, infoPath(info.ID), info), nil)
}

func (r *Repository) UpdateClient(ctx context.Context, clientID string, fields map[string]any) error {
	err := r.store.Update(ctx, infoPath(clientID), fields)
	return translate(err, apierror.NotFound("client %s not found", clientID))
}

func (r *Repository) GetAssistant(ctx context.Context, clientID, assistantID string) (*ClientAssistant, error) {
	var assistant ClientAssistant
	found, err := r.store.Get(ctx, assistantPath(clientID, assistantID), &assistant)
	if err != nil {
		return nil, translate(err, nil)
	}
	if !found {
		return nil, apierror.NotFound("assistant %s not found", assistantID)
	}
	assistant.ID = assistantID
	return &assistant, nil
}

func (r *Repository) PutAssistant(ctx context.Context, clientID string, assistant *ClientAssistant) error {
	return translate(r.store.Set(ctx, assistantPath(clientID, assistant.ID), assistant), nil)
}

func (r *Repository) UpdateAssistant(ctx context.Context, clientID, assistantID string, fields map[string]any) error {
	err := r.store.Update(ctx, assistantPath(clientID, assistantID), fields)
	return translate(err, apierror.NotFound("assistant %s not found", assistantID))
}

// ListAssistants returns the client's assistants ordered by creation time.
func (r *Repository) ListAssistants(ctx context.Context, clientID string) ([]*ClientAssistant, error) {
	var byID map[string]*ClientAssistant
	if _, err := r.store.Get(ctx, assistantsPath(clientID), &byID); err != nil {
		return nil, translate(err, nil)
	}
	out := make([]*ClientAssistant, 0, len(byID))
	for id, a := range byID {
		a.ID = id
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindAssistantByProviderID returns the client's assistant mirrored by the
// given provider assistant id.
func (r *Repository) FindAssistantByProviderID(ctx context.Context, clientID, providerID string) (*ClientAssistant, error) {
	assistants, err := r.ListAssistants(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for _, a := range assistants {
		if a.OpenAIAssistantID == providerID {
			return a, nil
		}
	}
	return nil, apierror.NotFound("no assistant of client %s maps to %s", clientID, providerID)
}

func (r *Repository) GetConversation(ctx context.Context, clientID, conversationID string) (*Conversation, error) {
	var conv Conversation
	found, err := r.store.Get(ctx, conversationPath(clientID, conversationID), &conv)
	if err != nil {
		return nil, translate(err, nil)
	}
	if !found {
		return nil, apierror.NotFound("conversation %s not found", conversationID)
	}
	conv.ID = conversationID
	return &conv, nil
}

func (r *Repository) PutConversation(ctx context.Context, clientID string, conv *Conversation) error {
	return translate(r.store.Set(ctx, conversationPath(clientID, conv.ID), conv), nil)
}

// UpdateConversation merges fields into an existing conversation. It never
// recreates a conversation deleted in the meantime.
func (r *Repository) UpdateConversation(ctx context.Context, clientID, conversationID string, fields map[string]any) error {
	err := r.store.Update(ctx, conversationPath(clientID, conversationID), fields)
	return translate(err, apierror.NotFound("conversation %s not found", conversationID))
}

func (r *Repository) DeleteConversation(ctx context.Context, clientID, conversationID string) error {
	if err := r.store.Delete(ctx, conversationPath(clientID, conversationID)); err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, translate(err, nil))
	}
	return nil
}

// ListConversations returns the client's conversations ordered by start time.
func (r *Repository) ListConversations(ctx context.Context, clientID string) ([]*Conversation, error) {
	var byID map[string]*Conversation
	if _, err := r.store.Get(ctx, conversationsPath(clientID), &byID); err != nil {
		return nil, translate(err, nil)
	}
	out := make([]*Conversation, 0, len(byID))
	for id, c := range byID {
		c.ID = id
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt < out[j].StartedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func threadPath(id string) string {
	return docstore.Join("threads", id)
}

func (r *Repository) PutThread(ctx context.Context, rec *ThreadRecord) error {
	return translate(r.store.Set(ctx, threadPath(rec.ID), rec), nil)
}

// ListThreads returns the thread records ordered by creation time.
func (r *Repository) ListThreads(ctx context.Context) ([]*ThreadRecord, error) {
	var byID map[string]*ThreadRecord
	if _, err := r.store.Get(ctx, "threads", &byID); err != nil {
		return nil, translate(err, nil)
	}
	out := make([]*ThreadRecord, 0, len(byID))
	for id, t := range byID {
		t.ID = id
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteThreadRecords removes every record pointing at the provider thread
// and reports how many were removed.
func (r *Repository) DeleteThreadRecords(ctx context.Context, threadID string) (int, error) {
	records, err := r.ListThreads(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range records {
		if rec.ThreadID != threadID {
			continue
		}
		if err := r.store.Delete(ctx, threadPath(rec.ID)); err != nil {
			return removed, fmt.Errorf("delete thread record %s: %w", rec.ID, translate(err, nil))
		}
		removed++
	}
	return removed, nil
}
