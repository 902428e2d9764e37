// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tadagpt/conversation-gateway/pkg/archive"
	"github.com/tadagpt/conversation-gateway/pkg/provider"
)

func init() {
	archive.Providers.Register("memory", func(_ context.Context, _ provider.Params) (archive.Archive, error) {
		return New(), nil
	})
}

// compile-time check
var _ archive.Archive = (*Store)(nil)

// Store keeps transcripts in process memory, encoded so callers never share
// state with the archive.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// New creates an empty in-memory archive.
func New() *Store {
	return &Store{items: make(map[string][]byte)}
}

func (s *Store) Put(_ context.Context, t *archive.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	key, _ := archive.Key(t.ClientID, t.ConversationID)
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = data
	return nil
}

func (s *Store) Get(_ context.Context, clientID, conversationID string) (*archive.Transcript, error) {
	key, err := archive.Key(clientID, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transcript %s: %w", key, archive.ErrNotFound)
	}

	var t archive.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", key, err)
	}
	return &t, nil
}

func (s *Store) Delete(_ context.Context, clientID, conversationID string) error {
	key, err := archive.Key(clientID, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("transcript %s: %w", key, archive.ErrNotFound)
	}
	delete(s.items, key)
	return nil
}

func (s *Store) List(_ context.Context, clientID string) ([]string, error) {
	prefix := clientID + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for key := range s.items {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			ids = append(ids, strings.TrimSuffix(rest, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
