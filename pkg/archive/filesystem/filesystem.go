// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tadagpt/conversation-gateway/pkg/archive"
	"github.com/tadagpt/conversation-gateway/pkg/provider"
)

func init() {
	archive.Providers.Register("filesystem", func(_ context.Context, params provider.Params) (archive.Archive, error) {
		return New(params.String("base_dir", "transcripts"))
	})
}

// compile-time check
var _ archive.Archive = (*Store)(nil)

// Store keeps transcripts as JSON files.
//
// Layout:
//
//	<baseDir>/<client_id>/<conversation_id>.json
type Store struct {
	baseDir string
}

// New creates a filesystem archive, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) path(clientID, conversationID string) (string, error) {
	key, err := archive.Key(clientID, conversationID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(key)), nil
}

// Put writes the transcript atomically (temp file + rename).
func (s *Store) Put(_ context.Context, t *archive.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	path, _ := s.path(t.ClientID, t.ConversationID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create client dir: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename transcript: %w", err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, clientID, conversationID string) (*archive.Transcript, error) {
	path, err := s.path(clientID, conversationID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("transcript %s/%s: %w", clientID, conversationID, archive.ErrNotFound)
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var t archive.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", path, err)
	}
	return &t, nil
}

func (s *Store) Delete(_ context.Context, clientID, conversationID string) error {
	path, err := s.path(clientID, conversationID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("transcript %s/%s: %w", clientID, conversationID, archive.ErrNotFound)
		}
		return fmt.Errorf("remove transcript: %w", err)
	}
	return nil
}

func (s *Store) List(_ context.Context, clientID string) ([]string, error) {
	if _, err := archive.Key(clientID, "x"); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.baseDir, clientID))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read client dir: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
