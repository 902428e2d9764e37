// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"firebase.google.com/go/v4/db"

	"github.com/tadagpt/conversation-gateway/pkg/docstore"
	"github.com/tadagpt/conversation-gateway/pkg/firebaseapp"
	"github.com/tadagpt/conversation-gateway/pkg/provider"
)

func init() {
	docstore.Providers.Register("firebase", func(ctx context.Context, params provider.Params) (docstore.Store, error) {
		url, err := params.Require("database_url")
		if err != nil {
			return nil, err
		}
		return New(ctx, firebaseapp.Options{
			ProjectID:       params["project_id"],
			DatabaseURL:     url,
			CredentialsFile: params["credentials_file"],
		})
	})
}

// compile-time check
var _ docstore.Store = (*Store)(nil)

// Store implements docstore.Store on the Firebase Realtime Database.
type Store struct {
	client *db.Client
}

// New connects to the Realtime Database configured in opts.
func New(ctx context.Context, opts firebaseapp.Options) (*Store, error) {
	app, err := firebaseapp.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase database: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) ref(path string) (*db.Ref, []string, error) {
	segments, err := docstore.Split(path)
	if err != nil {
		return nil, nil, err
	}
	return s.client.NewRef(docstore.Join(segments...)), segments, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func (s *Store) Get(ctx context.Context, path string, v any) (bool, error) {
	ref, _, err := s.ref(path)
	if err != nil {
		return false, err
	}
	var raw json.RawMessage
	if err := ref.Get(ctx, &raw); err != nil {
		return false, fmt.Errorf("firebase get %s: %w", path, err)
	}
	if isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, path string, v any) error {
	ref, _, err := s.ref(path)
	if err != nil {
		return err
	}
	value, err := docstore.Normalize(v)
	if err != nil {
		return err
	}
	if value == nil {
		return s.Delete(ctx, path)
	}
	if err := ref.Set(ctx, value); err != nil {
		return fmt.Errorf("firebase set %s: %w", path, err)
	}
	return nil
}

// Update runs as a transaction so that a concurrently deleted document is
// reported as missing instead of being recreated with only the given fields.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	ref, _, err := s.ref(path)
	if err != nil {
		return err
	}

	type change struct {
		segments []string
		value    any
	}
	changes := make([]change, 0, len(fields))
	for key, raw := range fields {
		rel, err := docstore.Split(key)
		if err != nil {
			return err
		}
		value, err := docstore.Normalize(raw)
		if err != nil {
			return err
		}
		changes = append(changes, change{segments: rel, value: value})
	}

	err = ref.Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var current any
		if err := node.Unmarshal(&current); err != nil {
			return nil, err
		}
		doc, ok := current.(map[string]any)
		if current == nil {
			return nil, docstore.ErrNotFound
		}
		if !ok {
			doc = map[string]any{}
		}
		for _, c := range changes {
			setIn(doc, c.segments, c.value)
		}
		return doc, nil
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("firebase update %s: %w", path, err)
	}
	return nil
}

func setIn(doc map[string]any, segments []string, value any) {
	node := doc
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			if value == nil {
				return
			}
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	last := segments[len(segments)-1]
	if value == nil {
		delete(node, last)
		return
	}
	node[last] = value
}

func (s *Store) Delete(ctx context.Context, path string) error {
	ref, _, err := s.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("firebase delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, path string) ([]string, error) {
	ref, _, err := s.ref(path)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := ref.GetShallow(ctx, &raw); err != nil {
		return nil, fmt.Errorf("firebase shallow get %s: %w", path, err)
	}
	var children map[string]json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &children) != nil {
		return nil, nil
	}
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op; the Admin SDK holds no connection to release.
func (s *Store) Close(_ context.Context) error {
	return nil
}
