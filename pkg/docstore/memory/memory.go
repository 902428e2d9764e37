// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tadagpt/conversation-gateway/pkg/docstore"
	"github.com/tadagpt/conversation-gateway/pkg/provider"
)

func init() {
	docstore.Providers.Register("memory", func(_ context.Context, _ provider.Params) (docstore.Store, error) {
		return New(), nil
	})
}

// compile-time check
var _ docstore.Store = (*Store)(nil)

// Store keeps the document tree in process memory.
type Store struct {
	mu   sync.RWMutex
	root map[string]any
}

// New creates an empty in-memory document store.
func New() *Store {
	return &Store{root: map[string]any{}}
}

// lookup returns the node at segments. Caller holds the lock.
func (s *Store) lookup(segments []string) (any, bool) {
	var node any = s.root
	for _, seg := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// put stores value at segments, replacing scalars along the way. Caller holds the lock.
func (s *Store) put(segments []string, value any) {
	if value == nil {
		s.remove(segments)
		return
	}
	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// remove deletes the node at segments and prunes emptied parents. Caller holds the lock.
func (s *Store) remove(segments []string) {
	parents := make([]map[string]any, 0, len(segments))
	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segments[len(segments)-1])
	for i := len(parents) - 1; i >= 0 && len(node) == 0; i-- {
		delete(parents[i], segments[i])
		node = parents[i]
	}
}

func (s *Store) Get(_ context.Context, path string, v any) (bool, error) {
	segments, err := docstore.Split(path)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.lookup(segments)
	if !ok {
		return false, nil
	}
	return true, docstore.Decode(node, v)
}

func (s *Store) Set(_ context.Context, path string, v any) error {
	segments, err := docstore.Split(path)
	if err != nil {
		return err
	}
	value, err := docstore.Normalize(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(segments, value)
	return nil
}

func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	segments, err := docstore.Split(path)
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
		full := append(append([]string{}, segments...), rel...)
		changes = append(changes, change{segments: full, value: value})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.lookup(segments)
	if !ok {
		return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}
	if _, isMap := node.(map[string]any); !isMap {
		s.remove(segments)
	}
	for _, c := range changes {
		s.put(c.segments, c.value)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	segments, err := docstore.Split(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(segments)
	return nil
}

func (s *Store) Keys(_ context.Context, path string) ([]string, error) {
	segments, err := docstore.Split(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.lookup(segments)
	if !ok {
		return nil, nil
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
