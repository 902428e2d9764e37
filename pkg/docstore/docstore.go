// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package docstore defines a path-addressed JSON document store in the style
// of the Firebase Realtime Database. Values live in a single tree; a path such
// as "clients/c1/conversations/x" addresses a subtree. Empty objects and null
// values are never stored.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tadagpt/conversation-gateway/pkg/provider"
)

// ErrNotFound is returned by Update when nothing is stored at the path.
var ErrNotFound = errors.New("document not found")

// ErrInvalidPath is returned for empty paths or segments containing
// characters the Realtime Database rejects.
var ErrInvalidPath = errors.New("invalid document path")

// Providers is the registry of document store backends.
//
//	import _ "github.com/tadagpt/conversation-gateway/pkg/docstore/memory"
//	import _ "github.com/tadagpt/conversation-gateway/pkg/docstore/firebase"
//	import _ "github.com/tadagpt/conversation-gateway/pkg/docstore/postgres"
//	import _ "github.com/tadagpt/conversation-gateway/pkg/docstore/sqlite"
var Providers = provider.NewRegistry[Store]("document_store")

// Store is a path-addressed document store.
type Store interface {
	// Get decodes the value at path into v. It reports false when nothing is
	// stored there, leaving v untouched.
	Get(ctx context.Context, path string, v any) (bool, error)
	// Set replaces the value at path. Setting nil deletes it.
	Set(ctx context.Context, path string, v any) error
	// Update merges fields into the object at path. Field keys may be
	// relative paths ("a/b"); nil values delete the child. Returns
	// ErrNotFound when the path holds nothing, so an update never recreates
	// a deleted document.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the value at path. Deleting an absent path is a no-op.
	Delete(ctx context.Context, path string) error
	// Keys lists the immediate child keys of the object at path, sorted.
	Keys(ctx context.Context, path string) ([]string, error)
	Close(ctx context.Context) error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split validates path and returns its segments. Leading and trailing
// slashes are ignored.
func Split(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
		if strings.ContainsAny(seg, ".#$[]") {
			return nil, fmt.Errorf("%w: segment %q contains one of . # $ [ ]", ErrInvalidPath, seg)
		}
	}
	return segments, nil
}
