// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider implements a generic factory registry for pluggable backends.
//
// The document store and the transcript archive each create a typed Registry
// and their implementations self-register via init(). Blank-import an
// implementation package to activate it, then call Registry.New(name, params).
package provider

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Params carries backend settings taken from configuration. Factories read the
// keys they need and ignore the rest.
type Params map[string]string

// String returns the value for key, or def when it is unset or empty.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool parses key as a boolean, falling back to def.
func (p Params) Bool(key string, def bool) bool {
	v, err := strconv.ParseBool(p[key])
	if err != nil {
		return def
	}
	return v
}

// Duration parses key as a time.Duration, falling back to def.
func (p Params) Duration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(p[key])
	if err != nil {
		return def
	}
	return v
}

// Require returns the value for key or an error naming the missing setting.
func (p Params) Require(key string) (string, error) {
	v := p[key]
	if v == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return v, nil
}

// Factory constructs a backend instance from its parameters.
type Factory[T any] func(ctx context.Context, params Params) (T, error)

// Registry is a thread-safe set of named factories for backend type T.
type Registry[T any] struct {
	subsystem string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates a Registry. The subsystem name appears in errors
// (e.g. "document_store", "transcript_archive").
func NewRegistry[T any](subsystem string) *Registry[T] {
	return &Registry[T]{
		subsystem: subsystem,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a named factory. It panics on duplicates so that conflicting
// init() registrations fail at startup.
func (r *Registry[T]) Register(name string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("provider: %s backend %q already registered", r.subsystem, name))
	}
	r.factories[name] = f
}

// New creates a backend instance by name.
func (r *Registry[T]) New(ctx context.Context, name string, params Params) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s provider: %q (available: %v)", r.subsystem, name, r.Available())
	}
	if params == nil {
		params = Params{}
	}
	backend, err := f(ctx, params)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.subsystem, name, err)
	}
	return backend, nil
}

// Available returns the sorted list of registered backend names.
func (r *Registry[T]) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
