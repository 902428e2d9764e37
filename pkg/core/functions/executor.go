// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package functions executes the functions an assistant may call: client
// webhooks, and built-in handlers registered by name.
package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
)

// Handler implements a built-in function.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Executor dispatches a function invocation. A configured endpoint always
// wins; otherwise the handler registered under the function name runs.
type Executor struct {
	webhook *WebhookCaller
	logger  *logging.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewExecutor creates an executor with no built-ins registered.
func NewExecutor(webhook *WebhookCaller, logger *logging.Logger) *Executor {
	if webhook == nil {
		webhook = NewWebhookCaller(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{
		webhook:  webhook,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register binds a built-in handler to a function name, replacing any
// previous binding.
func (e *Executor) Register(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// Names lists the registered built-ins.
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs fn with args.
func (e *Executor) Execute(ctx context.Context, fn *state.CustomFunction, args map[string]any) (any, error) {
	if fn.Endpoint != "" {
		e.logger.Debug("calling function webhook", "function", fn.Name, "endpoint", fn.Endpoint)
		return e.webhook.Call(ctx, fn, args)
	}

	e.mu.RLock()
	h, ok := e.handlers[fn.Name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("function %s is not implemented", fn.Name)
	}

	e.logger.Debug("running built-in function", "function", fn.Name)
	return h(ctx, args)
}

// ParseArguments decodes a tool call's JSON arguments. Empty input yields an
// empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// decodeArgs converts loosely typed arguments into a typed struct.
func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
