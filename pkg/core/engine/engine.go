// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine turns a settled assistant run into conversation history,
// resolving any function calls the run is waiting on.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/functions"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
	"github.com/tadagpt/conversation-gateway/pkg/observability/metrics"
)

// FunctionResolver finds a function in an assistant's catalog.
// Implemented by functions.Registry.
type FunctionResolver interface {
	Lookup(ctx context.Context, clientID, assistantID, name string) (*state.CustomFunction, error)
}

// FunctionExecutor runs a resolved function.
// Implemented by functions.Executor.
type FunctionExecutor interface {
	Execute(ctx context.Context, fn *state.CustomFunction, args map[string]any) (any, error)
}

// Options configures an Engine.
type Options struct {
	// Parallelism bounds concurrent tool calls within one run. Values below
	// 1 mean sequential.
	Parallelism int
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
}

// Engine interprets runs.
type Engine struct {
	llm         api.AssistantsClient
	resolver    FunctionResolver
	executor    FunctionExecutor
	parallelism int
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// New creates an Engine.
func New(llm api.AssistantsClient, resolver FunctionResolver, executor FunctionExecutor, opts Options) (*Engine, error) {
	if llm == nil {
		return nil, fmt.Errorf("assistants client is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("function resolver is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("function executor is required")
	}

	e := &Engine{
		llm:         llm,
		resolver:    resolver,
		executor:    executor,
		parallelism: opts.Parallelism,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if e.parallelism < 1 {
		e.parallelism = 1
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	return e, nil
}

// Scope identifies the thread a run belongs to and whose function catalog
// its tool calls resolve against.
type Scope struct {
	ClientID    string // empty for threads outside a client conversation
	AssistantID string // client-scoped assistant id
	ThreadID    string
}

// Interpret maps a settled run to the thread history, oldest first. A run
// waiting on tool outputs has them resolved and submitted first. Any other
// outcome is a provider error carrying the run status.
func (e *Engine) Interpret(ctx context.Context, scope Scope, run *api.Run) ([]api.ThreadMessage, error) {
	e.metrics.RunSettled(string(run.Status))

	switch run.Status {
	case api.RunCompleted:
		return e.history(ctx, scope.ThreadID)
	case api.RunRequiresAction:
		return e.resolveToolCalls(ctx, scope, run)
	default:
		return nil, providerError(run)
	}
}

// resolveToolCalls executes every pending call, submits all outputs in one
// batch and expects the run to complete.
func (e *Engine) resolveToolCalls(ctx context.Context, scope Scope, run *api.Run) ([]api.ThreadMessage, error) {
	e.logger.Info("resolving tool calls",
		"thread_id", scope.ThreadID,
		"run_id", run.ID,
		"count", len(run.ToolCalls),
	)

	outputs := e.executeToolCalls(ctx, scope, run.ToolCalls)

	next, err := e.llm.SubmitToolOutputs(ctx, scope.ThreadID, run.ID, outputs)
	if err != nil {
		return nil, fmt.Errorf("submit tool outputs: %w", err)
	}
	e.metrics.RunSettled(string(next.Status))

	if next.Status != api.RunCompleted {
		return nil, providerError(next)
	}
	return e.history(ctx, scope.ThreadID)
}

// executeToolCalls returns one output per call, in call order. A failing call
// yields an error payload and never affects its siblings.
func (e *Engine) executeToolCalls(ctx context.Context, scope Scope, calls []api.ToolCall) []api.ToolOutput {
	outputs := make([]api.ToolOutput, len(calls))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, call := range calls {
		g.Go(func() error {
			outputs[i] = e.executeToolCall(ctx, scope, call)
			return nil
		})
	}
	_ = g.Wait()

	return outputs
}

// unknownFunction labels metrics for calls that never resolved, so
// model-chosen names do not become label values.
const unknownFunction = "unknown"

func (e *Engine) executeToolCall(ctx context.Context, scope Scope, call api.ToolCall) (out api.ToolOutput) {
	start := time.Now()
	name := call.Name
	if call.Type != "function" {
		name = call.Type
	}
	label := unknownFunction
	result := "ok"

	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			e.logger.Error("tool call panicked",
				"thread_id", scope.ThreadID,
				"tool_call_id", call.ID,
				"function", name,
				"panic", r,
			)
			out = api.ToolOutput{ToolCallID: call.ID, Output: errorOutput(name, fmt.Errorf("panic: %v", r))}
		}
		e.metrics.ToolCall(label, result, time.Since(start).Seconds())
	}()

	output, resolved, err := e.callFunction(ctx, scope, call)
	if resolved {
		label = call.Name
	}
	if err != nil {
		result = "error"
		e.logger.Warn("tool call failed",
			"thread_id", scope.ThreadID,
			"tool_call_id", call.ID,
			"function", name,
			"error", err,
		)
		output = errorOutput(name, err)
	}

	return api.ToolOutput{ToolCallID: call.ID, Output: output}
}

// callFunction reports resolved once the name matched the assistant's catalog.
func (e *Engine) callFunction(ctx context.Context, scope Scope, call api.ToolCall) (output string, resolved bool, err error) {
	if call.Type != "function" {
		return "", false, fmt.Errorf("unsupported tool call type %q", call.Type)
	}
	// Threads opened outside a client conversation have no function catalog.
	if scope.ClientID == "" {
		return "", false, fmt.Errorf("function %s is not available on this thread", call.Name)
	}

	fn, err := e.resolver.Lookup(ctx, scope.ClientID, scope.AssistantID, call.Name)
	if err != nil {
		return "", false, err
	}

	args, err := functions.ParseArguments(call.Arguments)
	if err != nil {
		return "", true, err
	}

	result, err := e.executor.Execute(ctx, fn, args)
	if err != nil {
		return "", true, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", true, fmt.Errorf("encode result: %w", err)
	}
	return string(data), true, nil
}

func errorOutput(name string, err error) string {
	data, _ := json.Marshal(map[string]string{
		"erro": fmt.Sprintf("Failed to execute %s: %v", name, err),
	})
	return string(data)
}

// history lists the thread oldest first.
func (e *Engine) history(ctx context.Context, threadID string) ([]api.ThreadMessage, error) {
	messages, err := e.llm.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

func providerError(run *api.Run) error {
	return apierror.Provider(string(run.Status), run.LastError)
}
