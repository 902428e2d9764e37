// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	defaultPollInterval = time.Second
	defaultRunTimeout   = 2 * time.Minute
	listMessagesLimit   = 100
	listAssistantsLimit = 100
	defaultImageSize    = "1024x1024"
)

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// OpenAIClient implements Client on the official OpenAI Go SDK.
type OpenAIClient struct {
	client       openai.Client
	pollInterval time.Duration
	runTimeout   time.Duration
}

// NewOpenAIClient creates a client for the OpenAI API or a compatible backend.
func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	reqOpts := []option.RequestOption{}

	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	} else {
		// Local backends accept any key.
		reqOpts = append(reqOpts, option.WithAPIKey("dummy"))
	}

	c := &OpenAIClient{
		client:       openai.NewClient(reqOpts...),
		pollInterval: opts.PollInterval,
		runTimeout:   opts.RunTimeout,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.runTimeout <= 0 {
		c.runTimeout = defaultRunTimeout
	}
	return c
}

// CreateThread implements AssistantsClient.CreateThread
func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// GetThread implements ThreadReader.GetThread
func (c *OpenAIClient) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	thread, err := c.client.Beta.Threads.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	return &Thread{ID: thread.ID, Object: "thread", CreatedAt: thread.CreatedAt}, nil
}

// DeleteThread implements AssistantsClient.DeleteThread
func (c *OpenAIClient) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := c.client.Beta.Threads.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// AddUserMessage implements AssistantsClient.AddUserMessage
func (c *OpenAIClient) AddUserMessage(ctx context.Context, threadID, content string) error {
	_, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	if err != nil {
		return fmt.Errorf("add message to thread %s: %w", threadID, err)
	}
	return nil
}

// CreateRun implements AssistantsClient.CreateRun
func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return nil, fmt.Errorf("create run on thread %s: %w", threadID, err)
	}
	return c.poll(ctx, threadID, run)
}

// SubmitToolOutputs implements AssistantsClient.SubmitToolOutputs
func (c *OpenAIClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	params := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs)),
	}
	for _, o := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(o.ToolCallID),
			Output:     openai.String(o.Output),
		})
	}

	run, err := c.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params)
	if err != nil {
		return nil, fmt.Errorf("submit tool outputs for run %s: %w", runID, err)
	}
	return c.poll(ctx, threadID, run)
}

// poll re-reads the run until it settles or the run timeout elapses.
func (c *OpenAIClient) poll(ctx context.Context, threadID string, run *openai.Run) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for !RunStatus(run.Status).Settled() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("poll run %s: %w", run.ID, ctx.Err())
		case <-ticker.C:
		}

		next, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, run.ID)
		if err != nil {
			return nil, fmt.Errorf("poll run %s: %w", run.ID, err)
		}
		run = next
	}
	return convertRun(run), nil
}

func convertRun(r *openai.Run) *Run {
	out := &Run{
		ID:          r.ID,
		ThreadID:    r.ThreadID,
		AssistantID: r.AssistantID,
		Status:      RunStatus(r.Status),
		LastError:   r.LastError.Message,
	}
	for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Type:      string(tc.Type),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// ListMessages implements AssistantsClient.ListMessages
func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Limit: openai.Int(listMessagesLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("list messages of thread %s: %w", threadID, err)
	}

	messages := make([]ThreadMessage, 0, len(page.Data))
	for _, m := range page.Data {
		msg := ThreadMessage{
			ID:          m.ID,
			Object:      "thread.message",
			CreatedAt:   m.CreatedAt,
			ThreadID:    m.ThreadID,
			Role:        string(m.Role),
			AssistantID: m.AssistantID,
			RunID:       m.RunID,
			Content:     make([]MessageContent, 0, len(m.Content)),
		}
		for _, part := range m.Content {
			content := MessageContent{Type: part.Type}
			if part.Type == "text" {
				content.Text = &MessageText{Value: part.Text.Value, Annotations: []any{}}
			}
			msg.Content = append(msg.Content, content)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DescribeImage implements VisionClient.DescribeImage
func (c *OpenAIClient) DescribeImage(ctx context.Context, req VisionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(req.Prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: req.ImageURL,
				}),
			}),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("vision completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("vision completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// CompleteChat implements ChatClient.CompleteChat
func (c *OpenAIClient) CompleteChat(ctx context.Context, req ChatRequest) (*ChatCompletion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	out := &ChatCompletion{
		ID:    completion.ID,
		Model: completion.Model,
		Usage: ChatUsage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}
	if len(completion.Choices) > 0 {
		out.Content = completion.Choices[0].Message.Content
		out.FinishReason = string(completion.Choices[0].FinishReason)
	}
	return out, nil
}

// GenerateImage implements ChatClient.GenerateImage
func (c *OpenAIClient) GenerateImage(ctx context.Context, req ImageRequest) ([]GeneratedImage, error) {
	n := req.N
	if n <= 0 {
		n = 1
	}
	size := req.Size
	if size == "" {
		size = defaultImageSize
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.Model),
		N:      openai.Int(int64(n)),
		Size:   openai.ImageGenerateParamsSize(size),
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	images := make([]GeneratedImage, 0, len(resp.Data))
	for _, img := range resp.Data {
		images = append(images, GeneratedImage{
			URL:           img.URL,
			B64JSON:       img.B64JSON,
			RevisedPrompt: img.RevisedPrompt,
		})
	}
	return images, nil
}

func assistantTools(spec AssistantSpec) []openai.AssistantToolUnionParam {
	tools := make([]openai.AssistantToolUnionParam, 0, len(spec.Tools)+len(spec.Functions))
	for _, t := range spec.Tools {
		switch t {
		case "code_interpreter":
			tools = append(tools, openai.AssistantToolUnionParam{OfCodeInterpreter: &openai.CodeInterpreterToolParam{}})
		case "file_search":
			tools = append(tools, openai.AssistantToolUnionParam{OfFileSearch: &openai.FileSearchToolParam{}})
		}
	}
	for _, fn := range spec.Functions {
		def := shared.FunctionDefinitionParam{Name: fn.Name}
		if fn.Description != "" {
			def.Description = openai.String(fn.Description)
		}
		if fn.Parameters != nil {
			def.Parameters = shared.FunctionParameters(fn.Parameters)
		}
		tools = append(tools, openai.AssistantToolUnionParam{
			OfFunction: &openai.FunctionToolParam{Function: def},
		})
	}
	return tools
}

func convertAssistant(a *openai.Assistant) *Assistant {
	out := &Assistant{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Instructions: a.Instructions,
		Model:        a.Model,
		CreatedAt:    a.CreatedAt,
		Tools:        make([]string, 0, len(a.Tools)),
	}
	for _, t := range a.Tools {
		out.Tools = append(out.Tools, t.Type)
	}
	return out
}

// CreateAssistant implements AssistantAdmin.CreateAssistant
func (c *OpenAIClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (*Assistant, error) {
	params := openai.BetaAssistantNewParams{
		Model: shared.ChatModel(spec.Model),
		Tools: assistantTools(spec),
	}
	if spec.Name != "" {
		params.Name = openai.String(spec.Name)
	}
	if spec.Instructions != "" {
		params.Instructions = openai.String(spec.Instructions)
	}
	if spec.Description != "" {
		params.Description = openai.String(spec.Description)
	}

	a, err := c.client.Beta.Assistants.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return convertAssistant(a), nil
}

// UpdateAssistant implements AssistantAdmin.UpdateAssistant
func (c *OpenAIClient) UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) (*Assistant, error) {
	params := openai.BetaAssistantUpdateParams{
		Tools: assistantTools(spec),
	}
	if spec.Name != "" {
		params.Name = openai.String(spec.Name)
	}
	if spec.Instructions != "" {
		params.Instructions = openai.String(spec.Instructions)
	}
	if spec.Description != "" {
		params.Description = openai.String(spec.Description)
	}

	var reqOpts []option.RequestOption
	if spec.Model != "" {
		reqOpts = append(reqOpts, option.WithJSONSet("model", spec.Model))
	}

	a, err := c.client.Beta.Assistants.Update(ctx, assistantID, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("update assistant %s: %w", assistantID, err)
	}
	return convertAssistant(a), nil
}

// GetAssistant implements AssistantAdmin.GetAssistant
func (c *OpenAIClient) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	a, err := c.client.Beta.Assistants.Get(ctx, assistantID)
	if err != nil {
		return nil, fmt.Errorf("get assistant %s: %w", assistantID, err)
	}
	return convertAssistant(a), nil
}

// DeleteAssistant implements AssistantAdmin.DeleteAssistant
func (c *OpenAIClient) DeleteAssistant(ctx context.Context, assistantID string) error {
	if _, err := c.client.Beta.Assistants.Delete(ctx, assistantID); err != nil {
		return fmt.Errorf("delete assistant %s: %w", assistantID, err)
	}
	return nil
}

// ListAssistants implements AssistantLister.ListAssistants
func (c *OpenAIClient) ListAssistants(ctx context.Context) ([]*Assistant, error) {
	page, err := c.client.Beta.Assistants.List(ctx, openai.BetaAssistantListParams{
		Limit: openai.Int(listAssistantsLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	out := make([]*Assistant, 0, len(page.Data))
	for i := range page.Data {
		out = append(out, convertAssistant(&page.Data[i]))
	}
	return out, nil
}
