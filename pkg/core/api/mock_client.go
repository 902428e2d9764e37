// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockClient is an in-memory Client for tests and offline runs. By default
// every run completes with an assistant reply echoing the latest user
// message. Scripts override the outcome of runs and submissions.
type MockClient struct {
	// RunScript decides the outcome of CreateRun. A nil result falls back to
	// the default completion.
	RunScript func(threadID, assistantID string) *Run
	// SubmitScript decides the outcome of SubmitToolOutputs.
	SubmitScript func(threadID, runID string, outputs []ToolOutput) *Run
	// VisionReply and VisionErr answer DescribeImage.
	VisionReply string
	VisionErr   error
	// ThreadErr, when set, fails CreateThread and DeleteThread.
	ThreadErr error
	// ChatErr, when set, fails CompleteChat and GenerateImage.
	ChatErr error

	mu         sync.Mutex
	seq        int
	threads    map[string][]ThreadMessage // oldest first
	created    map[string]int64
	assistants map[string]*Assistant
	runs       int
	submitted  [][]ToolOutput
	deleted    []string
	vision     []VisionRequest
}

// NewMockClient creates a mock with no threads.
func NewMockClient() *MockClient {
	return &MockClient{
		threads:    make(map[string][]ThreadMessage),
		created:    make(map[string]int64),
		assistants: make(map[string]*Assistant),
	}
}

func (m *MockClient) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_mock%d", prefix, m.seq)
}

// CreateThread implements AssistantsClient.CreateThread
func (m *MockClient) CreateThread(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ThreadErr != nil {
		return "", m.ThreadErr
	}
	id := m.nextID("thread")
	m.threads[id] = nil
	m.created[id] = time.Now().Unix()
	return id, nil
}

// GetThread implements ThreadReader.GetThread
func (m *MockClient) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	return &Thread{ID: threadID, Object: "thread", CreatedAt: m.created[threadID]}, nil
}

// DeleteThread implements AssistantsClient.DeleteThread
func (m *MockClient) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ThreadErr != nil {
		return m.ThreadErr
	}
	delete(m.threads, threadID)
	delete(m.created, threadID)
	m.deleted = append(m.deleted, threadID)
	return nil
}

// AddUserMessage implements AssistantsClient.AddUserMessage
func (m *MockClient) AddUserMessage(ctx context.Context, threadID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return fmt.Errorf("thread %s not found", threadID)
	}
	m.appendLocked(threadID, "user", content, "", "")
	return nil
}

func (m *MockClient) appendLocked(threadID, role, text, assistantID, runID string) {
	msg := NewTextMessage(m.nextID("msg"), threadID, role, text, time.Now().Unix())
	msg.AssistantID = assistantID
	msg.RunID = runID
	m.threads[threadID] = append(m.threads[threadID], msg)
}

func (m *MockClient) lastUserLocked(threadID string) string {
	msgs := m.threads[threadID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Text()
		}
	}
	return ""
}

func (m *MockClient) completeLocked(threadID, assistantID, runID string) *Run {
	reply := fmt.Sprintf("Mock response to: %s", m.lastUserLocked(threadID))
	m.appendLocked(threadID, "assistant", reply, assistantID, runID)
	return &Run{ID: runID, ThreadID: threadID, AssistantID: assistantID, Status: RunCompleted}
}

// CreateRun implements AssistantsClient.CreateRun
func (m *MockClient) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	m.runs++
	runID := m.nextID("run")

	if m.RunScript != nil {
		if run := m.RunScript(threadID, assistantID); run != nil {
			run.ThreadID = threadID
			if run.ID == "" {
				run.ID = runID
			}
			return run, nil
		}
	}
	return m.completeLocked(threadID, assistantID, runID), nil
}

// SubmitToolOutputs implements AssistantsClient.SubmitToolOutputs
func (m *MockClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, append([]ToolOutput(nil), outputs...))

	if m.SubmitScript != nil {
		if run := m.SubmitScript(threadID, runID, outputs); run != nil {
			run.ThreadID = threadID
			if run.ID == "" {
				run.ID = runID
			}
			return run, nil
		}
	}
	return m.completeLocked(threadID, "", runID), nil
}

// ListMessages implements AssistantsClient.ListMessages
func (m *MockClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	out := make([]ThreadMessage, len(msgs))
	for i, msg := range msgs {
		out[len(msgs)-1-i] = msg
	}
	return out, nil
}

// DescribeImage implements VisionClient.DescribeImage
func (m *MockClient) DescribeImage(ctx context.Context, req VisionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vision = append(m.vision, req)
	if m.VisionErr != nil {
		return "", m.VisionErr
	}
	return m.VisionReply, nil
}

// CompleteChat implements ChatClient.CompleteChat. The reply echoes the last
// user message.
func (m *MockClient) CompleteChat(ctx context.Context, req ChatRequest) (*ChatCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ChatErr != nil {
		return nil, m.ChatErr
	}
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	return &ChatCompletion{
		ID:           m.nextID("chatcmpl"),
		Model:        req.Model,
		Content:      fmt.Sprintf("Mock response to: %s", last),
		FinishReason: "stop",
	}, nil
}

// GenerateImage implements ChatClient.GenerateImage
func (m *MockClient) GenerateImage(ctx context.Context, req ImageRequest) ([]GeneratedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ChatErr != nil {
		return nil, m.ChatErr
	}
	n := req.N
	if n <= 0 {
		n = 1
	}
	images := make([]GeneratedImage, 0, n)
	for range n {
		images = append(images, GeneratedImage{
			URL:           fmt.Sprintf("https://images.example.com/%s.png", m.nextID("img")),
			RevisedPrompt: req.Prompt,
		})
	}
	return images, nil
}

// CreateAssistant implements AssistantAdmin.CreateAssistant
func (m *MockClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (*Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := specToAssistant(m.nextID("asst"), spec)
	m.assistants[a.ID] = a
	return a, nil
}

// UpdateAssistant implements AssistantAdmin.UpdateAssistant
func (m *MockClient) UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) (*Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.assistants[assistantID]
	if !ok {
		return nil, fmt.Errorf("assistant %s not found", assistantID)
	}
	a := specToAssistant(assistantID, spec)
	a.CreatedAt = prev.CreatedAt
	m.assistants[assistantID] = a
	return a, nil
}

// GetAssistant implements AssistantAdmin.GetAssistant
func (m *MockClient) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assistants[assistantID]
	if !ok {
		return nil, fmt.Errorf("assistant %s not found", assistantID)
	}
	cp := *a
	return &cp, nil
}

// DeleteAssistant implements AssistantAdmin.DeleteAssistant
func (m *MockClient) DeleteAssistant(ctx context.Context, assistantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assistants[assistantID]; !ok {
		return fmt.Errorf("assistant %s not found", assistantID)
	}
	delete(m.assistants, assistantID)
	return nil
}

// ListAssistants implements AssistantLister.ListAssistants
func (m *MockClient) ListAssistants(ctx context.Context) ([]*Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Assistant, 0, len(m.assistants))
	for _, a := range m.assistants {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func specToAssistant(id string, spec AssistantSpec) *Assistant {
	a := &Assistant{
		ID:           id,
		Name:         spec.Name,
		Description:  spec.Description,
		Instructions: spec.Instructions,
		Model:        spec.Model,
		CreatedAt:    time.Now().Unix(),
		Tools:        append([]string{}, spec.Tools...),
	}
	for range spec.Functions {
		a.Tools = append(a.Tools, "function")
	}
	return a
}

// RunCount reports how many runs were started.
func (m *MockClient) RunCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Submissions returns every batch passed to SubmitToolOutputs.
func (m *MockClient) Submissions() [][]ToolOutput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]ToolOutput(nil), m.submitted...)
}

// DeletedThreads lists thread ids passed to DeleteThread.
func (m *MockClient) DeletedThreads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// VisionRequests lists requests passed to DescribeImage.
func (m *MockClient) VisionRequests() []VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VisionRequest(nil), m.vision...)
}

// HasThread reports whether the thread exists.
func (m *MockClient) HasThread(threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.threads[threadID]
	return ok
}
