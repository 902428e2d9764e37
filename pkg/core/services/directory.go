// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"fmt"
	"net/mail"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/engine"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
)

// Built-in provider tools an assistant may enable.
var builtinTools = []string{"code_interpreter", "file_search"}

var (
	validPlans          = []string{state.PlanBasic, state.PlanPremium, state.PlanEnterprise}
	validClientStatuses = []string{state.ClientActive, state.ClientInactive, state.ClientSuspended}
	validAssistantState = []string{state.AssistantActive, state.AssistantInactive}
	validMethods        = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
)

// DirectoryOptions configures a DirectoryService.
type DirectoryOptions struct {
	DefaultModel string // default gpt-4-turbo
	Logger       *logging.Logger
	Now          func() time.Time
}

// DirectoryService owns client and assistant records and mirrors assistants
// to the LLM provider.
type DirectoryService struct {
	repo     *state.Repository
	admin    api.AssistantAdmin
	resolver engine.FunctionResolver
	executor engine.FunctionExecutor

	defaultModel string
	logger       *logging.Logger
	now          func() time.Time
}

// NewDirectoryService creates a DirectoryService.
func NewDirectoryService(repo *state.Repository, admin api.AssistantAdmin, resolver engine.FunctionResolver, executor engine.FunctionExecutor, opts DirectoryOptions) *DirectoryService {
	s := &DirectoryService{
		repo:         repo,
		admin:        admin,
		resolver:     resolver,
		executor:     executor,
		defaultModel: opts.DefaultModel,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if s.defaultModel == "" {
		s.defaultModel = "gpt-4-turbo"
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.Component("directory")
	return s
}

// --- Clients ---

// CreateClientRequest registers a client.
type CreateClientRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Plan       string `json:"plan,omitempty"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// CreateClient stores a new active client under a fresh id.
func (s *DirectoryService) CreateClient(ctx context.Context, req CreateClientRequest) (*state.ClientInfo, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, apierror.Validation("name and email are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, apierror.Validation("invalid email %q", req.Email)
	}
	if req.Plan == "" {
		req.Plan = state.PlanBasic
	}
	if !slices.Contains(validPlans, req.Plan) {
		return nil, apierror.Validation("plan must be one of %s", strings.Join(validPlans, ", "))
	}

	info := &state.ClientInfo{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		Plan:       req.Plan,
		Status:     state.ClientActive,
		WebhookURL: req.WebhookURL,
		CreatedAt:  s.now().UnixMilli(),
	}
	if err := s.repo.PutClient(ctx, info); err != nil {
		return nil, fmt.Errorf("save client: %w", err)
	}
	s.logger.Info("client created", "client_id", info.ID, "plan", info.Plan)
	return info, nil
}

func (s *DirectoryService) GetClient(ctx context.Context, clientID string) (*state.ClientInfo, error) {
	return s.repo.GetClient(ctx, clientID)
}

// ListClients returns every registered client ordered by creation time.
// Entries without an info record are skipped.
func (s *DirectoryService) ListClients(ctx context.Context) ([]*state.ClientInfo, error) {
	ids, err := s.repo.ListClientIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	clients := make([]*state.ClientInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.repo.GetClient(ctx, id)
		if err != nil {
			if apierror.Is(err, apierror.KindNotFound) {
				continue
			}
			return nil, err
		}
		clients = append(clients, info)
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].CreatedAt != clients[j].CreatedAt {
			return clients[i].CreatedAt < clients[j].CreatedAt
		}
		return clients[i].ID < clients[j].ID
	})
	return clients, nil
}

// ClientUpdate is a partial client update; nil fields are left unchanged.
type ClientUpdate struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Plan       *string `json:"plan,omitempty"`
	Status     *string `json:"status,omitempty"`
	WebhookURL *string `json:"webhookUrl,omitempty"`
}

// UpdateClient applies upd and returns the stored result.
func (s *DirectoryService) UpdateClient(ctx context.Context, clientID string, upd ClientUpdate) (*state.ClientInfo, error) {
	fields := map[string]any{}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, apierror.Validation("name must not be empty")
		}
		fields["name"] = *upd.Name
	}
	if upd.Email != nil {
		if _, err := mail.ParseAddress(*upd.Email); err != nil {
			return nil, apierror.Validation("invalid email %q", *upd.Email)
		}
		fields["email"] = *upd.Email
	}
	if upd.Plan != nil {
		if !slices.Contains(validPlans, *upd.Plan) {
			return nil, apierror.Validation("plan must be one of %s", strings.Join(validPlans, ", "))
		}
		fields["plan"] = *upd.Plan
	}
	if upd.Status != nil {
		if !slices.Contains(validClientStatuses, *upd.Status) {
			return nil, apierror.Validation("status must be one of %s", strings.Join(validClientStatuses, ", "))
		}
		fields["status"] = *upd.Status
	}
	if upd.WebhookURL != nil {
		fields["webhookUrl"] = *upd.WebhookURL
	}
	fields["updatedAt"] = s.now().UnixMilli()

	if err := s.repo.UpdateClient(ctx, clientID, fields); err != nil {
		return nil, err
	}
	return s.repo.GetClient(ctx, clientID)
}

// --- Assistants ---

// CreateAssistantRequest defines a client assistant.
type CreateAssistantRequest struct {
	Name            string                 `json:"name"`
	Instructions    string                 `json:"instructions"`
	Description     string                 `json:"description,omitempty"`
	Model           string                 `json:"model,omitempty"`
	Tools           []string               `json:"tools,omitempty"`
	CustomFunctions []state.CustomFunction `json:"customFunctions,omitempty"`
}

// AssistantDetails is a stored assistant with its provider view. Warning is
// set instead of Provider when the provider could not be read.
type AssistantDetails struct {
	Assistant *state.ClientAssistant
	Provider  *api.Assistant
	Warning   string
}

// CreateAssistant creates the provider assistant and stores its local record.
func (s *DirectoryService) CreateAssistant(ctx context.Context, clientID string, req CreateAssistantRequest) (*AssistantDetails, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Instructions) == "" {
		return nil, apierror.Validation("name and instructions are required")
	}
	if err := validateTools(req.Tools); err != nil {
		return nil, err
	}
	functions, err := normalizeFunctions(req.CustomFunctions)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}

	exists, err := s.repo.ClientExists(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierror.NotFound("client %s not found", clientID)
	}

	provider, err := s.admin.CreateAssistant(ctx, api.AssistantSpec{
		Name:         req.Name,
		Instructions: req.Instructions,
		Description:  req.Description,
		Model:        req.Model,
		Tools:        req.Tools,
		Functions:    functionDefs(functions),
	})
	if err != nil {
		return nil, fmt.Errorf("create provider assistant: %w", err)
	}

	assistant := &state.ClientAssistant{
		ID:                uuid.NewString(),
		OpenAIAssistantID: provider.ID,
		Name:              req.Name,
		Instructions:      req.Instructions,
		Description:       req.Description,
		Model:             req.Model,
		Tools:             req.Tools,
		CustomFunctions:   functions,
		Status:            state.AssistantActive,
		CreatedAt:         s.now().UnixMilli(),
	}
	if err := s.repo.PutAssistant(ctx, clientID, assistant); err != nil {
		return nil, fmt.Errorf("save assistant: %w", err)
	}
	s.logger.Info("assistant created",
		"client_id", clientID,
		"assistant_id", assistant.ID,
		"provider_assistant_id", provider.ID,
		"functions", len(functions),
	)
	return &AssistantDetails{Assistant: assistant, Provider: provider}, nil
}

// ListAssistants returns the client's assistants, soft-deleted ones included.
func (s *DirectoryService) ListAssistants(ctx context.Context, clientID string) ([]*state.ClientAssistant, error) {
	exists, err := s.repo.ClientExists(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierror.NotFound("client %s not found", clientID)
	}
	return s.repo.ListAssistants(ctx, clientID)
}

// GetAssistant returns the stored assistant and, when reachable, the
// provider's current view of it.
func (s *DirectoryService) GetAssistant(ctx context.Context, clientID, assistantID string) (*AssistantDetails, error) {
	assistant, err := s.repo.GetAssistant(ctx, clientID, assistantID)
	if err != nil {
		return nil, err
	}

	details := &AssistantDetails{Assistant: assistant}
	provider, err := s.admin.GetAssistant(ctx, assistant.OpenAIAssistantID)
	if err != nil {
		s.logger.Warn("failed to read provider assistant",
			"client_id", clientID,
			"assistant_id", assistantID,
			"error", err,
		)
		details.Warning = "Failed to retrieve data from AI LLM provider"
		return details, nil
	}
	details.Provider = provider
	return details, nil
}

// AssistantUpdate is a partial assistant update; nil fields are left unchanged.
type AssistantUpdate struct {
	Name            *string                 `json:"name,omitempty"`
	Instructions    *string                 `json:"instructions,omitempty"`
	Description     *string                 `json:"description,omitempty"`
	Model           *string                 `json:"model,omitempty"`
	Tools           *[]string               `json:"tools,omitempty"`
	CustomFunctions *[]state.CustomFunction `json:"customFunctions,omitempty"`
	Status          *string                 `json:"status,omitempty"`
}

// UpdateAssistant applies upd to the stored record. Changes to what the
// provider knows about are mirrored there first.
func (s *DirectoryService) UpdateAssistant(ctx context.Context, clientID, assistantID string, upd AssistantUpdate) (*state.ClientAssistant, error) {
	current, err := s.repo.GetAssistant(ctx, clientID, assistantID)
	if err != nil {
		return nil, err
	}
	if current.Status == state.AssistantDeleted {
		return nil, apierror.InvalidState("assistant %s is deleted", assistantID)
	}

	next := *current
	fields := map[string]any{}
	mirror := false

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, apierror.Validation("name must not be empty")
		}
		next.Name = *upd.Name
		fields["name"] = next.Name
		mirror = true
	}
	if upd.Instructions != nil {
		if strings.TrimSpace(*upd.Instructions) == "" {
			return nil, apierror.Validation("instructions must not be empty")
		}
		next.Instructions = *upd.Instructions
		fields["instructions"] = next.Instructions
		mirror = true
	}
	if upd.Description != nil {
		next.Description = *upd.Description
		fields["description"] = next.Description
		mirror = true
	}
	if upd.Model != nil && *upd.Model != "" {
		next.Model = *upd.Model
		fields["model"] = next.Model
		mirror = true
	}
	if upd.Tools != nil {
		if err := validateTools(*upd.Tools); err != nil {
			return nil, err
		}
		next.Tools = *upd.Tools
		fields["tools"] = next.Tools
		mirror = true
	}
	if upd.CustomFunctions != nil {
		functions, err := normalizeFunctions(*upd.CustomFunctions)
		if err != nil {
			return nil, err
		}
		next.CustomFunctions = functions
		fields["customFunctions"] = functions
		mirror = true
	}
	if upd.Status != nil {
		if !slices.Contains(validAssistantState, *upd.Status) {
			return nil, apierror.Validation("status must be one of %s", strings.Join(validAssistantState, ", "))
		}
		next.Status = *upd.Status
		fields["status"] = next.Status
	}

	if mirror {
		_, err := s.admin.UpdateAssistant(ctx, current.OpenAIAssistantID, api.AssistantSpec{
			Name:         next.Name,
			Instructions: next.Instructions,
			Description:  next.Description,
			Model:        next.Model,
			Tools:        next.Tools,
			Functions:    functionDefs(next.CustomFunctions),
		})
		if err != nil {
			return nil, fmt.Errorf("update provider assistant: %w", err)
		}
	}

	next.UpdatedAt = s.now().UnixMilli()
	fields["updatedAt"] = next.UpdatedAt
	if err := s.repo.UpdateAssistant(ctx, clientID, assistantID, fields); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteAssistant removes the provider assistant, best effort, and
// soft-deletes the local record so conversation history keeps resolving.
func (s *DirectoryService) DeleteAssistant(ctx context.Context, clientID, assistantID string) error {
	assistant, err := s.repo.GetAssistant(ctx, clientID, assistantID)
	if err != nil {
		return err
	}

	if err := s.admin.DeleteAssistant(ctx, assistant.OpenAIAssistantID); err != nil {
		s.logger.Warn("failed to delete provider assistant",
			"client_id", clientID,
			"assistant_id", assistantID,
			"provider_assistant_id", assistant.OpenAIAssistantID,
			"error", err,
		)
	}

	return s.repo.UpdateAssistant(ctx, clientID, assistantID, map[string]any{
		"status":    state.AssistantDeleted,
		"deletedAt": s.now().UnixMilli(),
	})
}

// ExecuteFunction runs one of the assistant's functions outside a run.
func (s *DirectoryService) ExecuteFunction(ctx context.Context, clientID, assistantID, name string, args map[string]any) (any, error) {
	if name == "" {
		return nil, apierror.Validation("functionName is required")
	}
	fn, err := s.resolver.Lookup(ctx, clientID, assistantID, name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return s.executor.Execute(ctx, fn, args)
}

func validateTools(tools []string) error {
	for _, tool := range tools {
		if !slices.Contains(builtinTools, tool) {
			return apierror.Validation("unsupported tool %q; expected one of %s", tool, strings.Join(builtinTools, ", "))
		}
	}
	return nil
}

// normalizeFunctions validates custom functions and uppercases their methods.
func normalizeFunctions(in []state.CustomFunction) ([]state.CustomFunction, error) {
	out := make([]state.CustomFunction, len(in))
	seen := make(map[string]bool, len(in))
	for i, fn := range in {
		if fn.Name == "" {
			return nil, apierror.Validation("custom function %d has no name", i)
		}
		if seen[fn.Name] {
			return nil, apierror.Validation("duplicate custom function %q", fn.Name)
		}
		seen[fn.Name] = true

		if fn.Method != "" {
			fn.Method = strings.ToUpper(fn.Method)
			if !slices.Contains(validMethods, fn.Method) {
				return nil, apierror.Validation("custom function %q has unsupported method %q", fn.Name, fn.Method)
			}
		}
		out[i] = fn
	}
	return out, nil
}

func functionDefs(fns []state.CustomFunction) []api.FunctionDef {
	defs := make([]api.FunctionDef, 0, len(fns))
	for _, fn := range fns {
		defs = append(defs, api.FunctionDef{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		})
	}
	return defs
}
