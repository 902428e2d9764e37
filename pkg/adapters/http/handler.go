// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/tadagpt/conversation-gateway/pkg/archive"
	"github.com/tadagpt/conversation-gateway/pkg/auth"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
	"github.com/tadagpt/conversation-gateway/pkg/core/services"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
	"github.com/tadagpt/conversation-gateway/pkg/observability/metrics"
)

// Conversations is the conversation lifecycle used by the handler.
type Conversations interface {
	StartOrResume(ctx context.Context, clientID string, req services.StartRequest) (*services.StartResult, error)
	PostMessage(ctx context.Context, clientID, conversationID, message string) (*services.MessageResult, error)
	End(ctx context.Context, clientID, conversationID, reason string) error
	Cleanup(ctx context.Context, clientID string) (int, error)
	Get(ctx context.Context, clientID, conversationID string) (*state.Conversation, error)
	TimeRemaining(conv *state.Conversation) time.Duration
	Transcript(ctx context.Context, clientID, conversationID string) (*archive.Transcript, error)
	ListTranscripts(ctx context.Context, clientID string) ([]string, error)
	DeleteTranscript(ctx context.Context, clientID, conversationID string) error
}

// Directory manages clients, assistants and direct function calls.
type Directory interface {
	CreateClient(ctx context.Context, req services.CreateClientRequest) (*state.ClientInfo, error)
	GetClient(ctx context.Context, clientID string) (*state.ClientInfo, error)
	ListClients(ctx context.Context) ([]*state.ClientInfo, error)
	UpdateClient(ctx context.Context, clientID string, upd services.ClientUpdate) (*state.ClientInfo, error)

	CreateAssistant(ctx context.Context, clientID string, req services.CreateAssistantRequest) (*services.AssistantDetails, error)
	ListAssistants(ctx context.Context, clientID string) ([]*state.ClientAssistant, error)
	GetAssistant(ctx context.Context, clientID, assistantID string) (*services.AssistantDetails, error)
	UpdateAssistant(ctx context.Context, clientID, assistantID string, upd services.AssistantUpdate) (*state.ClientAssistant, error)
	DeleteAssistant(ctx context.Context, clientID, assistantID string) error

	ExecuteFunction(ctx context.Context, clientID, assistantID, name string, args map[string]any) (any, error)
}

// Workspace is the account-wide playground: stateless chat, free-standing
// threads and provider assistants.
type Workspace interface {
	Chat(ctx context.Context, in services.ChatInput) (*services.ChatResult, error)
	AssistantChat(ctx context.Context, threadID, assistantID, message string) ([]api.ThreadMessage, error)

	CreateThread(ctx context.Context, assistantID string) (*api.Thread, error)
	GetThread(ctx context.Context, threadID string) (*services.ThreadDetails, error)
	ListThreads(ctx context.Context) ([]*state.ThreadRecord, error)
	DeleteThread(ctx context.Context, threadID string) error

	CreateProviderAssistant(ctx context.Context, req services.ProviderAssistantRequest) (*api.Assistant, error)
	GetProviderAssistant(ctx context.Context, assistantID string) (*api.Assistant, error)
	ListProviderAssistants(ctx context.Context) ([]*api.Assistant, error)
}

// Options configures the HTTP adapter.
type Options struct {
	AdminRole      string
	AllowedOrigins []string
	MetricsPath    string // empty disables the metrics endpoint
	RateLimiter    *RateLimiter
	Workspace      Workspace // nil disables the /api/chat, /api/thread and /api/assistant routes
	Metrics        *metrics.Metrics
	Logger         *logging.Logger
}

// Handler implements the HTTP adapter
type Handler struct {
	conversations Conversations
	directory     Directory
	workspace     Workspace
	auth          *auth.Middleware
	limiter       *RateLimiter
	metrics       *metrics.Metrics
	logger        *logging.Logger
	mux           *http.ServeMux
	root          http.Handler
}

// New creates a new HTTP handler. A nil authenticator disables token checks.
func New(conversations Conversations, directory Directory, authn *auth.Middleware, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if authn == nil {
		authn = auth.NewMiddleware(nil, auth.Options{Logger: opts.Logger})
	}
	if opts.AdminRole == "" {
		opts.AdminRole = "admin"
	}

	h := &Handler{
		conversations: conversations,
		directory:     directory,
		workspace:     opts.Workspace,
		auth:          authn,
		limiter:       opts.RateLimiter,
		metrics:       opts.Metrics,
		logger:        opts.Logger.Component("http"),
		mux:           http.NewServeMux(),
	}

	admin := auth.RequireRole(opts.AdminRole)

	// Register routes
	h.public("GET /health", http.HandlerFunc(h.handleHealth))
	h.public("GET /openapi.json", http.HandlerFunc(h.handleOpenAPI))
	if opts.MetricsPath != "" && opts.Metrics != nil {
		h.mux.Handle("GET "+opts.MetricsPath, opts.Metrics.Handler())
	}

	// Conversations API
	h.limited("POST /api/clients/{clientId}/conversations/start", h.handleStartConversation)
	h.limited("POST /api/clients/{clientId}/conversations/{conversationId}/message", h.handlePostMessage)
	h.limited("POST /api/clients/{clientId}/conversations/{conversationId}/end", h.handleEndConversation)
	h.authenticated("DELETE /api/clients/{clientId}/conversations/cleanup", http.HandlerFunc(h.handleCleanup))
	h.authenticated("GET /api/clients/{clientId}/conversations/{conversationId}", http.HandlerFunc(h.handleGetConversation))
	h.authenticated("GET /api/clients/{clientId}/conversations/{conversationId}/transcript", http.HandlerFunc(h.handleGetTranscript))
	h.authenticated("DELETE /api/clients/{clientId}/conversations/{conversationId}/transcript", http.HandlerFunc(h.handleDeleteTranscript))
	h.authenticated("GET /api/clients/{clientId}/transcripts", http.HandlerFunc(h.handleListTranscripts))

	// Clients API
	h.authenticated("POST /api/clients", admin(http.HandlerFunc(h.handleCreateClient)))
	h.authenticated("GET /api/clients", admin(http.HandlerFunc(h.handleListClients)))
	h.authenticated("GET /api/clients/{clientId}", http.HandlerFunc(h.handleGetClient))
	h.authenticated("PUT /api/clients/{clientId}", http.HandlerFunc(h.handleUpdateClient))

	// Assistants API
	h.authenticated("POST /api/clients/{clientId}/assistants", http.HandlerFunc(h.handleCreateAssistant))
	h.authenticated("GET /api/clients/{clientId}/assistants", http.HandlerFunc(h.handleListAssistants))
	h.authenticated("GET /api/clients/{clientId}/assistants/{assistantId}", http.HandlerFunc(h.handleGetAssistant))
	h.authenticated("PUT /api/clients/{clientId}/assistants/{assistantId}", http.HandlerFunc(h.handleUpdateAssistant))
	h.authenticated("DELETE /api/clients/{clientId}/assistants/{assistantId}", http.HandlerFunc(h.handleDeleteAssistant))

	// Functions API
	h.authenticated("POST /api/functions/execute/{clientId}/{assistantId}", http.HandlerFunc(h.handleExecuteFunction))

	// Workspace API
	if h.workspace != nil {
		h.limited("POST /api/chat", h.handleChat)
		h.limited("POST /api/chat/assistant", h.handleAssistantChat)
		h.authenticated("POST /api/thread", http.HandlerFunc(h.handleCreateThread))
		h.authenticated("GET /api/thread", http.HandlerFunc(h.handleListThreads))
		h.limited("GET /api/thread/{threadId}", h.handleGetThread)
		h.authenticated("DELETE /api/thread/{threadId}", http.HandlerFunc(h.handleDeleteThread))
		h.authenticated("POST /api/assistant", admin(http.HandlerFunc(h.handleCreateProviderAssistant)))
		h.authenticated("GET /api/assistant", http.HandlerFunc(h.handleListProviderAssistants))
		h.authenticated("GET /api/assistant/{assistantId}", http.HandlerFunc(h.handleGetProviderAssistant))
	}

	h.root = cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
	}).Handler(h.mux)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	h.root.ServeHTTP(w, r)
}

func (h *Handler) public(pattern string, next http.Handler) {
	h.mux.Handle(pattern, h.instrument(pattern, next))
}

func (h *Handler) limited(pattern string, fn http.HandlerFunc) {
	h.mux.Handle(pattern, h.instrument(pattern, h.limiter.Wrap(fn)))
}

func (h *Handler) authenticated(pattern string, next http.Handler) {
	h.mux.Handle(pattern, h.instrument(pattern, h.auth.Authenticate(next)))
}

// instrument records request count and latency under the route pattern.
func (h *Handler) instrument(pattern string, next http.Handler) http.Handler {
	method, route, _ := strings.Cut(pattern, " ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.metrics.HTTPRequest(method, route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// handleHealth handles health check requests
//
//	@Summary	Health check
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	schema.HealthResponse
//	@Router		/health [get]
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schema.HealthResponse{Status: "healthy"})
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeError maps err to a status code. Classified errors carry their own
// message; anything else is logged and reported as a 500 with fallback as
// the message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	apiErr, ok := apierror.As(err)
	if !ok {
		h.logger.Error(fallback,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, schema.ErrorResponse{
			Message: fallback,
			Error:   err.Error(),
		})
		return
	}

	status := apiErr.HTTPStatus()
	resp := schema.ErrorResponse{
		Message: apiErr.Message,
		Error:   apiErr.Detail(),
	}
	if apiErr.Kind == apierror.KindProvider {
		resp.Message = fallback
		resp.Status = apiErr.Status
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(fallback,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, resp)
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, schema.ErrorResponse{
		Message: "Failed to parse request body",
		Error:   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
