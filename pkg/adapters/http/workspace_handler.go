// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
	"github.com/tadagpt/conversation-gateway/pkg/core/services"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

const (
	msgChatFailed      = "Erro ao enviar mensagem"
	msgAssistantFailed = "Erro ao enviar mensagem ao assistente"
	msgProviderFailed  = "Erro interno ao se comunicar com o GPT."
)

// handleChat handles POST /api/chat
//
//	@Summary	Chat with a model
//	@Tags		Workspace
//	@Accept		json
//	@Produce	json
//	@Param		request	body		schema.ChatRequest	true	"Message, history and model"
//	@Success	200		{object}	schema.ChatResponse
//	@Failure	400		{object}	schema.ErrorResponse
//	@Failure	500		{object}	schema.ErrorResponse
//	@Router		/api/chat [post]
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req schema.ChatRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	res, err := h.workspace.Chat(r.Context(), services.ChatInput{
		Message: req.Message,
		History: req.History,
		Model:   req.Model,
	})
	if err != nil {
		h.writeError(w, r, err, msgChatFailed)
		return
	}
	writeJSON(w, http.StatusOK, schema.ChatResponse{
		Response: res.Completion,
		Images:   res.Images,
		History:  res.History,
	})
}

// handleAssistantChat handles POST /api/chat/assistant
//
//	@Summary	Chat with an assistant on a thread
//	@Tags		Workspace
//	@Accept		json
//	@Produce	json
//	@Param		request	body		schema.AssistantChatRequest	true	"Message, thread and assistant"
//	@Success	200		{object}	schema.HistoryResponse
//	@Failure	400		{object}	schema.ErrorResponse
//	@Failure	500		{object}	schema.ErrorResponse
//	@Router		/api/chat/assistant [post]
func (h *Handler) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	var req schema.AssistantChatRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	history, err := h.workspace.AssistantChat(r.Context(), req.Thread, req.Assistant, req.Message)
	if err != nil {
		h.writeError(w, r, err, msgAssistantFailed)
		return
	}
	writeJSON(w, http.StatusOK, schema.HistoryResponse{History: history})
}

// handleCreateThread handles POST /api/thread
//
//	@Summary	Create a thread
//	@Tags		Workspace
//	@Accept		json
//	@Produce	json
//	@Param		request	body		schema.CreateThreadRequest	false	"Assistant the thread is meant for"
//	@Success	200		{object}	schema.ThreadResponse
//	@Failure	500		{object}	schema.ErrorResponse
//	@Router		/api/thread [post]
func (h *Handler) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req schema.CreateThreadRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	thread, err := h.workspace.CreateThread(r.Context(), req.Assistant)
	if err != nil {
		h.writeError(w, r, err, "Erro ao criar a Thread")
		return
	}
	writeJSON(w, http.StatusOK, schema.ThreadResponse{Thread: thread})
}

// handleGetThread handles GET /api/thread/{threadId}
//
//	@Summary	Get a thread with its messages
//	@Tags		Workspace
//	@Produce	json
//	@Param		threadId	path		string	true	"Provider thread ID"
//	@Success	200			{object}	schema.ThreadDetailsResponse
//	@Failure	500			{object}	schema.ErrorResponse
//	@Router		/api/thread/{threadId} [get]
func (h *Handler) handleGetThread(w http.ResponseWriter, r *http.Request) {
	details, err := h.workspace.GetThread(r.Context(), r.PathValue("threadId"))
	if err != nil {
		h.writeError(w, r, err, "Erro ao recuperar a Thread")
		return
	}
	writeJSON(w, http.StatusOK, schema.ThreadDetailsResponse{
		Thread:   details.Thread,
		Messages: details.Messages,
	})
}

// handleListThreads handles GET /api/thread
//
//	@Summary	List recorded threads
//	@Tags		Workspace
//	@Produce	json
//	@Success	200	{object}	schema.ListThreadsResponse
//	@Failure	500	{object}	schema.ErrorResponse
//	@Router		/api/thread [get]
func (h *Handler) handleListThreads(w http.ResponseWriter, r *http.Request) {
	records, err := h.workspace.ListThreads(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Erro ao recuperar as Threads")
		return
	}
	threads := make(map[string]*state.ThreadRecord, len(records))
	for _, rec := range records {
		threads[rec.ID] = rec
	}
	writeJSON(w, http.StatusOK, schema.ListThreadsResponse{Threads: threads})
}

// handleDeleteThread handles DELETE /api/thread/{threadId}
//
//	@Summary	Delete a thread
//	@Tags		Workspace
//	@Produce	json
//	@Param		threadId	path		string	true	"Provider thread ID"
//	@Success	200			{object}	schema.DeleteThreadResponse
//	@Failure	500			{object}	schema.ErrorResponse
//	@Router		/api/thread/{threadId} [delete]
func (h *Handler) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")
	if err := h.workspace.DeleteThread(r.Context(), threadID); err != nil {
		h.writeError(w, r, err, "Erro ao deletar thread.")
		return
	}
	writeJSON(w, http.StatusOK, schema.DeleteThreadResponse{
		Thread: schema.DeletedThread{ID: threadID, Object: "thread.deleted", Deleted: true},
	})
}

// handleCreateProviderAssistant handles POST /api/assistant
//
//	@Summary	Create a provider assistant
//	@Tags		Workspace
//	@Accept		json
//	@Produce	json
//	@Param		request	body		services.ProviderAssistantRequest	true	"Assistant"
//	@Success	200		{object}	schema.ProviderAssistantResponse
//	@Failure	400		{object}	schema.ErrorResponse
//	@Failure	500		{object}	schema.ErrorResponse
//	@Router		/api/assistant [post]
func (h *Handler) handleCreateProviderAssistant(w http.ResponseWriter, r *http.Request) {
	var req services.ProviderAssistantRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	assistant, err := h.workspace.CreateProviderAssistant(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, msgProviderFailed)
		return
	}
	writeJSON(w, http.StatusOK, schema.ProviderAssistantResponse{Assistant: assistant})
}

// handleGetProviderAssistant handles GET /api/assistant/{assistantId}
//
//	@Summary	Get a provider assistant
//	@Tags		Workspace
//	@Produce	json
//	@Param		assistantId	path		string	true	"Provider assistant ID"
//	@Success	200			{object}	schema.ProviderAssistantResponse
//	@Failure	500			{object}	schema.ErrorResponse
//	@Router		/api/assistant/{assistantId} [get]
func (h *Handler) handleGetProviderAssistant(w http.ResponseWriter, r *http.Request) {
	assistant, err := h.workspace.GetProviderAssistant(r.Context(), r.PathValue("assistantId"))
	if err != nil {
		h.writeError(w, r, err, msgProviderFailed)
		return
	}
	writeJSON(w, http.StatusOK, schema.ProviderAssistantResponse{Assistant: assistant})
}

// handleListProviderAssistants handles GET /api/assistant
//
//	@Summary	List provider assistants
//	@Tags		Workspace
//	@Produce	json
//	@Success	200	{object}	schema.ListProviderAssistantsResponse
//	@Failure	500	{object}	schema.ErrorResponse
//	@Router		/api/assistant [get]
func (h *Handler) handleListProviderAssistants(w http.ResponseWriter, r *http.Request) {
	assistants, err := h.workspace.ListProviderAssistants(r.Context())
	if err != nil {
		h.writeError(w, r, err, msgProviderFailed)
		return
	}
	writeJSON(w, http.StatusOK, schema.ListProviderAssistantsResponse{Assistants: assistants})
}
