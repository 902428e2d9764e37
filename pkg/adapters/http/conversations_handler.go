// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
	"github.com/tadagpt/conversation-gateway/pkg/core/services"
)

const (
	msgConversationStarted = "Nova conversa iniciada com sucesso!"
	msgConversationResumed = "Conversa ativa encontrada. Continuando..."
	msgConversationEnded   = "Conversa encerrada com sucesso!"
	msgCleanupDone         = "Limpeza concluída"
)

// handleStartConversation handles POST /api/clients/{clientId}/conversations/start
//
//	@Summary	Start or resume a conversation
//	@Tags		Conversations
//	@Accept		json
//	@Produce	json
//	@Param		clientId	path		string								true	"Client ID"
//	@Param		request		body		schema.StartConversationRequest		true	"Start conversation request"
//	@Success	200			{object}	schema.StartConversationResponse	"Resumed"
//	@Success	201			{object}	schema.StartConversationResponse	"Created"
//	@Failure	400			{object}	schema.ErrorResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Failure	429			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/conversations/start [post]
func (h *Handler) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req schema.StartConversationRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	clientID := r.PathValue("clientId")
	res, err := h.conversations.StartOrResume(r.Context(), clientID, services.StartRequest{
		AssistantID:    req.AssistantID,
		ExternalUserID: req.ExternalUserID,
		ExpiresIn:      req.ExpiresIn,
		MaxMessages:    req.MaxMessages,
	})
	if err != nil {
		h.writeError(w, r, err, "Erro ao iniciar conversa")
		return
	}

	resp := schema.StartConversationResponse{
		ConversationID: res.ConversationID,
		ThreadID:       res.ThreadID,
		ExpiresAt:      res.ExpiresAt,
		TimeRemaining:  res.TimeRemaining,
	}
	if res.Resumed {
		resp.Message = msgConversationResumed
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Message = msgConversationStarted
	resp.MaxMessages = res.MaxMessages
	writeJSON(w, http.StatusCreated, resp)
}

// handlePostMessage handles POST /api/clients/{clientId}/conversations/{conversationId}/message
//
//	@Summary	Send a message
//	@Tags		Conversations
//	@Accept		json
//	@Produce	json
//	@Param		clientId		path		string						true	"Client ID"
//	@Param		conversationId	path		string						true	"Conversation ID"
//	@Param		request			body		schema.PostMessageRequest	true	"Message"
//	@Success	200				{object}	services.MessageResult
//	@Failure	400				{object}	schema.ErrorResponse
//	@Failure	404				{object}	schema.ErrorResponse
//	@Failure	500				{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/conversations/{conversationId}/message [post]
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req schema.PostMessageRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	res, err := h.conversations.PostMessage(r.Context(), r.PathValue("clientId"), r.PathValue("conversationId"), req.Message)
	if err != nil {
		h.writeError(w, r, err, "Erro ao enviar mensagem")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleEndConversation handles POST /api/clients/{clientId}/conversations/{conversationId}/end
//
//	@Summary	End a conversation
//	@Tags		Conversations
//	@Accept		json
//	@Produce	json
//	@Param		clientId		path		string							true	"Client ID"
//	@Param		conversationId	path		string							true	"Conversation ID"
//	@Param		request			body		schema.EndConversationRequest	false	"Reason"
//	@Success	200				{object}	schema.EndConversationResponse
//	@Failure	400				{object}	schema.ErrorResponse
//	@Failure	404				{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/conversations/{conversationId}/end [post]
func (h *Handler) handleEndConversation(w http.ResponseWriter, r *http.Request) {
	var req schema.EndConversationRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	if req.Reason == "" {
		req.Reason = services.ReasonManual
	}

	if err := h.conversations.End(r.Context(), r.PathValue("clientId"), r.PathValue("conversationId"), req.Reason); err != nil {
		h.writeError(w, r, err, "Erro ao encerrar conversa")
		return
	}
	writeJSON(w, http.StatusOK, schema.EndConversationResponse{
		Message: msgConversationEnded,
		Reason:  req.Reason,
	})
}

// handleCleanup handles DELETE /api/clients/{clientId}/conversations/cleanup
//
//	@Summary	Purge stale conversations
//	@Tags		Conversations
//	@Produce	json
//	@Param		clientId	path		string	true	"Client ID"
//	@Success	200			{object}	schema.CleanupResponse
//	@Failure	401			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/conversations/cleanup [delete]
func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.conversations.Cleanup(r.Context(), r.PathValue("clientId"))
	if err != nil {
		h.writeError(w, r, err, "Erro na limpeza")
		return
	}
	writeJSON(w, http.StatusOK, schema.CleanupResponse{
		Message:              msgCleanupDone,
		ConversationsRemoved: removed,
	})
}

// handleGetConversation handles GET /api/clients/{clientId}/conversations/{conversationId}
//
//	@Summary	Get a conversation
//	@Tags		Conversations
//	@Produce	json
//	@Param		clientId		path		string	true	"Client ID"
//	@Param		conversationId	path		string	true	"Conversation ID"
//	@Success	200				{object}	schema.ConversationResponse
//	@Failure	404				{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/conversations/{conversationId} [get]
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationId")
	conv, err := h.conversations.Get(r.Context(), r.PathValue("clientId"), conversationID)
	if err != nil {
		h.writeError(w, r, err, "Error fetching conversation")
		return
	}
	writeJSON(w, http.StatusOK, schema.ConversationResponse{
		ID:            conversationID,
		Conversation:  conv,
		TimeRemaining: h.conversations.TimeRemaining(conv).Milliseconds(),
	})
}

// handleGetTranscript handles GET /api/clients/{clientId}/conversations/{conversationId}/transcript
//
//	@Summary	Get the archived transcript of a purged conversation
//	@Tags		Conversations
//	@Produce	json
//	@Param		clientId		path		string	true	"Client ID"
//	@Param		conversationId	path		string	true	"Conversation ID"
//	@Success	200				{object}	archive.Transcript
//	@Failure	404				{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/conversations/{conversationId}/transcript [get]
func (h *Handler) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := h.conversations.Transcript(r.Context(), r.PathValue("clientId"), r.PathValue("conversationId"))
	if err != nil {
		h.writeError(w, r, err, "Error fetching transcript")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleListTranscripts handles GET /api/clients/{clientId}/transcripts
//
//	@Summary	List archived transcripts
//	@Tags		Conversations
//	@Produce	json
//	@Param		clientId	path		string	true	"Client ID"
//	@Success	200			{object}	schema.ListTranscriptsResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/transcripts [get]
func (h *Handler) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	ids, err := h.conversations.ListTranscripts(r.Context(), clientID)
	if err != nil {
		h.writeError(w, r, err, "Error listing transcripts")
		return
	}
	writeJSON(w, http.StatusOK, schema.ListTranscriptsResponse{
		ClientID:        clientID,
		ConversationIDs: ids,
	})
}

// handleDeleteTranscript handles DELETE /api/clients/{clientId}/conversations/{conversationId}/transcript
//
//	@Summary	Delete an archived transcript
//	@Tags		Conversations
//	@Produce	json
//	@Param		clientId		path		string	true	"Client ID"
//	@Param		conversationId	path		string	true	"Conversation ID"
//	@Success	200				{object}	schema.DeleteTranscriptResponse
//	@Failure	404				{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/conversations/{conversationId}/transcript [delete]
func (h *Handler) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationId")
	if err := h.conversations.DeleteTranscript(r.Context(), r.PathValue("clientId"), conversationID); err != nil {
		h.writeError(w, r, err, "Error deleting transcript")
		return
	}
	writeJSON(w, http.StatusOK, schema.DeleteTranscriptResponse{
		Message:        "Transcript deleted",
		ConversationID: conversationID,
	})
}
