// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
	"github.com/tadagpt/conversation-gateway/pkg/core/services"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

func toAssistant(clientID string, a *state.ClientAssistant) *schema.Assistant {
	return &schema.Assistant{ID: a.ID, ClientID: clientID, ClientAssistant: a}
}

func toAssistantDetails(clientID string, d *services.AssistantDetails) *schema.Assistant {
	out := toAssistant(clientID, d.Assistant)
	out.OpenAIData = d.Provider
	out.Warning = d.Warning
	return out
}

// handleCreateAssistant handles POST /api/clients/{clientId}/assistants
//
//	@Summary	Create an assistant
//	@Tags		Assistants
//	@Accept		json
//	@Produce	json
//	@Param		clientId	path		string							true	"Client ID"
//	@Param		request		body		services.CreateAssistantRequest	true	"Assistant"
//	@Success	201			{object}	schema.CreateAssistantResponse
//	@Failure	400			{object}	schema.ErrorResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/assistants [post]
func (h *Handler) handleCreateAssistant(w http.ResponseWriter, r *http.Request) {
	var req services.CreateAssistantRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	clientID := r.PathValue("clientId")
	details, err := h.directory.CreateAssistant(r.Context(), clientID, req)
	if err != nil {
		h.writeError(w, r, err, "Error creating assistant")
		return
	}

	h.logger.Info("Assistant created",
		"client_id", clientID,
		"assistant_id", details.Assistant.ID)
	writeJSON(w, http.StatusCreated, schema.CreateAssistantResponse{
		AssistantID: details.Assistant.ID,
		Assistant:   toAssistantDetails(clientID, details),
		Message:     "Assistant created successfully!",
	})
}

// handleListAssistants handles GET /api/clients/{clientId}/assistants
//
//	@Summary	List a client's assistants
//	@Tags		Assistants
//	@Produce	json
//	@Param		clientId	path		string	true	"Client ID"
//	@Success	200			{object}	schema.ListAssistantsResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/assistants [get]
func (h *Handler) handleListAssistants(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	list, err := h.directory.ListAssistants(r.Context(), clientID)
	if err != nil {
		h.writeError(w, r, err, "Error listing assistants")
		return
	}

	assistants := make([]schema.Assistant, 0, len(list))
	for _, a := range list {
		assistants = append(assistants, *toAssistant(clientID, a))
	}
	writeJSON(w, http.StatusOK, schema.ListAssistantsResponse{
		ClientID:   clientID,
		Assistants: assistants,
	})
}

// handleGetAssistant handles GET /api/clients/{clientId}/assistants/{assistantId}
//
//	@Summary	Get an assistant with its provider data
//	@Tags		Assistants
//	@Produce	json
//	@Param		clientId	path		string	true	"Client ID"
//	@Param		assistantId	path		string	true	"Assistant ID"
//	@Success	200			{object}	schema.Assistant
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/assistants/{assistantId} [get]
func (h *Handler) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	details, err := h.directory.GetAssistant(r.Context(), clientID, r.PathValue("assistantId"))
	if err != nil {
		h.writeError(w, r, err, "Error fetching assistant")
		return
	}
	writeJSON(w, http.StatusOK, toAssistantDetails(clientID, details))
}

// handleUpdateAssistant handles PUT /api/clients/{clientId}/assistants/{assistantId}
//
//	@Summary	Update an assistant
//	@Tags		Assistants
//	@Accept		json
//	@Produce	json
//	@Param		clientId	path		string						true	"Client ID"
//	@Param		assistantId	path		string						true	"Assistant ID"
//	@Param		request		body		services.AssistantUpdate	true	"Fields to change"
//	@Success	200			{object}	schema.AssistantActionResponse
//	@Failure	400			{object}	schema.ErrorResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/assistants/{assistantId} [put]
func (h *Handler) handleUpdateAssistant(w http.ResponseWriter, r *http.Request) {
	var upd services.AssistantUpdate
	if err := decode(r, &upd); err != nil {
		h.badRequest(w, err)
		return
	}

	clientID, assistantID := r.PathValue("clientId"), r.PathValue("assistantId")
	a, err := h.directory.UpdateAssistant(r.Context(), clientID, assistantID, upd)
	if err != nil {
		h.writeError(w, r, err, "Error updating assistant")
		return
	}
	writeJSON(w, http.StatusOK, schema.AssistantActionResponse{
		Message:     "Assistant updated successfully!",
		AssistantID: assistantID,
		ClientID:    clientID,
		Assistant:   toAssistant(clientID, a),
	})
}

// handleDeleteAssistant handles DELETE /api/clients/{clientId}/assistants/{assistantId}
//
//	@Summary	Delete an assistant
//	@Tags		Assistants
//	@Produce	json
//	@Param		clientId	path		string	true	"Client ID"
//	@Param		assistantId	path		string	true	"Assistant ID"
//	@Success	200			{object}	schema.AssistantActionResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId}/assistants/{assistantId} [delete]
func (h *Handler) handleDeleteAssistant(w http.ResponseWriter, r *http.Request) {
	clientID, assistantID := r.PathValue("clientId"), r.PathValue("assistantId")
	if err := h.directory.DeleteAssistant(r.Context(), clientID, assistantID); err != nil {
		h.writeError(w, r, err, "Error deleting assistant")
		return
	}
	writeJSON(w, http.StatusOK, schema.AssistantActionResponse{
		Message:     "Assistant deleted successfully!",
		AssistantID: assistantID,
		ClientID:    clientID,
	})
}
