// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
	"github.com/tadagpt/conversation-gateway/pkg/core/services"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

func toClient(info *state.ClientInfo) *schema.Client {
	return &schema.Client{ID: info.ID, ClientInfo: info}
}

// handleCreateClient handles POST /api/clients
//
//	@Summary	Register a client
//	@Tags		Clients
//	@Accept		json
//	@Produce	json
//	@Param		request	body		services.CreateClientRequest	true	"Client"
//	@Success	201		{object}	schema.CreateClientResponse
//	@Failure	400		{object}	schema.ErrorResponse
//	@Failure	403		{object}	schema.ErrorResponse
//	@Router		/api/clients [post]
func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req services.CreateClientRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	info, err := h.directory.CreateClient(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, "Erro ao criar cliente")
		return
	}

	h.logger.Info("Client created", "client_id", info.ID)
	writeJSON(w, http.StatusCreated, schema.CreateClientResponse{
		ClientID: info.ID,
		Client:   toClient(info),
		Message:  "Cliente criado com sucesso!",
	})
}

// handleListClients handles GET /api/clients
//
//	@Summary	List clients
//	@Tags		Clients
//	@Produce	json
//	@Success	200	{object}	schema.ListClientsResponse
//	@Failure	403	{object}	schema.ErrorResponse
//	@Router		/api/clients [get]
func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	infos, err := h.directory.ListClients(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Error fetching clients")
		return
	}

	clients := make([]schema.Client, 0, len(infos))
	for _, info := range infos {
		clients = append(clients, *toClient(info))
	}
	writeJSON(w, http.StatusOK, schema.ListClientsResponse{Clients: clients})
}

// handleGetClient handles GET /api/clients/{clientId}
//
//	@Summary	Get a client
//	@Tags		Clients
//	@Produce	json
//	@Param		clientId	path		string	true	"Client ID"
//	@Success	200			{object}	schema.Client
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId} [get]
func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	info, err := h.directory.GetClient(r.Context(), r.PathValue("clientId"))
	if err != nil {
		h.writeError(w, r, err, "Error fetching client")
		return
	}
	writeJSON(w, http.StatusOK, toClient(info))
}

// handleUpdateClient handles PUT /api/clients/{clientId}
//
//	@Summary	Update a client
//	@Tags		Clients
//	@Accept		json
//	@Produce	json
//	@Param		clientId	path		string					true	"Client ID"
//	@Param		request		body		services.ClientUpdate	true	"Fields to change"
//	@Success	200			{object}	schema.UpdateClientResponse
//	@Failure	400			{object}	schema.ErrorResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Router		/api/clients/{clientId} [put]
func (h *Handler) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var upd services.ClientUpdate
	if err := decode(r, &upd); err != nil {
		h.badRequest(w, err)
		return
	}

	clientID := r.PathValue("clientId")
	info, err := h.directory.UpdateClient(r.Context(), clientID, upd)
	if err != nil {
		h.writeError(w, r, err, "Error updating client")
		return
	}
	writeJSON(w, http.StatusOK, schema.UpdateClientResponse{
		Message:  "Client updated successfully!",
		ClientID: clientID,
		Client:   toClient(info),
	})
}
