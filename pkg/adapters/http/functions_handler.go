// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
)

// handleExecuteFunction handles POST /api/functions/execute/{clientId}/{assistantId}
//
//	@Summary	Execute an assistant function directly
//	@Tags		Functions
//	@Accept		json
//	@Produce	json
//	@Param		clientId	path		string							true	"Client ID"
//	@Param		assistantId	path		string							true	"Assistant ID"
//	@Param		request		body		schema.ExecuteFunctionRequest	true	"Function call"
//	@Success	200			{object}	schema.ExecuteFunctionResponse
//	@Failure	400			{object}	schema.ErrorResponse
//	@Failure	404			{object}	schema.ErrorResponse
//	@Failure	502			{object}	schema.ErrorResponse
//	@Router		/api/functions/execute/{clientId}/{assistantId} [post]
func (h *Handler) handleExecuteFunction(w http.ResponseWriter, r *http.Request) {
	var req schema.ExecuteFunctionRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	if req.Arguments == nil {
		req.Arguments = map[string]any{}
	}

	result, err := h.directory.ExecuteFunction(r.Context(), r.PathValue("clientId"), r.PathValue("assistantId"), req.FunctionName, req.Arguments)
	if err != nil {
		h.writeError(w, r, err, "Error executing function")
		return
	}
	writeJSON(w, http.StatusOK, schema.ExecuteFunctionResponse{Result: result})
}
