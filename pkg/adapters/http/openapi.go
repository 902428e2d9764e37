// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tadagpt/conversation-gateway/docs"
	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
)

var (
	openAPIOnce sync.Once
	openAPIJSON []byte
	openAPIErr  error
)

// loadOpenAPI converts the embedded YAML document to JSON once.
func loadOpenAPI() ([]byte, error) {
	openAPIOnce.Do(func() {
		var spec any
		if err := yaml.Unmarshal(docs.OpenAPISpec, &spec); err != nil {
			openAPIErr = fmt.Errorf("parse openapi document: %w", err)
			return
		}
		openAPIJSON, openAPIErr = json.Marshal(spec)
	})
	return openAPIJSON, openAPIErr
}

// handleOpenAPI serves the API description as JSON.
//
//	@Summary	OpenAPI document
//	@Tags		Health
//	@Produce	json
//	@Success	200
//	@Router		/openapi.json [get]
func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := loadOpenAPI()
	if err != nil {
		h.logger.Error("Failed to load OpenAPI document", "error", err)
		writeJSON(w, http.StatusInternalServerError, schema.ErrorResponse{
			Message: "Failed to load OpenAPI document",
			Error:   err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
