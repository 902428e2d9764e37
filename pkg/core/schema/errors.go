// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema holds the JSON bodies of the HTTP API.
package schema

// ErrorResponse is the body of every failed request. Status carries the raw
// run status when the LLM provider run did not complete.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  string `json:"status,omitempty"`
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status string `json:"status"`
}
