// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("message is required"), http.StatusBadRequest},
		{NotFound("conversation %s not found", "c1"), http.StatusNotFound},
		{InvalidState("conversation is not active"), http.StatusBadRequest},
		{Expired("conversation expired"), http.StatusBadRequest},
		{QuotaExceeded("message limit reached"), http.StatusBadRequest},
		{Provider("failed", ""), http.StatusInternalServerError},
		{Upstream(503, "503 Service Unavailable", nil), http.StatusBadGateway},
		{&Error{Kind: KindUnauthorized, Message: "Access denied"}, http.StatusUnauthorized},
		{&Error{Kind: KindForbidden, Message: "Insufficient permissions"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), tt.err.Kind)
	}
}

func TestAsThroughWrapping(t *testing.T) {
	base := NotFound("assistant %s not found", "a1")
	wrapped := fmt.Errorf("lookup: %w", base)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Same(t, base, got)
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindExpired))
	assert.False(t, Is(errors.New("plain"), KindNotFound))
}

func TestProviderCarriesStatus(t *testing.T) {
	err := Provider("expired", "run timed out")
	assert.Equal(t, "expired", err.Status)
	assert.Equal(t, "run ended with status expired: run timed out", err.Error())
}

func TestUpstreamMessage(t *testing.T) {
	assert.Equal(t, "upstream returned 404 Not Found", Upstream(404, "404 Not Found", nil).Error())

	timeout := errors.New("context deadline exceeded")
	err := Upstream(0, "", timeout)
	assert.Equal(t, "upstream call failed: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, timeout)
	assert.Equal(t, "context deadline exceeded", err.Detail())
}
