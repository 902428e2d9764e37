// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

func TestWebhookCaller_SendsMethodHeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/hooks/stock", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"produto_id": float64(7)}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quantidade": 3}`))
	}))
	defer server.Close()

	caller := NewWebhookCaller(time.Second)
	out, err := caller.Call(context.Background(), &state.CustomFunction{
		Name:     "verificar_estoque",
		Endpoint: server.URL + "/hooks/stock",
		Method:   "put",
		Headers:  map[string]string{"X-Api-Key": "secret"},
	}, map[string]any{"produto_id": 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"quantidade": float64(3)}, out)
}

func TestWebhookCaller_DefaultsToPOSTAndTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte("pedido registrado"))
	}))
	defer server.Close()

	out, err := NewWebhookCaller(time.Second).Call(context.Background(), &state.CustomFunction{
		Name:     "registrar_pedido",
		Endpoint: server.URL,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pedido registrado", out)
}

func TestWebhookCaller_HeadersOverrideContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.loja+json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := NewWebhookCaller(time.Second).Call(context.Background(), &state.CustomFunction{
		Name:     "f",
		Endpoint: server.URL,
		Headers:  map[string]string{"Content-Type": "application/vnd.loja+json"},
	}, map[string]any{})
	require.NoError(t, err)
}

func TestWebhookCaller_Non2xxIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewWebhookCaller(time.Second).Call(context.Background(), &state.CustomFunction{
		Name:     "f",
		Endpoint: server.URL,
	}, nil)
	require.Error(t, err)

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindUpstream, apiErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "503 Service Unavailable", apiErr.Status)
}

func TestWebhookCaller_TimeoutIsUpstreamError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewWebhookCaller(50*time.Millisecond).Call(context.Background(), &state.CustomFunction{
		Name:     "lento",
		Endpoint: server.URL,
	}, nil)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindUpstream))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
