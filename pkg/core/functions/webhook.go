// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	maxWebhookResponse    = 10 << 20
)

// WebhookCaller invokes client-hosted function endpoints.
type WebhookCaller struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewWebhookCaller creates a caller whose requests are bounded by timeout.
func NewWebhookCaller(timeout time.Duration) *WebhookCaller {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookCaller{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Call sends args as a JSON body to fn.Endpoint. Any method is accepted and
// POST is the default. Custom headers override Content-Type. The response is
// decoded as JSON, or returned as a string when it is not JSON.
func (w *WebhookCaller) Call(ctx context.Context, fn *state.CustomFunction, args map[string]any) (any, error) {
	method := strings.ToUpper(strings.TrimSpace(fn.Method))
	if method == "" {
		method = http.MethodPost
	}

	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, fn.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range fn.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, apierror.Upstream(0, "", fmt.Errorf("%s %s: %w", method, fn.Endpoint, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	if err != nil {
		return nil, apierror.Upstream(0, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.Upstream(resp.StatusCode, resp.Status,
			fmt.Errorf("%s %s returned status %d", method, fn.Endpoint, resp.StatusCode))
	}

	return decodeResponse(respBody), nil
}

func decodeResponse(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(body)
	}
	return v
}
