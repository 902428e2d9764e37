// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth authenticates API callers with bearer ID tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
)

// Identity is a verified caller.
type Identity struct {
	UID       string
	Email     string
	Role      string
	Claims    map[string]any
	Anonymous bool // set when authentication is disabled
}

// Verifier checks an ID token and returns the identity it asserts.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ErrVerifyTimeout is returned when verification does not finish in time.
var ErrVerifyTimeout = errors.New("timeout exceeded while verifying token")

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by Authenticate.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}

// Options configures a Middleware.
type Options struct {
	VerifyTimeout time.Duration // default 5s
	Logger        *logging.Logger
}

// Middleware guards handlers with bearer token authentication.
// A nil verifier disables authentication: every request proceeds as an
// anonymous identity that satisfies any role.
type Middleware struct {
	verifier Verifier
	timeout  time.Duration
	logger   *logging.Logger
}

// NewMiddleware creates a Middleware.
func NewMiddleware(verifier Verifier, opts Options) *Middleware {
	m := &Middleware{
		verifier: verifier,
		timeout:  opts.VerifyTimeout,
		logger:   opts.Logger,
	}
	if m.timeout <= 0 {
		m.timeout = 5 * time.Second
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	m.logger = m.logger.Component("auth")
	return m
}

// Enabled reports whether tokens are checked.
func (m *Middleware) Enabled() bool {
	return m.verifier != nil
}

// Authenticate requires a valid bearer token and stores the caller's
// identity in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &Identity{UID: "anonymous", Anonymous: true})))
			return
		}

		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Access denied", "missing bearer token")
			return
		}
		if _, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{}); err != nil {
			writeError(w, http.StatusForbidden, "Invalid token structure", err.Error())
			return
		}

		id, err := m.verify(r.Context(), token)
		if err != nil {
			m.logger.Warn("token verification failed",
				"path", r.URL.Path,
				"error", err,
			)
			writeError(w, http.StatusUnauthorized, "Invalid token", err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (m *Middleware) verify(ctx context.Context, token string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id, err := m.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrVerifyTimeout
		}
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("verifier returned no identity")
	}
	return id, nil
}

// RequireRole allows only callers whose role is one of roles. It must run
// after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok || (!id.Anonymous && !slices.Contains(roles, id.Role)) {
				writeError(w, http.StatusForbidden, "Access forbidden: insufficient role", "role not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
		"error":   detail,
	})
}
