// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

// compile-time check
var _ Verifier = (*FirebaseVerifier)(nil)

// FirebaseVerifier verifies Firebase ID tokens with the Admin SDK.
type FirebaseVerifier struct {
	client    *fbauth.Client
	roleClaim string
}

// NewFirebaseVerifier creates a verifier from a Firebase app. roleClaim names
// the custom claim holding the caller's role, default "role".
func NewFirebaseVerifier(ctx context.Context, app *firebase.App, roleClaim string) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	if roleClaim == "" {
		roleClaim = "role"
	}
	return &FirebaseVerifier{client: client, roleClaim: roleClaim}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return identityFromToken(tok, v.roleClaim), nil
}

func identityFromToken(tok *fbauth.Token, roleClaim string) *Identity {
	id := &Identity{UID: tok.UID, Claims: tok.Claims}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	if role, ok := tok.Claims[roleClaim].(string); ok {
		id.Role = role
	}
	return id
}
