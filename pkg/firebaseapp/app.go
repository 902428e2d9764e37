// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package firebaseapp builds the Firebase Admin app shared by the Realtime
// Database document store and ID-token verification.
package firebaseapp

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Options configures the Firebase Admin app.
type Options struct {
	ProjectID       string
	DatabaseURL     string
	CredentialsFile string // service account JSON; empty means application default credentials
}

// New creates a Firebase Admin app.
func New(ctx context.Context, opts Options) (*firebase.App, error) {
	cfg := &firebase.Config{
		ProjectID:   opts.ProjectID,
		DatabaseURL: opts.DatabaseURL,
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, cfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app, nil
}
