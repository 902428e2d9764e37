// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tadagpt/conversation-gateway/pkg/docstore"
	"github.com/tadagpt/conversation-gateway/pkg/docstore/sqldoc"
	"github.com/tadagpt/conversation-gateway/pkg/provider"

	_ "modernc.org/sqlite"
)

func init() {
	docstore.Providers.Register("sqlite", func(ctx context.Context, params provider.Params) (docstore.Store, error) {
		return New(ctx, params.String("path", "conversation-gateway.db"))
	})
}

// New opens a SQLite-backed document store at path. Use ":memory:" for an
// ephemeral database.
func New(ctx context.Context, path string) (*sqldoc.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across queries.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}

	store, err := sqldoc.New(ctx, db, sqldoc.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
