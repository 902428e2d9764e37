// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqldoc stores a docstore tree in a relational table. Each JSON
// scalar or array is one row keyed by its full path; objects exist only as
// path prefixes, so empty objects vanish as they do in the Realtime Database.
package sqldoc

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tadagpt/conversation-gateway/pkg/docstore"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name string
	// Numbered reports whether placeholders are $1, $2 rather than ?.
	Numbered bool
}

var (
	Postgres = Dialect{Name: "postgres", Numbered: true}
	SQLite   = Dialect{Name: "sqlite"}
)

// compile-time check
var _ docstore.Store = (*Store)(nil)

// Store implements docstore.Store on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database and creates the documents table if needed.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.createTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s create documents table: %w", s.dialect.Name, err)
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// subtreeClause matches a path and everything below it. substr counts
// characters in both engines, hence the rune count.
func subtreeClause(path string) (string, []any) {
	prefix := path + "/"
	return "(path = ? OR substr(path, 1, ?) = ?)", []any{path, utf8.RuneCountInString(prefix), prefix}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) subtree(ctx context.Context, q queryer, path string) ([]docstore.Leaf, error) {
	clause, args := subtreeClause(path)
	rows, err := q.QueryContext(ctx, s.rebind("SELECT path, value FROM documents WHERE "+clause+" ORDER BY path"), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer rows.Close()

	var leaves []docstore.Leaf
	for rows.Next() {
		var leaf docstore.Leaf
		var value string
		if err := rows.Scan(&leaf.Path, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		leaf.Value = []byte(value)
		leaves = append(leaves, leaf)
	}
	return leaves, rows.Err()
}

func (s *Store) Get(ctx context.Context, path string, v any) (bool, error) {
	segments, err := docstore.Split(path)
	if err != nil {
		return false, err
	}
	base := docstore.Join(segments...)

	leaves, err := s.subtree(ctx, s.db, base)
	if err != nil {
		return false, err
	}
	value, err := docstore.Assemble(base, leaves)
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}
	return true, docstore.Decode(value, v)
}

// replace removes whatever is stored at segments, including scalar ancestors
// that would shadow it, then writes value's leaves.
func (s *Store) replace(ctx context.Context, tx *sql.Tx, segments []string, value any) error {
	base := docstore.Join(segments...)

	clause, args := subtreeClause(base)
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM documents WHERE "+clause), args...); err != nil {
		return fmt.Errorf("delete %s: %w", base, err)
	}
	for _, ancestor := range docstore.Ancestors(segments) {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM documents WHERE path = ?"), ancestor); err != nil {
			return fmt.Errorf("delete %s: %w", ancestor, err)
		}
	}

	leaves, err := docstore.Flatten(base, value)
	if err != nil {
		return err
	}
	insert := s.rebind("INSERT INTO documents (path, value) VALUES (?, ?)")
	for _, leaf := range leaves {
		if _, err := tx.ExecContext(ctx, insert, leaf.Path, string(leaf.Value)); err != nil {
			return fmt.Errorf("insert %s: %w", leaf.Path, err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, path string, v any) error {
	segments, err := docstore.Split(path)
	if err != nil {
		return err
	}
	value, err := docstore.Normalize(v)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.replace(ctx, tx, segments, value)
	})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	segments, err := docstore.Split(path)
	if err != nil {
		return err
	}
	base := docstore.Join(segments...)

	type change struct {
		segments []string
		value    any
	}
	changes := make([]change, 0, len(fields))
	for key, raw := range fields {
		rel, err := docstore.Split(key)
		if err != nil {
			return err
		}
		value, err := docstore.Normalize(raw)
		if err != nil {
			return err
		}
		changes = append(changes, change{segments: append(append([]string{}, segments...), rel...), value: value})
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		clause, args := subtreeClause(base)
		var exists int
		err := tx.QueryRowContext(ctx, s.rebind("SELECT 1 FROM documents WHERE "+clause+" LIMIT 1"), args...).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%s: %w", base, docstore.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("query %s: %w", base, err)
		}
		for _, c := range changes {
			if err := s.replace(ctx, tx, c.segments, c.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	segments, err := docstore.Split(path)
	if err != nil {
		return err
	}
	clause, args := subtreeClause(docstore.Join(segments...))
	if _, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM documents WHERE "+clause), args...); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, path string) ([]string, error) {
	segments, err := docstore.Split(path)
	if err != nil {
		return nil, err
	}
	base := docstore.Join(segments...)

	leaves, err := s.subtree(ctx, s.db, base)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(leaves))
	for i, leaf := range leaves {
		paths[i] = leaf.Path
	}
	return docstore.ChildKeys(base, paths), nil
}

// Close closes the underlying database connection.
func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}
