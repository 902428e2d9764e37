// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBackend struct{ name string }

func TestRegistry_RegisterAndNew(t *testing.T) {
	r := NewRegistry[*mockBackend]("test")
	r.Register("alpha", func(_ context.Context, params Params) (*mockBackend, error) {
		return &mockBackend{name: params.String("name", "default")}, nil
	})

	b, err := r.New(context.Background(), "alpha", Params{"name": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", b.name)

	b, err = r.New(context.Background(), "alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, "default", b.name)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry[*mockBackend]("widget")
	r.Register("a", func(_ context.Context, _ Params) (*mockBackend, error) {
		return &mockBackend{}, nil
	})

	_, err := r.New(context.Background(), "z", nil)
	require.Error(t, err)
	assert.Equal(t, `unknown widget provider: "z" (available: [a])`, err.Error())
}

func TestRegistry_FactoryErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry[*mockBackend]("widget")
	r.Register("a", func(_ context.Context, _ Params) (*mockBackend, error) {
		return nil, boom
	})

	_, err := r.New(context.Background(), "a", nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `widget "a"`)
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry[*mockBackend]("test")
	r.Register("bravo", func(_ context.Context, _ Params) (*mockBackend, error) {
		return &mockBackend{}, nil
	})
	r.Register("alpha", func(_ context.Context, _ Params) (*mockBackend, error) {
		return &mockBackend{}, nil
	})

	assert.Equal(t, []string{"alpha", "bravo"}, r.Available())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry[*mockBackend]("test")
	r.Register("dup", func(_ context.Context, _ Params) (*mockBackend, error) {
		return &mockBackend{}, nil
	})

	assert.Panics(t, func() {
		r.Register("dup", func(_ context.Context, _ Params) (*mockBackend, error) {
			return &mockBackend{}, nil
		})
	})
}

func TestParams(t *testing.T) {
	p := Params{"on": "true", "ttl": "90s", "bad": "nope", "dir": "/tmp"}

	assert.True(t, p.Bool("on", false))
	assert.True(t, p.Bool("bad", true))
	assert.Equal(t, 90*time.Second, p.Duration("ttl", time.Second))
	assert.Equal(t, time.Second, p.Duration("missing", time.Second))

	v, err := p.Require("dir")
	require.NoError(t, err)
	assert.Equal(t, "/tmp", v)

	_, err = p.Require("bucket")
	assert.EqualError(t, err, `missing required parameter "bucket"`)
}
