// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Nome
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestSearch_Composition(t *testing.T) {
	ctx := context.Background()
	demo := Demo()

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "no filters",
			query: Query{},
			want:  []string{"Smartphone XYZ", "Notebook ABC", "Camiseta Basic", "Tênis Sport", "Fone Bluetooth", "Relógio Digital"},
		},
		{
			name:  "category and price ceiling",
			query: Query{Categoria: "eletrônicos", PrecoMax: 300},
			want:  []string{"Fone Bluetooth", "Relógio Digital"},
		},
		{
			name:  "category is case-insensitive substring",
			query: Query{Categoria: "CALÇ"},
			want:  []string{"Tênis Sport"},
		},
		{
			name:  "availability false",
			query: Query{Disponivel: boolPtr(false)},
			want:  []string{"Camiseta Basic"},
		},
		{
			name:  "keyword over tags",
			query: Query{PalavraChave: "headphone"},
			want:  []string{"Fone Bluetooth"},
		},
		{
			name:  "keyword over name",
			query: Query{PalavraChave: "notebook", Disponivel: boolPtr(true)},
			want:  []string{"Notebook ABC"},
		},
		{
			name:  "nothing matches",
			query: Query{Categoria: "roupas", Disponivel: boolPtr(true)},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Search(ctx, demo, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestDemo_StockAndNames(t *testing.T) {
	ctx := context.Background()
	demo := Demo()

	level, ok, err := demo.Stock(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, level.ForSale())

	_, ok, err = demo.Stock(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	id, ok, err := demo.ResolveName(ctx, "  Tênis SPORT ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, id)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - id: 10
    nome: Cadeira Gamer
    categoria: móveis
    preco: 1299.90
    disponivel: true
    tags: [cadeira, gamer]
stock:
  10: {disponivel: true, quantidade: 3, reservados: 1}
names:
  cadeira: 10
`), 0o600))

	src, err := LoadFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	products, err := Search(ctx, src, Query{Categoria: "móveis"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cadeira Gamer"}, names(products))

	for _, name := range []string{"cadeira", "cadeira gamer"} {
		id, ok, err := src.ResolveName(ctx, name)
		require.NoError(t, err)
		assert.True(t, ok, name)
		assert.Equal(t, 10, id)
	}

	level, ok, err := src.Stock(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, level.ForSale())
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - {id: 1, nome: A}\n  - {id: 1, nome: B}\n"), 0o600))

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "duplicated")
}
