// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package functions

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tadagpt/conversation-gateway/pkg/catalog"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
)

// Built-in function names.
const (
	SearchProductsFunction = "buscar_produtos"
	CheckStockFunction     = "verificar_estoque"
	AnalyzeImageFunction   = "analisar_imagem_produto"
)

// ProductSearchFilters echoes the filters a search applied.
type ProductSearchFilters struct {
	Categoria    string  `json:"categoria,omitempty"`
	PrecoMax     float64 `json:"preco_max,omitempty"`
	Disponivel   *bool   `json:"disponivel,omitempty"`
	PalavraChave string  `json:"palavra_chave,omitempty"`
}

func (f ProductSearchFilters) query() catalog.Query {
	return catalog.Query{
		Categoria:    f.Categoria,
		PrecoMax:     f.PrecoMax,
		Disponivel:   f.Disponivel,
		PalavraChave: f.PalavraChave,
	}
}

// ProductSearchResult is the output of buscar_produtos.
type ProductSearchResult struct {
	Produtos         []catalog.Product    `json:"produtos"`
	Total            int                  `json:"total"`
	FiltrosAplicados ProductSearchFilters `json:"filtros_aplicados"`
}

// StockResult is the output of verificar_estoque for a known product.
type StockResult struct {
	ProdutoID           int    `json:"produto_id"`
	ProdutoNome         string `json:"produto_nome,omitempty"`
	Disponivel          bool   `json:"disponivel"`
	Quantidade          int    `json:"quantidade"`
	Reservados          int    `json:"reservados"`
	DisponivelParaVenda int    `json:"disponivel_para_venda"`
}

// ErrorResult is a function output reporting a domain failure.
type ErrorResult struct {
	Erro string `json:"erro"`
}

// Builtins implements the catalog-backed functions.
type Builtins struct {
	Catalog     catalog.Source
	Vision      api.VisionClient
	VisionModel string
}

// Register binds every built-in to e.
func (b *Builtins) Register(e *Executor) {
	e.Register(SearchProductsFunction, b.SearchProducts)
	e.Register(CheckStockFunction, b.CheckStock)
	e.Register(AnalyzeImageFunction, b.AnalyzeImage)
}

// SearchProducts filters the catalog by categoria, preco_max, disponivel and
// palavra_chave. Absent arguments impose no constraint.
func (b *Builtins) SearchProducts(ctx context.Context, args map[string]any) (any, error) {
	var filters ProductSearchFilters
	if err := decodeArgs(args, &filters); err != nil {
		return nil, err
	}
	return b.search(ctx, filters)
}

func (b *Builtins) search(ctx context.Context, filters ProductSearchFilters) (*ProductSearchResult, error) {
	products, err := catalog.Search(ctx, b.Catalog, filters.query())
	if err != nil {
		return nil, err
	}
	return &ProductSearchResult{
		Produtos:         products,
		Total:            len(products),
		FiltrosAplicados: filters,
	}, nil
}

type stockArgs struct {
	ProdutoID   json.RawMessage `json:"produto_id"`
	ProdutoNome string          `json:"produto_nome"`
}

// CheckStock reports the stock of a product given by produto_id, or by
// produto_nome when no usable id is given.
func (b *Builtins) CheckStock(ctx context.Context, args map[string]any) (any, error) {
	var in stockArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	id, ok := parseProductID(in.ProdutoID)
	if !ok && strings.TrimSpace(in.ProdutoNome) != "" {
		var err error
		id, ok, err = b.Catalog.ResolveName(ctx, in.ProdutoNome)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return ErrorResult{Erro: "Product not found"}, nil
	}

	level, found, err := b.Catalog.Stock(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return ErrorResult{Erro: "Product not found"}, nil
	}

	name := in.ProdutoNome
	if products, err := b.Catalog.Products(ctx); err == nil {
		for _, p := range products {
			if p.ID == id {
				name = p.Nome
				break
			}
		}
	}

	return &StockResult{
		ProdutoID:           id,
		ProdutoNome:         name,
		Disponivel:          level.Disponivel,
		Quantidade:          level.Quantidade,
		Reservados:          level.Reservados,
		DisponivelParaVenda: level.ForSale(),
	}, nil
}

// parseProductID accepts an integral JSON number or a numeric string.
func parseProductID(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
