// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog is the product data source behind the built-in product
// search, stock lookup and image analysis functions. Field names follow the
// Portuguese wire format the assistants are prompted with.
package catalog

import (
	"context"
	"strings"
)

// Product is a catalog entry.
type Product struct {
	ID         int      `json:"id" yaml:"id"`
	Nome       string   `json:"nome" yaml:"nome"`
	Categoria  string   `json:"categoria" yaml:"categoria"`
	Preco      float64  `json:"preco" yaml:"preco"`
	Disponivel bool     `json:"disponivel" yaml:"disponivel"`
	Tags       []string `json:"tags,omitempty" yaml:"tags"`
}

// Attributes exposes the product to filter evaluation.
func (p Product) Attributes() map[string]any {
	return map[string]any{
		"id":         p.ID,
		"nome":       p.Nome,
		"categoria":  p.Categoria,
		"preco":      p.Preco,
		"disponivel": p.Disponivel,
		"tags":       p.Tags,
	}
}

// StockLevel is the inventory position of one product.
type StockLevel struct {
	Disponivel bool `json:"disponivel" yaml:"disponivel"`
	Quantidade int  `json:"quantidade" yaml:"quantidade"`
	Reservados int  `json:"reservados" yaml:"reservados"`
}

// ForSale is the quantity not already reserved.
func (s StockLevel) ForSale() int {
	return s.Quantidade - s.Reservados
}

// Source provides products and stock.
type Source interface {
	Products(ctx context.Context) ([]Product, error)
	Stock(ctx context.Context, productID int) (StockLevel, bool, error)
	// ResolveName maps a product name to its id, ignoring case.
	ResolveName(ctx context.Context, name string) (int, bool, error)
}

// compile-time check
var _ Source = (*Static)(nil)

// Static is an immutable in-memory Source.
type Static struct {
	products []Product
	stock    map[int]StockLevel
	names    map[string]int
}

// NewStatic builds a Source from fixed data. Name keys are matched
// case-insensitively.
func NewStatic(products []Product, stock map[int]StockLevel, names map[string]int) *Static {
	lowered := make(map[string]int, len(names))
	for name, id := range names {
		lowered[strings.ToLower(strings.TrimSpace(name))] = id
	}
	return &Static{
		products: append([]Product(nil), products...),
		stock:    stock,
		names:    lowered,
	}
}

func (s *Static) Products(_ context.Context) ([]Product, error) {
	return append([]Product(nil), s.products...), nil
}

func (s *Static) Stock(_ context.Context, productID int) (StockLevel, bool, error) {
	level, ok := s.stock[productID]
	return level, ok, nil
}

func (s *Static) ResolveName(_ context.Context, name string) (int, bool, error) {
	id, ok := s.names[strings.ToLower(strings.TrimSpace(name))]
	return id, ok, nil
}

// Demo returns the built-in demonstration catalog.
func Demo() *Static {
	return NewStatic(
		[]Product{
			{ID: 1, Nome: "Smartphone XYZ", Categoria: "eletrônicos", Preco: 899.99, Disponivel: true, Tags: []string{"smartphone", "celular", "android"}},
			{ID: 2, Nome: "Notebook ABC", Categoria: "eletrônicos", Preco: 2499.99, Disponivel: true, Tags: []string{"notebook", "laptop", "computador"}},
			{ID: 3, Nome: "Camiseta Basic", Categoria: "roupas", Preco: 49.99, Disponivel: false, Tags: []string{"camiseta", "roupa", "algodão"}},
			{ID: 4, Nome: "Tênis Sport", Categoria: "calçados", Preco: 299.99, Disponivel: true, Tags: []string{"tênis", "esporte", "corrida"}},
			{ID: 5, Nome: "Fone Bluetooth", Categoria: "eletrônicos", Preco: 199.99, Disponivel: true, Tags: []string{"fone", "headphone", "bluetooth"}},
			{ID: 6, Nome: "Relógio Digital", Categoria: "eletrônicos", Preco: 159.99, Disponivel: true, Tags: []string{"relógio", "digital", "smartwatch"}},
		},
		map[int]StockLevel{
			1: {Disponivel: true, Quantidade: 15, Reservados: 2},
			2: {Disponivel: true, Quantidade: 8, Reservados: 1},
			3: {Disponivel: false, Quantidade: 0, Reservados: 0},
			4: {Disponivel: true, Quantidade: 25, Reservados: 5},
			5: {Disponivel: true, Quantidade: 12, Reservados: 1},
		},
		map[string]int{
			"smartphone xyz": 1,
			"notebook abc":   2,
			"camiseta basic": 3,
			"tênis sport":    4,
			"fone bluetooth": 5,
		},
	)
}
