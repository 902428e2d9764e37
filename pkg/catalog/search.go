// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
)

// Query is a product search. Zero fields impose no constraint; all set
// fields must hold.
type Query struct {
	Categoria    string
	PrecoMax     float64
	Disponivel   *bool
	PalavraChave string
}

// Filter compiles the query into a compound filter.
func (q Query) Filter() Filter {
	var filters []Filter
	if q.Categoria != "" {
		filters = append(filters, ComparisonFilter{Type: "contains", Key: "categoria", Value: q.Categoria})
	}
	if q.PrecoMax > 0 {
		filters = append(filters, ComparisonFilter{Type: "lte", Key: "preco", Value: q.PrecoMax})
	}
	if q.Disponivel != nil {
		filters = append(filters, ComparisonFilter{Type: "eq", Key: "disponivel", Value: *q.Disponivel})
	}
	if q.PalavraChave != "" {
		filters = append(filters, Or(
			ComparisonFilter{Type: "contains", Key: "nome", Value: q.PalavraChave},
			ComparisonFilter{Type: "contains", Key: "tags", Value: q.PalavraChave},
		))
	}
	return And(filters...)
}

// Search returns the products of src matching q, in catalog order.
func Search(ctx context.Context, src Source, q Query) ([]Product, error) {
	products, err := src.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	filter := q.Filter()
	matched := make([]Product, 0, len(products))
	for _, p := range products {
		if EvaluateFilter(filter, p.Attributes()) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}
