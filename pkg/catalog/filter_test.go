// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"testing"
)

func TestEvaluateFilter_Comparison(t *testing.T) {
	attrs := map[string]any{
		"categoria":  "eletrônicos",
		"preco":      199.99,
		"disponivel": true,
		"tags":       []string{"fone", "Headphone"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq bool", ComparisonFilter{Type: "eq", Key: "disponivel", Value: true}, true},
		{"eq bool mismatch", ComparisonFilter{Type: "eq", Key: "disponivel", Value: false}, false},
		{"ne string", ComparisonFilter{Type: "ne", Key: "categoria", Value: "roupas"}, true},
		{"lte price", ComparisonFilter{Type: "lte", Key: "preco", Value: 300.0}, true},
		{"lte price boundary", ComparisonFilter{Type: "lte", Key: "preco", Value: 199.99}, true},
		{"lt price", ComparisonFilter{Type: "lt", Key: "preco", Value: 100}, false},
		{"gt price int", ComparisonFilter{Type: "gt", Key: "preco", Value: 150}, true},
		{"gte price", ComparisonFilter{Type: "gte", Key: "preco", Value: 200.0}, false},
		{"contains case-insensitive", ComparisonFilter{Type: "contains", Key: "categoria", Value: "ELETR"}, true},
		{"contains list", ComparisonFilter{Type: "contains", Key: "tags", Value: "headph"}, true},
		{"contains list miss", ComparisonFilter{Type: "contains", Key: "tags", Value: "relógio"}, false},
		{"missing key", ComparisonFilter{Type: "eq", Key: "marca", Value: "x"}, false},
		{"unknown operator", ComparisonFilter{Type: "like", Key: "categoria", Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateFilter(tt.filter, attrs); got != tt.want {
				t.Errorf("EvaluateFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateFilter_Compound(t *testing.T) {
	attrs := map[string]any{"nome": "Fone Bluetooth", "preco": 199.99}

	cheapFone := And(
		ComparisonFilter{Type: "contains", Key: "nome", Value: "fone"},
		ComparisonFilter{Type: "lte", Key: "preco", Value: 300.0},
	)
	if !EvaluateFilter(cheapFone, attrs) {
		t.Error("expected and-filter to match")
	}

	expensive := And(
		ComparisonFilter{Type: "contains", Key: "nome", Value: "fone"},
		ComparisonFilter{Type: "gt", Key: "preco", Value: 300.0},
	)
	if EvaluateFilter(expensive, attrs) {
		t.Error("expected and-filter not to match")
	}

	either := Or(
		ComparisonFilter{Type: "contains", Key: "nome", Value: "notebook"},
		ComparisonFilter{Type: "lt", Key: "preco", Value: 200.0},
	)
	if !EvaluateFilter(either, attrs) {
		t.Error("expected or-filter to match")
	}

	if !EvaluateFilter(And(), attrs) {
		t.Error("empty and-filter should match everything")
	}
	if EvaluateFilter(Or(), attrs) {
		t.Error("empty or-filter should match nothing")
	}
	if EvaluateFilter(CompoundFilter{Type: "xor"}, attrs) {
		t.Error("unknown compound type should not match")
	}
}
