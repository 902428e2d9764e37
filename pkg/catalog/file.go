// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileCatalog is the YAML layout accepted by LoadFile:
//
//	products:
//	  - {id: 1, nome: Smartphone XYZ, categoria: eletrônicos, preco: 899.99, disponivel: true, tags: [celular]}
//	stock:
//	  1: {disponivel: true, quantidade: 15, reservados: 2}
//	names:
//	  smartphone xyz: 1
type fileCatalog struct {
	Products []Product          `yaml:"products"`
	Stock    map[int]StockLevel `yaml:"stock"`
	Names    map[string]int     `yaml:"names"`
}

// LoadFile reads a catalog from a YAML file. Products without a names entry
// are resolvable by their own name.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[int]bool, len(fc.Products))
	for _, p := range fc.Products {
		if p.ID == 0 || p.Nome == "" {
			return nil, fmt.Errorf("catalog product needs id and nome: %+v", p)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("catalog product id %d is duplicated", p.ID)
		}
		seen[p.ID] = true
	}

	names := make(map[string]int, len(fc.Products)+len(fc.Names))
	for _, p := range fc.Products {
		names[p.Nome] = p.ID
	}
	for name, id := range fc.Names {
		names[name] = id
	}
	if fc.Stock == nil {
		fc.Stock = map[int]StockLevel{}
	}
	return NewStatic(fc.Products, fc.Stock, names), nil
}
