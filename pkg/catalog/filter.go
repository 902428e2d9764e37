// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"strings"
)

// Filter is a marker interface for ComparisonFilter and CompoundFilter.
type Filter interface {
	isFilter()
}

// ComparisonFilter compares one product attribute against a value.
type ComparisonFilter struct {
	Type  string `json:"type"` // eq, ne, gt, gte, lt, lte, contains
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (ComparisonFilter) isFilter() {}

// CompoundFilter combines filters with a logical operator. An "and" with no
// filters matches everything.
type CompoundFilter struct {
	Type    string   `json:"type"` // and, or
	Filters []Filter `json:"filters"`
}

func (CompoundFilter) isFilter() {}

// And is shorthand for an "and" CompoundFilter.
func And(filters ...Filter) CompoundFilter {
	return CompoundFilter{Type: "and", Filters: filters}
}

// Or is shorthand for an "or" CompoundFilter.
func Or(filters ...Filter) CompoundFilter {
	return CompoundFilter{Type: "or", Filters: filters}
}

// EvaluateFilter reports whether attributes match the filter.
func EvaluateFilter(filter Filter, attributes map[string]any) bool {
	switch f := filter.(type) {
	case ComparisonFilter:
		return evaluateComparison(f, attributes)
	case CompoundFilter:
		return evaluateCompound(f, attributes)
	default:
		return false
	}
}

func evaluateComparison(f ComparisonFilter, attrs map[string]any) bool {
	attrVal, exists := attrs[f.Key]
	if !exists {
		return false
	}

	if f.Type == "contains" {
		return containsFold(attrVal, fmt.Sprint(f.Value))
	}

	cmp := compareValues(attrVal, f.Value)

	switch f.Type {
	case "eq":
		return cmp == 0
	case "ne":
		return cmp != 0
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "lte":
		return cmp <= 0
	default:
		return false
	}
}

// containsFold matches a case-insensitive substring against a string
// attribute, or against any element of a string list attribute.
func containsFold(attr any, needle string) bool {
	needle = strings.ToLower(needle)
	switch v := attr.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), needle)
	case []string:
		for _, s := range v {
			if strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		}
	}
	return false
}

// compareValues compares two values, returning -1, 0, or 1. Numbers compare
// numerically, everything else by its text form.
func compareValues(a, b any) int {
	aNum, aOK := toFloat64(a)
	bNum, bOK := toFloat64(b)
	if aOK && bOK {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	aStr := fmt.Sprint(a)
	bStr := fmt.Sprint(b)
	switch {
	case aStr < bStr:
		return -1
	case aStr > bStr:
		return 1
	default:
		return 0
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func evaluateCompound(f CompoundFilter, attrs map[string]any) bool {
	switch f.Type {
	case "and":
		for _, sub := range f.Filters {
			if !EvaluateFilter(sub, attrs) {
				return false
			}
		}
		return true
	case "or":
		for _, sub := range f.Filters {
			if EvaluateFilter(sub, attrs) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
