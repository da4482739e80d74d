package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SortOrder is the direction of a sort key
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// SortKey is one ordering instruction. Outer keys take precedence.
type SortKey struct {
	ColumnName string     `json:"columnName"`
	ColumnType ColumnType `json:"columnType"`
	Order      SortOrder  `json:"order"`
}

// ParseSorting decodes a persisted sorting value. The empty string means no
// active sort.
func ParseSorting(text string) ([]SortKey, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var keys []SortKey
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return nil, fmt.Errorf("malformed sorting: %w", err)
	}
	return keys, nil
}

// EncodeSorting serializes sort keys for persistence
func EncodeSorting(keys []SortKey) (string, error) {
	if len(keys) == 0 {
		return "", nil
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("failed to encode sorting: %w", err)
	}
	return string(data), nil
}

// NormalizeSortKeys validates keys against the schema and fills in defaults.
// A missing order means ASC and a missing type means the column's own type.
func NormalizeSortKeys(keys []SortKey, schema Schema) ([]SortKey, error) {
	out := make([]SortKey, 0, len(keys))
	seen := make(map[string]bool, len(keys))

	for i, k := range keys {
		col, ok := schema[k.ColumnName]
		if !ok {
			return nil, fmt.Errorf("sort key %d: unknown column %q", i, k.ColumnName)
		}
		if seen[k.ColumnName] {
			return nil, fmt.Errorf("sort key %d: column %q is already sorted on", i, k.ColumnName)
		}
		seen[k.ColumnName] = true

		switch SortOrder(strings.ToUpper(string(k.Order))) {
		case "", SortAsc:
			k.Order = SortAsc
		case SortDesc:
			k.Order = SortDesc
		default:
			return nil, fmt.Errorf("sort key %d: order must be ASC or DESC, got %q", i, k.Order)
		}

		if k.ColumnType == "" {
			k.ColumnType = col.Type
		} else {
			t, err := ParseColumnType(string(k.ColumnType))
			if err != nil {
				return nil, fmt.Errorf("sort key %d: %w", i, err)
			}
			k.ColumnType = t
		}

		out = append(out, k)
	}
	return out, nil
}
