package erpnext

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// clientFilterFetchLimit caps the unfiltered fetch backing local
// filtering. Self-service doctypes stay well under this per employee.
const clientFilterFetchLimit = 5000

// ListWithFallback fetches rows of a doctype by trying an ordered list of
// strategies, short-circuiting on the first success:
//
//  1. resource API with server-side filters,
//  2. method API (frappe.client.get_list), which some sites permit where
//     the resource endpoint 403s,
//  3. resource API without filters, applying the filters locally.
//
// Rows are returned raw; callers re-decode into their typed rows. The last
// strategy's error is returned only when all three fail.
func (c *Client) ListWithFallback(ctx context.Context, doctype string, opts ListOptions) ([]Doc, error) {
	strategies := []struct {
		name string
		run  func() ([]Doc, error)
	}{
		{"resource", func() ([]Doc, error) {
			var rows []Doc
			err := c.List(ctx, doctype, opts, &rows)
			return rows, err
		}},
		{"method", func() ([]Doc, error) {
			var rows []Doc
			err := c.MethodGetList(ctx, doctype, opts, &rows)
			return rows, err
		}},
		{"client_filter", func() ([]Doc, error) {
			unfiltered := opts
			unfiltered.Filters = nil
			// Local filtering needs every field present, and the caller's
			// limit would truncate before the filters run. Fetch wide and
			// re-apply the limit to the matches.
			unfiltered.Fields = nil
			unfiltered.Limit = clientFilterFetchLimit
			var rows []Doc
			if err := c.List(ctx, doctype, unfiltered, &rows); err != nil {
				return nil, err
			}
			matched := make([]Doc, 0, len(rows))
			for _, row := range rows {
				if matchFilters(row, opts.Filters) {
					matched = append(matched, row)
				}
			}
			if opts.Limit > 0 && len(matched) > opts.Limit {
				matched = matched[:opts.Limit]
			}
			return matched, nil
		}},
	}

	var lastErr error
	for _, s := range strategies {
		rows, err := s.run()
		if err == nil {
			c.logger.Debug("list fetch succeeded", "doctype", doctype, "strategy", s.name, "rows", len(rows))
			return rows, nil
		}
		lastErr = err
		c.logger.Debug("list strategy failed", "doctype", doctype, "strategy", s.name, "error", err)
	}
	return nil, fmt.Errorf("all list strategies failed for %s: %w", doctype, lastErr)
}

// Rows re-decodes raw documents into a typed slice. Fields absent from a
// row are simply left zero, matching the tolerant-parsing policy.
func Rows[T any](docs []Doc) ([]T, error) {
	encoded, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("re-encoding rows: %w", err)
	}
	var out []T
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}
	return out, nil
}

// matchFilters evaluates filter triples locally over a raw row. Operators
// cover what the self-service queries actually use.
func matchFilters(doc Doc, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(doc, f) {
			return false
		}
	}
	return true
}

func matchFilter(doc Doc, f Filter) bool {
	value, ok := doc[f.Field]
	if !ok {
		return false
	}

	switch f.Op {
	case "=", "":
		return compareValues(value, f.Value) == 0
	case "!=":
		return compareValues(value, f.Value) != 0
	case ">":
		return compareValues(value, f.Value) > 0
	case "<":
		return compareValues(value, f.Value) < 0
	case ">=":
		return compareValues(value, f.Value) >= 0
	case "<=":
		return compareValues(value, f.Value) <= 0
	case "like":
		pattern, _ := f.Value.(string)
		text, _ := value.(string)
		needle := strings.Trim(pattern, "%")
		return strings.Contains(strings.ToLower(text), strings.ToLower(needle))
	case "in":
		for _, candidate := range anySlice(f.Value) {
			if compareValues(value, candidate) == 0 {
				return true
			}
		}
		return false
	default:
		// Unknown operator: fail closed so the caller sees fewer rows
		// rather than wrong ones.
		return false
	}
}

// compareValues orders two loosely-typed values: numerically when both are
// numbers, lexically otherwise. Dates in "YYYY-MM-DD [HH:mm:ss]" form order
// correctly as strings.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func anySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}
