package view

import (
	"sort"
	"strings"
	"time"
)

// Direction is the sort order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts asc/desc, defaulting to ascending.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), "desc") {
		return Descending
	}
	return Ascending
}

// SortSpec names the sort column and direction.
type SortSpec struct {
	Key       string
	Direction Direction
}

// Toggle returns the spec after selecting key: the same key flips the
// direction, a different key starts ascending.
func (s SortSpec) Toggle(key string) SortSpec {
	if s.Key == key {
		if s.Direction == Ascending {
			return SortSpec{Key: key, Direction: Descending}
		}
		return SortSpec{Key: key, Direction: Ascending}
	}
	return SortSpec{Key: key, Direction: Ascending}
}

// Filter returns the items where any searchable field contains term,
// case-insensitively. The term is matched as typed, surrounding spaces
// included. The result is always a new slice; an empty term keeps every item
// in order.
func Filter[T any](items []T, cfg Config[T], term string) []T {
	needle := strings.ToLower(term)
	out := make([]T, 0, len(items))
	if needle == "" {
		return append(out, items...)
	}
	for _, item := range items {
		for _, key := range cfg.Searchable {
			fn, ok := cfg.Fields[key]
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(Format(fn(item))), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// Sort returns a stably sorted copy of items. An unknown key leaves the
// order unchanged.
func Sort[T any](items []T, cfg Config[T], spec SortSpec) []T {
	out := append(make([]T, 0, len(items)), items...)
	fn, ok := cfg.Fields[spec.Key]
	if !ok {
		return out
	}
	keys := make([]interface{}, len(out))
	for i, item := range out {
		keys[i] = fn(item)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if spec.Direction == Descending {
			return compare(keys[idx[b]], keys[idx[a]]) < 0
		}
		return compare(keys[idx[a]], keys[idx[b]]) < 0
	})
	sorted := make([]T, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// Project filters then sorts.
func Project[T any](items []T, cfg Config[T], term string, spec SortSpec) []T {
	return Sort(Filter(items, cfg, term), cfg, spec)
}

// compare orders two values of the same kind: strings lexicographically,
// times chronologically, false before true, numbers numerically. Missing
// values sort first.
func compare(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case time.Time:
		y, _ := b.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		default:
			return 0
		}
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	}
	xf, xok := number(a)
	yf, yok := number(b)
	if !xok || !yok {
		return strings.Compare(Format(a), Format(b))
	}
	switch {
	case xf < yf:
		return -1
	case xf > yf:
		return 1
	default:
		return 0
	}
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
