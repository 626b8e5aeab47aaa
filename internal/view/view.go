package view

import (
	"fmt"
	"sync"
)

// View keeps the derived projection of a source collection current as the
// source, the search term or the sort change. The source is never modified.
type View[T any] struct {
	cfg Config[T]

	mu         sync.RWMutex
	source     []T
	term       string
	sort       SortSpec
	projection []T
	listener   func([]T)
}

// New builds a view using the entity's default sort.
func New[T any](cfg Config[T]) *View[T] {
	return &View[T]{cfg: cfg, sort: cfg.DefaultSort, source: []T{}, projection: []T{}}
}

// Config returns the entity declaration.
func (v *View[T]) Config() Config[T] {
	return v.cfg
}

// OnChange registers the function called with every new projection.
func (v *View[T]) OnChange(fn func([]T)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listener = fn
}

// SetSource replaces the collection the view derives from.
func (v *View[T]) SetSource(items []T) {
	v.mu.Lock()
	v.source = append(make([]T, 0, len(items)), items...)
	v.mu.Unlock()
	v.recompute()
}

// SetTerm applies a search term.
func (v *View[T]) SetTerm(term string) {
	v.mu.Lock()
	v.term = term
	v.mu.Unlock()
	v.recompute()
}

// SetSort applies an explicit sort.
func (v *View[T]) SetSort(spec SortSpec) error {
	if !v.cfg.CanSort(spec.Key) {
		return fmt.Errorf("%s cannot be sorted by %q", v.cfg.Entity, spec.Key)
	}
	v.mu.Lock()
	v.sort = spec
	v.mu.Unlock()
	v.recompute()
	return nil
}

// ToggleSort selects key as if its column header was clicked.
func (v *View[T]) ToggleSort(key string) (SortSpec, error) {
	if !v.cfg.CanSort(key) {
		return SortSpec{}, fmt.Errorf("%s cannot be sorted by %q", v.cfg.Entity, key)
	}
	v.mu.Lock()
	v.sort = v.sort.Toggle(key)
	spec := v.sort
	v.mu.Unlock()
	v.recompute()
	return spec, nil
}

// Term returns the active search term.
func (v *View[T]) Term() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.term
}

// Sort returns the active sort.
func (v *View[T]) Sort() SortSpec {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sort
}

// Projection returns a copy of the filtered and sorted items.
func (v *View[T]) Projection() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append(make([]T, 0, len(v.projection)), v.projection...)
}

func (v *View[T]) recompute() {
	v.mu.Lock()
	v.projection = Project(v.source, v.cfg, v.term, v.sort)
	out := append(make([]T, 0, len(v.projection)), v.projection...)
	fn := v.listener
	v.mu.Unlock()
	if fn != nil {
		fn(out)
	}
}
