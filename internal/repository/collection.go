package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/tutor-admin/internal/models"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Ordering controls the order List returns records in.
type Ordering int

const (
	// OldestFirst lists records in insertion order.
	OldestFirst Ordering = iota
	// NewestFirst lists the most recently created record first.
	NewestFirst
)

// Collection is an in-memory table of records keyed by a server-assigned id.
type Collection[T models.Entity] struct {
	mu       sync.RWMutex
	items    []T
	nextID   int64
	assign   func(*T, int64)
	ordering Ordering
}

// NewCollection builds an empty collection. assign writes a new id into a record.
func NewCollection[T models.Entity](assign func(*T, int64), ordering Ordering) *Collection[T] {
	return &Collection[T]{items: []T{}, assign: assign, ordering: ordering}
}

// List returns up to limit records starting at offset plus the total count.
func (c *Collection[T]) List(ctx context.Context, offset, limit int) ([]T, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.items)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []T{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]T, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, c.items[c.index(i, total)])
	}
	return out, total, nil
}

// All returns every record in list order.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	items, _, err := c.List(ctx, 0, c.Len())
	return items, err
}

// Len reports the number of records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the record with id.
func (c *Collection[T]) Get(ctx context.Context, id int64) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.find(id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	item := c.items[idx]
	return &item, nil
}

// Insert stores item under a new id and returns the stored copy.
func (c *Collection[T]) Insert(ctx context.Context, item T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.assign(&item, c.nextID)
	c.items = append(c.items, item)
	return item, nil
}

// Update replaces the record with id, keeping the id.
func (c *Collection[T]) Update(ctx context.Context, id int64, item T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(id)
	if idx < 0 {
		var zero T
		return zero, ErrNotFound
	}
	c.assign(&item, id)
	c.items[idx] = item
	return item, nil
}

// Delete removes the record with id.
func (c *Collection[T]) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(id)
	if idx < 0 {
		return ErrNotFound
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return nil
}

// Exists reports whether a record with id is stored.
func (c *Collection[T]) Exists(ctx context.Context, id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.find(id) >= 0
}

func (c *Collection[T]) index(i, total int) int {
	if c.ordering == NewestFirst {
		return total - 1 - i
	}
	return i
}

func (c *Collection[T]) find(id int64) int {
	for i := range c.items {
		if c.items[i].EntityID() == id {
			return i
		}
	}
	return -1
}
