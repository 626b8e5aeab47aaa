package models

// Entity is any record identified by a server-assigned id.
type Entity interface {
	EntityID() int64
}

// Page is one slice of a paginated collection.
type Page[T any] struct {
	Results []T     `json:"results"`
	Next    *string `json:"next"`
	Count   int     `json:"count,omitempty"`
}

// Terminal reports whether no further pages exist.
func (p Page[T]) Terminal() bool {
	return p.Next == nil || *p.Next == ""
}

// Cursor returns the continuation token, empty when terminal.
func (p Page[T]) Cursor() string {
	if p.Terminal() {
		return ""
	}
	return *p.Next
}
