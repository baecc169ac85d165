package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/autoride/internal/models"
)

// Store is the persistence contract for one entity kind, keyed by id.
// Get returns an error wrapping models.ErrNotFound for unknown ids.
type Store[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	Put(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]T, error)
}

type (
	RideStore   = Store[models.Ride]
	DriverStore = Store[models.Driver]
)

// Table is an in-memory Store. Values are copied in and out so callers never
// share a record with the table.
type Table[T any] struct {
	mu   sync.RWMutex
	rows map[string]T
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{rows: make(map[string]T)}
}

func (t *Table[T]) Get(_ context.Context, id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%q: %w", id, models.ErrNotFound)
	}
	return v, nil
}

func (t *Table[T]) Put(_ context.Context, id string, v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[id] = v
	return nil
}

func (t *Table[T]) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
	return nil
}

// List returns all rows in unspecified order.
func (t *Table[T]) List(_ context.Context) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.rows))
	for _, v := range t.rows {
		out = append(out, v)
	}
	return out, nil
}

func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
