// Package store defines the persistence boundary: CRUD on order records,
// no business logic. The engine calls Save on every applied change and the
// archive on terminal flush; implementations must tolerate repeated saves
// of the same id.
package store

import (
	"context"

	"ordercore/internal/order"
)

type Store interface {
	Save(ctx context.Context, o *order.Order) error
	Load(ctx context.Context, id string) (*order.Order, error)
	FindBySymbol(ctx context.Context, symbol string, status order.Status) ([]*order.Order, error)
	Close() error
}

// Archiver receives terminal records when the arena flushes them.
type Archiver interface {
	Archive(ctx context.Context, o *order.Order) error
	Close() error
}
