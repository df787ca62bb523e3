package repositories

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// BaseVersionedRepo is embedded by repositories whose table carries a
// row_version column. It loads a row by its text id and runs WithRetry.
type BaseVersionedRepo[T VersionedRow] struct {
	db         DB
	selectByID string
	scan       func(row pgx.Row) (T, error)
}

func NewBaseRepo[T VersionedRow](db DB, selectByID string, scan func(pgx.Row) (T, error)) *BaseVersionedRepo[T] {
	return &BaseVersionedRepo[T]{db: db, selectByID: selectByID, scan: scan}
}

func (b *BaseVersionedRepo[T]) GetByID(ctx context.Context, id string) (T, error) {
	return b.scan(b.db.QueryRow(ctx, b.selectByID, id))
}

func (b *BaseVersionedRepo[T]) UpdateWithRetry(
	ctx context.Context,
	id string,
	mutate func(T) error,
	save SaveIfVersionFunc[T],
) error {
	return WithRetry(ctx, DefaultUpdateRetries, id, b.GetByID, save, mutate)
}
