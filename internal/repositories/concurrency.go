package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// DefaultUpdateRetries bounds how often a row_version conflict is retried.
const DefaultUpdateRetries = 3

// ErrUpdateContention is returned when every attempt lost the row_version race.
var ErrUpdateContention = errors.New("row_version contention")

// VersionedRow is a table row guarded by a row_version column. Rows are
// handled by pointer so a missing row is the nil value.
type VersionedRow interface {
	comparable
	GetID() string
	GetRowVersion() int64
	SetRowVersion(int64)
}

// LoadRowFunc reads the latest copy of a row.
type LoadRowFunc[T VersionedRow] func(ctx context.Context, id string) (T, error)

// SaveIfVersionFunc writes row only while its stored row_version equals
// expectedVersion. Zero affected rows means another writer got there first.
type SaveIfVersionFunc[T VersionedRow] func(ctx context.Context, row T, expectedVersion int64) (pgconn.CommandTag, error)

// WithRetry reloads the row, applies mutate and saves it against the version it
// was read at, up to attempts times. Postback status changes go through here so
// two concurrent callbacks for the same referral cannot clobber each other.
// An error from mutate stops the loop as is.
func WithRetry[T VersionedRow](
	ctx context.Context,
	attempts int,
	id string,
	load LoadRowFunc[T],
	save SaveIfVersionFunc[T],
	mutate func(T) error,
) error {
	var missing T
	for i := 0; i < attempts; i++ {
		row, err := load(ctx, id)
		if err != nil {
			return err
		}
		if row == missing {
			return pgx.ErrNoRows
		}

		readAt := row.GetRowVersion()
		if err := mutate(row); err != nil {
			return err
		}

		tag, err := save(ctx, row, readAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			row.SetRowVersion(readAt + 1)
			return nil
		}
	}
	return fmt.Errorf("%w: row %s after %d attempts", ErrUpdateContention, id, attempts)
}
