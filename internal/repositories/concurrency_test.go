package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"
)

type clickRow struct {
	id      string
	version int64
	clicks  int
}

func (r *clickRow) GetID() string         { return r.id }
func (r *clickRow) GetRowVersion() int64  { return r.version }
func (r *clickRow) SetRowVersion(v int64) { r.version = v }

// clickTable stores one row and lets a test simulate writers that win the
// row_version race before the caller saves.
type clickTable struct {
	stored       clickRow
	racingWrites int
	saves        int
}

func (t *clickTable) load(_ context.Context, id string) (*clickRow, error) {
	if id != t.stored.id {
		return nil, nil
	}
	cp := t.stored
	return &cp, nil
}

func (t *clickTable) save(_ context.Context, row *clickRow, expectedVersion int64) (pgconn.CommandTag, error) {
	t.saves++
	if t.racingWrites > 0 {
		t.racingWrites--
		t.stored.version++
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	if t.stored.version != expectedVersion {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	t.stored.clicks = row.clicks
	t.stored.version++
	return pgconn.CommandTag("UPDATE 1"), nil
}

func addClick(r *clickRow) error {
	r.clicks++
	return nil
}

func TestWithRetry_RetriesAfterLostRace(t *testing.T) {
	table := &clickTable{stored: clickRow{id: "7", version: 1}, racingWrites: 1}

	err := WithRetry(context.Background(), DefaultUpdateRetries, "7", table.load, table.save, addClick)
	require.NoError(t, err)
	require.Equal(t, 2, table.saves)
	require.Equal(t, 1, table.stored.clicks)
	require.Equal(t, int64(3), table.stored.version)
}

func TestWithRetry_GivesUpUnderContention(t *testing.T) {
	table := &clickTable{stored: clickRow{id: "7", version: 1}, racingWrites: DefaultUpdateRetries}

	err := WithRetry(context.Background(), DefaultUpdateRetries, "7", table.load, table.save, addClick)
	require.ErrorIs(t, err, ErrUpdateContention)
	require.Equal(t, DefaultUpdateRetries, table.saves)
	require.Zero(t, table.stored.clicks)
}

func TestWithRetry_MissingRow(t *testing.T) {
	table := &clickTable{stored: clickRow{id: "7"}}

	err := WithRetry(context.Background(), DefaultUpdateRetries, "8", table.load, table.save, addClick)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.Zero(t, table.saves)
}

func TestWithRetry_MutateErrorStops(t *testing.T) {
	table := &clickTable{stored: clickRow{id: "7", version: 1}}
	boom := errors.New("transition not allowed")

	err := WithRetry(context.Background(), DefaultUpdateRetries, "7", table.load, table.save, func(*clickRow) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, table.saves)
}
