package app

import (
	"context"
	_ "embed"

	"github.com/jackc/pgconn"

	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

//go:embed schema.sql
var schemaSQL string

// Execer is the slice of the pool Migrate needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate runs the embedded schema. Statements are idempotent, so it is safe
// on every boot. No arguments are passed, which keeps pgx on the simple
// protocol and allows the multi-statement script.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	utils.Logger.Info("Database schema is up to date.")
	return nil
}
