//go:build integration

package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/msdeveloper2k/cashback-zone/internal/app"
	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

var db *pgxpool.Pool

func TestMain(m *testing.M) {
	utils.InitLogger(config.AppName)

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Println("DB_URL not set; skipping integration tests")
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		cancel()
		log.Fatalf("connect: %v", err)
	}
	if err := app.Migrate(ctx, pool); err != nil {
		cancel()
		log.Fatalf("migrate: %v", err)
	}
	cancel()
	db = pool

	code := m.Run()
	pool.Close()
	os.Exit(code)
}

// =============================================================================
// SHARED HELPER FUNCTIONS
// =============================================================================

func createOffer(t *testing.T, ctx context.Context, link string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(ctx,
		`INSERT INTO offers (name, link, status) VALUES ($1, $2, 'active') RETURNING id`,
		"integration "+utils.RandomString(8), link,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM offers WHERE id = $1`, id)
	})
	return id
}
