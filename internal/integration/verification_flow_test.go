//go:build integration

package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
)

func TestPendingVerification_OneOpenPerUser(t *testing.T) {
	ctx := context.Background()
	profiles := repositories.NewProfileRepository(db)
	pending := repositories.NewPendingVerificationRepository(db)

	userID := uuid.New()
	_, err := profiles.Ensure(ctx, userID, "it-user", "it-"+userID.String()+"@example.com")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM user_profiles WHERE user_id = $1`, userID)
	})

	var created int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := pending.CreateIfNoneOpen(ctx, userID, "+919876543210", time.Now())
			require.NoError(t, err)
			if ok {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&created))

	open, err := pending.GetOpenForUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, open)

	require.NoError(t, pending.MarkProcessed(ctx, open.ID, time.Now()))
	ok, err := pending.CreateIfNoneOpen(ctx, userID, "+919876543211", time.Now())
	require.NoError(t, err)
	require.True(t, ok, "a processed row does not block a new one")
}

func TestAPIUsage_IncrementPersists(t *testing.T) {
	ctx := context.Background()
	usage := repositories.NewAPIUsageRepository(db)
	name := "it-" + uuid.NewString()[:8]
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM api_usage WHERE api_name = $1`, name)
	})

	now := time.Now().UTC()
	u, err := usage.GetOrCreate(ctx, name, now)
	require.NoError(t, err)
	require.Zero(t, u.RequestCount)

	u.Increment(now)
	require.NoError(t, usage.Save(ctx, u))

	again, err := usage.GetOrCreate(ctx, name, now)
	require.NoError(t, err)
	require.Equal(t, 1, again.RequestCount)
}
