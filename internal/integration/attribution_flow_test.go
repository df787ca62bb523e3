//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

const postbackKey = "integration-postback-key"

func newAttribution() (services.AttributionService, repositories.ReferralRepository) {
	repo := repositories.NewReferralRepository(db)
	cfg := &config.Config{AppUrl: "https://cashback.test", PostbackAPIKey: postbackKey}
	return services.NewAttributionService(repo, cfg, nil), repo
}

func TestRecordClick_ConcurrentSameIPCountsOnce(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAttribution()
	offerID := createOffer(t, ctx, "https://broker.example/open")

	ref, err := repo.GetOrCreate(ctx, offerID, models.Promoter{VisitorID: "it-" + utils.RandomString(10)})
	require.NoError(t, err)

	const workers = 12
	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := svc.RecordClick(ctx, ref.ID, "203.0.113.7", fmt.Sprintf("session-%d", i))
			require.NoError(t, err)
			if ok {
				atomic.AddInt32(&accepted, 1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&accepted))
	got, err := svc.GetReferral(ctx, ref.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ClickCount)
	require.Equal(t, models.WorkingStateClicked, got.WorkingState)

	var rows int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM referral_clicks WHERE referral_id = $1`, ref.ID).Scan(&rows))
	require.Equal(t, 1, rows)
}

func TestGetOrCreate_ConcurrentPromoterGetsOneReferral(t *testing.T) {
	ctx := context.Background()
	_, repo := newAttribution()
	offerID := createOffer(t, ctx, "https://broker.example/open")
	promoter := models.Promoter{VisitorID: "it-" + utils.RandomString(10)}

	ids := make(chan int64, 8)
	var wg sync.WaitGroup
	for i := 0; i < cap(ids); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := repo.GetOrCreate(ctx, offerID, promoter)
			require.NoError(t, err)
			require.NotNil(t, ref)
			ids <- ref.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		seen[id] = true
	}
	require.Len(t, seen, 1)
}

func TestPostback_PersistsStateAndVersion(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAttribution()
	offerID := createOffer(t, ctx, "https://broker.example/open")

	ref, err := repo.GetOrCreate(ctx, offerID, models.Promoter{VisitorID: "it-" + utils.RandomString(10)})
	require.NoError(t, err)

	updated, err := svc.Postback(ctx, services.PostbackInput{APIKey: postbackKey, ReferralID: ref.GetID(), State: "converted"})
	require.NoError(t, err)
	require.Equal(t, models.WorkingStateConverted, updated.WorkingState)
	require.Equal(t, ref.RowVersion+1, updated.RowVersion)

	_, err = svc.Postback(ctx, services.PostbackInput{APIKey: "wrong", ReferralID: ref.GetID(), State: "failed"})
	require.Equal(t, http.StatusUnauthorized, services.PostbackStatus(err))

	stored, err := repo.GetByID(ctx, ref.ID)
	require.NoError(t, err)
	require.Equal(t, models.WorkingStateConverted, stored.WorkingState)
}
