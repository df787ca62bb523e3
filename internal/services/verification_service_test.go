package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/providers"
	"github.com/msdeveloper2k/cashback-zone/internal/testhelpers"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

const testNumber = "+919876543210"

type gatewayFixture struct {
	svc       PhoneVerificationService
	primary   *testhelpers.Validator
	secondary *testhelpers.Validator
	cache     *testhelpers.MobileValidationRepo
	usage     *testhelpers.APIUsageRepo
	pending   *testhelpers.PendingVerificationRepo
	logs      *testhelpers.APILogRepo
	profiles  *testhelpers.ProfileRepo
	mailer    *testhelpers.Mailer
	clock     *testhelpers.Clock
}

func newGateway(t *testing.T) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		primary:   testhelpers.NewValidator(constants.ProviderNumVerify, true, nil),
		secondary: testhelpers.NewValidator(constants.ProviderAbstract, true, nil),
		cache:     testhelpers.NewMobileValidationRepo(),
		usage:     testhelpers.NewAPIUsageRepo(),
		pending:   testhelpers.NewPendingVerificationRepo(),
		logs:      testhelpers.NewAPILogRepo(),
		profiles:  testhelpers.NewProfileRepo(),
		mailer:    &testhelpers.Mailer{},
		clock:     testhelpers.NewClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)),
	}
	slots := []ProviderSlot{
		{Validator: f.primary, RequestLimit: 100, FreeLimit: 250},
		{Validator: f.secondary, RequestLimit: 100, FreeLimit: 250},
	}
	f.svc = NewPhoneVerificationService(slots, f.cache, f.usage, f.pending, f.logs, f.profiles, f.mailer, f.clock.Now)
	return f
}

func (f *gatewayFixture) exhaust(name string, count int) {
	f.usage.Set(models.APIUsage{APIName: name, RequestCount: count, LastReset: f.clock.Now()})
}

func (f *gatewayFixture) user(t *testing.T) *models.UserProfile {
	t.Helper()
	p, err := f.profiles.Ensure(context.Background(), uuid.New(), "asha", "asha@example.com")
	require.NoError(t, err)
	return p
}

func TestValidate_CacheHitSkipsProviders(t *testing.T) {
	f := newGateway(t)
	ctx := context.Background()
	require.NoError(t, f.cache.Save(ctx, testNumber, false, f.clock.Now()))

	res := f.svc.Validate(ctx, testNumber)
	require.Equal(t, ReasonInvalid, res.Reason)
	require.True(t, res.Cached)
	require.Zero(t, f.primary.Calls())
	require.Zero(t, f.secondary.Calls())
}

func TestValidate_PrimaryAnswers(t *testing.T) {
	f := newGateway(t)
	ctx := context.Background()

	res := f.svc.Validate(ctx, testNumber)
	require.True(t, res.IsValid)
	require.Equal(t, ReasonValid, res.Reason)
	require.Equal(t, constants.MsgMobileValid, res.Message)
	require.Equal(t, constants.ProviderNumVerify, res.Provider)

	require.Equal(t, 1, f.primary.Calls())
	require.Zero(t, f.secondary.Calls())
	require.Equal(t, 1, f.usage.Snapshot(constants.ProviderNumVerify).RequestCount)
	require.Equal(t, 1, f.cache.Len())
	require.Equal(t, 1, f.logs.Len())

	// Second call is served from cache.
	again := f.svc.Validate(ctx, testNumber)
	require.True(t, again.Cached)
	require.Equal(t, 1, f.primary.Calls())
}

func TestValidate_FallsBackOnPrimaryError(t *testing.T) {
	f := newGateway(t)
	f.primary.Err = providers.ErrUnexpectedResponse
	f.secondary.Valid = false

	res := f.svc.Validate(context.Background(), testNumber)
	require.Equal(t, ReasonInvalid, res.Reason)
	require.Equal(t, constants.ProviderAbstract, res.Provider)

	require.Equal(t, 1, f.primary.Calls())
	require.Equal(t, 1, f.secondary.Calls())
	require.Zero(t, f.usage.Snapshot(constants.ProviderNumVerify).RequestCount, "failed calls are not counted")
	require.Equal(t, 1, f.usage.Snapshot(constants.ProviderAbstract).RequestCount)
}

func TestValidate_FallsBackWhenPrimaryAtQuota(t *testing.T) {
	f := newGateway(t)
	f.exhaust(constants.ProviderNumVerify, 100)

	res := f.svc.Validate(context.Background(), testNumber)
	require.Equal(t, ReasonValid, res.Reason)
	require.Zero(t, f.primary.Calls())
	require.Equal(t, 1, f.secondary.Calls())
}

func TestValidate_AllExhaustedIsPendingWithoutNetwork(t *testing.T) {
	f := newGateway(t)
	f.exhaust(constants.ProviderNumVerify, 100)
	f.exhaust(constants.ProviderAbstract, 100)

	res := f.svc.Validate(context.Background(), testNumber)
	require.False(t, res.IsValid)
	require.Equal(t, ReasonPending, res.Reason)
	require.Equal(t, constants.MsgPendingAPILimits, res.Message)
	require.Zero(t, f.primary.Calls())
	require.Zero(t, f.secondary.Calls())
	require.Zero(t, f.cache.Len())
}

func TestValidate_AllFailingIsPending(t *testing.T) {
	f := newGateway(t)
	f.primary.Err = errors.New("boom")
	f.secondary.Err = context.DeadlineExceeded

	res := f.svc.Validate(context.Background(), testNumber)
	require.Equal(t, ReasonPending, res.Reason)
	require.Equal(t, constants.MsgPendingAPIFailure, res.Message)
	require.Equal(t, 1, f.primary.Calls())
	require.Equal(t, 1, f.secondary.Calls())
	require.Zero(t, f.cache.Len(), "pending results are never cached")
}

func TestValidate_MonthRolloverResetsCounter(t *testing.T) {
	f := newGateway(t)
	f.usage.Set(models.APIUsage{
		APIName:      constants.ProviderNumVerify,
		RequestCount: 100,
		LastReset:    time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC),
	})

	res := f.svc.Validate(context.Background(), testNumber)
	require.Equal(t, ReasonValid, res.Reason)
	require.Equal(t, 1, f.primary.Calls())

	u := f.usage.Snapshot(constants.ProviderNumVerify)
	require.Equal(t, 1, u.RequestCount)
	require.Equal(t, time.March, u.LastReset.Month())
}

func TestRequestMobileVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("bad format", func(t *testing.T) {
		f := newGateway(t)
		_, err := f.svc.RequestMobileVerification(ctx, f.user(t), "98765")
		require.ErrorIs(t, err, utils.ErrInvalidPhone)
		require.Zero(t, f.primary.Calls())
	})

	t.Run("valid marks profile verified", func(t *testing.T) {
		f := newGateway(t)
		p := f.user(t)
		res, err := f.svc.RequestMobileVerification(ctx, p, "+91 98765-43210")
		require.NoError(t, err)
		require.Equal(t, ReasonValid, res.Reason)

		got, _ := f.profiles.GetByUserID(ctx, p.UserID)
		require.True(t, got.MobileVerified)
		require.Equal(t, testNumber, *got.MobileNumber)
	})

	t.Run("invalid", func(t *testing.T) {
		f := newGateway(t)
		f.primary.Valid = false
		p := f.user(t)
		_, err := f.svc.RequestMobileVerification(ctx, p, testNumber)
		require.ErrorIs(t, err, utils.ErrInvalidPhone)

		got, _ := f.profiles.GetByUserID(ctx, p.UserID)
		require.False(t, got.MobileVerified)
	})

	t.Run("pending queues exactly once", func(t *testing.T) {
		f := newGateway(t)
		f.exhaust(constants.ProviderNumVerify, 100)
		f.exhaust(constants.ProviderAbstract, 100)
		p := f.user(t)

		for i := 0; i < 2; i++ {
			res, err := f.svc.RequestMobileVerification(ctx, p, testNumber)
			require.NoError(t, err)
			require.Equal(t, ReasonPending, res.Reason)
		}

		rows := f.pending.All()
		require.Len(t, rows, 1)
		require.Equal(t, testNumber, rows[0].MobileNumber)
		require.Len(t, f.mailer.Sent(), 1)
		require.Equal(t, constants.EmailSubjectMobilePending, f.mailer.Last().Subject)

		has, err := f.svc.HasPendingVerification(ctx, p.UserID)
		require.NoError(t, err)
		require.True(t, has)
	})
}

func TestRetryMobileVerification(t *testing.T) {
	ctx := context.Background()
	f := newGateway(t)
	p := f.user(t)

	_, err := f.svc.RetryMobileVerification(ctx, p)
	require.ErrorIs(t, err, utils.ErrNotFound)

	f.exhaust(constants.ProviderNumVerify, 100)
	f.exhaust(constants.ProviderAbstract, 100)
	_, err = f.svc.RequestMobileVerification(ctx, p, testNumber)
	require.NoError(t, err)

	f.exhaust(constants.ProviderAbstract, 0)
	res, err := f.svc.RetryMobileVerification(ctx, p)
	require.NoError(t, err)
	require.Equal(t, ReasonValid, res.Reason)

	has, _ := f.svc.HasPendingVerification(ctx, p.UserID)
	require.False(t, has)
}

func TestProcessPendingVerifications_ShortCircuitsWhenExhausted(t *testing.T) {
	ctx := context.Background()
	f := newGateway(t)
	p := f.user(t)
	_, err := f.pending.CreateIfNoneOpen(ctx, p.UserID, testNumber, f.clock.Now())
	require.NoError(t, err)

	f.exhaust(constants.ProviderNumVerify, 250)
	f.exhaust(constants.ProviderAbstract, 250)

	report, err := f.svc.ProcessPendingVerifications(ctx)
	require.NoError(t, err)
	require.True(t, report.Skipped)
	require.Zero(t, report.Checked)
	require.Zero(t, f.primary.Calls())
	require.Zero(t, f.secondary.Calls())
	require.Len(t, f.pending.All(), 1)
	require.False(t, f.pending.All()[0].IsProcessed)
}

func TestProcessPendingVerifications_ResolvesRows(t *testing.T) {
	ctx := context.Background()
	f := newGateway(t)

	good := f.user(t)
	bad := f.user(t)
	require.NoError(t, f.profiles.SetMobile(ctx, good.UserID, "+14155550100", false))
	require.NoError(t, f.profiles.SetMobile(ctx, bad.UserID, "+14155550199", false))
	_, _ = f.pending.CreateIfNoneOpen(ctx, good.UserID, "+14155550100", f.clock.Now())
	_, _ = f.pending.CreateIfNoneOpen(ctx, bad.UserID, "+14155550199", f.clock.Now())
	require.NoError(t, f.cache.Save(ctx, "+14155550199", false, f.clock.Now()))

	f.clock.Advance(time.Hour)
	report, err := f.svc.ProcessPendingVerifications(ctx)
	require.NoError(t, err)
	require.False(t, report.Skipped)
	require.Equal(t, 2, report.Checked)
	require.Equal(t, 1, report.Verified)
	require.Equal(t, 1, report.Rejected)
	require.Zero(t, report.StillPending)
	require.Zero(t, report.Superseded)

	for _, row := range f.pending.All() {
		require.True(t, row.IsProcessed)
		require.NotNil(t, row.ProcessedAt)
		require.Equal(t, f.clock.Now(), *row.ProcessedAt)
	}

	gotGood, _ := f.profiles.GetByUserID(ctx, good.UserID)
	require.True(t, gotGood.MobileVerified)
	gotBad, _ := f.profiles.GetByUserID(ctx, bad.UserID)
	require.False(t, gotBad.MobileVerified)

	require.Len(t, f.mailer.Sent(), 1)
	require.Equal(t, good.Email, f.mailer.Last().To)
	require.Equal(t, constants.EmailSubjectMobileAvailable, f.mailer.Last().Subject)
}

func TestProcessPendingVerifications_KeepsNewerMobile(t *testing.T) {
	ctx := context.Background()
	const newer = "+919111111111"

	t.Run("verified resubmission closes the queued row", func(t *testing.T) {
		f := newGateway(t)
		p := f.user(t)

		f.exhaust(constants.ProviderNumVerify, 100)
		f.exhaust(constants.ProviderAbstract, 100)
		res, err := f.svc.RequestMobileVerification(ctx, p, testNumber)
		require.NoError(t, err)
		require.Equal(t, ReasonPending, res.Reason)

		f.exhaust(constants.ProviderNumVerify, 0)
		f.exhaust(constants.ProviderAbstract, 0)
		res, err = f.svc.RequestMobileVerification(ctx, p, newer)
		require.NoError(t, err)
		require.Equal(t, ReasonValid, res.Reason)

		has, err := f.svc.HasPendingVerification(ctx, p.UserID)
		require.NoError(t, err)
		require.False(t, has)

		report, err := f.svc.ProcessPendingVerifications(ctx)
		require.NoError(t, err)
		require.Zero(t, report.Checked)

		got, _ := f.profiles.GetByUserID(ctx, p.UserID)
		require.Equal(t, newer, *got.MobileNumber)
		require.True(t, got.MobileVerified)
	})

	t.Run("stale open row is closed without touching the profile", func(t *testing.T) {
		f := newGateway(t)
		p := f.user(t)
		require.NoError(t, f.profiles.SetMobile(ctx, p.UserID, newer, true))
		_, err := f.pending.CreateIfNoneOpen(ctx, p.UserID, testNumber, f.clock.Now())
		require.NoError(t, err)

		report, err := f.svc.ProcessPendingVerifications(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Checked)
		require.Equal(t, 1, report.Superseded)
		require.Zero(t, report.Verified)

		got, _ := f.profiles.GetByUserID(ctx, p.UserID)
		require.Equal(t, newer, *got.MobileNumber)
		require.True(t, got.MobileVerified)
		require.True(t, f.pending.All()[0].IsProcessed)
		require.Empty(t, f.mailer.Sent())
	})

	t.Run("retry of a stale row leaves the profile alone", func(t *testing.T) {
		f := newGateway(t)
		p := f.user(t)
		require.NoError(t, f.profiles.SetMobile(ctx, p.UserID, newer, false))
		_, err := f.pending.CreateIfNoneOpen(ctx, p.UserID, testNumber, f.clock.Now())
		require.NoError(t, err)

		res, err := f.svc.RetryMobileVerification(ctx, p)
		require.NoError(t, err)
		require.Equal(t, ReasonValid, res.Reason)

		got, _ := f.profiles.GetByUserID(ctx, p.UserID)
		require.Equal(t, newer, *got.MobileNumber)
		require.False(t, got.MobileVerified)
		require.True(t, f.pending.All()[0].IsProcessed)
	})
}

func TestRequestMobileVerification_TracksLatestNumber(t *testing.T) {
	ctx := context.Background()
	const newer = "+919111111111"

	t.Run("pending resubmission moves the open row", func(t *testing.T) {
		f := newGateway(t)
		f.exhaust(constants.ProviderNumVerify, 100)
		f.exhaust(constants.ProviderAbstract, 100)
		p := f.user(t)

		_, err := f.svc.RequestMobileVerification(ctx, p, testNumber)
		require.NoError(t, err)
		_, err = f.svc.RequestMobileVerification(ctx, p, newer)
		require.NoError(t, err)

		rows := f.pending.All()
		require.Len(t, rows, 1)
		require.Equal(t, newer, rows[0].MobileNumber)
		require.False(t, rows[0].IsProcessed)

		f.exhaust(constants.ProviderNumVerify, 0)
		report, err := f.svc.ProcessPendingVerifications(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Verified)

		got, _ := f.profiles.GetByUserID(ctx, p.UserID)
		require.Equal(t, newer, *got.MobileNumber)
		require.True(t, got.MobileVerified)
	})

	t.Run("invalid resubmission closes the open row", func(t *testing.T) {
		f := newGateway(t)
		f.exhaust(constants.ProviderNumVerify, 100)
		f.exhaust(constants.ProviderAbstract, 100)
		p := f.user(t)

		_, err := f.svc.RequestMobileVerification(ctx, p, testNumber)
		require.NoError(t, err)

		require.NoError(t, f.cache.Save(ctx, newer, false, f.clock.Now()))
		_, err = f.svc.RequestMobileVerification(ctx, p, newer)
		require.ErrorIs(t, err, utils.ErrInvalidPhone)

		rows := f.pending.All()
		require.Len(t, rows, 1)
		require.True(t, rows[0].IsProcessed)
	})
}

func TestProcessPendingVerifications_LeavesPendingRows(t *testing.T) {
	ctx := context.Background()
	f := newGateway(t)
	f.primary.Err = errors.New("down")
	f.secondary.Err = errors.New("down")
	p := f.user(t)
	_, _ = f.pending.CreateIfNoneOpen(ctx, p.UserID, testNumber, f.clock.Now())

	report, err := f.svc.ProcessPendingVerifications(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.StillPending)
	require.False(t, f.pending.All()[0].IsProcessed)
	require.Empty(t, f.mailer.Sent())
}

func TestProviderStatus(t *testing.T) {
	f := newGateway(t)
	f.exhaust(constants.ProviderNumVerify, 100)

	status, err := f.svc.ProviderStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 2)
	require.Equal(t, constants.ProviderNumVerify, status[0].Name)
	require.True(t, status[0].Exhausted)
	require.Equal(t, 250, status[0].FreeLimit)
	require.False(t, status[1].Exhausted)
}

func TestNewProviderSlots(t *testing.T) {
	cfg := &config.Config{
		PhoneProviderChain: []string{constants.ProviderAbstract, constants.ProviderNumVerify},
		NumVerify:          config.ProviderConfig{Name: constants.ProviderNumVerify, RequestLimit: 10, FreeLimit: 20},
		Abstract:           config.ProviderConfig{Name: constants.ProviderAbstract, RequestLimit: 30, FreeLimit: 40},
	}
	validators := []providers.PhoneValidator{
		testhelpers.NewValidator(constants.ProviderAbstract, true, nil),
		testhelpers.NewValidator(constants.ProviderNumVerify, true, nil),
	}

	slots := NewProviderSlots(cfg, validators)
	require.Len(t, slots, 2)
	require.Equal(t, 30, slots[0].RequestLimit)
	require.Equal(t, 40, slots[0].FreeLimit)
	require.Equal(t, 10, slots[1].RequestLimit)
}
