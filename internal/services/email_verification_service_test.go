package services

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/testhelpers"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

var sixDigits = regexp.MustCompile(`\b(\d{6})\b`)

func newEmailVerification(t *testing.T) (EmailVerificationService, *testhelpers.ProfileRepo, *testhelpers.Mailer, *testhelpers.Clock) {
	t.Helper()
	profiles := testhelpers.NewProfileRepo()
	mailer := &testhelpers.Mailer{}
	clock := testhelpers.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	svc := NewEmailVerificationService(testSecret, "https://cashback.test/", profiles, mailer, clock.Now)
	return svc, profiles, mailer, clock
}

func TestEmailCode_RoundTrip(t *testing.T) {
	svc, _, mailer, clock := newEmailVerification(t)

	challenge, err := svc.RequestEmailCode(context.Background(), " New.User@Example.com ")
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(constants.EmailCodeTokenExpiry), challenge.ExpiresAt)

	sent := mailer.Last()
	require.Equal(t, "new.user@example.com", sent.To)
	require.Equal(t, constants.EmailSubjectEmailCode, sent.Subject)
	m := sixDigits.FindStringSubmatch(sent.Plain)
	require.Len(t, m, 2)
	code := m[1]

	require.NoError(t, svc.VerifyEmailCode(challenge.Token, "new.user@example.com", code))
	require.ErrorIs(t, svc.VerifyEmailCode(challenge.Token, "other@example.com", code), utils.ErrInvalidToken)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	require.ErrorIs(t, svc.VerifyEmailCode(challenge.Token, "new.user@example.com", wrong), utils.ErrInvalidToken)

	clock.Advance(constants.EmailCodeTokenExpiry + time.Second)
	require.ErrorIs(t, svc.VerifyEmailCode(challenge.Token, "new.user@example.com", code), utils.ErrInvalidToken)
}

func TestEmailCode_RejectsBadAddress(t *testing.T) {
	svc, _, mailer, _ := newEmailVerification(t)
	_, err := svc.RequestEmailCode(context.Background(), "not-an-email")
	require.ErrorIs(t, err, utils.ErrInvalidEmail)
	require.Empty(t, mailer.Sent())
}

func TestEmailLink_VerifiesProfile(t *testing.T) {
	ctx := context.Background()
	svc, profiles, mailer, _ := newEmailVerification(t)
	p, err := profiles.Ensure(ctx, uuid.New(), "ravi", "ravi@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.SendVerificationLink(ctx, p))
	sent := mailer.Last()
	require.Equal(t, constants.EmailSubjectVerifyEmail, sent.Subject)

	idx := strings.Index(sent.Plain, "https://cashback.test/verify-email/")
	require.GreaterOrEqual(t, idx, 0)
	token := strings.TrimPrefix(sent.Plain[idx:], "https://cashback.test/verify-email/")

	userID, err := svc.VerifyEmailLink(ctx, token)
	require.NoError(t, err)
	require.Equal(t, p.UserID, userID)

	got, _ := profiles.GetByUserID(ctx, p.UserID)
	require.True(t, got.EmailVerified)

	// Resending for a verified profile is a no-op.
	require.NoError(t, svc.SendVerificationLink(ctx, got))
	require.Len(t, mailer.Sent(), 1)
}

func TestEmailLink_StaleAfterEmailChange(t *testing.T) {
	ctx := context.Background()
	svc, profiles, mailer, _ := newEmailVerification(t)
	p, _ := profiles.Ensure(ctx, uuid.New(), "ravi", "ravi@example.com")
	require.NoError(t, svc.SendVerificationLink(ctx, p))

	plain := mailer.Last().Plain
	token := plain[strings.LastIndex(plain, "/")+1:]

	_, err := profiles.Ensure(ctx, p.UserID, "", "ravi.new@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyEmailLink(ctx, token)
	require.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestEmailLink_CodeTokenIsNotALink(t *testing.T) {
	svc, _, _, _ := newEmailVerification(t)
	challenge, err := svc.RequestEmailCode(context.Background(), "a@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyEmailLink(context.Background(), challenge.Token)
	require.ErrorIs(t, err, utils.ErrInvalidToken)
}
