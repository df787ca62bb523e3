package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/testhelpers"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

var testSecret = []byte("test-signing-secret-32-bytes-long!")

func answerOf(c *CaptchaChallenge) string {
	return strings.TrimPrefix(c.Prompt, "Select the ")
}

func TestCaptcha_IssueAndCheck(t *testing.T) {
	clock := testhelpers.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := NewCaptchaService(testSecret, clock.Now)

	c, err := svc.Issue()
	require.NoError(t, err)
	require.ElementsMatch(t, constants.CaptchaOptions, c.Options)
	require.Contains(t, constants.CaptchaOptions, answerOf(c))
	require.Equal(t, clock.Now().Add(constants.CaptchaTokenExpiry), c.ExpiresAt)

	require.NoError(t, svc.Check(c.Token, answerOf(c)))
	require.NoError(t, svc.Check(c.Token, "  "+strings.ToUpper(answerOf(c))+" "))

	var wrong string
	for _, o := range c.Options {
		if o != answerOf(c) {
			wrong = o
			break
		}
	}
	require.ErrorIs(t, svc.Check(c.Token, wrong), utils.ErrInvalidCaptcha)
}

func TestCaptcha_RejectsExpiredAndForged(t *testing.T) {
	clock := testhelpers.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := NewCaptchaService(testSecret, clock.Now)

	c, err := svc.Issue()
	require.NoError(t, err)

	other := NewCaptchaService([]byte("some-other-secret"), clock.Now)
	require.ErrorIs(t, other.Check(c.Token, answerOf(c)), utils.ErrInvalidToken)

	require.ErrorIs(t, svc.Check("", answerOf(c)), utils.ErrInvalidToken)

	clock.Advance(constants.CaptchaTokenExpiry + time.Minute)
	require.ErrorIs(t, svc.Check(c.Token, answerOf(c)), utils.ErrInvalidToken)
}

func TestTokenSigner_PurposeIsolation(t *testing.T) {
	signer := newTokenSigner(testSecret, nil)
	token, _, err := signer.sign(purposeEmailCode, "", "a@example.com", "123456", time.Minute)
	require.NoError(t, err)

	_, err = signer.parse(purposeCaptcha, token)
	require.ErrorIs(t, err, utils.ErrInvalidToken)

	claims, err := signer.parse(purposeEmailCode, token)
	require.NoError(t, err)
	require.True(t, signer.matches(claims, "123456"))
	require.False(t, signer.matches(claims, "654321"))
}
