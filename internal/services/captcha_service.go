package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// CaptchaChallenge is handed to the browser. Token carries the salted hash of
// the correct label so no session is needed to check the answer.
type CaptchaChallenge struct {
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CaptchaService interface {
	Issue() (*CaptchaChallenge, error)
	Check(token, answer string) error
}

type captchaService struct {
	signer  *tokenSigner
	options []string
}

func NewCaptchaService(secret []byte, now func() time.Time) CaptchaService {
	return &captchaService{
		signer:  newTokenSigner(secret, now),
		options: constants.CaptchaOptions,
	}
}

func (s *captchaService) Issue() (*CaptchaChallenge, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(s.options))))
	if err != nil {
		return nil, err
	}
	answer := s.options[idx.Int64()]

	token, exp, err := s.signer.sign(purposeCaptcha, "", "", answer, constants.CaptchaTokenExpiry)
	if err != nil {
		return nil, err
	}

	opts := make([]string, len(s.options))
	copy(opts, s.options)
	return &CaptchaChallenge{
		Prompt:    fmt.Sprintf("Select the %s", answer),
		Options:   opts,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// Check returns utils.ErrInvalidCaptcha for a wrong answer and
// utils.ErrInvalidToken for a forged or expired challenge.
func (s *captchaService) Check(token, answer string) error {
	if token == "" {
		return utils.ErrInvalidToken
	}
	claims, err := s.signer.parse(purposeCaptcha, token)
	if err != nil {
		return err
	}
	if !s.signer.matches(claims, strings.ToLower(strings.TrimSpace(answer))) {
		return utils.ErrInvalidCaptcha
	}
	return nil
}
