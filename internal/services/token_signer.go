package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// Token purposes. A token minted for one purpose never verifies for another.
const (
	purposeCaptcha   = "captcha"
	purposeEmailCode = "email_code"
	purposeEmailLink = "email_link"
)

// challengeClaims bind a hashed secret (captcha answer, email code) to a
// subject without any server-side state.
type challengeClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"pur"`
	Nonce   string `json:"nonce"`
	Digest  string `json:"dig,omitempty"`
	Email   string `json:"email,omitempty"`
}

type tokenSigner struct {
	secret []byte
	now    func() time.Time
}

func newTokenSigner(secret []byte, now func() time.Time) *tokenSigner {
	if now == nil {
		now = time.Now
	}
	return &tokenSigner{secret: secret, now: now}
}

// digest salts the secret value with the nonce and purpose.
func (t *tokenSigner) digest(purpose, nonce, value string) string {
	return utils.HashToken(purpose + ":" + nonce + ":" + value)
}

func (t *tokenSigner) sign(purpose, subject, email, value string, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)
	nonce := uuid.NewString()

	claims := challengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    constants.TokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Purpose: purpose,
		Nonce:   nonce,
		Email:   email,
	}
	if value != "" {
		claims.Digest = t.digest(purpose, nonce, value)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, exp, nil
}

// parse verifies signature, issuer, expiry and purpose.
func (t *tokenSigner) parse(purpose, tokenString string) (*challengeClaims, error) {
	claims := &challengeClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(constants.TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", utils.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidToken, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: wrong token purpose", utils.ErrInvalidToken)
	}
	return claims, nil
}

// matches reports whether value hashes to the digest carried by claims.
func (t *tokenSigner) matches(claims *challengeClaims, value string) bool {
	want := t.digest(claims.Purpose, claims.Nonce, value)
	return subtle.ConstantTimeCompare([]byte(want), []byte(claims.Digest)) == 1
}
