package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is what the identity provider asserts about the caller.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	Username string
	Staff    bool
}

// AccessClaims is the HS256 access token issued by the identity provider.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Username string `json:"username"`
	Staff    bool   `json:"staff"`
}

// ValidateToken checks the token's signature, expiry and subject and returns
// the caller identity. Any deviation returns a descriptive error.
func ValidateToken(tokenString string, secret []byte, now func() time.Time) (*Identity, error) {
	if now == nil {
		now = time.Now
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.New("subject is not a user id")
	}

	return &Identity{
		UserID:   userID,
		Email:    claims.Email,
		Username: claims.Username,
		Staff:    claims.Staff,
	}, nil
}
