package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type contextKey string

const (
	ContextKeyUserID   = contextKey("userID")
	ContextKeyIdentity = contextKey("identity")

	AccessTokenCookieName = "cz_access_token"
)

// IdentityFrom returns the caller set by AuthMiddleware or OptionalAuthMiddleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ContextKeyIdentity).(*Identity)
	return id, ok && id != nil
}

func withIdentity(r *http.Request, id *Identity) *http.Request {
	ctx := context.WithValue(r.Context(), ContextKeyUserID, id.UserID.String())
	ctx = context.WithValue(ctx, ContextKeyIdentity, id)
	return r.WithContext(ctx)
}

// AuthMiddleware – for protected endpoints. If the token is missing or
// invalid, returns 401. The JWT is read from the access token cookie, then
// from Authorization: Bearer.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := extractAccessToken(r)
			if err != nil {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), nil,
				)
				return
			}

			id, vErr := ValidateToken(tokenStr, secret, nil)
			if vErr != nil {
				respondInvalidToken(w, vErr)
				return
			}

			next.ServeHTTP(w, withIdentity(r, id))
		})
	}
}

// OptionalAuthMiddleware is identical to AuthMiddleware
// except that it lets the request through if *no* token is present.
func OptionalAuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, _ := extractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r) // unauthenticated – allowed
				return
			}

			id, vErr := ValidateToken(tokenStr, secret, nil)
			if vErr != nil {
				respondInvalidToken(w, vErr)
				return
			}
			next.ServeHTTP(w, withIdentity(r, id))
		})
	}
}

// StaffOnly must run after AuthMiddleware.
func StaffOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.Staff {
			utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeForbidden, "Staff only", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondInvalidToken(w http.ResponseWriter, vErr error) {
	if errors.Is(vErr, jwt.ErrTokenExpired) {
		utils.RespondErrorWithCode(
			w, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired", nil, vErr,
		)
		return
	}
	utils.RespondErrorWithCode(
		w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid token", nil, vErr,
	)
}

func extractAccessToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", errors.New("missing Authorization header")
	}
	return strings.TrimPrefix(h, "Bearer "), nil
}
