package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
)

const ContextKeyVisitorID = contextKey("visitorID")

// VisitorFrom returns the anonymous visitor id set by VisitorMiddleware.
func VisitorFrom(ctx context.Context) string {
	v, _ := ctx.Value(ContextKeyVisitorID).(string)
	return v
}

// VisitorMiddleware gives every browser a stable anonymous id. It stands in
// for a server-side session key when attributing clicks and referrals.
func VisitorMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID := ""
			if c, err := r.Cookie(constants.VisitorCookieName); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					visitorID = c.Value
				}
			}
			if visitorID == "" {
				visitorID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     constants.VisitorCookieName,
					Value:    visitorID,
					Path:     "/",
					MaxAge:   int(constants.VisitorCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), ContextKeyVisitorID, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
