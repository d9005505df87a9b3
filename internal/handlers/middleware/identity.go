package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/osemenov/walletd/internal/handlers/render"
	"github.com/osemenov/walletd/internal/handlers/userctx"
)

// UserIDHeader is set by the identity provider in front of this
// service. The service trusts it: credential checks are out of scope
// here and happen upstream.
const UserIDHeader = "X-User-ID"

func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := uuid.Parse(r.Header.Get(UserIDHeader))
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
