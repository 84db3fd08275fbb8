package middleware

import (
	"context"
	"net/http"
	"strings"

	"codecollab/internal/httputil"
)

// Identity turns a bearer token into a user ID. Real token verification
// lives outside this service; production deployments inject their own
// resolver here.
type Identity interface {
	ResolveToken(ctx context.Context, token string) (userID string, err error)
}

// PassthroughIdentity treats the bearer token itself as the user ID.
// Dev and test only.
type PassthroughIdentity struct{}

func (PassthroughIdentity) ResolveToken(ctx context.Context, token string) (string, error) {
	return token, nil
}

// Authenticate extracts the Authorization bearer token, resolves it to a
// user ID, and stores the ID on the request context. Requests without a
// valid identity are rejected with 401.
func Authenticate(identity Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			userID, err := identity.ResolveToken(r.Context(), token)
			if err != nil || userID == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, httputil.WithUserID(r, userID))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
