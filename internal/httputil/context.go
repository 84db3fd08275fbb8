package httputil

import (
	"context"
	"net/http"
)

// Unexported key type so nothing outside this package can collide with
// or spoof the identity value.
type contextKey string

const userIDKey contextKey = "userID"

// WithUserID returns the request with the authenticated user ID attached
// to its context. The identity middleware is the only writer.
func WithUserID(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

// GetUserID returns the authenticated user ID, or "" when the request
// never passed through the identity middleware.
func GetUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}
