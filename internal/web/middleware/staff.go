package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const usernameKey ctxKey = iota

// StaffUsername copies the staff username set by the gateway from header
// into the request context. Requests without it pass through; handlers that
// act on behalf of a staff member reject them.
func StaffUsername(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if name := strings.TrimSpace(r.Header.Get(header)); name != "" {
				r = r.WithContext(WithUsername(r.Context(), name))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUsername returns ctx carrying the acting staff username.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// Username returns the acting staff username, or "".
func Username(ctx context.Context) string {
	name, _ := ctx.Value(usernameKey).(string)
	return name
}
