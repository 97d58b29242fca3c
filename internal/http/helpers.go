package http

import (
	"net/http"
	"strings"

	"lifehub/internal/middleware/auth"
)

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// userID returns the caller resolved by the auth middleware. Routes that
// call it are always mounted behind that middleware.
func userID(r *http.Request) string {
	u, _ := auth.UserFromContext(r.Context())
	return u
}
