// Package auth resolves the caller of an API request from a bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

type contextKey struct{}

var userKey = contextKey{}

// Tokens maps bearer tokens to user ids.
type Tokens map[string]string

// ParseTokens parses "token:user,token:user". Blank entries are skipped.
func ParseTokens(s string) (Tokens, error) {
	tokens := Tokens{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, ":")
		token, user = strings.TrimSpace(token), strings.TrimSpace(user)
		if !ok || token == "" || user == "" {
			return nil, fmt.Errorf("invalid token entry %q: expected token:user", pair)
		}
		tokens[token] = user
	}
	return tokens, nil
}

// Users returns the distinct user ids in the table.
func (t Tokens) Users() []string {
	seen := make(map[string]bool, len(t))
	var users []string
	for _, u := range t {
		if !seen[u] {
			seen[u] = true
			users = append(users, u)
		}
	}
	return users
}

// lookup compares every token in constant time.
func (t Tokens) lookup(token string) (string, bool) {
	var found string
	for candidate, user := range t {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			found = user
		}
	}
	return found, found != ""
}

// WithUser stores the authenticated user id in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFromContext returns the authenticated user id, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	u, ok := ctx.Value(userKey).(string)
	return u, ok && u != ""
}

// Middleware rejects requests without a known bearer token and attaches the
// caller's user id to the request context. onDenied writes the rejection;
// nil means a plain 401.
func Middleware(tokens Tokens, onDenied func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := tokens.lookup(bearerToken(r))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="lifehub"`)
				if onDenied != nil {
					onDenied(w, r)
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
