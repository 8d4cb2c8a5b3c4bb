// Package auth resolves API bearer tokens to principals.
//
// Authentication here is deliberately thin: a static token-to-principal
// map loaded from configuration. Campaign ownership and list scoping hang
// off the resolved principal ID, not off the token itself.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Principal identifies an authenticated API caller.
type Principal struct {
	ID   string
	Name string
}

// principalKey is the context key for the authenticated principal.
type principalKey struct{}

// Manager verifies bearer tokens against a configured set.
type Manager struct {
	// tokens maps raw token -> principal. Immutable after construction.
	tokens map[string]Principal
}

// NewManager builds a manager from token -> principal-id pairs.
func NewManager(tokens map[string]string) *Manager {
	m := &Manager{tokens: make(map[string]Principal, len(tokens))}
	for token, id := range tokens {
		m.tokens[token] = Principal{ID: id, Name: id}
	}
	return m
}

// Verify resolves a raw token. Constant-time comparison per candidate so
// token length and prefix don't leak through timing.
func (m *Manager) Verify(token string) (Principal, bool) {
	for candidate, p := range m.tokens {
		if len(candidate) == len(token) &&
			subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return p, true
		}
	}
	return Principal{}, false
}

// Middleware rejects requests without a valid bearer token and injects the
// principal into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"ok":false,"error":"missing bearer token"}`))
			return
		}
		p, ok := m.Verify(token)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"ok":false,"error":"invalid token"}`))
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
