package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pixelfort/internal/store"
)

type authContextKey struct{}

func contextWithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, authContextKey{}, user)
}

func userFromContext(ctx context.Context) (*store.User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(authContextKey{}).(*store.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// requireUser resolves the session token and rejects unauthenticated
// requests before the wrapped handler runs.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
			return
		}

		user, err := s.authService.AuthenticateSessionToken(r.Context(), token, time.Now().UTC())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if user == nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
	}
}

// requireAdmin additionally checks the shared admin token header.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" || r.Header.Get("X-Admin-Token") != s.adminToken {
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden())
			return
		}
		next.ServeHTTP(w, r)
	})
}
