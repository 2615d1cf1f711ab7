package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/coursehub/coursehub/internal/application/query"
	"github.com/coursehub/coursehub/internal/domain/shared"
)

type principalKey struct{}

func principalFromContext(ctx context.Context) *query.Principal {
	p, _ := ctx.Value(principalKey{}).(*query.Principal)
	return p
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireSession is the session gate: the bearer token must verify and a
// session record must still exist in the cache.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Authenticator == nil {
			writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Authentication is not configured")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.writeError(w, r, shared.ErrInvalidToken)
			return
		}

		principal, err := s.deps.Authenticator.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches the principal when the request carries a valid
// session and otherwise serves the request anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || s.deps.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := s.deps.Authenticator.Authenticate(r.Context(), token)
		if err != nil {
			s.logger.DebugContext(r.Context(), "ignoring invalid optional session", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
