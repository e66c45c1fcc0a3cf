package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/load28/foodie/internal/auth"
	apierrors "github.com/load28/foodie/internal/pkg/errors"
	"github.com/load28/foodie/internal/pkg/response"
	"github.com/load28/foodie/internal/session"
)

type contextKey string

const (
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// SessionIDKey is the context key for the resolved session ID, if any.
	SessionIDKey contextKey = "session_id"
)

// UserID returns the authenticated user ID from the request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok
}

// SessionID returns the session ID from the request context. It is empty
// when the request authenticated with a signed token instead.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

// Auth returns a middleware that resolves the caller from the bearer
// credential, which is either a session ID or a signed token. The
// session store is tried first; a live session also has its TTL
// refreshed so active users do not get logged out mid-use. Anything
// the store does not recognize is validated as a signed token.
func Auth(sessions *session.Store, tokens *auth.TokenIssuer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Error(w, apierrors.ErrUnauthorized)
				return
			}
			credential := strings.TrimPrefix(authHeader, "Bearer ")

			sess, found, err := sessions.Get(r.Context(), credential)
			if err == nil && found {
				if existed, err := sessions.Touch(r.Context(), credential); err == nil && existed {
					ctx := context.WithValue(r.Context(), UserIDKey, sess.UserID)
					ctx = context.WithValue(ctx, SessionIDKey, credential)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			userID, err := tokens.Validate(credential)
			if err == nil {
				ctx := context.WithValue(r.Context(), UserIDKey, userID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			response.Error(w, apierrors.ErrUnauthorized)
		})
	}
}
