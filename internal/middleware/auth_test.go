package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/load28/foodie/internal/auth"
	"github.com/load28/foodie/internal/database"
	"github.com/load28/foodie/internal/session"
)

func authTestStack(t *testing.T) (*session.Store, *auth.TokenIssuer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return session.NewStore(rdb, time.Hour), auth.NewTokenIssuer("test-secret", time.Hour), mr
}

func echoUserHandler(t *testing.T, wantUserID string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantUserID, userID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthBearerSessionID(t *testing.T) {
	sessions, tokens, mr := authTestStack(t)
	ctx := context.Background()

	sessionID, err := sessions.Create(ctx, "user-1")
	require.NoError(t, err)

	// Shrink the TTL so the refresh is observable
	mr.SetTTL("session:"+sessionID, time.Minute)

	mw := Auth(sessions, tokens)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sessionID)

	mw(echoUserHandler(t, "user-1")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// The session TTL slid back to the full window
	assert.Greater(t, mr.TTL("session:"+sessionID), time.Minute)
}

func TestAuthBearerSessionCarriesSessionID(t *testing.T) {
	sessions, tokens, _ := authTestStack(t)

	sessionID, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	mw := Auth(sessions, tokens)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, sessionID, SessionID(r.Context()))
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sessionID)

	mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestAuthBearerOpaqueToken(t *testing.T) {
	sessions, tokens, _ := authTestStack(t)

	token, err := tokens.Issue("user-2")
	require.NoError(t, err)

	mw := Auth(sessions, tokens)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	mw(echoUserHandler(t, "user-2")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// Token-only requests carry no session ID
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Empty(t, SessionID(r.Context()))
	})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestAuthExpiredSessionFallsBackToToken(t *testing.T) {
	sessions, tokens, mr := authTestStack(t)

	_, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	// The credential no longer resolves as a session but still
	// has to be tried against the token verifier.
	token, err := tokens.Issue("user-1")
	require.NoError(t, err)

	mw := Auth(sessions, tokens)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	mw(echoUserHandler(t, "user-1")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsMissingCredentials(t *testing.T) {
	sessions, tokens, _ := authTestStack(t)

	mw := Auth(sessions, tokens)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsExpiredSessionID(t *testing.T) {
	sessions, tokens, mr := authTestStack(t)

	sessionID, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	mw := Auth(sessions, tokens)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sessionID)

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsBadToken(t *testing.T) {
	sessions, tokens, _ := authTestStack(t)

	other := auth.NewTokenIssuer("different-secret", time.Hour)
	token, err := other.Issue("user-1")
	require.NoError(t, err)

	mw := Auth(sessions, tokens)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
