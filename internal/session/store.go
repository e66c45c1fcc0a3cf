// Package session implements server-side sessions stored in Redis.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/load28/foodie/internal/database"
)

const sessionKeyPrefix = "session:"

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Session is the payload stored per session key.
type Session struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages sessions in Redis under session:{id} keys.
type Store struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewStore creates a session store. ttl defaults to 24 hours when zero.
func NewStore(rdb *database.Redis, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: rdb, ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create starts a new session for a user and returns its ID.
func (s *Store) Create(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()

	data, err := json.Marshal(Session{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.redis.Set(ctx, sessionKeyPrefix+id, data, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id, nil
}

// Get loads a session by ID. Returns found=false for unknown or
// expired sessions.
func (s *Store) Get(ctx context.Context, id string) (*Session, bool, error) {
	raw, err := s.redis.Get(ctx, sessionKeyPrefix+id)
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, true, nil
}

// Touch slides a session's expiry forward by the configured TTL and
// reports whether the session existed. Active users stay logged in;
// idle sessions lapse.
func (s *Store) Touch(ctx context.Context, id string) (bool, error) {
	return s.redis.Expire(ctx, sessionKeyPrefix+id, s.ttl)
}

// Delete removes a single session.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.redis.Delete(ctx, sessionKeyPrefix+id)
}

// DeleteAllForUser removes every session belonging to a user and
// returns how many were dropped. Used on password change and account
// deletion.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	keys, err := s.redis.ScanKeys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		raw, err := s.redis.Get(ctx, key)
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to read session: %w", err)
		}

		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			continue
		}
		if sess.UserID != userID {
			continue
		}
		if err := s.redis.Delete(ctx, key); err != nil {
			return deleted, fmt.Errorf("failed to delete session: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
