// Package cache provides Redis-backed caches over hot relational reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/load28/foodie/internal/database"
	"github.com/load28/foodie/internal/models"
)

const (
	friendsKeyPrefix     = "friends:"
	friendIDsKeyPrefix   = "friend_ids:"
	friendCountKeyPrefix = "friend_count:"

	friendCacheTTL = time.Hour
)

// FriendCache caches friend lists, friend ID sets, and friend counts.
// Entries expire after an hour and are invalidated on any friendship
// mutation, so reads may be briefly stale but never grow unbounded.
type FriendCache struct {
	redis *database.Redis
}

// NewFriendCache creates a friend cache backed by Redis.
func NewFriendCache(rdb *database.Redis) *FriendCache {
	return &FriendCache{redis: rdb}
}

// GetFriends returns the cached friend profiles for a user.
func (c *FriendCache) GetFriends(ctx context.Context, userID string) ([]models.PublicProfile, bool, error) {
	raw, err := c.redis.Get(ctx, friendsKeyPrefix+userID)
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read friends cache: %w", err)
	}

	var friends []models.PublicProfile
	if err := json.Unmarshal([]byte(raw), &friends); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal friends cache: %w", err)
	}
	return friends, true, nil
}

// SetFriends stores a user's friend profiles.
func (c *FriendCache) SetFriends(ctx context.Context, userID string, friends []models.PublicProfile) error {
	data, err := json.Marshal(friends)
	if err != nil {
		return fmt.Errorf("failed to marshal friends: %w", err)
	}
	return c.redis.Set(ctx, friendsKeyPrefix+userID, data, friendCacheTTL)
}

// GetFriendIDs returns the cached friend ID set for a user.
func (c *FriendCache) GetFriendIDs(ctx context.Context, userID string) ([]string, bool, error) {
	raw, err := c.redis.Get(ctx, friendIDsKeyPrefix+userID)
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read friend ids cache: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal friend ids cache: %w", err)
	}
	return ids, true, nil
}

// SetFriendIDs stores a user's friend ID set.
func (c *FriendCache) SetFriendIDs(ctx context.Context, userID string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal friend ids: %w", err)
	}
	return c.redis.Set(ctx, friendIDsKeyPrefix+userID, data, friendCacheTTL)
}

// GetFriendCount returns the cached friend count for a user.
func (c *FriendCache) GetFriendCount(ctx context.Context, userID string) (int, bool, error) {
	raw, err := c.redis.Get(ctx, friendCountKeyPrefix+userID)
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read friend count cache: %w", err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse friend count cache: %w", err)
	}
	return count, true, nil
}

// SetFriendCount stores a user's friend count.
func (c *FriendCache) SetFriendCount(ctx context.Context, userID string, count int) error {
	return c.redis.Set(ctx, friendCountKeyPrefix+userID, strconv.Itoa(count), friendCacheTTL)
}

// Invalidate drops every cached entry for a user.
func (c *FriendCache) Invalidate(ctx context.Context, userID string) error {
	return c.redis.Delete(ctx,
		friendsKeyPrefix+userID,
		friendIDsKeyPrefix+userID,
		friendCountKeyPrefix+userID,
	)
}

// InvalidatePair drops cached entries for both sides of a friendship
// mutation.
func (c *FriendCache) InvalidatePair(ctx context.Context, a, b string) error {
	if err := c.Invalidate(ctx, a); err != nil {
		return err
	}
	return c.Invalidate(ctx, b)
}
