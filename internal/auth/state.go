package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/load28/foodie/internal/database"
)

const (
	stateKeyPrefix = "oauth:state:"
	stateTTL       = 5 * time.Minute
)

// StateData is what a CSRF state token records at creation time.
type StateData struct {
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}

// StateManager issues and consumes single-use CSRF state tokens for
// the OAuth authorization flow. Tokens live in Redis for 5 minutes and
// are removed atomically on first read, so a replayed callback fails.
type StateManager struct {
	redis *database.Redis
}

// NewStateManager creates a state manager backed by Redis.
func NewStateManager(rdb *database.Redis) *StateManager {
	return &StateManager{redis: rdb}
}

// Create issues a new state token bound to the requesting IP.
func (m *StateManager) Create(ctx context.Context, ip string) (string, error) {
	state := uuid.NewString()

	data, err := json.Marshal(StateData{IP: ip, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := m.redis.Set(ctx, stateKeyPrefix+state, data, stateTTL); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return state, nil
}

// Consume validates a state token and deletes it in the same round
// trip. Returns the data recorded at creation, or found=false for an
// unknown, expired, or already-used token.
func (m *StateManager) Consume(ctx context.Context, state string) (*StateData, bool, error) {
	raw, err := m.redis.GetDel(ctx, stateKeyPrefix+state)
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read state: %w", err)
	}

	var data StateData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &data, true, nil
}
