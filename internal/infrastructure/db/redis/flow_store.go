package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fleetops/fleetbot/internal/core/flow"
)

// FlowStore persists per-chat conversation state in Redis so in-progress
// flows survive a process restart. Keys carry no TTL: a flow lives until it
// completes or the user cancels it.
// Key format: flow:<chat_id>
type FlowStore struct {
	client *redis.Client
}

// NewFlowStore creates a FlowStore wrapping the given Redis client.
func NewFlowStore(client *redis.Client) *FlowStore {
	return &FlowStore{client: client}
}

func (s *FlowStore) Get(ctx context.Context, chatID int64) (*flow.State, error) {
	payload, err := s.client.Get(ctx, s.key(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow state get: %w", err)
	}

	var st flow.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("flow state decode: %w", err)
	}
	return &st, nil
}

func (s *FlowStore) Put(ctx context.Context, chatID int64, st *flow.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("flow state encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(chatID), payload, 0).Err(); err != nil {
		return fmt.Errorf("flow state put: %w", err)
	}
	return nil
}

func (s *FlowStore) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return fmt.Errorf("flow state clear: %w", err)
	}
	return nil
}

func (s *FlowStore) key(chatID int64) string {
	return fmt.Sprintf("flow:%d", chatID)
}
