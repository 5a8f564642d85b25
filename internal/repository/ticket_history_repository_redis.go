package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/fleet-support/internal/codec"
	"github.com/spec-kit/fleet-support/internal/domain"
)

// RedisTicketHistoryRepository appends CBOR entries to the list
// {prefix}:history:{ticket_id}.
type RedisTicketHistoryRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisTicketHistoryRepository(client *redis.Client, prefix string) *RedisTicketHistoryRepository {
	if prefix == "" {
		prefix = "fleet-support"
	}
	return &RedisTicketHistoryRepository{client: client, prefix: prefix}
}

func (r *RedisTicketHistoryRepository) key(ticketID string) string {
	return fmt.Sprintf("%s:history:%s", r.prefix, ticketID)
}

func (r *RedisTicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	payload, err := codec.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return r.client.RPush(ctx, r.key(history.TicketID), payload).Err()
}

func (r *RedisTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	raws, err := r.client.LRange(ctx, r.key(ticketID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	result := make([]domain.TicketHistory, 0, len(raws))
	for _, raw := range raws {
		var entry domain.TicketHistory
		if err := codec.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		result = append(result, entry)
	}
	return result, nil
}
