package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/fleet-support/internal/codec"
	"github.com/spec-kit/fleet-support/internal/domain"
)

// RedisTicketRepository stores each ticket as a CBOR document under
// {prefix}:ticket:{id} and keeps the id set in {prefix}:tickets. Put uses
// WATCH/MULTI so two processes racing on one ticket cannot both commit.
type RedisTicketRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisTicketRepository builds a repository namespaced by prefix.
func NewRedisTicketRepository(client *redis.Client, prefix string) *RedisTicketRepository {
	if prefix == "" {
		prefix = "fleet-support"
	}
	return &RedisTicketRepository{client: client, prefix: prefix}
}

func (r *RedisTicketRepository) ticketKey(id string) string {
	return fmt.Sprintf("%s:ticket:%s", r.prefix, id)
}

func (r *RedisTicketRepository) indexKey() string {
	return r.prefix + ":tickets"
}

func (r *RedisTicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	raw, err := r.client.Get(ctx, r.ticketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeTicket(raw)
}

func (r *RedisTicketRepository) Put(ctx context.Context, ticket *domain.Ticket) error {
	key := r.ticketKey(ticket.ID)

	next := ticket.Clone()
	next.Version = ticket.Version + 1
	payload, err := codec.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if ticket.Version != 0 {
				return ErrNotFound
			}
		case err != nil:
			return err
		default:
			stored, err := decodeTicket(raw)
			if err != nil {
				return err
			}
			if ticket.Version == 0 || stored.Version != ticket.Version {
				return ErrVersionConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, r.indexKey(), ticket.ID)
			return nil
		})
		return err
	}

	if err := r.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return ErrVersionConflict
		}
		return err
	}
	ticket.Version = next.Version
	return nil
}

func (r *RedisTicketRepository) Scan(ctx context.Context) ([]domain.Ticket, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Ticket{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.ticketKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	tickets := make([]domain.Ticket, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// indexed but missing: removed out of band
			continue
		}
		ticket, err := decodeTicket([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("ticket %s: %w", ids[i], err)
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, nil
}

func decodeTicket(raw []byte) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := codec.Unmarshal(raw, &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &ticket, nil
}
