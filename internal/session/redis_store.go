package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one key per session plus a set of session ids per user.
// Keys expire with the session, so no purge is needed.
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) buildKey(parts ...string) string {
	prefix := strings.TrimSpace(s.Prefix)
	if prefix == "" {
		prefix = "shop"
	}
	return prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStore) sessionKey(id string) string {
	return s.buildKey("session", id)
}

func (s *RedisStore) userKey(userID uint) string {
	return s.buildKey("user_sessions", fmt.Sprint(userID))
}

func (s *RedisStore) Create(ctx context.Context, userID uint, ttl time.Duration) (*Record, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	_, err = s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.sessionKey(rec.ID), payload, ttl)
		p.SAdd(ctx, s.userKey(userID), rec.ID)
		p.Expire(ctx, s.userKey(userID), ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	val, err := s.Client.Get(ctx, s.sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.sessionKey(id))
		p.SRem(ctx, s.userKey(rec.UserID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RedisStore) RevokeUser(ctx context.Context, userID uint) error {
	ids, err := s.Client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis error: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	keys = append(keys, s.userKey(userID))
	if err := s.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}
