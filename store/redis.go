package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pollguard/logger"
)

const blockKeyPrefix = "pollguard:block:"

// RedisStore shares the block set across processes. Selected at startup via
// POLLGUARD_REDIS_ADDR; everything else falls back to LocalStore.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisStore(addr, password string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ctx:    context.Background(),
	}
}

func (s *RedisStore) IsBlocked(ip string) bool {
	exists, err := s.client.Exists(s.ctx, blockKeyPrefix+ip).Result()
	if err != nil {
		// Backend failure fails open: one unscreened client beats denying
		// the whole platform.
		logger.Error("redis block check failed", "ip", ip, "err", err)
		return false
	}
	return exists > 0
}

func (s *RedisStore) Block(ip string, info BlockInfo) {
	err := s.client.HSet(s.ctx, blockKeyPrefix+ip,
		"source", info.Source,
		"reason", info.Reason,
		"created_at", info.CreatedAt.Format(time.RFC3339),
	).Err()
	if err != nil {
		logger.Error("redis block write failed", "ip", ip, "err", err)
	}
}

func (s *RedisStore) Unblock(ip string) error {
	return s.client.Del(s.ctx, blockKeyPrefix+ip).Err()
}

func (s *RedisStore) ListBlocks() (map[string]BlockInfo, error) {
	keys, err := s.client.Keys(s.ctx, blockKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	blocks := make(map[string]BlockInfo, len(keys))
	for _, key := range keys {
		fields, err := s.client.HGetAll(s.ctx, key).Result()
		if err != nil {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339, fields["created_at"])
		blocks[strings.TrimPrefix(key, blockKeyPrefix)] = BlockInfo{
			Source:    fields["source"],
			Reason:    fields["reason"],
			CreatedAt: createdAt,
		}
	}
	return blocks, nil
}
