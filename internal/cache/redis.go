package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cogstate-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Options struct {
	Addr        string
	Password    string
	DB          int
	SnapshotTTL time.Duration
	RecentLimit int64
}

type RedisClient struct {
	client      *redis.Client
	ttl         time.Duration
	recentLimit int64
}

func NewRedisClient(ctx context.Context, opts Options) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = time.Hour
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 1000
	}

	return &RedisClient{
		client:      client,
		ttl:         opts.SnapshotTTL,
		recentLimit: opts.RecentLimit,
	}, nil
}

func snapshotKey(sessionID string, seq int64) string {
	return fmt.Sprintf("snapshot:%s:%d", sessionID, seq)
}

func seqKey(sessionID string) string {
	return fmt.Sprintf("snapshots:%s:seq", sessionID)
}

func recentKey(sessionID string) string {
	return fmt.Sprintf("snapshots:%s:recent", sessionID)
}

// StoreSnapshot caches a snapshot under a per-session sequence key and pushes
// that key onto the session's bounded recent list. Snapshots sharing a
// timestamp get distinct keys.
func (r *RedisClient) StoreSnapshot(ctx context.Context, sessionID string, snap models.CognitiveStateSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	counter := seqKey(sessionID)
	seq, err := r.client.Incr(ctx, counter).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate snapshot key: %w", err)
	}
	key := snapshotKey(sessionID, seq)

	listKey := recentKey(sessionID)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, r.ttl)
	pipe.LPush(ctx, listKey, key)
	pipe.LTrim(ctx, listKey, 0, r.recentLimit-1)
	pipe.Expire(ctx, listKey, r.ttl)
	pipe.Expire(ctx, counter, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store snapshot in Redis: %w", err)
	}

	return nil
}

// RecentSnapshots returns up to count cached snapshots, newest first. Expired
// or undecodable entries are skipped.
func (r *RedisClient) RecentSnapshots(ctx context.Context, sessionID string, count int64) ([]models.CognitiveStateSnapshot, error) {
	keys, err := r.client.LRange(ctx, recentKey(sessionID), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent snapshot keys: %w", err)
	}
	if len(keys) == 0 {
		return []models.CognitiveStateSnapshot{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}

	snaps := make([]models.CognitiveStateSnapshot, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var snap models.CognitiveStateSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}

// DeleteSession drops the session's recent list along with every snapshot it
// still references.
func (r *RedisClient) DeleteSession(ctx context.Context, sessionID string) error {
	listKey := recentKey(sessionID)
	keys, err := r.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list session snapshots: %w", err)
	}
	keys = append(keys, listKey, seqKey(sessionID))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session snapshots: %w", err)
	}
	return nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
