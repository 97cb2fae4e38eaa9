package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 7 * 24 * time.Hour
	recentLimit  = 50
	keyPrefix    = "archive:game:"
	keyRecentIdx = "archive:recent"
)

// Store keeps finished games in Redis as JSON with a TTL, plus a capped recent index.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL is required for the archive store")
	}
	opts, err := redisOptions(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) keyGame(id string) string { return keyPrefix + strings.TrimSpace(id) }

func (s *Store) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyGame(rec.ID), raw, s.ttl)
	pipe.LPush(ctx, keyRecentIdx, rec.ID)
	pipe.LTrim(ctx, keyRecentIdx, 0, recentLimit-1)
	pipe.Expire(ctx, keyRecentIdx, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save archive %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns nil, nil when the record is unknown or expired.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.keyGame(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns up to limit records, newest first. Expired entries are skipped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	ids, err := s.rdb.LRange(ctx, keyRecentIdx, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// redisOptions accepts redis:// and rediss:// URLs. rediss enables TLS and a missing port
// defaults to 6379.
func redisOptions(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}
