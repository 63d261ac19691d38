// Package cache is the Redis-backed store for document summaries, run
// logs and user feedback. Summaries live in per-day hashes with a small
// TTL'd metadata key per file for fast lookup; logs and feedback are
// append-only per-day hashes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dayFormat = "2006-01-02"

// Store is the cache contract the pipelines and controllers depend on.
type Store interface {
	ExistsSummary(ctx context.Context, fileID string) (bool, error)
	GetSummary(ctx context.Context, fileID string) (string, error)
	SetSummary(ctx context.Context, fileID, summary string) error
	DeleteSummary(ctx context.Context, fileID string) (bool, error)
	AppendLog(ctx context.Context, fileID, url, query, lang, msg string) error
	AddFeedback(ctx context.Context, fileID, feedbackID string, payload map[string]any) error
	GetFeedbacks(ctx context.Context, fileID string) ([]map[string]any, error)
}

type summaryMetadata struct {
	Date      string `json:"date"`
	Timestamp string `json:"timestamp"`
	TTLDays   int    `json:"ttl_days"`
}

// RedisStore implements Store. now is injectable for tests.
type RedisStore struct {
	rdb     *redis.Client
	ttlDays int
	now     func() time.Time
}

var _ Store = &RedisStore{}

func NewRedisStore(rdb *redis.Client, ttlDays int) *RedisStore {
	if ttlDays <= 0 {
		ttlDays = 7
	}
	return &RedisStore{
		rdb:     rdb,
		ttlDays: ttlDays,
		now:     time.Now,
	}
}

func summariesKey(day time.Time) string {
	return "pdf:summaries:" + day.Format(dayFormat)
}

func metadataKey(fileID string) string {
	return "pdf:metadata:" + fileID
}

func (s *RedisStore) ttl() time.Duration {
	return time.Duration(s.ttlDays) * 24 * time.Hour
}

func (s *RedisStore) ExistsSummary(ctx context.Context, fileID string) (bool, error) {
	// Metadata key is the fast path; refresh its TTL on access.
	n, err := s.rdb.Exists(ctx, metadataKey(fileID)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: exists metadata: %w", err)
	}
	if n > 0 {
		s.rdb.Expire(ctx, metadataKey(fileID), s.ttl())
		return true, nil
	}

	// Fall back to scanning the per-day hashes inside the TTL window.
	now := s.now()
	for i := 0; i < s.ttlDays; i++ {
		ok, err := s.rdb.HExists(ctx, summariesKey(now.AddDate(0, 0, -i)), fileID).Result()
		if err != nil {
			return false, fmt.Errorf("cache: scan day hash: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *RedisStore) GetSummary(ctx context.Context, fileID string) (string, error) {
	raw, err := s.rdb.Get(ctx, metadataKey(fileID)).Result()
	if err == nil {
		s.rdb.Expire(ctx, metadataKey(fileID), s.ttl())
		var meta summaryMetadata
		if jsonErr := json.Unmarshal([]byte(raw), &meta); jsonErr == nil {
			summary, hgetErr := s.rdb.HGet(ctx, "pdf:summaries:"+meta.Date, fileID).Result()
			if hgetErr == nil {
				return summary, nil
			}
		}
	} else if err != redis.Nil {
		return "", fmt.Errorf("cache: get metadata: %w", err)
	}

	now := s.now()
	for i := 0; i < s.ttlDays; i++ {
		summary, err := s.rdb.HGet(ctx, summariesKey(now.AddDate(0, 0, -i)), fileID).Result()
		if err == nil {
			return summary, nil
		}
		if err != redis.Nil {
			return "", fmt.Errorf("cache: scan day hash: %w", err)
		}
	}
	return "", fmt.Errorf("cache: no summary for %s", fileID)
}

func (s *RedisStore) SetSummary(ctx context.Context, fileID, summary string) error {
	now := s.now()
	dayKey := summariesKey(now)

	if err := s.rdb.HSet(ctx, dayKey, fileID, summary).Err(); err != nil {
		return fmt.Errorf("cache: set summary: %w", err)
	}

	meta := summaryMetadata{
		Date:      now.Format(dayFormat),
		Timestamp: now.Format(time.RFC3339),
		TTLDays:   s.ttlDays,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cache: marshal metadata: %w", err)
	}
	if err := s.rdb.Set(ctx, metadataKey(fileID), metaJSON, s.ttl()).Err(); err != nil {
		return fmt.Errorf("cache: set metadata: %w", err)
	}

	// Day hash outlives the metadata by one day so lookups never race
	// the metadata expiry.
	return s.rdb.Expire(ctx, dayKey, s.ttl()+24*time.Hour).Err()
}

func (s *RedisStore) DeleteSummary(ctx context.Context, fileID string) (bool, error) {
	deleted := false

	raw, err := s.rdb.Get(ctx, metadataKey(fileID)).Result()
	if err == nil {
		var meta summaryMetadata
		if jsonErr := json.Unmarshal([]byte(raw), &meta); jsonErr == nil {
			n, _ := s.rdb.HDel(ctx, "pdf:summaries:"+meta.Date, fileID).Result()
			deleted = n > 0
		}
		s.rdb.Del(ctx, metadataKey(fileID))
	} else if err != redis.Nil {
		return false, fmt.Errorf("cache: get metadata: %w", err)
	} else {
		now := s.now()
		for i := 0; i < s.ttlDays; i++ {
			dayKey := summariesKey(now.AddDate(0, 0, -i))
			ok, _ := s.rdb.HExists(ctx, dayKey, fileID).Result()
			if ok {
				n, _ := s.rdb.HDel(ctx, dayKey, fileID).Result()
				deleted = n > 0
				break
			}
		}
	}

	if deleted {
		s.logDeletion(ctx, fileID)
	}
	return deleted, nil
}

func (s *RedisStore) logDeletion(ctx context.Context, fileID string) {
	now := s.now()
	key := "cache:deleted:" + now.Format(dayFormat)
	entry := fmt.Sprintf("%s|%s", fileID, now.Format(time.RFC3339))
	s.rdb.RPush(ctx, key, entry)
}

func (s *RedisStore) AppendLog(ctx context.Context, fileID, url, query, lang, msg string) error {
	now := s.now()
	payload, err := json.Marshal(map[string]string{
		"file_id": fileID,
		"url":     url,
		"query":   query,
		"lang":    lang,
		"time":    now.Format("15:04:05"),
		"msg":     msg,
	})
	if err != nil {
		return fmt.Errorf("cache: marshal log entry: %w", err)
	}

	key := "log:" + now.Format(dayFormat)
	field := now.Format("2006-01-02 15:04:05")
	if err := s.rdb.HSet(ctx, key, field, payload).Err(); err != nil {
		return fmt.Errorf("cache: append log: %w", err)
	}
	return nil
}

func (s *RedisStore) AddFeedback(ctx context.Context, fileID, feedbackID string, payload map[string]any) error {
	now := s.now()
	key := "feedback:" + now.Format(dayFormat)
	field := fmt.Sprintf("%s|%s|%s", fileID, feedbackID, now.Format("15:04:05"))

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache: marshal feedback: %w", err)
	}
	if err := s.rdb.HSet(ctx, key, field, data).Err(); err != nil {
		return fmt.Errorf("cache: add feedback: %w", err)
	}
	return s.rdb.Expire(ctx, key, s.ttl()+24*time.Hour).Err()
}

func (s *RedisStore) GetFeedbacks(ctx context.Context, fileID string) ([]map[string]any, error) {
	var results []map[string]any
	now := s.now()
	prefix := fileID + "|"

	for i := 0; i <= s.ttlDays; i++ {
		key := "feedback:" + now.AddDate(0, 0, -i).Format(dayFormat)
		entries, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("cache: read feedback hash: %w", err)
		}
		for field, val := range entries {
			if len(field) < len(prefix) || field[:len(prefix)] != prefix {
				continue
			}
			var data map[string]any
			if err := json.Unmarshal([]byte(val), &data); err != nil {
				continue
			}
			// field layout: <file_id>|<feedback_id>|<HH:MM:SS>
			rest := field[len(prefix):]
			for j := 0; j < len(rest); j++ {
				if rest[j] == '|' {
					data["id"] = rest[:j]
					break
				}
			}
			results = append(results, data)
		}
	}
	return results, nil
}
