package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

// TrimStream drops global stream entries older than maxAge using XTRIM
// MINID. Stream entry IDs start with the epoch ms, so the cutoff converts
// directly to a minimum ID. Returns the number of trimmed entries.
func (s *Store) TrimStream(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error) {
	cutoffMs := now.Add(-maxAge).UnixMilli()
	minID := strconv.FormatInt(cutoffMs, 10) + "-0"

	trimmed, err := s.client.XTrimMinID(ctx, s.cfg.GlobalStream, minID).Result()
	if err != nil {
		return 0, fmt.Errorf("trimming stream %s: %w", s.cfg.GlobalStream, err)
	}
	if trimmed > 0 {
		s.logger.Info("Trimmed %d entries before %s from %s", trimmed, minID, s.cfg.GlobalStream)
	}
	return trimmed, nil
}

// DeleteExpiredDocs scans event documents and deletes those whose
// occurred_at is past the retention ceiling, together with their search
// hashes. Returns the number of deleted documents.
func (s *Store) DeleteExpiredDocs(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error) {
	cutoffMs := now.Add(-maxAge).UnixMilli()

	var deleted int64
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.cfg.EventKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("scanning event documents: %w", err)
		}

		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return deleted, fmt.Errorf("reading %s: %w", key, err)
			}

			var doc struct {
				EventID    string    `json:"event_id"`
				OccurredAt time.Time `json:"occurred_at"`
			}
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				s.logger.Warn("Skipping undecodable document %s: %v", key, err)
				continue
			}
			if doc.OccurredAt.UnixMilli() >= cutoffMs {
				continue
			}

			pipe := s.client.TxPipeline()
			pipe.Del(ctx, key)
			pipe.Del(ctx, s.searchHashKey(doc.EventID))
			if _, err := pipe.Exec(ctx); err != nil {
				return deleted, fmt.Errorf("deleting %s: %w", key, err)
			}
			deleted++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if deleted > 0 {
		s.logger.Info("Deleted %d expired event documents", deleted)
	}
	return deleted, nil
}

// CleanupDedupSet removes dedup entries whose ingestion score is past
// the retention ceiling. Returns the number of removed members.
func (s *Store) CleanupDedupSet(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error) {
	cutoffMs := now.Add(-maxAge).UnixMilli()

	removed, err := s.client.ZRemRangeByScore(ctx, s.cfg.DedupSet, "-inf", strconv.FormatInt(cutoffMs, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("cleaning dedup set: %w", err)
	}
	if removed > 0 {
		s.logger.Info("Removed %d expired dedup entries", removed)
	}
	return removed, nil
}
