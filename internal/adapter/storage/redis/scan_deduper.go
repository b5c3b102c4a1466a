package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ScanDeduper suppresses repeated reads of the same card. Readers report a
// card several times while it stays on the antenna.
type ScanDeduper struct {
	client *goredis.Client
	prefix string
}

// NewScanDeduper creates a Redis-backed scan deduper.
func NewScanDeduper(client *goredis.Client) *ScanDeduper {
	return &ScanDeduper{
		client: client,
		prefix: keyPrefix + "scan:",
	}
}

// FirstSeen reports true for the first scan of cardUID from source within window.
func (s *ScanDeduper) FirstSeen(ctx context.Context, source, cardUID string, window time.Duration) (bool, error) {
	key := s.prefix + source + ":" + cardUID
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  window,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis scan dedupe: %w", err)
	}
	return result == "OK", nil
}
