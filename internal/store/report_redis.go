package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/pagepress/internal/compose"
)

// ReportStore persists the finished report of each compose job with a TTL.
type ReportStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportStore(redisURL string, ttl time.Duration) (*ReportStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &ReportStore{client: c, ttl: ttl}, nil
}

func (s *ReportStore) key(jobID string) string { return fmt.Sprintf("job:%s:report", jobID) }

func (s *ReportStore) Save(ctx context.Context, jobID string, r *compose.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.client.Set(ctx, s.key(jobID), b, s.ttl).Err()
}

func (s *ReportStore) Get(ctx context.Context, jobID string) (*compose.Report, bool, error) {
	b, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var r compose.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, true, nil
}

func (s *ReportStore) Close() error { return s.client.Close() }
