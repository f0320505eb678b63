package redis

import (
	"context"
	"errors"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
)

// ProblemStatsCache caches period summaries per student and period length.
type ProblemStatsCache struct {
	cache *Cache
}

// NewProblemStatsCache creates a new ProblemStatsCache.
func NewProblemStatsCache(cache *Cache) *ProblemStatsCache {
	return &ProblemStatsCache{cache: cache}
}

// Get returns the cached summary, or (nil, nil) on a miss.
func (c *ProblemStatsCache) Get(ctx context.Context, studentID string, days int) (*stats.ProblemSummary, error) {
	var sum stats.ProblemSummary
	err := c.cache.Get(ctx, ProblemStatsKey(studentID, days), &sum)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Set stores a summary for TTLProblemStats.
func (c *ProblemStatsCache) Set(ctx context.Context, studentID string, days int, sum stats.ProblemSummary) error {
	return c.cache.Set(ctx, ProblemStatsKey(studentID, days), sum, TTLProblemStats)
}

// Invalidate drops every cached period of a student.
func (c *ProblemStatsCache) Invalidate(ctx context.Context, studentID string) error {
	return c.cache.DeleteByPattern(ctx, ProblemStatsPattern(studentID))
}
