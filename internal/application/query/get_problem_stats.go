package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROBLEM STATS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ProblemStatsCache stores computed summaries. Get returns (nil, nil) on a miss.
type ProblemStatsCache interface {
	Get(ctx context.Context, studentID string, days int) (*stats.ProblemSummary, error)
	Set(ctx context.Context, studentID string, days int, sum stats.ProblemSummary) error
}

// GetProblemStatsHandler summarizes solved problems of a student for a period.
type GetProblemStatsHandler struct {
	students student.Repository
	reader   student.AggregateReader
	cache    ProblemStatsCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewGetProblemStatsHandler creates a new GetProblemStatsHandler. cache may be nil.
func NewGetProblemStatsHandler(students student.Repository, reader student.AggregateReader, cache ProblemStatsCache, logger *slog.Logger) *GetProblemStatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetProblemStatsHandler{
		students: students,
		reader:   reader,
		cache:    cache,
		logger:   logger,
		now:      timeutil.Now,
	}
}

// Handle returns the summary of the last days days; days <= 0 means all time.
func (h *GetProblemStatsHandler) Handle(ctx context.Context, studentID string, days int) (*stats.ProblemSummary, error) {
	if days < 0 {
		days = 0
	}

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, studentID, days)
		if err != nil {
			h.logger.Warn("problem stats cache read failed", "student_id", studentID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	if _, err := h.students.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	since := periodStart(h.now(), days)
	daily, err := h.reader.ListDailyStats(ctx, studentID, since)
	if err != nil {
		return nil, fmt.Errorf("problem_stats: %w", err)
	}
	heatmap, err := h.reader.ListHeatmap(ctx, studentID, since)
	if err != nil {
		return nil, fmt.Errorf("problem_stats: %w", err)
	}

	sum := stats.SummarizeProblems(daily, heatmap, days)

	if h.cache != nil {
		if err := h.cache.Set(ctx, studentID, days, sum); err != nil {
			h.logger.Warn("problem stats cache write failed", "student_id", studentID, "error", err)
		}
	}
	return &sum, nil
}
