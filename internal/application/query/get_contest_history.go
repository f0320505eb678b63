package query

import (
	"context"
	"fmt"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CONTEST HISTORY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetContestHistoryHandler returns stored contests of a student for a period.
type GetContestHistoryHandler struct {
	students student.Repository
	reader   student.AggregateReader
	now      func() time.Time
}

// NewGetContestHistoryHandler creates a new GetContestHistoryHandler.
func NewGetContestHistoryHandler(students student.Repository, reader student.AggregateReader) *GetContestHistoryHandler {
	return &GetContestHistoryHandler{students: students, reader: reader, now: timeutil.Now}
}

// Handle returns contests of the last days days; days <= 0 means all of them.
func (h *GetContestHistoryHandler) Handle(ctx context.Context, studentID string, days int) (*stats.ContestHistory, error) {
	if _, err := h.students.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	rows, err := h.reader.ListContests(ctx, studentID, periodStart(h.now(), days))
	if err != nil {
		return nil, fmt.Errorf("contest_history: %w", err)
	}

	history := stats.SummarizeContests(rows)
	return &history, nil
}

// periodStart is the zero time for an unbounded period.
func periodStart(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return timeutil.DaysAgo(now, days)
}
