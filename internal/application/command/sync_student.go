// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system:
// syncing students with Codeforces, managing students and sending emails.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/metrics"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC STUDENT COMMAND
// Fetches a student's Codeforces data, rebuilds every aggregate and
// writes the profile summary back onto the student row.
// ══════════════════════════════════════════════════════════════════════════════

// SyncReport contains the result of synchronization.
type SyncReport struct {
	StudentID string
	Handle    string

	Submissions   int
	RatingChanges int
	Contests      int
	ProblemDays   int
	HeatmapDays   int

	CurrentRating int
	SyncedAt      time.Time
	Duration      time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// JudgeClient fetches raw data from Codeforces.
// Only the profile fetch can fail; the lists degrade to empty.
type JudgeClient interface {
	FetchUserProfile(ctx context.Context, handle string) (*judge.Profile, error)
	FetchSubmissions(ctx context.Context, handle string) []judge.Submission
	FetchRatingHistory(ctx context.Context, handle string) []judge.RatingChange
}

// InFlightGuard allows one sync per student at a time.
// release is never nil and must be called when ok is true.
type InFlightGuard interface {
	TryAcquire(ctx context.Context, studentID string) (release func(), ok bool, err error)
}

// StatsInvalidator drops cached statistics of a student.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, studentID string) error
}

// StudentSyncer is the single-student sync entry point used by other commands.
type StudentSyncer interface {
	Handle(ctx context.Context, studentID string) (*SyncReport, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SyncStudentHandlerConfig contains optional collaborators.
type SyncStudentHandlerConfig struct {
	// Guard defaults to an in-process LocalGuard.
	Guard InFlightGuard

	// Cache is optional.
	Cache StatsInvalidator

	Logger *slog.Logger
	Now    func() time.Time
}

// SyncStudentHandler synchronizes one student.
type SyncStudentHandler struct {
	students   student.Repository
	aggregates student.AggregateWriter
	judge      JudgeClient
	guard      InFlightGuard
	cache      StatsInvalidator
	logger     *slog.Logger
	now        func() time.Time
}

// NewSyncStudentHandler creates a new SyncStudentHandler.
func NewSyncStudentHandler(
	students student.Repository,
	aggregates student.AggregateWriter,
	judgeClient JudgeClient,
	config SyncStudentHandlerConfig,
) *SyncStudentHandler {
	if config.Guard == nil {
		config.Guard = NewLocalGuard()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = timeutil.Now
	}

	return &SyncStudentHandler{
		students:   students,
		aggregates: aggregates,
		judge:      judgeClient,
		guard:      config.Guard,
		cache:      config.Cache,
		logger:     config.Logger,
		now:        config.Now,
	}
}

// Handle runs fetch, aggregate and persist for one student, in that order.
func (h *SyncStudentHandler) Handle(ctx context.Context, studentID string) (report *SyncReport, err error) {
	startedAt := time.Now()
	defer func() {
		result := metrics.Result(err)
		if shared.IsConflict(err) {
			result = metrics.ResultSkipped
		}
		metrics.StudentSyncs.WithLabelValues(result).Inc()
		metrics.StudentSyncDuration.Observe(metrics.Since(startedAt))
	}()

	release, ok, err := h.guard.TryAcquire(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("sync_student: failed to acquire guard: %w", err)
	}
	if !ok {
		return nil, shared.ErrSyncInProgress
	}
	defer release()

	st, err := h.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("sync_student: failed to load student: %w", err)
	}
	if !st.HasHandle() {
		return nil, shared.ErrMissingHandle
	}

	log := h.logger.With("student_id", st.ID, "handle", st.CodeforcesHandle)
	log.Info("syncing student")

	// Fetch
	profile, err := h.judge.FetchUserProfile(ctx, st.CodeforcesHandle)
	if err != nil {
		return nil, fmt.Errorf("sync_student: failed to fetch profile: %w", err)
	}
	submissions := h.judge.FetchSubmissions(ctx, st.CodeforcesHandle)
	ratings := h.judge.FetchRatingHistory(ctx, st.CodeforcesHandle)

	// Degraded lists after cancellation must not replace stored history.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sync_student: cancelled after fetch: %w", err)
	}

	// Aggregate
	contests := stats.ComputeContestSummaries(submissions, ratings)
	daily := stats.ComputeDailyStats(submissions)

	// Persist
	if err := h.aggregates.ReplaceContests(ctx, st.ID, contests); err != nil {
		return nil, fmt.Errorf("sync_student: failed to store contests: %w", err)
	}
	if err := h.aggregates.ReplaceDailyStats(ctx, st.ID, daily); err != nil {
		return nil, fmt.Errorf("sync_student: failed to store daily stats: %w", err)
	}

	now := h.now()
	summary := student.NewSyncSummary(profile, lastSubmission(submissions), now)
	if err := h.students.ApplySyncSummary(ctx, st.ID, summary); err != nil {
		return nil, fmt.Errorf("sync_student: failed to update student: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, st.ID); err != nil {
			log.Warn("failed to invalidate stats cache", "error", err)
		}
	}

	report = &SyncReport{
		StudentID:     st.ID,
		Handle:        st.CodeforcesHandle,
		Submissions:   len(submissions),
		RatingChanges: len(ratings),
		Contests:      len(contests),
		ProblemDays:   len(daily.Stats),
		HeatmapDays:   len(daily.Heatmap),
		CurrentRating: profile.Rating,
		SyncedAt:      now,
		Duration:      time.Since(startedAt),
	}

	log.Info("student synced",
		"submissions", report.Submissions,
		"contests", report.Contests,
		"days", report.HeatmapDays,
		"duration", report.Duration.String(),
	)
	return report, nil
}

// lastSubmission is the newest submission time of any verdict.
func lastSubmission(subs []judge.Submission) *time.Time {
	secs := make([]int64, len(subs))
	for i, s := range subs {
		secs[i] = s.CreatedAt
	}
	return timeutil.MaxUnix(secs)
}
