package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC ALL STUDENTS COMMAND
// Syncs every student with a handle in small concurrent groups,
// pausing between groups to stay under the Codeforces rate limit.
// ══════════════════════════════════════════════════════════════════════════════

// SyncAllStudentsConfig contains configuration for the fleet sync.
type SyncAllStudentsConfig struct {
	// BatchSize is how many students are synced concurrently.
	BatchSize int

	// BatchDelay is the pause between groups. There is none after the last group.
	BatchDelay time.Duration

	Logger *slog.Logger
}

// DefaultSyncAllStudentsConfig returns sensible defaults.
func DefaultSyncAllStudentsConfig() SyncAllStudentsConfig {
	return SyncAllStudentsConfig{
		BatchSize:  3,
		BatchDelay: 3 * time.Second,
	}
}

// SyncOutcome is the result of one student in a fleet sync.
type SyncOutcome struct {
	StudentID string
	Name      string
	Handle    string
	Report    *SyncReport
	Err       error
}

// Success reports whether the student was synced.
func (o SyncOutcome) Success() bool {
	return o.Err == nil
}

// FleetReport summarizes a fleet sync.
type FleetReport struct {
	Total     int
	Succeeded int
	Failed    int

	// Outcomes follow the order the students were loaded in.
	Outcomes []SyncOutcome

	StartedAt   time.Time
	CompletedAt time.Time
}

// SyncAllStudentsHandler runs the fleet sync.
type SyncAllStudentsHandler struct {
	students student.Repository
	syncer   StudentSyncer
	config   SyncAllStudentsConfig
	logger   *slog.Logger
}

// NewSyncAllStudentsHandler creates a new SyncAllStudentsHandler.
func NewSyncAllStudentsHandler(students student.Repository, syncer StudentSyncer, config SyncAllStudentsConfig) *SyncAllStudentsHandler {
	defaults := DefaultSyncAllStudentsConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = 0
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &SyncAllStudentsHandler{
		students: students,
		syncer:   syncer,
		config:   config,
		logger:   config.Logger,
	}
}

// Handle syncs all students. Per-student failures are reported in the
// outcomes; only loading the list or cancellation fail the whole call.
func (h *SyncAllStudentsHandler) Handle(ctx context.Context) (*FleetReport, error) {
	report := &FleetReport{StartedAt: time.Now()}

	students, err := h.students.ListWithHandle(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync_all: failed to list students: %w", err)
	}

	report.Total = len(students)
	report.Outcomes = make([]SyncOutcome, len(students))

	h.logger.Info("fleet sync started",
		"students", len(students),
		"batch_size", h.config.BatchSize,
	)

	size := h.config.BatchSize
	for start := 0; start < len(students); start += size {
		if err := ctx.Err(); err != nil {
			return h.finish(report, start), fmt.Errorf("sync_all: cancelled: %w", err)
		}

		end := start + size
		if end > len(students) {
			end = len(students)
		}
		h.syncGroup(ctx, students[start:end], report.Outcomes[start:end])

		if end < len(students) && h.config.BatchDelay > 0 {
			timer := time.NewTimer(h.config.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return h.finish(report, end), fmt.Errorf("sync_all: cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}

	h.finish(report, len(students))
	h.logger.Info("fleet sync completed",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", report.CompletedAt.Sub(report.StartedAt).String(),
	)
	return report, nil
}

// syncGroup syncs one group concurrently, writing into out by position.
func (h *SyncAllStudentsHandler) syncGroup(ctx context.Context, group []*student.Student, out []SyncOutcome) {
	var wg sync.WaitGroup
	for i, st := range group {
		out[i] = SyncOutcome{StudentID: st.ID, Name: st.Name, Handle: st.CodeforcesHandle}
		if !st.HasHandle() {
			out[i].Err = shared.ErrMissingHandle
			continue
		}

		wg.Add(1)
		go func(i int, st *student.Student) {
			defer wg.Done()
			rep, err := h.syncer.Handle(ctx, st.ID)
			out[i].Report = rep
			out[i].Err = err
			if err != nil {
				h.logger.Warn("student sync failed",
					"student_id", st.ID,
					"handle", st.CodeforcesHandle,
					"error", err,
				)
			}
		}(i, st)
	}
	wg.Wait()
}

// finish tallies the first n outcomes, the ones that were attempted.
func (h *SyncAllStudentsHandler) finish(report *FleetReport, n int) *FleetReport {
	report.Outcomes = report.Outcomes[:n]
	report.Succeeded, report.Failed = 0, 0
	for _, o := range report.Outcomes {
		if o.Success() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.CompletedAt = time.Now()
	return report
}
