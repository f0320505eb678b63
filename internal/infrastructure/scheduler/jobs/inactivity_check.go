package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/cronjob"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// INACTIVITY CHECK JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReminderSender sends one reminder email, journals it and bumps the
// student's reminder counter on success.
type ReminderSender interface {
	SendReminder(ctx context.Context, st *student.Student) error
}

// InactivityCheckConfig contains configuration for the inactivity check.
type InactivityCheckConfig struct {
	// Threshold is how long without submissions counts as inactive.
	Threshold time.Duration
}

// DefaultInactivityCheckConfig returns sensible defaults.
func DefaultInactivityCheckConfig() InactivityCheckConfig {
	return InactivityCheckConfig{Threshold: 7 * 24 * time.Hour}
}

// InactivityCheckStats contains statistics from one sweep.
type InactivityCheckStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Found       int
	Sent        int
	Failed      int
}

// InactivityCheckJob reminds students who stopped submitting.
type InactivityCheckJob struct {
	students  student.Repository
	reminders ReminderSender
	config    InactivityCheckConfig
	logger    *slog.Logger
	now       func() time.Time

	lastRunStats atomic.Pointer[InactivityCheckStats]
}

// NewInactivityCheckJob creates a new inactivity check job.
func NewInactivityCheckJob(students student.Repository, reminders ReminderSender, config InactivityCheckConfig, logger *slog.Logger) *InactivityCheckJob {
	if config.Threshold <= 0 {
		config = DefaultInactivityCheckConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InactivityCheckJob{
		students:  students,
		reminders: reminders,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Name returns the job name.
func (j *InactivityCheckJob) Name() string {
	return cronjob.InactivityCheck
}

// Description returns a human-readable description.
func (j *InactivityCheckJob) Description() string {
	return "Sends reminder emails to students inactive for a week"
}

// Run sends one reminder to each inactive student with reminders enabled.
// A failed send is logged and the sweep continues.
func (j *InactivityCheckJob) Run(ctx context.Context) error {
	stats := &InactivityCheckStats{StartedAt: j.now()}
	cutoff := stats.StartedAt.Add(-j.config.Threshold)

	inactive, err := j.students.FindInactive(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to find inactive students: %w", err)
	}
	stats.Found = len(inactive)

	j.logger.Info("inactivity check started", "inactive_found", stats.Found, "cutoff", cutoff.Format(time.RFC3339))

	for _, st := range inactive {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := j.reminders.SendReminder(ctx, st); err != nil {
			stats.Failed++
			j.logger.Error("failed to send reminder",
				"student_id", st.ID,
				"error", err,
			)
			continue
		}
		stats.Sent++
	}

	stats.CompletedAt = j.now()
	j.lastRunStats.Store(stats)

	j.logger.Info("inactivity check completed",
		"inactive_found", stats.Found,
		"sent", stats.Sent,
		"failed", stats.Failed,
	)
	return nil
}

// LastRunStats returns statistics of the latest sweep, or nil.
func (j *InactivityCheckJob) LastRunStats() *InactivityCheckStats {
	return j.lastRunStats.Load()
}
