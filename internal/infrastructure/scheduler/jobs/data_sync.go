// Package jobs contains the built-in scheduled jobs of the tracker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/command"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/cronjob"
)

// ══════════════════════════════════════════════════════════════════════════════
// DATA SYNC JOB
// ══════════════════════════════════════════════════════════════════════════════

// FleetSyncer syncs every student with a handle.
type FleetSyncer interface {
	Handle(ctx context.Context) (*command.FleetReport, error)
}

// DataSyncJob refreshes the Codeforces data of every student.
// Per-student failures are reported but do not fail the job.
type DataSyncJob struct {
	fleet  FleetSyncer
	logger *slog.Logger

	lastReport atomic.Pointer[command.FleetReport]
}

// NewDataSyncJob creates a new data sync job.
func NewDataSyncJob(fleet FleetSyncer, logger *slog.Logger) *DataSyncJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataSyncJob{fleet: fleet, logger: logger}
}

// Name returns the job name.
func (j *DataSyncJob) Name() string {
	return cronjob.DataSync
}

// Description returns a human-readable description.
func (j *DataSyncJob) Description() string {
	return "Syncs Codeforces data for all students"
}

// Run executes the fleet sync.
func (j *DataSyncJob) Run(ctx context.Context) error {
	report, err := j.fleet.Handle(ctx)
	if report != nil {
		j.lastReport.Store(report)
	}
	if err != nil {
		return fmt.Errorf("data sync: %w", err)
	}

	j.logger.Info("data sync finished",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	return nil
}

// LastReport returns the report of the latest run, or nil.
func (j *DataSyncJob) LastReport() *command.FleetReport {
	return j.lastReport.Load()
}
