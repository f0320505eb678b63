// Package cronjob describes the persisted configuration of recurring jobs.
package cronjob

import (
	"context"
	"time"
)

// Built-in job names.
const (
	DataSync        = "DATA_SYNC"
	InactivityCheck = "INACTIVITY_CHECK"
)

// Config - сохранённая конфигурация задачи планировщика.
type Config struct {
	Name           string
	CronExpression string
	Enabled        bool

	// LastRun is stamped when a run starts.
	LastRun *time.Time

	// NextRun is recomputed when a run completes; nil while disabled.
	NextRun *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Defaults returns the configurations seeded at first start.
func Defaults(dataSyncExpr, inactivityExpr string) []Config {
	if dataSyncExpr == "" {
		dataSyncExpr = "0 2 * * *"
	}
	if inactivityExpr == "" {
		inactivityExpr = "0 3 * * *"
	}
	return []Config{
		{Name: DataSync, CronExpression: dataSyncExpr, Enabled: true},
		{Name: InactivityCheck, CronExpression: inactivityExpr, Enabled: true},
	}
}

// Repository stores job configurations keyed by name.
type Repository interface {
	// CreateIfAbsent inserts cfg unless a config with the same name exists.
	CreateIfAbsent(ctx context.Context, cfg Config) error

	// Get returns shared.ErrCronJobNotFound for an unknown name.
	Get(ctx context.Context, name string) (*Config, error)

	// List returns all configurations ordered by name.
	List(ctx context.Context) ([]Config, error)

	// Upsert writes expression, enabled flag and next run.
	Upsert(ctx context.Context, name, expr string, enabled bool, nextRun *time.Time) error

	// SetEnabled toggles a config and overwrites its next run.
	SetEnabled(ctx context.Context, name string, enabled bool, nextRun *time.Time) error

	MarkStarted(ctx context.Context, name string, at time.Time) error
	MarkCompleted(ctx context.Context, name string, nextRun *time.Time) error
}
