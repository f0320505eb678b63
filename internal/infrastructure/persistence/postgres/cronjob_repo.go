package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/cronjob"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRON JOB CONFIG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CronJobRepository implements cronjob.Repository for PostgreSQL.
type CronJobRepository struct {
	conn *Connection
}

// NewCronJobRepository creates a new CronJobRepository.
func NewCronJobRepository(conn *Connection) *CronJobRepository {
	return &CronJobRepository{conn: conn}
}

var _ cronjob.Repository = (*CronJobRepository)(nil)

const cronColumns = `name, cron_expression, enabled, last_run, next_run, created_at, updated_at`

// CreateIfAbsent inserts cfg unless the name already exists.
func (r *CronJobRepository) CreateIfAbsent(ctx context.Context, cfg cronjob.Config) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO cron_job_configs (name, cron_expression, enabled, next_run)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
	`, cfg.Name, cfg.CronExpression, cfg.Enabled, cfg.NextRun)
	if err != nil {
		return fmt.Errorf("failed to seed cron config %s: %w", cfg.Name, err)
	}
	return nil
}

// Get returns a config by name.
func (r *CronJobRepository) Get(ctx context.Context, name string) (*cronjob.Config, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+cronColumns+` FROM cron_job_configs WHERE name = $1`, name)

	var c cronjob.Config
	err := row.Scan(&c.Name, &c.CronExpression, &c.Enabled, &c.LastRun, &c.NextRun, &c.CreatedAt, &c.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrCronJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cron config %s: %w", name, err)
	}
	return &c, nil
}

// List returns all configs ordered by name.
func (r *CronJobRepository) List(ctx context.Context) ([]cronjob.Config, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+cronColumns+` FROM cron_job_configs ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cron configs: %w", err)
	}
	defer rows.Close()

	out := []cronjob.Config{}
	for rows.Next() {
		var c cronjob.Config
		if err := rows.Scan(&c.Name, &c.CronExpression, &c.Enabled, &c.LastRun, &c.NextRun, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cron config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert writes expression, enabled flag and next run, creating the row if needed.
func (r *CronJobRepository) Upsert(ctx context.Context, name, expr string, enabled bool, nextRun *time.Time) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO cron_job_configs (name, cron_expression, enabled, next_run)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			enabled = EXCLUDED.enabled,
			next_run = EXCLUDED.next_run
	`, name, expr, enabled, nextRun)
	if err != nil {
		return fmt.Errorf("failed to upsert cron config %s: %w", name, err)
	}
	return nil
}

// SetEnabled toggles a config and overwrites its next run.
func (r *CronJobRepository) SetEnabled(ctx context.Context, name string, enabled bool, nextRun *time.Time) error {
	return r.execOne(ctx, name, `UPDATE cron_job_configs SET enabled = $1, next_run = $2 WHERE name = $3`, enabled, nextRun, name)
}

// MarkStarted stamps last_run.
func (r *CronJobRepository) MarkStarted(ctx context.Context, name string, at time.Time) error {
	return r.execOne(ctx, name, `UPDATE cron_job_configs SET last_run = $1 WHERE name = $2`, at, name)
}

// MarkCompleted stores the next run computed after completion.
func (r *CronJobRepository) MarkCompleted(ctx context.Context, name string, nextRun *time.Time) error {
	return r.execOne(ctx, name, `UPDATE cron_job_configs SET next_run = $1 WHERE name = $2`, nextRun, name)
}

func (r *CronJobRepository) execOne(ctx context.Context, name, query string, args ...interface{}) error {
	result, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update cron config %s: %w", name, err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCronJobNotFound
	}
	return nil
}
