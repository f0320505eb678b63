package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

const migrationsTable = "schema_migrations"

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string

	// Tables created by this step, checked by Connection.Health.
	Tables []string
}

// GetMigrations returns the tracker schema in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			SQL:     migration001Up,
			Tables:  []string{"students"},
		},
		{
			Version: 2,
			Name:    "create_aggregates",
			SQL:     migration002Up,
			Tables:  []string{"contests", "daily_problem_stats", "daily_submission_heatmap"},
		},
		{
			Version: 3,
			Name:    "create_cron_and_email",
			SQL:     migration003Up,
			Tables:  []string{"cron_job_configs", "email_logs", "email_templates"},
		},
	}
}

// TrackerTables lists every table the tracker needs, the migrations table included.
func TrackerTables() []string {
	tables := []string{migrationsTable}
	for _, m := range GetMigrations() {
		tables = append(tables, m.Tables...)
	}
	return tables
}

// pending returns the migrations missing from applied, in version order.
func pending(all []Migration, applied map[int]bool) []Migration {
	out := make([]Migration, 0, len(all))
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Migrator applies GetMigrations against a Connection.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator for the tracker schema.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every pending migration, each in its own transaction
// together with its schema_migrations row.
func (m *Migrator) Migrate(ctx context.Context) error {
	if _, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrMigrationFailed, migrationsTable, err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version FROM `+migrationsTable)
	if err != nil {
		return fmt.Errorf("%w: read applied versions: %v", ErrMigrationFailed, err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return fmt.Errorf("%w: read applied versions: %v", ErrMigrationFailed, err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	for _, mig := range pending(m.migrations, applied) {
		err := m.conn.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO `+migrationsTable+` (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL,
    email VARCHAR(320) UNIQUE,
    phone VARCHAR(50) UNIQUE,
    codeforces_handle VARCHAR(100) UNIQUE,
    current_rating INTEGER NOT NULL DEFAULT 0,
    max_rating INTEGER NOT NULL DEFAULT 0,
    rank VARCHAR(50),
    max_rank VARCHAR(50),
    title_photo TEXT,
    last_data_update TIMESTAMP WITH TIME ZONE,
    last_submission_date TIMESTAMP WITH TIME ZONE,
    reminder_email_count INTEGER NOT NULL DEFAULT 0,
    email_reminder_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_reminder_count CHECK (reminder_email_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_students_created_at ON students(created_at);
CREATE INDEX IF NOT EXISTS idx_students_inactive ON students(last_submission_date)
    WHERE email_reminder_enabled;

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_students_updated_at ON students;
CREATE TRIGGER update_students_updated_at
    BEFORE UPDATE ON students
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE DERIVED AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create derived aggregate tables
-- Version: 002
-- Every table here is replaced wholesale per student on each sync.

CREATE TABLE IF NOT EXISTS contests (
    id BIGSERIAL PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    codeforces_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    rank INTEGER NOT NULL,
    old_rating INTEGER NOT NULL,
    new_rating INTEGER NOT NULL,
    rating_change INTEGER NOT NULL,
    contest_time TIMESTAMP WITH TIME ZONE NOT NULL,
    total_problems INTEGER NOT NULL DEFAULT 0,
    problems_solved INTEGER NOT NULL DEFAULT 0,
    hardest_problem VARCHAR(20),
    hardest_rating INTEGER,

    CONSTRAINT uq_contests_student_contest UNIQUE (student_id, codeforces_id),
    CONSTRAINT valid_solved CHECK (problems_solved <= total_problems)
);

CREATE INDEX IF NOT EXISTS idx_contests_student_time ON contests(student_id, contest_time DESC);

CREATE TABLE IF NOT EXISTS daily_problem_stats (
    id BIGSERIAL PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    total_solved INTEGER NOT NULL DEFAULT 0,
    max_rating INTEGER,
    avg_rating DOUBLE PRECISION,
    rating_800 INTEGER NOT NULL DEFAULT 0,
    rating_900 INTEGER NOT NULL DEFAULT 0,
    rating_1000 INTEGER NOT NULL DEFAULT 0,
    rating_1100 INTEGER NOT NULL DEFAULT 0,
    rating_1200 INTEGER NOT NULL DEFAULT 0,
    rating_1300 INTEGER NOT NULL DEFAULT 0,
    rating_1400 INTEGER NOT NULL DEFAULT 0,
    rating_1500 INTEGER NOT NULL DEFAULT 0,
    rating_1600 INTEGER NOT NULL DEFAULT 0,
    rating_1700 INTEGER NOT NULL DEFAULT 0,
    rating_1800 INTEGER NOT NULL DEFAULT 0,
    rating_1900 INTEGER NOT NULL DEFAULT 0,
    rating_2000 INTEGER NOT NULL DEFAULT 0,
    rating_2100 INTEGER NOT NULL DEFAULT 0,
    rating_2200 INTEGER NOT NULL DEFAULT 0,
    rating_2300 INTEGER NOT NULL DEFAULT 0,
    rating_2400_plus INTEGER NOT NULL DEFAULT 0,
    rating_unknown INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT uq_daily_stats_student_date UNIQUE (student_id, date)
);

CREATE TABLE IF NOT EXISTS daily_submission_heatmap (
    id BIGSERIAL PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    submission_count INTEGER NOT NULL DEFAULT 0,
    accepted_count INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT uq_heatmap_student_date UNIQUE (student_id, date),
    CONSTRAINT valid_accepted CHECK (accepted_count <= submission_count)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE CRON CONFIGS AND EMAIL JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create cron job configs, email logs and templates
-- Version: 003

CREATE TABLE IF NOT EXISTS cron_job_configs (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(50) NOT NULL UNIQUE,
    cron_expression VARCHAR(100) NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    last_run TIMESTAMP WITH TIME ZONE,
    next_run TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

DROP TRIGGER IF EXISTS update_cron_job_configs_updated_at ON cron_job_configs;
CREATE TRIGGER update_cron_job_configs_updated_at
    BEFORE UPDATE ON cron_job_configs
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();

CREATE TABLE IF NOT EXISTS email_logs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    type VARCHAR(20) NOT NULL,
    success BOOLEAN NOT NULL,
    error_message TEXT,
    sent_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_email_type CHECK (type IN ('REMINDER', 'WELCOME'))
);

CREATE INDEX IF NOT EXISTS idx_email_logs_student_sent ON email_logs(student_id, sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_email_logs_sent_at ON email_logs(sent_at DESC);

CREATE TABLE IF NOT EXISTS email_templates (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`
