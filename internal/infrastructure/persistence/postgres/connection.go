// Package postgres implements the PostgreSQL persistence layer: students,
// derived Codeforces aggregates, cron job configs and the email journal.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConnectionClosed is returned by every call made after Close.
	ErrConnectionClosed = errors.New("postgres: connection pool is closed")

	// ErrMigrationFailed wraps the failing migration version.
	ErrMigrationFailed = errors.New("postgres: migration failed")

	// ErrSchemaIncomplete is returned by Check when tracker tables are missing.
	ErrSchemaIncomplete = errors.New("postgres: schema incomplete")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MinConns        int32
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns settings for a local tracker database.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "cf_tracker",
		User:            "postgres",
		SSLMode:         "disable",
		MinConns:        2,
		MaxConns:        10,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// connString renders c as a postgres:// URL so credentials are escaped.
func (c Config) connString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// applyPool copies the non-zero pool limits of c onto pc.
func (c Config) applyPool(pc *pgxpool.Config) {
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	pc.HealthCheckPeriod = time.Minute
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection is the tracker's pgx pool.
type Connection struct {
	mu     sync.RWMutex
	pool   *pgxpool.Pool
	closed bool
}

// NewConnection opens a pool from discrete settings.
func NewConnection(ctx context.Context, cfg Config) (*Connection, error) {
	pc, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid config: %w", err)
	}
	cfg.applyPool(pc)
	return open(ctx, pc)
}

// NewConnectionFromURL opens a pool from a DATABASE_URL. Only the pool limits
// of limits are used; zero limits keep what the URL says.
func NewConnectionFromURL(ctx context.Context, databaseURL string, limits Config) (*Connection, error) {
	pc, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse database URL: %w", err)
	}
	limits.applyPool(pc)
	return open(ctx, pc)
}

func open(ctx context.Context, pc *pgxpool.Config) (*Connection, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	return &Connection{pool: pool}, nil
}

// Close closes the pool. Further calls return ErrConnectionClosed.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.pool.Close()
}

// acquire returns the pool, or ErrConnectionClosed after Close.
func (c *Connection) acquire() (*pgxpool.Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	return c.pool, nil
}

// Ping checks if the database connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	pool, err := c.acquire()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// HealthStatus describes the pool and the tracker schema.
type HealthStatus struct {
	Healthy       bool
	Error         string
	CheckedAt     time.Time
	PingLatency   time.Duration
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	MaxConns      int32

	// SchemaVersion is the highest applied migration, 0 before the first Migrate.
	SchemaVersion int

	// MissingTables lists tracker tables that do not exist.
	MissingTables []string
}

// Health pings the database and verifies that every tracker table exists.
func (c *Connection) Health(ctx context.Context) (*HealthStatus, error) {
	pool, err := c.acquire()
	if err != nil {
		return nil, err
	}

	status := &HealthStatus{CheckedAt: time.Now().UTC()}

	start := time.Now()
	if err := pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, nil
	}
	status.PingLatency = time.Since(start)

	stat := pool.Stat()
	status.TotalConns = stat.TotalConns()
	status.IdleConns = stat.IdleConns()
	status.AcquiredConns = stat.AcquiredConns()
	status.MaxConns = stat.MaxConns()

	rows, err := pool.Query(ctx,
		`SELECT t FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL ORDER BY t`,
		TrackerTables())
	if err != nil {
		status.Error = fmt.Sprintf("failed to inspect schema: %v", err)
		return status, nil
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		status.Error = fmt.Sprintf("failed to inspect schema: %v", err)
		return status, nil
	}
	status.MissingTables = missing

	if !slices.Contains(missing, migrationsTable) {
		if err := pool.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM `+migrationsTable).Scan(&status.SchemaVersion); err != nil {
			status.Error = fmt.Sprintf("failed to read schema version: %v", err)
			return status, nil
		}
	}

	status.Healthy = len(missing) == 0
	if !status.Healthy {
		status.Error = fmt.Sprintf("missing tables: %v", missing)
	}
	return status, nil
}

// Check adapts Health to a health-check function.
func (c *Connection) Check(ctx context.Context) error {
	status, err := c.Health(ctx)
	if err != nil {
		return err
	}
	if len(status.MissingTables) > 0 {
		return fmt.Errorf("%w: missing %v", ErrSchemaIncomplete, status.MissingTables)
	}
	if !status.Healthy {
		return errors.New(status.Error)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES AND TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Tx is the part of pgx.Tx the repositories write through.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// txRunner runs fn in one transaction: committed on nil, rolled back otherwise.
type txRunner interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// querier reads outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WithTx runs fn in a read-committed transaction.
func (c *Connection) WithTx(ctx context.Context, fn func(Tx) error) error {
	pool, err := c.acquire()
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// Exec executes a statement that returns no rows.
func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	pool, err := c.acquire()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pool.Exec(ctx, sql, args...)
}

// Query executes a query that returns rows.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	pool, err := c.acquire()
	if err != nil {
		return nil, err
	}
	return pool.Query(ctx, sql, args...)
}

// QueryRow executes a query that returns a single row.
func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	pool, err := c.acquire()
	if err != nil {
		return errRow{err: err}
	}
	return pool.QueryRow(ctx, sql, args...)
}

// errRow defers an acquire error to Scan, the way pgx reports query errors.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// IsUniqueViolation checks if the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
