package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE REPOSITORY
// Производные данные студента: контесты, дневная статистика, тепловая карта.
// Каждый вид заменяется целиком в своей транзакции.
// ══════════════════════════════════════════════════════════════════════════════

// Chunk sizes per aggregate kind.
const (
	ContestChunkSize = 50
	DailyChunkSize   = 100
)

// AggregateRepository implements student.AggregateWriter and student.AggregateReader.
type AggregateRepository struct {
	tx txRunner
	q  querier
}

// NewAggregateRepository creates a new AggregateRepository.
func NewAggregateRepository(conn *Connection) *AggregateRepository {
	return &AggregateRepository{tx: conn, q: conn}
}

var (
	_ student.AggregateWriter = (*AggregateRepository)(nil)
	_ student.AggregateReader = (*AggregateRepository)(nil)
)

// bucketColumns lists daily_problem_stats bucket columns in stats.Bucket order.
var bucketColumns = func() []string {
	cols := make([]string, 0, stats.BucketCount)
	for _, b := range stats.AllBuckets() {
		switch b {
		case stats.Bucket2400Plus:
			cols = append(cols, "rating_2400_plus")
		case stats.BucketUnknown:
			cols = append(cols, "rating_unknown")
		default:
			cols = append(cols, fmt.Sprintf("rating_%d", 800+100*int(b)))
		}
	}
	return cols
}()

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

const insertContestSQL = `
	INSERT INTO contests (
		student_id, codeforces_id, name, rank, old_rating, new_rating, rating_change,
		contest_time, total_problems, problems_solved, hardest_problem, hardest_rating
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// ReplaceContests deletes all contest rows of the student and inserts rows in chunks.
// An empty slice leaves existing rows untouched.
func (r *AggregateRepository) ReplaceContests(ctx context.Context, studentID string, rows []stats.ContestSummary) error {
	if len(rows) == 0 {
		return nil
	}

	err := r.tx.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM contests WHERE student_id = $1`, studentID); err != nil {
			return fmt.Errorf("failed to delete contests: %w", err)
		}

		for _, part := range chunk(rows, ContestChunkSize) {
			batch := &pgx.Batch{}
			for _, c := range part {
				batch.Queue(insertContestSQL,
					studentID,
					c.ContestID,
					c.ContestName,
					c.Rank,
					c.OldRating,
					c.NewRating,
					c.RatingChange,
					c.ContestTime,
					c.TotalProblems,
					c.ProblemsSolved,
					nullString(c.HardestProblem),
					c.HardestRating,
				)
			}
			if err := sendBatch(ctx, tx, batch, "contest"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.AggregateRowsWritten.WithLabelValues("contest").Add(float64(len(rows)))
	return nil
}

// ReplaceDailyStats replaces daily problem stats and the submission heatmap.
// Each kind runs in its own transaction; an empty kind leaves existing rows untouched.
func (r *AggregateRepository) ReplaceDailyStats(ctx context.Context, studentID string, result stats.DailyResult) error {
	if err := r.replaceProblemStats(ctx, studentID, result.Stats); err != nil {
		return err
	}
	return r.replaceHeatmap(ctx, studentID, result.Heatmap)
}

func (r *AggregateRepository) replaceProblemStats(ctx context.Context, studentID string, rows []stats.DailyProblemStats) error {
	if len(rows) == 0 {
		return nil
	}

	insertSQL := buildDailyStatsInsert()

	err := r.tx.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM daily_problem_stats WHERE student_id = $1`, studentID); err != nil {
			return fmt.Errorf("failed to delete daily stats: %w", err)
		}

		for _, part := range chunk(rows, DailyChunkSize) {
			batch := &pgx.Batch{}
			for _, d := range part {
				args := make([]interface{}, 0, 5+stats.BucketCount)
				args = append(args, studentID, d.Date, d.TotalSolved, d.MaxRating, d.AvgRating)
				for _, n := range d.Buckets {
					args = append(args, n)
				}
				batch.Queue(insertSQL, args...)
			}
			if err := sendBatch(ctx, tx, batch, "daily stats"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.AggregateRowsWritten.WithLabelValues("daily_stats").Add(float64(len(rows)))
	return nil
}

func (r *AggregateRepository) replaceHeatmap(ctx context.Context, studentID string, rows []stats.DailySubmissions) error {
	if len(rows) == 0 {
		return nil
	}

	err := r.tx.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM daily_submission_heatmap WHERE student_id = $1`, studentID); err != nil {
			return fmt.Errorf("failed to delete heatmap: %w", err)
		}

		for _, part := range chunk(rows, DailyChunkSize) {
			batch := &pgx.Batch{}
			for _, h := range part {
				batch.Queue(`
					INSERT INTO daily_submission_heatmap (student_id, date, submission_count, accepted_count)
					VALUES ($1, $2, $3, $4)
				`, studentID, h.Date, h.SubmissionCount, h.AcceptedCount)
			}
			if err := sendBatch(ctx, tx, batch, "heatmap"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.AggregateRowsWritten.WithLabelValues("heatmap").Add(float64(len(rows)))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// ListContests returns contests with contest_time >= since, newest first.
func (r *AggregateRepository) ListContests(ctx context.Context, studentID string, since time.Time) ([]stats.ContestSummary, error) {
	query := `
		SELECT codeforces_id, name, rank, old_rating, new_rating, rating_change,
			   contest_time, total_problems, problems_solved, hardest_problem, hardest_rating
		FROM contests
		WHERE student_id = $1`
	args := []interface{}{studentID}
	if !since.IsZero() {
		query += ` AND contest_time >= $2`
		args = append(args, since)
	}
	query += ` ORDER BY contest_time DESC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contests: %w", err)
	}
	defer rows.Close()

	out := []stats.ContestSummary{}
	for rows.Next() {
		var c stats.ContestSummary
		var hardest *string
		if err := rows.Scan(
			&c.ContestID, &c.ContestName, &c.Rank, &c.OldRating, &c.NewRating, &c.RatingChange,
			&c.ContestTime, &c.TotalProblems, &c.ProblemsSolved, &hardest, &c.HardestRating,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		c.HardestProblem = deref(hardest)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDailyStats returns daily problem stats with date >= since, oldest first.
func (r *AggregateRepository) ListDailyStats(ctx context.Context, studentID string, since time.Time) ([]stats.DailyProblemStats, error) {
	query := `SELECT date, total_solved, max_rating, avg_rating, ` + strings.Join(bucketColumns, ", ") + `
		FROM daily_problem_stats
		WHERE student_id = $1`
	args := []interface{}{studentID}
	if !since.IsZero() {
		query += ` AND date >= $2`
		args = append(args, since)
	}
	query += ` ORDER BY date ASC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	out := []stats.DailyProblemStats{}
	for rows.Next() {
		var d stats.DailyProblemStats
		dest := []interface{}{&d.Date, &d.TotalSolved, &d.MaxRating, &d.AvgRating}
		for i := range d.Buckets {
			dest = append(dest, &d.Buckets[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListHeatmap returns heatmap rows with date >= since, oldest first.
func (r *AggregateRepository) ListHeatmap(ctx context.Context, studentID string, since time.Time) ([]stats.DailySubmissions, error) {
	query := `SELECT date, submission_count, accepted_count FROM daily_submission_heatmap WHERE student_id = $1`
	args := []interface{}{studentID}
	if !since.IsZero() {
		query += ` AND date >= $2`
		args = append(args, since)
	}
	query += ` ORDER BY date ASC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query heatmap: %w", err)
	}
	defer rows.Close()

	out := []stats.DailySubmissions{}
	for rows.Next() {
		var h stats.DailySubmissions
		if err := rows.Scan(&h.Date, &h.SubmissionCount, &h.AcceptedCount); err != nil {
			return nil, fmt.Errorf("failed to scan heatmap: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildDailyStatsInsert() string {
	cols := append([]string{"student_id", "date", "total_solved", "max_rating", "avg_rating"}, bucketColumns...)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO daily_problem_stats (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

// sendBatch sends one round trip and closes the results before the next batch.
func sendBatch(ctx context.Context, tx Tx, batch *pgx.Batch, kind string) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to insert %s row: %w", kind, err)
		}
	}
	return br.Close()
}

// chunk splits items into consecutive slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end:end])
	}
	return out
}
