package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
)

// ─────────────────────────────────────────────────────────────────────────────
// fakeDB keeps committed rows per table and a statement log per transaction.
// ─────────────────────────────────────────────────────────────────────────────

type fakeDB struct {
	tables map[string][][]any
	log    []string

	// failInsert fails the n-th inserted row (1-based) across all batches; 0 never fails.
	failInsert int
	inserted   int
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: map[string][][]any{}}
}

func (db *fakeDB) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx := &fakeTx{db: db, tables: map[string][][]any{}}
	for k, v := range db.tables {
		tx.tables[k] = append([][]any(nil), v...)
	}

	db.log = append(db.log, "BEGIN")
	if err := fn(tx); err != nil {
		db.log = append(db.log, "ROLLBACK")
		return err
	}
	db.tables = tx.tables
	db.log = append(db.log, "COMMIT")
	return nil
}

func (db *fakeDB) seed(table string, rows ...[]any) {
	db.tables[table] = append(db.tables[table], rows...)
}

type fakeTx struct {
	db     *fakeDB
	tables map[string][][]any
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	table := tableOf(sql)
	if !strings.HasPrefix(strings.TrimSpace(sql), "DELETE") {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected statement %q", sql)
	}
	kept := tx.tables[table][:0:0]
	for _, row := range tx.tables[table] {
		if row[0] != args[0] {
			kept = append(kept, row)
		}
	}
	tx.tables[table] = kept
	tx.db.log = append(tx.db.log, "DELETE "+table)
	return pgconn.NewCommandTag("DELETE"), nil
}

func (tx *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	table := tableOf(b.QueuedQueries[0].SQL)
	tx.db.log = append(tx.db.log, fmt.Sprintf("BATCH %s %d", table, b.Len()))
	return &fakeBatchResults{tx: tx, queries: b.QueuedQueries}
}

type fakeBatchResults struct {
	tx      *fakeTx
	queries []*pgx.QueuedQuery
	next    int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	q := r.queries[r.next]
	r.next++

	r.tx.db.inserted++
	if r.tx.db.inserted == r.tx.db.failInsert {
		return pgconn.CommandTag{}, errors.New("constraint violation")
	}
	table := tableOf(q.SQL)
	r.tx.tables[table] = append(r.tx.tables[table], q.Arguments)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

// tableOf returns the identifier after FROM or INTO.
func tableOf(sql string) string {
	fields := strings.Fields(sql)
	for i, f := range fields {
		if (f == "FROM" || f == "INTO") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

func newWriter(db *fakeDB) *AggregateRepository {
	return &AggregateRepository{tx: db}
}

func contestRows(n int) []stats.ContestSummary {
	rows := make([]stats.ContestSummary, n)
	for i := range rows {
		rows[i] = stats.ContestSummary{
			ContestID:   1000 + i,
			ContestName: fmt.Sprintf("Round %d", i),
			NewRating:   1200 + i,
			ContestTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		}
	}
	return rows
}

func dailyRows(n int) []stats.DailyProblemStats {
	rows := make([]stats.DailyProblemStats, n)
	for i := range rows {
		rows[i] = stats.DailyProblemStats{
			Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			TotalSolved: i + 1,
		}
	}
	return rows
}

// ─────────────────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────────────────

func TestReplaceContests_DeletesThenInsertsInChunks(t *testing.T) {
	db := newFakeDB()
	db.seed("contests", []any{"s1", 1}, []any{"other", 2})

	require.NoError(t, newWriter(db).ReplaceContests(context.Background(), "s1", contestRows(120)))

	assert.Equal(t, []string{
		"BEGIN",
		"DELETE contests",
		"BATCH contests 50",
		"BATCH contests 50",
		"BATCH contests 20",
		"COMMIT",
	}, db.log)

	rows := db.tables["contests"]
	require.Len(t, rows, 121)
	assert.Equal(t, []any{"other", 2}, rows[0])
	assert.Equal(t, "s1", rows[1][0])
	assert.Equal(t, 1000, rows[1][1])
	assert.Equal(t, 1119, rows[120][1])
}

func TestReplaceContests_ChunkBoundary(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, newWriter(db).ReplaceContests(context.Background(), "s1", contestRows(50)))
	assert.Equal(t, []string{"BEGIN", "DELETE contests", "BATCH contests 50", "COMMIT"}, db.log)

	db = newFakeDB()
	require.NoError(t, newWriter(db).ReplaceContests(context.Background(), "s1", contestRows(51)))
	assert.Equal(t, []string{"BEGIN", "DELETE contests", "BATCH contests 50", "BATCH contests 1", "COMMIT"}, db.log)
}

func TestReplaceContests_EmptyKeepsExistingRows(t *testing.T) {
	db := newFakeDB()
	db.seed("contests", []any{"s1", 1})

	require.NoError(t, newWriter(db).ReplaceContests(context.Background(), "s1", nil))

	assert.Empty(t, db.log)
	assert.Len(t, db.tables["contests"], 1)
}

func TestReplaceContests_FailedBatchRollsBack(t *testing.T) {
	db := newFakeDB()
	db.seed("contests", []any{"s1", 1}, []any{"s1", 2})
	db.failInsert = 60

	err := newWriter(db).ReplaceContests(context.Background(), "s1", contestRows(120))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert contest row")

	assert.Equal(t, "ROLLBACK", db.log[len(db.log)-1])
	assert.NotContains(t, db.log, "BATCH contests 20")
	assert.Equal(t, [][]any{{"s1", 1}, {"s1", 2}}, db.tables["contests"])
}

func TestReplaceDailyStats_KindsInSeparateTransactions(t *testing.T) {
	db := newFakeDB()
	heatmap := []stats.DailySubmissions{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), SubmissionCount: 3, AcceptedCount: 1},
	}

	err := newWriter(db).ReplaceDailyStats(context.Background(), "s1", stats.DailyResult{
		Stats:   dailyRows(250),
		Heatmap: heatmap,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"BEGIN",
		"DELETE daily_problem_stats",
		"BATCH daily_problem_stats 100",
		"BATCH daily_problem_stats 100",
		"BATCH daily_problem_stats 50",
		"COMMIT",
		"BEGIN",
		"DELETE daily_submission_heatmap",
		"BATCH daily_submission_heatmap 1",
		"COMMIT",
	}, db.log)

	rows := db.tables["daily_problem_stats"]
	require.Len(t, rows, 250)
	assert.Len(t, rows[0], 5+stats.BucketCount)
	assert.Equal(t, 250, rows[249][2])
}

func TestReplaceDailyStats_EmptyKindIsSkipped(t *testing.T) {
	db := newFakeDB()
	db.seed("daily_problem_stats", []any{"s1", "old"})

	err := newWriter(db).ReplaceDailyStats(context.Background(), "s1", stats.DailyResult{
		Heatmap: []stats.DailySubmissions{{SubmissionCount: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"BEGIN", "DELETE daily_submission_heatmap", "BATCH daily_submission_heatmap 1", "COMMIT"}, db.log)
	assert.Equal(t, [][]any{{"s1", "old"}}, db.tables["daily_problem_stats"])
}

func TestReplaceDailyStats_HeatmapFailureKeepsCommittedStats(t *testing.T) {
	db := newFakeDB()
	db.seed("daily_submission_heatmap", []any{"s1", "old"})
	db.failInsert = 3

	err := newWriter(db).ReplaceDailyStats(context.Background(), "s1", stats.DailyResult{
		Stats:   dailyRows(2),
		Heatmap: []stats.DailySubmissions{{SubmissionCount: 1}},
	})
	require.Error(t, err)

	assert.Len(t, db.tables["daily_problem_stats"], 2)
	assert.Equal(t, [][]any{{"s1", "old"}}, db.tables["daily_submission_heatmap"])
}

func TestReplace_SameInputTwiceStoresSameRows(t *testing.T) {
	db := newFakeDB()
	w := newWriter(db)
	ctx := context.Background()
	result := stats.DailyResult{Stats: dailyRows(130), Heatmap: []stats.DailySubmissions{{SubmissionCount: 2}}}

	require.NoError(t, w.ReplaceContests(ctx, "s1", contestRows(70)))
	require.NoError(t, w.ReplaceDailyStats(ctx, "s1", result))
	first := map[string][][]any{}
	for k, v := range db.tables {
		first[k] = v
	}

	require.NoError(t, w.ReplaceContests(ctx, "s1", contestRows(70)))
	require.NoError(t, w.ReplaceDailyStats(ctx, "s1", result))

	assert.Equal(t, first, db.tables)
}
