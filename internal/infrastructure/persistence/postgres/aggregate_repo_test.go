package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	items := make([]int, 230)
	for i := range items {
		items[i] = i
	}

	parts := chunk(items, DailyChunkSize)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 100)
	assert.Len(t, parts[1], 100)
	assert.Len(t, parts[2], 30)
	assert.Equal(t, 100, parts[1][0])
	assert.Equal(t, 229, parts[2][29])

	assert.Len(t, chunk(items[:50], ContestChunkSize), 1)
	assert.Len(t, chunk(items[:51], ContestChunkSize), 2)
	assert.Nil(t, chunk([]int{}, 10))
	assert.Nil(t, chunk(items, 0))
}

func TestChunk_AppendDoesNotBleed(t *testing.T) {
	items := []int{1, 2, 3, 4}
	parts := chunk(items, 2)

	_ = append(parts[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
}

func TestBucketColumns(t *testing.T) {
	require.Len(t, bucketColumns, 18)
	assert.Equal(t, "rating_800", bucketColumns[0])
	assert.Equal(t, "rating_2300", bucketColumns[15])
	assert.Equal(t, "rating_2400_plus", bucketColumns[16])
	assert.Equal(t, "rating_unknown", bucketColumns[17])

	for _, col := range bucketColumns {
		assert.Contains(t, migration002Up, col+" INTEGER")
	}
}

func TestBuildDailyStatsInsert(t *testing.T) {
	sql := buildDailyStatsInsert()
	assert.True(t, strings.HasPrefix(sql, "INSERT INTO daily_problem_stats (student_id, date, total_solved, max_rating, avg_rating, rating_800"))
	assert.Contains(t, sql, "$23)")
	assert.NotContains(t, sql, "$24")
}

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.SQL)
		for _, table := range m.Tables {
			assert.Contains(t, m.SQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
		}
	}
}

func TestTrackerTables(t *testing.T) {
	assert.Equal(t, []string{
		"schema_migrations",
		"students",
		"contests", "daily_problem_stats", "daily_submission_heatmap",
		"cron_job_configs", "email_logs", "email_templates",
	}, TrackerTables())
}

func TestPending(t *testing.T) {
	all := GetMigrations()

	assert.Len(t, pending(all, nil), len(all))
	assert.Empty(t, pending(all, map[int]bool{1: true, 2: true, 3: true}))

	rest := pending(all, map[int]bool{1: true})
	require.Len(t, rest, 2)
	assert.Equal(t, 2, rest[0].Version)
	assert.Equal(t, 3, rest[1].Version)
}
