package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// fakeStudents overrides the methods the queries use.
type fakeStudents struct {
	student.Repository
	byID     map[string]*student.Student
	lastOpts student.ListOptions
}

func (f *fakeStudents) GetByID(_ context.Context, id string) (*student.Student, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, shared.ErrStudentNotFound
}

func (f *fakeStudents) List(_ context.Context, opts student.ListOptions) ([]*student.Student, int, error) {
	f.lastOpts = opts
	return []*student.Student{{ID: "s1"}}, 21, nil
}

type fakeReader struct {
	contests []stats.ContestSummary
	daily    []stats.DailyProblemStats
	heatmap  []stats.DailySubmissions
	since    []time.Time
	reads    int
}

func (f *fakeReader) ListContests(_ context.Context, _ string, since time.Time) ([]stats.ContestSummary, error) {
	f.since = append(f.since, since)
	return f.contests, nil
}

func (f *fakeReader) ListDailyStats(_ context.Context, _ string, since time.Time) ([]stats.DailyProblemStats, error) {
	f.since = append(f.since, since)
	f.reads++
	return f.daily, nil
}

func (f *fakeReader) ListHeatmap(_ context.Context, _ string, since time.Time) ([]stats.DailySubmissions, error) {
	return f.heatmap, nil
}

type mapCache struct {
	items map[int]stats.ProblemSummary
}

func (c *mapCache) Get(_ context.Context, _ string, days int) (*stats.ProblemSummary, error) {
	if s, ok := c.items[days]; ok {
		return &s, nil
	}
	return nil, nil
}

func (c *mapCache) Set(_ context.Context, _ string, days int, sum stats.ProblemSummary) error {
	c.items[days] = sum
	return nil
}

var queryNow = time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }

func intPtr(v int) *int { return &v }

func TestListStudents_Paging(t *testing.T) {
	repo := &fakeStudents{}
	res, err := NewListStudentsHandler(repo).Handle(context.Background(), ListStudentsQuery{Page: 3, Limit: 0, Search: "ali"})
	require.NoError(t, err)

	assert.Equal(t, 10, repo.lastOpts.Limit)
	assert.Equal(t, "ali", repo.lastOpts.Search)
	assert.Equal(t, 21, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 3, res.Page)
}

func TestGetContestHistory(t *testing.T) {
	repo := &fakeStudents{byID: map[string]*student.Student{"s1": {ID: "s1"}}}
	reader := &fakeReader{contests: []stats.ContestSummary{
		{ContestID: 2, RatingChange: -20, NewRating: 1480, ContestTime: day(20)},
		{ContestID: 1, RatingChange: 100, NewRating: 1500, ContestTime: day(10)},
	}}
	h := NewGetContestHistoryHandler(repo, reader)
	h.now = func() time.Time { return queryNow }

	hist, err := h.Handle(context.Background(), "s1", 30)
	require.NoError(t, err)
	assert.Equal(t, 2, hist.TotalContests)
	assert.InDelta(t, 40.0, hist.AverageChange, 1e-9)
	assert.Equal(t, queryNow.AddDate(0, 0, -30), reader.since[0])

	_, err = h.Handle(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.True(t, reader.since[1].IsZero())

	_, err = h.Handle(context.Background(), "missing", 0)
	assert.True(t, shared.IsNotFound(err))
}

func TestGetProblemStats_Cached(t *testing.T) {
	repo := &fakeStudents{byID: map[string]*student.Student{"s1": {ID: "s1"}}}
	reader := &fakeReader{
		daily: []stats.DailyProblemStats{
			{Date: day(1), TotalSolved: 2, MaxRating: intPtr(1200), Buckets: stats.BucketCounts{stats.Bucket800: 1, stats.Bucket1200: 1}},
			{Date: day(2), TotalSolved: 1, MaxRating: intPtr(1600), Buckets: stats.BucketCounts{stats.Bucket1600: 1}},
		},
		heatmap: []stats.DailySubmissions{{Date: day(2), SubmissionCount: 4, AcceptedCount: 1}},
	}
	cache := &mapCache{items: map[int]stats.ProblemSummary{}}
	h := NewGetProblemStatsHandler(repo, reader, cache, nil)
	h.now = func() time.Time { return queryNow }

	sum, err := h.Handle(context.Background(), "s1", 30)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalSolved)
	require.NotNil(t, sum.MaxRating)
	assert.Equal(t, 1600, *sum.MaxRating)
	assert.InDelta(t, 0.1, sum.AvgPerDay, 1e-9)
	assert.Len(t, sum.Daily, 1)

	_, err = h.Handle(context.Background(), "s1", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.reads)
}

func TestGetProblemStats_AllTime(t *testing.T) {
	repo := &fakeStudents{byID: map[string]*student.Student{"s1": {ID: "s1"}}}
	h := NewGetProblemStatsHandler(repo, &fakeReader{}, nil, nil)

	sum, err := h.Handle(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalSolved)
	assert.Zero(t, sum.AvgPerDay)
	assert.Nil(t, sum.MaxRating)
	assert.Nil(t, sum.AvgRating)
}

type fakeTemplates struct {
	notification.TemplateRepository
	stored *notification.Template
}

func (f *fakeTemplates) Latest(context.Context) (*notification.Template, error) {
	if f.stored == nil {
		return nil, shared.NewDomainError("email", "LatestTemplate", shared.ErrNotFound, "no email template stored")
	}
	return f.stored, nil
}

func TestEmailQueries_TemplateFallsBackToDefault(t *testing.T) {
	q := NewEmailQueries(&fakeStudents{}, &fakeTemplates{}, nil)
	tmpl, err := q.Template(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notification.DefaultReminderSubject, tmpl.Subject)

	q = NewEmailQueries(&fakeStudents{}, &fakeTemplates{stored: &notification.Template{Subject: "Mine"}}, nil)
	tmpl, err = q.Template(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Mine", tmpl.Subject)
}
