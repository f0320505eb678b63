package stats

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
)

const day = int64(24 * 60 * 60)

// base is 2024-01-01 00:00:00 UTC.
const base = int64(1704067200)

func rating(r int) *int { return &r }

func sub(id int64, contest int, index, verdict string, at int64, r *int) judge.Submission {
	return judge.Submission{
		ID:        id,
		ContestID: contest,
		Problem:   judge.Problem{ContestID: contest, Index: index, Rating: r},
		Verdict:   verdict,
		CreatedAt: at,
	}
}

func dateOf(offsetDays int64) time.Time {
	return time.Unix(base+offsetDays*day, 0).UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// BUCKETS
// ══════════════════════════════════════════════════════════════════════════════

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name   string
		rating *int
		want   Bucket
	}{
		{"nil", nil, BucketUnknown},
		{"zero", rating(0), BucketUnknown},
		{"below 800", rating(500), Bucket800},
		{"800", rating(800), Bucket800},
		{"899", rating(899), Bucket800},
		{"900", rating(900), Bucket900},
		{"1550", rating(1550), Bucket1500},
		{"2399", rating(2399), Bucket2300},
		{"2400", rating(2400), Bucket2400Plus},
		{"3500", rating(3500), Bucket2400Plus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketFor(tt.rating))
		})
	}
}

func TestBucketNamesAndMidpoints(t *testing.T) {
	assert.Equal(t, "rating800", Bucket800.Name())
	assert.Equal(t, "rating1700", Bucket1700.Name())
	assert.Equal(t, "rating2300", Bucket2300.Name())
	assert.Equal(t, "rating2400Plus", Bucket2400Plus.Name())
	assert.Equal(t, "ratingUnknown", BucketUnknown.Name())

	assert.Equal(t, 850, Bucket800.Midpoint())
	assert.Equal(t, 2350, Bucket2300.Midpoint())
	assert.Equal(t, 2500, Bucket2400Plus.Midpoint())
	assert.Equal(t, 0, BucketUnknown.Midpoint())

	assert.Len(t, AllBuckets(), 18)
}

func TestBucketCounts_WeightedAverage(t *testing.T) {
	var c BucketCounts
	assert.Nil(t, c.WeightedAverage())

	c[BucketUnknown] = 3
	assert.Nil(t, c.WeightedAverage(), "unknown-only day has no average")

	c[Bucket800] = 1
	c[Bucket1000] = 1
	avg := c.WeightedAverage()
	require.NotNil(t, avg)
	assert.InDelta(t, 950.0, *avg, 1e-9)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STATS
// ══════════════════════════════════════════════════════════════════════════════

func TestComputeDailyStats_ResolveCountsOnFirstDayOnly(t *testing.T) {
	subs := []judge.Submission{
		sub(1, 100, "A", judge.VerdictOK, base+1*day, rating(900)),
		sub(2, 100, "A", judge.VerdictOK, base+3*day, rating(900)),
	}

	res := ComputeDailyStats(subs)
	require.Len(t, res.Stats, 2)

	first, third := res.Stats[0], res.Stats[1]
	assert.Equal(t, dateOf(1), first.Date)
	assert.Equal(t, 1, first.TotalSolved)
	assert.Equal(t, 1, first.Buckets[Bucket900])
	require.NotNil(t, first.MaxRating)
	assert.Equal(t, 900, *first.MaxRating)
	require.NotNil(t, first.AvgRating)
	assert.InDelta(t, 950.0, *first.AvgRating, 1e-9)

	assert.Equal(t, dateOf(3), third.Date)
	assert.Equal(t, 0, third.TotalSolved)
	assert.Nil(t, third.MaxRating)
	assert.Nil(t, third.AvgRating)

	// the heatmap still counts the repeat
	require.Len(t, res.Heatmap, 2)
	assert.Equal(t, 1, res.Heatmap[1].SubmissionCount)
	assert.Equal(t, 1, res.Heatmap[1].AcceptedCount)
}

func TestComputeDailyStats_FailedAttemptsBeforeSolve(t *testing.T) {
	subs := []judge.Submission{
		sub(3, 200, "B", judge.VerdictOK, base+2*day+50, rating(1400)),
		sub(1, 200, "B", "WRONG_ANSWER", base+day, rating(1400)),
		sub(2, 200, "B", "TIME_LIMIT_EXCEEDED", base+2*day, rating(1400)),
		sub(4, 200, "B", judge.VerdictOK, base+2*day+90, rating(1400)),
	}

	res := ComputeDailyStats(subs)
	require.Len(t, res.Stats, 2)

	assert.Equal(t, 0, res.Stats[0].TotalSolved)
	assert.Equal(t, DailySubmissions{Date: dateOf(1), SubmissionCount: 1, AcceptedCount: 0}, res.Heatmap[0])

	assert.Equal(t, 1, res.Stats[1].TotalSolved, "two OKs on the same day count once")
	assert.Equal(t, 1, res.Stats[1].Buckets[Bucket1400])
	assert.Equal(t, DailySubmissions{Date: dateOf(2), SubmissionCount: 3, AcceptedCount: 2}, res.Heatmap[1])
}

func TestComputeDailyStats_UnratedProblems(t *testing.T) {
	subs := []judge.Submission{
		sub(1, 300, "A", judge.VerdictOK, base, nil),
		sub(2, 300, "B", judge.VerdictOK, base+10, rating(1800)),
		sub(3, 300, "C", judge.VerdictOK, base+20, rating(2600)),
	}

	res := ComputeDailyStats(subs)
	require.Len(t, res.Stats, 1)

	d := res.Stats[0]
	assert.Equal(t, 3, d.TotalSolved)
	assert.Equal(t, 1, d.Buckets[BucketUnknown])
	assert.Equal(t, 1, d.Buckets[Bucket1800])
	assert.Equal(t, 1, d.Buckets[Bucket2400Plus])
	require.NotNil(t, d.MaxRating)
	assert.Equal(t, 2600, *d.MaxRating)
	require.NotNil(t, d.AvgRating)
	assert.InDelta(t, (1850.0+2500.0)/2, *d.AvgRating, 1e-9)
}

func TestComputeDailyStats_Empty(t *testing.T) {
	res := ComputeDailyStats(nil)
	assert.True(t, res.Empty())
}

func TestComputeDailyStats_DoesNotMutateInput(t *testing.T) {
	subs := []judge.Submission{
		sub(2, 1, "A", judge.VerdictOK, base+day, rating(800)),
		sub(1, 1, "B", judge.VerdictOK, base, rating(800)),
	}
	snapshot := append([]judge.Submission(nil), subs...)

	ComputeDailyStats(subs)
	assert.Equal(t, snapshot, subs)
}

// randomSubmissions builds a reproducible mix of verdicts, ratings and repeated
// timestamps spread over two weeks.
func randomSubmissions(seed int64, n int) []judge.Submission {
	rnd := rand.New(rand.NewSource(seed))
	verdicts := []string{judge.VerdictOK, judge.VerdictOK, "WRONG_ANSWER", "RUNTIME_ERROR"}
	indexes := []string{"A", "B", "C", "D"}

	out := make([]judge.Submission, 0, n)
	for i := 0; i < n; i++ {
		contest := 1000 + rnd.Intn(6)
		var r *int
		if rnd.Intn(5) > 0 {
			r = rating(800 + 100*rnd.Intn(20))
		}
		at := base + int64(rnd.Intn(14))*day + int64(rnd.Intn(3))*3600
		out = append(out, sub(int64(i+1), contest, indexes[rnd.Intn(len(indexes))], verdicts[rnd.Intn(len(verdicts))], at, r))
	}
	return out
}

func TestComputeDailyStats_Properties(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		subs := randomSubmissions(seed, 200)
		res := ComputeDailyStats(subs)

		// every solved problem is counted on exactly one day
		solvedKeys := make(map[string]struct{})
		for _, s := range subs {
			if s.Accepted() {
				solvedKeys[s.Problem.Key()] = struct{}{}
			}
		}
		total := 0
		for _, d := range res.Stats {
			total += d.TotalSolved
			assert.Equal(t, d.TotalSolved, d.Buckets.Total(), "buckets sum to totalSolved (seed %d)", seed)
		}
		assert.Equal(t, len(solvedKeys), total, "seed %d", seed)

		// heatmap accounts for every submission
		count := 0
		for _, h := range res.Heatmap {
			count += h.SubmissionCount
			assert.LessOrEqual(t, h.AcceptedCount, h.SubmissionCount)
		}
		assert.Equal(t, len(subs), count)
	}
}

func TestComputeDailyStats_Deterministic(t *testing.T) {
	subs := randomSubmissions(42, 300)
	want := ComputeDailyStats(subs)

	shuffled := append([]judge.Submission(nil), subs...)
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, ComputeDailyStats(shuffled))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEST SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

func TestComputeContestSummaries_HardestAndCounts(t *testing.T) {
	subs := []judge.Submission{
		sub(1, 100, "A", judge.VerdictOK, base+10, rating(1200)),
		sub(2, 100, "B", "WRONG_ANSWER", base+20, rating(1600)),
		sub(3, 100, "A", judge.VerdictOK, base+30, rating(1200)),
		// contest without a rating change is ignored
		sub(4, 555, "E", judge.VerdictOK, base+40, rating(3000)),
	}
	changes := []judge.RatingChange{
		{ContestID: 100, ContestName: "Round 100", Rank: 57, OldRating: 1500, NewRating: 1542, UpdatedAt: base + day},
	}

	rows := ComputeContestSummaries(subs, changes)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 100, row.ContestID)
	assert.Equal(t, "Round 100", row.ContestName)
	assert.Equal(t, 57, row.Rank)
	assert.Equal(t, 42, row.RatingChange)
	assert.Equal(t, time.Unix(base+day, 0).UTC(), row.ContestTime)
	assert.Equal(t, 2, row.TotalProblems)
	assert.Equal(t, 1, row.ProblemsSolved)
	assert.Equal(t, "100B", row.HardestProblem)
	require.NotNil(t, row.HardestRating)
	assert.Equal(t, 1600, *row.HardestRating)
}

func TestComputeContestSummaries_TieKeepsFirst(t *testing.T) {
	subs := []judge.Submission{
		sub(2, 7, "C", judge.VerdictOK, base+20, rating(1900)),
		sub(1, 7, "B", judge.VerdictOK, base+10, rating(1900)),
	}
	changes := []judge.RatingChange{{ContestID: 7, OldRating: 1000, NewRating: 990}}

	rows := ComputeContestSummaries(subs, changes)
	require.Len(t, rows, 1)
	assert.Equal(t, "7B", rows[0].HardestProblem)
	assert.Equal(t, -10, rows[0].RatingChange)
}

func TestComputeContestSummaries_GroupsBySubmissionContest(t *testing.T) {
	// A problem shared between a Div. 1 and Div. 2 round is submitted in the Div. 2 round.
	shared := sub(1, 201, "A", judge.VerdictOK, base+10, rating(1700))
	shared.Problem.ContestID = 200
	subs := []judge.Submission{
		shared,
		sub(2, 200, "B", "WRONG_ANSWER", base+20, rating(2100)),
	}
	changes := []judge.RatingChange{
		{ContestID: 200, OldRating: 1500, NewRating: 1520},
		{ContestID: 201, OldRating: 1520, NewRating: 1560},
	}

	rows := ComputeContestSummaries(subs, changes)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].TotalProblems)
	assert.Zero(t, rows[0].ProblemsSolved)
	assert.Equal(t, "200B", rows[0].HardestProblem)

	assert.Equal(t, 1, rows[1].TotalProblems)
	assert.Equal(t, 1, rows[1].ProblemsSolved)
	assert.Equal(t, "200A", rows[1].HardestProblem)
}

func TestComputeContestSummaries_NoSubmissions(t *testing.T) {
	changes := []judge.RatingChange{
		{ContestID: 1, OldRating: 0, NewRating: 400},
		{ContestID: 2, OldRating: 400, NewRating: 700},
		{ContestID: 1, OldRating: 0, NewRating: 999}, // duplicate entry
	}

	rows := ComputeContestSummaries(nil, changes)
	require.Len(t, rows, 2)
	assert.Equal(t, 400, rows[0].NewRating)
	assert.Zero(t, rows[0].TotalProblems)
	assert.Empty(t, rows[0].HardestProblem)
	assert.Nil(t, rows[0].HardestRating)

	assert.Nil(t, ComputeContestSummaries(nil, nil))
}

func TestComputeContestSummaries_SolvedNeverExceedsTotal(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		subs := randomSubmissions(seed, 150)
		var changes []judge.RatingChange
		for c := 1000; c < 1006; c++ {
			changes = append(changes, judge.RatingChange{ContestID: c})
		}
		for _, row := range ComputeContestSummaries(subs, changes) {
			assert.LessOrEqual(t, row.ProblemsSolved, row.TotalProblems)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

func TestSummarizeProblems(t *testing.T) {
	var b1, b2 BucketCounts
	b1[Bucket800] = 2
	b1[BucketUnknown] = 1
	b2[Bucket1200] = 1

	daily := []DailyProblemStats{
		{Date: dateOf(0), TotalSolved: 3, MaxRating: rating(800), Buckets: b1},
		{Date: dateOf(1), TotalSolved: 1, MaxRating: rating(1200), Buckets: b2},
	}
	heat := []DailySubmissions{
		{Date: dateOf(1), SubmissionCount: 4, AcceptedCount: 1},
		{Date: dateOf(0), SubmissionCount: 5, AcceptedCount: 3},
	}

	sum := SummarizeProblems(daily, heat, 2)
	assert.Equal(t, 4, sum.TotalSolved)
	require.NotNil(t, sum.MaxRating)
	assert.Equal(t, 1200, *sum.MaxRating)
	require.NotNil(t, sum.AvgRating)
	assert.InDelta(t, (850.0*2+1250.0)/3, *sum.AvgRating, 1e-9)
	assert.InDelta(t, 2.0, sum.AvgPerDay, 1e-9)
	assert.Equal(t, 2, sum.Distribution[Bucket800])
	assert.Equal(t, 1, sum.Distribution[BucketUnknown])
	require.Len(t, sum.Daily, 2)
	assert.Equal(t, dateOf(0), sum.Daily[0].Date)

	empty := SummarizeProblems(nil, nil, 0)
	assert.Zero(t, empty.TotalSolved)
	assert.Nil(t, empty.MaxRating)
	assert.Nil(t, empty.AvgRating)
	assert.Zero(t, empty.AvgPerDay)
}

func TestSummarizeContests(t *testing.T) {
	rows := []ContestSummary{
		{ContestID: 1, NewRating: 1400, RatingChange: 100, ContestTime: dateOf(0)},
		{ContestID: 3, NewRating: 1350, RatingChange: -80, ContestTime: dateOf(9)},
		{ContestID: 2, NewRating: 1430, RatingChange: 30, ContestTime: dateOf(4)},
	}

	h := SummarizeContests(rows)
	assert.Equal(t, 3, h.TotalContests)
	assert.Equal(t, []int{3, 2, 1}, []int{h.Contests[0].ContestID, h.Contests[1].ContestID, h.Contests[2].ContestID})
	require.Len(t, h.Series, 3)
	assert.Equal(t, RatingPoint{Date: dateOf(0), Rating: 1400}, h.Series[0])
	assert.Equal(t, RatingPoint{Date: dateOf(9), Rating: 1350}, h.Series[2])
	assert.InDelta(t, 50.0/3, h.AverageChange, 1e-9)

	assert.Zero(t, SummarizeContests(nil).AverageChange)
}
