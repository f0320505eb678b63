package stats

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD SUMMARIES
// Свёртки уже сохранённых агрегатов за выбранный период.
// ══════════════════════════════════════════════════════════════════════════════

// ProblemSummary - сводка решённых задач за период.
type ProblemSummary struct {
	TotalSolved int

	// MaxRating is nil when no rated problem was solved in the period.
	MaxRating *int

	// AvgRating is weighted by rated solves across days.
	AvgRating *float64

	AvgPerDay    float64
	Distribution BucketCounts
	Daily        []DailySubmissions
}

// SummarizeProblems сворачивает дневную статистику. days <= 0 означает "за всё время",
// и тогда AvgPerDay равен нулю.
func SummarizeProblems(daily []DailyProblemStats, heatmap []DailySubmissions, days int) ProblemSummary {
	var sum ProblemSummary
	for _, d := range daily {
		sum.TotalSolved += d.TotalSolved
		sum.Distribution = sum.Distribution.Add(d.Buckets)
		if d.MaxRating != nil && (sum.MaxRating == nil || *d.MaxRating > *sum.MaxRating) {
			r := *d.MaxRating
			sum.MaxRating = &r
		}
	}

	// Σ(avg_d × rated_d) / Σ rated_d collapses to the average over the summed buckets.
	sum.AvgRating = sum.Distribution.WeightedAverage()

	if days > 0 {
		sum.AvgPerDay = float64(sum.TotalSolved) / float64(days)
	}

	sum.Daily = make([]DailySubmissions, len(heatmap))
	copy(sum.Daily, heatmap)
	sort.Slice(sum.Daily, func(i, j int) bool {
		return sum.Daily[i].Date.Before(sum.Daily[j].Date)
	})

	return sum
}

// RatingPoint - точка графика рейтинга.
type RatingPoint struct {
	Date   time.Time
	Rating int
}

// ContestHistory - история контестов за период.
type ContestHistory struct {
	// Contests, newest first.
	Contests []ContestSummary

	// Series, oldest first.
	Series []RatingPoint

	TotalContests int
	AverageChange float64
}

// SummarizeContests упорядочивает контесты и считает среднее изменение рейтинга.
func SummarizeContests(rows []ContestSummary) ContestHistory {
	h := ContestHistory{
		Contests:      make([]ContestSummary, len(rows)),
		Series:        make([]RatingPoint, 0, len(rows)),
		TotalContests: len(rows),
	}
	copy(h.Contests, rows)
	sort.SliceStable(h.Contests, func(i, j int) bool {
		return h.Contests[i].ContestTime.After(h.Contests[j].ContestTime)
	})

	total := 0
	for i := len(h.Contests) - 1; i >= 0; i-- {
		c := h.Contests[i]
		total += c.RatingChange
		h.Series = append(h.Series, RatingPoint{Date: c.ContestTime, Rating: c.NewRating})
	}
	if len(rows) > 0 {
		h.AverageChange = float64(total) / float64(len(rows))
	}
	return h
}
