package stats

import (
	"sort"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/timeutil"
)

// DailyProblemStats - задачи, впервые решённые студентом за один день UTC.
type DailyProblemStats struct {
	Date        time.Time
	TotalSolved int

	// MaxRating is nil when no rated problem was first solved that day.
	MaxRating *int

	// AvgRating is the bucket-midpoint weighted average, nil without rated solves.
	AvgRating *float64

	Buckets BucketCounts
}

// DailySubmissions - строка тепловой карты: все посылки за день, любые вердикты.
type DailySubmissions struct {
	Date            time.Time
	SubmissionCount int
	AcceptedCount   int
}

// DailyResult holds both per-day aggregates, each sorted by date ascending.
type DailyResult struct {
	Stats   []DailyProblemStats
	Heatmap []DailySubmissions
}

// Empty reports whether there is nothing to persist.
func (r DailyResult) Empty() bool {
	return len(r.Stats) == 0 && len(r.Heatmap) == 0
}

type dayAccumulator struct {
	stats DailyProblemStats
	heat  DailySubmissions
}

// ComputeDailyStats строит дневную статистику и тепловую карту.
//
// Задача засчитывается ровно один раз - в день своей первой принятой посылки.
// Повторные решения увеличивают только счётчики тепловой карты.
func ComputeDailyStats(subs []judge.Submission) DailyResult {
	if len(subs) == 0 {
		return DailyResult{}
	}

	ordered := chronological(subs)

	// ─────────────────────────────────────────────────────────────────────────
	// Pass 1: first-solved day per problem
	// ─────────────────────────────────────────────────────────────────────────
	firstSolved := make(map[string]time.Time)
	for _, s := range ordered {
		if !s.Accepted() {
			continue
		}
		key := s.Problem.Key()
		if _, ok := firstSolved[key]; !ok {
			firstSolved[key] = timeutil.DayOf(s.CreatedAt)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Pass 2: per-day counters
	// ─────────────────────────────────────────────────────────────────────────
	days := make(map[time.Time]*dayAccumulator)
	solved := make(map[string]bool, len(firstSolved))

	for _, s := range ordered {
		day := timeutil.DayOf(s.CreatedAt)
		acc, ok := days[day]
		if !ok {
			acc = &dayAccumulator{
				stats: DailyProblemStats{Date: day},
				heat:  DailySubmissions{Date: day},
			}
			days[day] = acc
		}

		acc.heat.SubmissionCount++
		if !s.Accepted() {
			continue
		}
		acc.heat.AcceptedCount++

		key := s.Problem.Key()
		if solved[key] || !firstSolved[key].Equal(day) {
			continue
		}
		solved[key] = true
		acc.stats.TotalSolved++

		bucket := BucketFor(s.Problem.Rating)
		acc.stats.Buckets[bucket]++
		if bucket.Rated() {
			r := *s.Problem.Rating
			if acc.stats.MaxRating == nil || r > *acc.stats.MaxRating {
				acc.stats.MaxRating = &r
			}
		}
	}

	result := DailyResult{
		Stats:   make([]DailyProblemStats, 0, len(days)),
		Heatmap: make([]DailySubmissions, 0, len(days)),
	}
	for _, acc := range days {
		acc.stats.AvgRating = acc.stats.Buckets.WeightedAverage()
		result.Stats = append(result.Stats, acc.stats)
		result.Heatmap = append(result.Heatmap, acc.heat)
	}

	sort.Slice(result.Stats, func(i, j int) bool {
		return result.Stats[i].Date.Before(result.Stats[j].Date)
	})
	sort.Slice(result.Heatmap, func(i, j int) bool {
		return result.Heatmap[i].Date.Before(result.Heatmap[j].Date)
	})

	return result
}
