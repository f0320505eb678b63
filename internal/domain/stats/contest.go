package stats

import (
	"sort"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
)

// ContestSummary - итог участия студента в одном рейтинговом контесте.
type ContestSummary struct {
	ContestID    int
	ContestName  string
	Rank         int
	OldRating    int
	NewRating    int
	RatingChange int
	ContestTime  time.Time

	// TotalProblems - число различных задач контеста, встреченных в посылках.
	TotalProblems int

	// ProblemsSolved - число различных задач с вердиктом OK.
	ProblemsSolved int

	// HardestProblem - ключ самой сложной задачи, "" если рейтинговых задач нет.
	HardestProblem string
	HardestRating  *int
}

// ComputeContestSummaries строит по одной строке на каждый контест из истории рейтинга.
// Посылки в контесты без изменения рейтинга игнорируются. Повторная запись
// того же контеста в истории отбрасывается, первая побеждает.
func ComputeContestSummaries(subs []judge.Submission, changes []judge.RatingChange) []ContestSummary {
	if len(changes) == 0 {
		return nil
	}

	rated := make(map[int]bool, len(changes))
	for _, rc := range changes {
		rated[rc.ContestID] = true
	}

	byContest := make(map[int][]judge.Submission)
	for _, s := range chronological(subs) {
		if rated[s.ContestID] {
			byContest[s.ContestID] = append(byContest[s.ContestID], s)
		}
	}

	out := make([]ContestSummary, 0, len(changes))
	seen := make(map[int]bool, len(changes))
	for _, rc := range changes {
		if seen[rc.ContestID] {
			continue
		}
		seen[rc.ContestID] = true

		row := ContestSummary{
			ContestID:    rc.ContestID,
			ContestName:  rc.ContestName,
			Rank:         rc.Rank,
			OldRating:    rc.OldRating,
			NewRating:    rc.NewRating,
			RatingChange: rc.Delta(),
			ContestTime:  time.Unix(rc.UpdatedAt, 0).UTC(),
		}
		summarizeProblems(&row, byContest[rc.ContestID])
		out = append(out, row)
	}
	return out
}

func summarizeProblems(row *ContestSummary, subs []judge.Submission) {
	attempted := make(map[string]struct{})
	solved := make(map[string]struct{})
	hardest := 0

	for _, s := range subs {
		key := s.Problem.Key()
		attempted[key] = struct{}{}
		if s.Accepted() {
			solved[key] = struct{}{}
		}
		// Строгое сравнение: при равенстве остаётся первая задача.
		if s.Problem.Rating != nil && *s.Problem.Rating > hardest {
			hardest = *s.Problem.Rating
			row.HardestProblem = key
		}
	}

	row.TotalProblems = len(attempted)
	row.ProblemsSolved = len(solved)
	if hardest > 0 {
		r := hardest
		row.HardestRating = &r
	}
}

// chronological returns a sorted copy ordered by (timestamp, submission id).
// The secondary key makes equal-timestamp ordering independent of fetch order.
func chronological(subs []judge.Submission) []judge.Submission {
	out := make([]judge.Submission, len(subs))
	copy(out, subs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}
