// Package judge описывает данные, которые приходят с Codeforces.
// Эти типы живут только в памяти на время одной синхронизации.
package judge

import (
	"strconv"
	"time"
)

// VerdictOK - вердикт принятого решения.
const VerdictOK = "OK"

// Profile - публичный профиль пользователя на Codeforces.
type Profile struct {
	Handle     string
	Email      string // Виден только если пользователь открыл его
	Rank       string
	MaxRank    string
	TitlePhoto string
	Rating     int
	MaxRating  int
}

// Problem - задача, к которой относится посылка.
type Problem struct {
	ContestID int
	Index     string
	Name      string

	// Rating - сложность задачи. nil, если сложность не назначена.
	Rating *int
}

// Key returns the problem identity used for deduplication, e.g. "1850A".
func (p Problem) Key() string {
	return strconv.Itoa(p.ContestID) + p.Index
}

// Submission - одна посылка пользователя.
type Submission struct {
	ID        int64
	ContestID int
	Problem   Problem
	Verdict   string

	// CreatedAt - unix-время посылки в секундах.
	CreatedAt int64
}

// Accepted возвращает true для принятой посылки.
func (s Submission) Accepted() bool {
	return s.Verdict == VerdictOK
}

// Time возвращает время посылки в UTC.
func (s Submission) Time() time.Time {
	return time.Unix(s.CreatedAt, 0).UTC()
}

// RatingChange - изменение рейтинга после одного контеста.
type RatingChange struct {
	ContestID   int
	ContestName string
	Rank        int
	OldRating   int
	NewRating   int

	// UpdatedAt - unix-время обновления рейтинга в секундах.
	UpdatedAt int64
}

// Delta возвращает изменение рейтинга.
func (r RatingChange) Delta() int {
	return r.NewRating - r.OldRating
}
