// Package student содержит доменную модель студента, отслеживаемого на Codeforces.
package student

import (
	"strings"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - студент, чей прогресс синхронизируется с Codeforces.
// Пустые строки в Email, Phone и CodeforcesHandle хранятся как NULL,
// поэтому уникальность не мешает нескольким студентам без этих полей.
type Student struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	Name             string
	Email            string
	Phone            string
	CodeforcesHandle string

	// Поля ниже перезаписываются каждой синхронизацией.
	CurrentRating int
	MaxRating     int
	Rank          string
	MaxRank       string
	TitlePhoto    string

	// LastDataUpdate - время последней успешной синхронизации.
	LastDataUpdate *time.Time

	// LastSubmissionDate - время последней посылки, nil если посылок нет.
	LastSubmissionDate *time.Time

	ReminderEmailCount   int
	EmailReminderEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID               string
	Name             string
	Email            string
	Phone            string
	CodeforcesHandle string
}

// NewStudent создаёт нового студента. Обязательно только имя.
func NewStudent(params NewStudentParams) (*Student, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.ErrNameRequired
	}
	if params.ID == "" {
		return nil, shared.NewDomainError("student", "Create", shared.ErrInvalidID, "student id is required")
	}

	now := time.Now().UTC()
	return &Student{
		ID:                   params.ID,
		Name:                 name,
		Email:                strings.TrimSpace(params.Email),
		Phone:                strings.TrimSpace(params.Phone),
		CodeforcesHandle:     strings.TrimSpace(params.CodeforcesHandle),
		EmailReminderEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// HasHandle возвращает true, если студента можно синхронизировать.
func (s *Student) HasHandle() bool {
	return strings.TrimSpace(s.CodeforcesHandle) != ""
}

// HasEmail возвращает true, если студенту можно отправить письмо.
func (s *Student) HasEmail() bool {
	return strings.TrimSpace(s.Email) != ""
}

// IsInactiveSince reports whether the student has not submitted since cutoff.
// A student with no recorded submissions is always inactive.
func (s *Student) IsInactiveSince(cutoff time.Time) bool {
	return s.LastSubmissionDate == nil || s.LastSubmissionDate.Before(cutoff)
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// SyncSummary - поля студента, которые обновляются после синхронизации.
type SyncSummary struct {
	CurrentRating      int
	MaxRating          int
	Rank               string
	MaxRank            string
	TitlePhoto         string
	LastDataUpdate     time.Time
	LastSubmissionDate *time.Time

	// Email is written only when non-empty.
	Email string
}

// NewSyncSummary собирает сводку из профиля и времени последней посылки.
func NewSyncSummary(profile *judge.Profile, lastSubmission *time.Time, now time.Time) SyncSummary {
	return SyncSummary{
		CurrentRating:      profile.Rating,
		MaxRating:          profile.MaxRating,
		Rank:               profile.Rank,
		MaxRank:            profile.MaxRank,
		TitlePhoto:         profile.TitlePhoto,
		LastDataUpdate:     now.UTC(),
		LastSubmissionDate: lastSubmission,
		Email:              strings.TrimSpace(profile.Email),
	}
}

// Apply переносит сводку в сущность.
func (s *Student) Apply(sum SyncSummary) {
	s.CurrentRating = sum.CurrentRating
	s.MaxRating = sum.MaxRating
	s.Rank = sum.Rank
	s.MaxRank = sum.MaxRank
	s.TitlePhoto = sum.TitlePhoto
	updated := sum.LastDataUpdate
	s.LastDataUpdate = &updated
	s.LastSubmissionDate = sum.LastSubmissionDate
	if sum.Email != "" {
		s.Email = sum.Email
	}
	s.UpdatedAt = sum.LastDataUpdate
}
