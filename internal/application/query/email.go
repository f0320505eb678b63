package query

import (
	"context"
	"fmt"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Limits of the email journal views.
const (
	EmailHistoryLimit = 50
	RecentEmailsLimit = 10
)

// EmailHistory is the email journal of one student.
type EmailHistory struct {
	Logs           []notification.EmailLog
	TotalReminders int
}

// EmailQueries serves templates, per-student history and global stats.
type EmailQueries struct {
	students  student.Repository
	templates notification.TemplateRepository
	logs      notification.LogRepository
}

// NewEmailQueries creates a new EmailQueries.
func NewEmailQueries(students student.Repository, templates notification.TemplateRepository, logs notification.LogRepository) *EmailQueries {
	return &EmailQueries{students: students, templates: templates, logs: logs}
}

// Template returns the stored reminder template, or the built-in one.
func (q *EmailQueries) Template(ctx context.Context) (*notification.Template, error) {
	tmpl, err := q.templates.Latest(ctx)
	if shared.IsNotFound(err) {
		def := notification.DefaultReminderTemplate()
		return &def, nil
	}
	return tmpl, err
}

// History returns the latest journal entries of a student.
func (q *EmailQueries) History(ctx context.Context, studentID string) (*EmailHistory, error) {
	if _, err := q.students.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	logs, err := q.logs.ListByStudent(ctx, studentID, EmailHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("email_history: %w", err)
	}
	reminders, err := q.logs.CountByStudentKind(ctx, studentID, notification.KindReminder)
	if err != nil {
		return nil, fmt.Errorf("email_history: %w", err)
	}

	return &EmailHistory{Logs: logs, TotalReminders: reminders}, nil
}

// Stats returns global counters and the most recent sends.
func (q *EmailQueries) Stats(ctx context.Context) (*notification.Stats, error) {
	return q.logs.Stats(ctx, RecentEmailsLimit)
}
