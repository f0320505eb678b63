package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL LOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EmailLogRepository implements notification.LogRepository for PostgreSQL.
type EmailLogRepository struct {
	conn *Connection
}

// NewEmailLogRepository creates a new EmailLogRepository.
func NewEmailLogRepository(conn *Connection) *EmailLogRepository {
	return &EmailLogRepository{conn: conn}
}

var _ notification.LogRepository = (*EmailLogRepository)(nil)

// Append inserts one journal row.
func (r *EmailLogRepository) Append(ctx context.Context, log notification.EmailLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.SentAt.IsZero() {
		log.SentAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO email_logs (id, student_id, type, success, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, log.ID, log.StudentID, string(log.Kind), log.Success, nullString(log.ErrorMessage), log.SentAt)
	if err != nil {
		return fmt.Errorf("failed to append email log: %w", err)
	}
	return nil
}

// ListByStudent returns the latest logs of a student, newest first.
func (r *EmailLogRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]notification.EmailLog, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, type, success, error_message, sent_at
		FROM email_logs
		WHERE student_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", err)
	}
	defer rows.Close()

	return scanEmailLogs(rows, false)
}

// CountByStudentKind counts logs of one kind for a student.
func (r *EmailLogRepository) CountByStudentKind(ctx context.Context, studentID string, kind notification.Kind) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM email_logs WHERE student_id = $1 AND type = $2`,
		studentID, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count email logs: %w", err)
	}
	return n, nil
}

// Stats returns global counters and the most recent logs with student details.
func (r *EmailLogRepository) Stats(ctx context.Context, recent int) (*notification.Stats, error) {
	var s notification.Stats
	err := r.conn.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success),
			COUNT(*) FILTER (WHERE type = $1)
		FROM email_logs
	`, string(notification.KindReminder)).Scan(&s.Total, &s.Successful, &s.Failed, &s.Reminders)
	if err != nil {
		return nil, fmt.Errorf("failed to count email stats: %w", err)
	}
	s.SuccessRate = notification.ComputeSuccessRate(s.Successful, s.Total)

	rows, err := r.conn.Query(ctx, `
		SELECT l.id, l.student_id, l.type, l.success, l.error_message, l.sent_at, s.name, s.email
		FROM email_logs l
		JOIN students s ON s.id = l.student_id
		ORDER BY l.sent_at DESC
		LIMIT $1
	`, recent)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent emails: %w", err)
	}
	defer rows.Close()

	s.Recent, err = scanEmailLogs(rows, true)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanEmailLogs(rows pgx.Rows, withStudent bool) ([]notification.EmailLog, error) {
	out := []notification.EmailLog{}
	for rows.Next() {
		var l notification.EmailLog
		var kind string
		var errMsg, studentEmail *string
		dest := []interface{}{&l.ID, &l.StudentID, &kind, &l.Success, &errMsg, &l.SentAt}
		if withStudent {
			dest = append(dest, &l.StudentName, &studentEmail)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan email log: %w", err)
		}
		l.Kind = notification.Kind(kind)
		l.ErrorMessage = deref(errMsg)
		l.StudentEmail = deref(studentEmail)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL TEMPLATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EmailTemplateRepository implements notification.TemplateRepository for PostgreSQL.
type EmailTemplateRepository struct {
	conn *Connection
}

// NewEmailTemplateRepository creates a new EmailTemplateRepository.
func NewEmailTemplateRepository(conn *Connection) *EmailTemplateRepository {
	return &EmailTemplateRepository{conn: conn}
}

var _ notification.TemplateRepository = (*EmailTemplateRepository)(nil)

// Latest returns the most recently updated template.
func (r *EmailTemplateRepository) Latest(ctx context.Context) (*notification.Template, error) {
	var t notification.Template
	err := r.conn.QueryRow(ctx, `
		SELECT id, name, subject, body, created_at, updated_at
		FROM email_templates
		ORDER BY updated_at DESC
		LIMIT 1
	`).Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("email", "LatestTemplate", shared.ErrNotFound, "no email template stored")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email template: %w", err)
	}
	return &t, nil
}

// Replace deletes every template and stores t in one transaction.
func (r *EmailTemplateRepository) Replace(ctx context.Context, t notification.Template) (*notification.Template, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	err := r.conn.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM email_templates`); err != nil {
			return fmt.Errorf("failed to delete email templates: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO email_templates (id, name, subject, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, t.ID, t.Name, t.Subject, t.Body, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert email template: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}
