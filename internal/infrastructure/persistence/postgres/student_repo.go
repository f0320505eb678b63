package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const studentColumns = `
	id, name, email, phone, codeforces_handle,
	current_rating, max_rating, rank, max_rank, title_photo,
	last_data_update, last_submission_date,
	reminder_email_count, email_reminder_enabled,
	created_at, updated_at`

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// Interface compliance check.
var _ student.Repository = (*StudentRepository)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, name, email, phone, codeforces_handle,
			current_rating, max_rating, reminder_email_count, email_reminder_enabled,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Name,
		nullString(s.Email),
		nullString(s.Phone),
		nullString(s.CodeforcesHandle),
		s.CurrentRating,
		s.MaxRating,
		s.ReminderEmailCount,
		s.EmailReminderEnabled,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return uniqueViolationError(err)
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanStudent(row)
}

// Update updates the editable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students SET
			name = $1,
			email = $2,
			phone = $3,
			codeforces_handle = $4,
			email_reminder_enabled = $5
		WHERE id = $6
	`

	result, err := r.conn.Exec(ctx, query,
		s.Name,
		nullString(s.Email),
		nullString(s.Phone),
		nullString(s.CodeforcesHandle),
		s.EmailReminderEnabled,
		s.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return uniqueViolationError(err)
		}
		return fmt.Errorf("failed to update student: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

// Delete removes a student. Aggregates and email logs go with it via ON DELETE CASCADE.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing
// ─────────────────────────────────────────────────────────────────────────────

// List returns one page of students ordered by creation time, plus the total match count.
func (r *StudentRepository) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, int, error) {
	opts = opts.Normalize()

	where := ""
	args := []interface{}{}
	if search := strings.TrimSpace(opts.Search); search != "" {
		where = ` WHERE name ILIKE $1 OR email ILIKE $1 OR codeforces_handle ILIKE $1`
		args = append(args, "%"+escapeLike(search)+"%")
	}

	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count students: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM students%s ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d`,
		studentColumns, where, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset())

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	students, err := r.scanStudents(rows)
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

// ListWithHandle returns every student that can be synced.
func (r *StudentRepository) ListWithHandle(ctx context.Context) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + `
		FROM students
		WHERE codeforces_handle IS NOT NULL AND codeforces_handle <> ''
		ORDER BY created_at ASC`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students with handle: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// FindInactive returns reminder-enabled students without a submission after cutoff.
func (r *StudentRepository) FindInactive(ctx context.Context, cutoff time.Time) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + `
		FROM students
		WHERE email_reminder_enabled
		  AND (last_submission_date IS NULL OR last_submission_date < $1)
		ORDER BY created_at ASC`

	rows, err := r.conn.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find inactive students: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Uniqueness Checks
// ─────────────────────────────────────────────────────────────────────────────

// ExistsByEmail checks whether another student uses email.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.existsBy(ctx, "email", email, excludeID)
}

// ExistsByPhone checks whether another student uses phone.
func (r *StudentRepository) ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	return r.existsBy(ctx, "phone", phone, excludeID)
}

// ExistsByHandle checks whether another student uses the Codeforces handle.
func (r *StudentRepository) ExistsByHandle(ctx context.Context, handle, excludeID string) (bool, error) {
	return r.existsBy(ctx, "codeforces_handle", handle, excludeID)
}

// existsBy is only called with the fixed column names above.
func (r *StudentRepository) existsBy(ctx context.Context, column, value, excludeID string) (bool, error) {
	if strings.TrimSpace(value) == "" {
		return false, nil
	}

	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM students WHERE %s = $1 AND ($2 = '' OR id::text <> $2))`, column)

	var exists bool
	if err := r.conn.QueryRow(ctx, query, value, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", column, err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Targeted Updates
// ─────────────────────────────────────────────────────────────────────────────

// ApplySyncSummary writes the fields produced by a sync. Email is only overwritten when present.
func (r *StudentRepository) ApplySyncSummary(ctx context.Context, id string, sum student.SyncSummary) error {
	query := `
		UPDATE students SET
			current_rating = $1,
			max_rating = $2,
			rank = $3,
			max_rank = $4,
			title_photo = $5,
			last_data_update = $6,
			last_submission_date = $7,
			email = COALESCE($8, email)
		WHERE id = $9
	`

	result, err := r.conn.Exec(ctx, query,
		sum.CurrentRating,
		sum.MaxRating,
		nullString(sum.Rank),
		nullString(sum.MaxRank),
		nullString(sum.TitlePhoto),
		sum.LastDataUpdate,
		sum.LastSubmissionDate,
		nullString(sum.Email),
		id,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return uniqueViolationError(err)
		}
		return fmt.Errorf("failed to apply sync summary: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// UpdateHandle sets the Codeforces handle.
func (r *StudentRepository) UpdateHandle(ctx context.Context, id, handle string) error {
	return r.execOne(ctx, `UPDATE students SET codeforces_handle = $1 WHERE id = $2`, nullString(handle), id)
}

// IncrementReminderCount bumps the reminder counter.
func (r *StudentRepository) IncrementReminderCount(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE students SET reminder_email_count = reminder_email_count + 1 WHERE id = $1`, id)
}

// SetEmailReminders toggles inactivity reminders.
func (r *StudentRepository) SetEmailReminders(ctx context.Context, id string, enabled bool) error {
	return r.execOne(ctx, `UPDATE students SET email_reminder_enabled = $1 WHERE id = $2`, enabled, id)
}

func (r *StudentRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		if IsUniqueViolation(err) {
			return uniqueViolationError(err)
		}
		return fmt.Errorf("failed to update student: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *StudentRepository) scanStudent(row pgx.Row) (*student.Student, error) {
	s, err := scanStudentRow(row)
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}
	return s, nil
}

// scanStudents scans multiple students from rows.
func (r *StudentRepository) scanStudents(rows pgx.Rows) ([]*student.Student, error) {
	students := []*student.Student{}

	for rows.Next() {
		s, err := scanStudentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return students, nil
}

func scanStudentRow(row rowScanner) (*student.Student, error) {
	var s student.Student
	var email, phone, handle, rank, maxRank, titlePhoto *string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&email,
		&phone,
		&handle,
		&s.CurrentRating,
		&s.MaxRating,
		&rank,
		&maxRank,
		&titlePhoto,
		&s.LastDataUpdate,
		&s.LastSubmissionDate,
		&s.ReminderEmailCount,
		&s.EmailReminderEnabled,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Email = deref(email)
	s.Phone = deref(phone)
	s.CodeforcesHandle = deref(handle)
	s.Rank = deref(rank)
	s.MaxRank = deref(maxRank)
	s.TitlePhoto = deref(titlePhoto)

	return &s, nil
}

// uniqueViolationError maps a 23505 on students to the matching domain error.
func uniqueViolationError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return shared.ErrStudentAlreadyExists
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return shared.ErrEmailTaken
	case strings.Contains(pgErr.ConstraintName, "phone"):
		return shared.ErrPhoneTaken
	case strings.Contains(pgErr.ConstraintName, "handle"):
		return shared.ErrHandleTaken
	default:
		return shared.ErrStudentAlreadyExists
	}
}

// nullString stores empty strings as NULL so UNIQUE ignores them.
func nullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
