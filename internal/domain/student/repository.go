package student

import (
	"context"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции со студентами.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт нового студента.
	// Возвращает ErrStudentAlreadyExists при нарушении уникальности.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает студента по внутреннему ID.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// Update обновляет редактируемые поля студента.
	Update(ctx context.Context, student *Student) error

	// Delete удаляет студента вместе со всеми агрегатами.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Listing
	// ─────────────────────────────────────────────────────────────────────────

	// List возвращает страницу студентов в порядке создания и общее число совпадений.
	List(ctx context.Context, opts ListOptions) ([]*Student, int, error)

	// ListWithHandle возвращает всех студентов с непустым хэндлом.
	ListWithHandle(ctx context.Context) ([]*Student, error)

	// FindInactive возвращает студентов с включёнными напоминаниями,
	// у которых нет посылок после cutoff.
	FindInactive(ctx context.Context, cutoff time.Time) ([]*Student, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Uniqueness Checks
	// excludeID исключает самого студента при обновлении.
	// ─────────────────────────────────────────────────────────────────────────

	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error)
	ExistsByHandle(ctx context.Context, handle, excludeID string) (bool, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Targeted Updates
	// ─────────────────────────────────────────────────────────────────────────

	// ApplySyncSummary записывает результат синхронизации.
	ApplySyncSummary(ctx context.Context, id string, sum SyncSummary) error

	// UpdateHandle меняет хэндл Codeforces.
	UpdateHandle(ctx context.Context, id, handle string) error

	// IncrementReminderCount увеличивает счётчик отправленных напоминаний.
	IncrementReminderCount(ctx context.Context, id string) error

	// SetEmailReminders включает или выключает напоминания.
	SetEmailReminders(ctx context.Context, id string, enabled bool) error
}

// ListOptions содержит параметры для пагинации и поиска.
type ListOptions struct {
	// Page - номер страницы, начиная с 1.
	Page int

	// Limit - размер страницы.
	Limit int

	// Search - подстрока для поиска по имени, email и хэндлу без учёта регистра.
	Search string
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Page:  1,
		Limit: 10,
	}
}

// Normalize clamps paging values into a usable range.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 10
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	return o
}

// Offset возвращает смещение для SQL.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// AggregateWriter заменяет производные данные студента целиком.
// Каждый вид данных заменяется в своей транзакции: сначала удаление всех строк
// студента, затем вставка пачками.
type AggregateWriter interface {
	ReplaceContests(ctx context.Context, studentID string, rows []stats.ContestSummary) error
	ReplaceDailyStats(ctx context.Context, studentID string, result stats.DailyResult) error
}

// AggregateReader читает сохранённые агрегаты. Нулевой since означает "за всё время".
type AggregateReader interface {
	ListContests(ctx context.Context, studentID string, since time.Time) ([]stats.ContestSummary, error)
	ListDailyStats(ctx context.Context, studentID string, since time.Time) ([]stats.DailyProblemStats, error)
	ListHeatmap(ctx context.Context, studentID string, since time.Time) ([]stats.DailySubmissions, error)
}
