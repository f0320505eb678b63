// Package notification содержит доменную модель email-уведомлений студентам.
package notification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет тип письма.
type Kind string

const (
	// KindReminder - напоминание о неактивности.
	KindReminder Kind = "REMINDER"
	// KindWelcome - приветствие нового студента.
	KindWelcome Kind = "WELCOME"
)

// IsValid проверяет, что тип письма известен.
func (k Kind) IsValid() bool {
	return k == KindReminder || k == KindWelcome
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// EmailLog - запись об одной попытке отправки. Только добавляется.
type EmailLog struct {
	ID           string
	StudentID    string
	Kind         Kind
	Success      bool
	ErrorMessage string
	SentAt       time.Time

	// Заполняются только при чтении статистики.
	StudentName  string
	StudentEmail string
}

// Message - готовое к отправке письмо.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Stats - общая статистика отправок.
type Stats struct {
	Total       int
	Successful  int
	Failed      int
	Reminders   int
	SuccessRate float64
	Recent      []EmailLog
}

// ComputeSuccessRate returns the success percentage, 0 when nothing was sent.
func ComputeSuccessRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total) * 100
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Sender доставляет письмо. Реализация - SMTP в infrastructure/external.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogRepository хранит журнал отправок.
type LogRepository interface {
	Append(ctx context.Context, log EmailLog) error
	ListByStudent(ctx context.Context, studentID string, limit int) ([]EmailLog, error)
	CountByStudentKind(ctx context.Context, studentID string, kind Kind) (int, error)
	Stats(ctx context.Context, recent int) (*Stats, error)
}

// TemplateRepository хранит шаблон напоминания. Активен последний обновлённый.
type TemplateRepository interface {
	// Latest returns shared.ErrNotFound when no template is stored.
	Latest(ctx context.Context) (*Template, error)

	// Replace removes every stored template and saves t.
	Replace(ctx context.Context, t Template) (*Template, error)
}
