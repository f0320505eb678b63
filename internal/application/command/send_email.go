package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND EMAIL COMMANDS
// Every attempt, successful or not, is journaled in the email log.
// ══════════════════════════════════════════════════════════════════════════════

// EmailHandler sends reminder and welcome emails.
type EmailHandler struct {
	students  student.Repository
	templates notification.TemplateRepository
	logs      notification.LogRepository
	sender    notification.Sender
	logger    *slog.Logger
	now       func() time.Time
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(
	students student.Repository,
	templates notification.TemplateRepository,
	logs notification.LogRepository,
	sender notification.Sender,
	logger *slog.Logger,
) *EmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailHandler{
		students:  students,
		templates: templates,
		logs:      logs,
		sender:    sender,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SendReminder renders the current reminder template for st and sends it.
// The reminder counter is incremented only after a successful send.
func (h *EmailHandler) SendReminder(ctx context.Context, st *student.Student) error {
	if !st.HasEmail() {
		return shared.ErrMissingEmail
	}

	tmpl, err := h.reminderTemplate(ctx)
	if err != nil {
		return err
	}

	if err := h.send(ctx, st, tmpl, notification.KindReminder); err != nil {
		return err
	}

	if err := h.students.IncrementReminderCount(ctx, st.ID); err != nil {
		h.logger.Warn("failed to increment reminder count", "student_id", st.ID, "error", err)
	}
	return nil
}

// SendWelcome implements WelcomeSender.
func (h *EmailHandler) SendWelcome(ctx context.Context, st *student.Student) error {
	if !st.HasEmail() {
		return shared.ErrMissingEmail
	}
	return h.send(ctx, st, notification.WelcomeTemplate(), notification.KindWelcome)
}

// reminderTemplate falls back to the built-in template when none is stored.
func (h *EmailHandler) reminderTemplate(ctx context.Context) (notification.Template, error) {
	tmpl, err := h.templates.Latest(ctx)
	if err == nil {
		return *tmpl, nil
	}
	if shared.IsNotFound(err) {
		return notification.DefaultReminderTemplate(), nil
	}
	return notification.Template{}, err
}

func (h *EmailHandler) send(ctx context.Context, st *student.Student, tmpl notification.Template, kind notification.Kind) error {
	subject, body := tmpl.Render(notification.TemplateData{
		StudentName:      st.Name,
		CurrentRating:    st.CurrentRating,
		MaxRating:        st.MaxRating,
		LastActivity:     st.LastSubmissionDate,
		CodeforcesHandle: st.CodeforcesHandle,
		Email:            st.Email,
	})

	sendErr := h.sender.Send(ctx, notification.Message{To: st.Email, Subject: subject, HTML: body})
	metrics.EmailsSent.WithLabelValues(string(kind), metrics.Result(sendErr)).Inc()

	entry := notification.EmailLog{
		StudentID: st.ID,
		Kind:      kind,
		Success:   sendErr == nil,
		SentAt:    h.now(),
	}
	if sendErr != nil {
		entry.ErrorMessage = sendErr.Error()
	}
	// The journal outlives a cancelled request.
	if err := h.logs.Append(context.WithoutCancel(ctx), entry); err != nil {
		h.logger.Warn("failed to journal email", "student_id", st.ID, "kind", kind, "error", err)
	}

	if sendErr != nil {
		h.logger.Error("email send failed", "student_id", st.ID, "kind", kind, "error", sendErr)
		if errors.Is(sendErr, shared.ErrEmailFailed) {
			return sendErr
		}
		return shared.WrapError("email", "Send", shared.ErrExternalService, "failed to send email", sendErr)
	}

	h.logger.Info("email sent", "student_id", st.ID, "kind", kind)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE EMAIL TEMPLATE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateEmailTemplateCommand contains the new reminder template.
// Empty fields fall back to the built-in defaults.
type UpdateEmailTemplateCommand struct {
	Name    string
	Subject string
	Body    string
}

// UpdateEmailTemplateHandler replaces the stored reminder template.
type UpdateEmailTemplateHandler struct {
	templates notification.TemplateRepository
}

// NewUpdateEmailTemplateHandler creates a new UpdateEmailTemplateHandler.
func NewUpdateEmailTemplateHandler(templates notification.TemplateRepository) *UpdateEmailTemplateHandler {
	return &UpdateEmailTemplateHandler{templates: templates}
}

// Handle deletes every stored template and creates the new one.
func (h *UpdateEmailTemplateHandler) Handle(ctx context.Context, cmd UpdateEmailTemplateCommand) (*notification.Template, error) {
	def := notification.DefaultReminderTemplate()
	t := notification.Template{Name: cmd.Name, Subject: cmd.Subject, Body: cmd.Body}
	if t.Name == "" {
		t.Name = def.Name
	}
	if t.Subject == "" {
		t.Subject = def.Subject
	}
	if t.Body == "" {
		t.Body = def.Body
	}
	return h.templates.Replace(ctx, t)
}
