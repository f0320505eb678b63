package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AddStudentCommand contains the data of a new student.
type AddStudentCommand struct {
	Name             string
	Email            string
	Phone            string
	CodeforcesHandle string
}

// WelcomeSender sends the welcome email of a new student.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, st *student.Student) error
}

// AddStudentConfig toggles the side effects of creation.
type AddStudentConfig struct {
	// InitialSync syncs the student right after creation when a handle is set.
	InitialSync bool

	// Welcome sends a welcome email when an email is set.
	Welcome bool

	Logger *slog.Logger
}

// AddStudentHandler creates students.
type AddStudentHandler struct {
	students student.Repository
	syncer   StudentSyncer
	welcome  WelcomeSender
	config   AddStudentConfig
	logger   *slog.Logger
}

// NewAddStudentHandler creates a new AddStudentHandler.
func NewAddStudentHandler(students student.Repository, syncer StudentSyncer, welcome WelcomeSender, config AddStudentConfig) *AddStudentHandler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &AddStudentHandler{
		students: students,
		syncer:   syncer,
		welcome:  welcome,
		config:   config,
		logger:   config.Logger,
	}
}

// Handle creates the student. Failures of the initial sync and of the
// welcome email are logged and do not fail the call.
func (h *AddStudentHandler) Handle(ctx context.Context, cmd AddStudentCommand) (*student.Student, error) {
	st, err := student.NewStudent(student.NewStudentParams{
		ID:               uuid.New().String(),
		Name:             cmd.Name,
		Email:            cmd.Email,
		Phone:            cmd.Phone,
		CodeforcesHandle: cmd.CodeforcesHandle,
	})
	if err != nil {
		return nil, err
	}

	if err := checkUnique(ctx, h.students, st, ""); err != nil {
		return nil, err
	}

	if err := h.students.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("add_student: failed to create student: %w", err)
	}

	log := h.logger.With("student_id", st.ID)
	log.Info("student created", "handle", st.CodeforcesHandle)

	if h.config.InitialSync && st.HasHandle() && h.syncer != nil {
		if _, err := h.syncer.Handle(ctx, st.ID); err != nil {
			log.Warn("initial sync failed", "error", err)
		} else if fresh, err := h.students.GetByID(ctx, st.ID); err == nil {
			st = fresh
		}
	}

	if h.config.Welcome && st.HasEmail() && h.welcome != nil {
		if err := h.welcome.SendWelcome(ctx, st); err != nil {
			log.Warn("welcome email failed", "error", err)
		}
	}

	return st, nil
}

// checkUnique rejects an email, phone or handle owned by another student.
func checkUnique(ctx context.Context, repo student.Repository, st *student.Student, excludeID string) error {
	checks := []struct {
		value  string
		exists func(context.Context, string, string) (bool, error)
		err    error
	}{
		{st.Email, repo.ExistsByEmail, shared.ErrEmailTaken},
		{st.Phone, repo.ExistsByPhone, shared.ErrPhoneTaken},
		{st.CodeforcesHandle, repo.ExistsByHandle, shared.ErrHandleTaken},
	}

	for _, c := range checks {
		if c.value == "" {
			continue
		}
		taken, err := c.exists(ctx, c.value, excludeID)
		if err != nil {
			return fmt.Errorf("failed to check uniqueness: %w", err)
		}
		if taken {
			return c.err
		}
	}
	return nil
}
