package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STUDENT COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStudentCommand replaces the editable fields of a student.
type UpdateStudentCommand struct {
	ID               string
	Name             string
	Email            string
	Phone            string
	CodeforcesHandle string
}

// UpdateStudentResult contains the updated student and the outcome of
// the sync triggered by a handle change.
type UpdateStudentResult struct {
	Student *student.Student

	// Synced is true when a handle change triggered a successful sync.
	Synced bool

	// SyncError carries the message of a failed sync.
	SyncError string
}

// UpdateStudentHandler edits students.
type UpdateStudentHandler struct {
	students     student.Repository
	syncer       StudentSyncer
	syncOnChange bool
	logger       *slog.Logger
}

// NewUpdateStudentHandler creates a new UpdateStudentHandler.
// syncOnChange controls whether a changed handle triggers a sync in Handle.
func NewUpdateStudentHandler(students student.Repository, syncer StudentSyncer, syncOnChange bool, logger *slog.Logger) *UpdateStudentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateStudentHandler{
		students:     students,
		syncer:       syncer,
		syncOnChange: syncOnChange,
		logger:       logger,
	}
}

// Handle updates name, email, phone and handle.
func (h *UpdateStudentHandler) Handle(ctx context.Context, cmd UpdateStudentCommand) (*UpdateStudentResult, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, shared.ErrNameRequired
	}

	st, err := h.students.GetByID(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}

	oldHandle := st.CodeforcesHandle
	st.Name = name
	st.Email = strings.TrimSpace(cmd.Email)
	st.Phone = strings.TrimSpace(cmd.Phone)
	st.CodeforcesHandle = strings.TrimSpace(cmd.CodeforcesHandle)

	if err := checkUnique(ctx, h.students, st, st.ID); err != nil {
		return nil, err
	}

	if err := h.students.Update(ctx, st); err != nil {
		return nil, fmt.Errorf("update_student: failed to update student: %w", err)
	}

	result := &UpdateStudentResult{Student: st}
	if h.syncOnChange && st.HasHandle() && !strings.EqualFold(oldHandle, st.CodeforcesHandle) {
		h.syncAfterChange(ctx, result)
	}
	return result, nil
}

// HandleCodeforces sets the handle and syncs immediately.
func (h *UpdateStudentHandler) HandleCodeforces(ctx context.Context, id, handle string) (*UpdateStudentResult, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, shared.NewDomainError("student", "UpdateHandle", shared.ErrEmptyValue, "codeforces handle is required")
	}

	st, err := h.students.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := h.students.ExistsByHandle(ctx, handle, id)
	if err != nil {
		return nil, fmt.Errorf("update_handle: failed to check uniqueness: %w", err)
	}
	if taken {
		return nil, shared.ErrHandleTaken
	}

	if err := h.students.UpdateHandle(ctx, id, handle); err != nil {
		return nil, fmt.Errorf("update_handle: failed to update handle: %w", err)
	}
	st.CodeforcesHandle = handle

	result := &UpdateStudentResult{Student: st}
	h.syncAfterChange(ctx, result)
	return result, nil
}

func (h *UpdateStudentHandler) syncAfterChange(ctx context.Context, result *UpdateStudentResult) {
	if h.syncer == nil {
		return
	}
	id := result.Student.ID

	if _, err := h.syncer.Handle(ctx, id); err != nil {
		h.logger.Warn("sync after handle change failed", "student_id", id, "error", err)
		result.SyncError = err.Error()
		return
	}
	result.Synced = true

	if fresh, err := h.students.GetByID(ctx, id); err == nil {
		result.Student = fresh
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE / TOGGLES
// ══════════════════════════════════════════════════════════════════════════════

// DeleteStudentHandler removes a student and, through cascades, its aggregates.
type DeleteStudentHandler struct {
	students student.Repository
	cache    StatsInvalidator
	logger   *slog.Logger
}

// NewDeleteStudentHandler creates a new DeleteStudentHandler. cache may be nil.
func NewDeleteStudentHandler(students student.Repository, cache StatsInvalidator, logger *slog.Logger) *DeleteStudentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteStudentHandler{students: students, cache: cache, logger: logger}
}

// Handle deletes the student.
func (h *DeleteStudentHandler) Handle(ctx context.Context, id string) error {
	if err := h.students.Delete(ctx, id); err != nil {
		return err
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, id); err != nil {
			h.logger.Warn("failed to invalidate stats cache", "student_id", id, "error", err)
		}
	}
	h.logger.Info("student deleted", "student_id", id)
	return nil
}

// SetEmailRemindersHandler toggles reminder emails of a student.
type SetEmailRemindersHandler struct {
	students student.Repository
}

// NewSetEmailRemindersHandler creates a new SetEmailRemindersHandler.
func NewSetEmailRemindersHandler(students student.Repository) *SetEmailRemindersHandler {
	return &SetEmailRemindersHandler{students: students}
}

// Handle stores the flag and returns the updated student.
func (h *SetEmailRemindersHandler) Handle(ctx context.Context, id string, enabled bool) (*student.Student, error) {
	if err := h.students.SetEmailReminders(ctx, id, enabled); err != nil {
		return nil, err
	}
	return h.students.GetByID(ctx, id)
}
