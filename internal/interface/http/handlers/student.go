package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/command"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/query"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

type StudentLister interface {
	Handle(ctx context.Context, q query.ListStudentsQuery) (*query.ListStudentsResult, error)
	Get(ctx context.Context, id string) (*student.Student, error)
}

type StudentAdder interface {
	Handle(ctx context.Context, cmd command.AddStudentCommand) (*student.Student, error)
}

type StudentUpdater interface {
	Handle(ctx context.Context, cmd command.UpdateStudentCommand) (*command.UpdateStudentResult, error)
	HandleCodeforces(ctx context.Context, id, handle string) (*command.UpdateStudentResult, error)
}

type StudentDeleter interface {
	Handle(ctx context.Context, id string) error
}

type RemindersToggler interface {
	Handle(ctx context.Context, id string, enabled bool) (*student.Student, error)
}

type ContestHistoryReader interface {
	Handle(ctx context.Context, studentID string, days int) (*stats.ContestHistory, error)
}

type ProblemStatsReader interface {
	Handle(ctx context.Context, studentID string, days int) (*stats.ProblemSummary, error)
}

// StudentHandlerDeps wires the student endpoints.
type StudentHandlerDeps struct {
	List      StudentLister
	Add       StudentAdder
	Update    StudentUpdater
	Delete    StudentDeleter
	Reminders RemindersToggler
	Sync      command.StudentSyncer
	Contests  ContestHistoryReader
	Problems  ProblemStatsReader
}

// Query defaults.
const (
	DefaultPage         = 1
	DefaultPageLimit    = 20
	MaxPageLimit        = 100
	DefaultContestsDays = 30
)

// ProblemStatsPeriods are returned together when no ?days is given. 0 means all time.
var ProblemStatsPeriods = []int{7, 30, 90, 0}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// StudentHandler serves /api/student/students.
type StudentHandler struct {
	deps StudentHandlerDeps
}

// NewStudentHandler creates a StudentHandler.
func NewStudentHandler(deps StudentHandlerDeps) *StudentHandler {
	return &StudentHandler{deps: deps}
}

// RegisterRoutes mounts the student endpoints on r.
func (h *StudentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/students", h.list)
	r.Post("/students", h.add)
	r.Get("/students/{studentId}", h.get)
	r.Delete("/students/{studentId}", h.delete)
	r.Get("/students/{studentId}/contests", h.contests)
	r.Get("/students/{studentId}/problems", h.problems)
	r.Put("/students/{studentId}/codeforces", h.updateHandle)
	r.Put("/students/{studentId}/update", h.update)
	r.Put("/students/{studentId}/email-reminders", h.toggleReminders)
	r.Post("/students/{studentId}/sync", h.sync)
}

func (h *StudentHandler) list(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", DefaultPage)
	if page < 1 {
		page = DefaultPage
	}
	limit := queryInt(r, "limit", DefaultPageLimit)
	if limit < 1 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}

	res, err := h.deps.List.Handle(r.Context(), query.ListStudentsQuery{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writePage(w, r, toStudentDTOs(res.Students), res.Total, res.Page, res.Limit, res.TotalPages)
}

func (h *StudentHandler) add(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	st, err := h.deps.Add.Handle(r.Context(), command.AddStudentCommand{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.PhoneNumber,
		CodeforcesHandle: req.CodeforcesHandle,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toStudentDTO(st))
}

func (h *StudentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	st, err := h.deps.List.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toStudentDTO(st))
}

func (h *StudentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	if err := h.deps.Delete.Handle(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Student deleted successfully")
}

func (h *StudentHandler) contests(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	days := queryInt(r, "days", DefaultContestsDays)

	hist, err := h.deps.Contests.Handle(r.Context(), id, days)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toContestHistoryDTO(days, hist))
}

func (h *StudentHandler) problems(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Has("days") {
		days := queryInt(r, "days", 0)
		sum, err := h.deps.Problems.Handle(r.Context(), id, days)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toProblemStatsDTO(days, sum))
		return
	}

	out := make([]ProblemStatsDTO, 0, len(ProblemStatsPeriods))
	for _, days := range ProblemStatsPeriods {
		sum, err := h.deps.Problems.Handle(r.Context(), id, days)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		out = append(out, toProblemStatsDTO(days, sum))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *StudentHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	var req StudentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.deps.Update.Handle(r.Context(), command.UpdateStudentCommand{
		ID:               id,
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.PhoneNumber,
		CodeforcesHandle: req.CodeforcesHandle,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toUpdateStudentResponse(res))
}

func (h *StudentHandler) updateHandle(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateHandleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.deps.Update.HandleCodeforces(r.Context(), id, req.CodeforcesHandle)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toUpdateStudentResponse(res))
}

func (h *StudentHandler) toggleReminders(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	var req ToggleRemindersRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	st, err := h.deps.Reminders.Handle(r.Context(), id, *req.Enabled)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toStudentDTO(st))
}

func (h *StudentHandler) sync(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	report, err := h.deps.Sync.Handle(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSyncReportDTO(report))
}
