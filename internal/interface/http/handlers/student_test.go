package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/command"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/query"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeLister struct {
	students  []*student.Student
	lastQuery query.ListStudentsQuery
}

func (f *fakeLister) Handle(_ context.Context, q query.ListStudentsQuery) (*query.ListStudentsResult, error) {
	f.lastQuery = q
	return &query.ListStudentsResult{
		Students:   f.students,
		Total:      len(f.students),
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: 1,
	}, nil
}

func (f *fakeLister) Get(_ context.Context, id string) (*student.Student, error) {
	for _, s := range f.students {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrStudentNotFound
}

type addFunc func(ctx context.Context, cmd command.AddStudentCommand) (*student.Student, error)

func (f addFunc) Handle(ctx context.Context, cmd command.AddStudentCommand) (*student.Student, error) {
	return f(ctx, cmd)
}

type toggleFunc func(ctx context.Context, id string, enabled bool) (*student.Student, error)

func (f toggleFunc) Handle(ctx context.Context, id string, enabled bool) (*student.Student, error) {
	return f(ctx, id, enabled)
}

type syncFunc func(ctx context.Context, id string) (*command.SyncReport, error)

func (f syncFunc) Handle(ctx context.Context, id string) (*command.SyncReport, error) {
	return f(ctx, id)
}

type fakeProblems struct {
	calls []int
}

func (f *fakeProblems) Handle(_ context.Context, _ string, days int) (*stats.ProblemSummary, error) {
	f.calls = append(f.calls, days)
	maxRating := 1500
	return &stats.ProblemSummary{
		TotalSolved: days + 1,
		MaxRating:   &maxRating,
		Daily: []stats.DailySubmissions{
			{Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), SubmissionCount: 3, AcceptedCount: 2},
		},
	}, nil
}

type fakeContests struct {
	days int
}

func (f *fakeContests) Handle(_ context.Context, _ string, days int) (*stats.ContestHistory, error) {
	f.days = days
	return &stats.ContestHistory{}, nil
}

func testStudent(t *testing.T) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:               uuid.NewString(),
		Name:             "Tourist",
		Email:            "tourist@example.com",
		CodeforcesHandle: "tourist",
	})
	require.NoError(t, err)
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestStudentHandler_ListClampsPaging(t *testing.T) {
	lister := &fakeLister{students: []*student.Student{testStudent(t)}}
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{List: lister}).RegisterRoutes)

	rec, env := do(t, h, http.MethodGet, "/students?page=0&limit=1000&search=tour", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, query.ListStudentsQuery{Page: DefaultPage, Limit: DefaultPageLimit, Search: "tour"}, lister.lastQuery)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)

	var list []StudentDTO
	decodeData(t, env, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "tourist", list[0].CodeforcesHandle)
}

func TestStudentHandler_GetInvalidID(t *testing.T) {
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{List: &fakeLister{}}).RegisterRoutes)

	rec, env := do(t, h, http.MethodGet, "/students/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_id", env.Error.Code)
}

func TestStudentHandler_GetNotFound(t *testing.T) {
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{List: &fakeLister{}}).RegisterRoutes)

	rec, _ := do(t, h, http.MethodGet, "/students/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentHandler_Add(t *testing.T) {
	var got command.AddStudentCommand
	add := addFunc(func(_ context.Context, cmd command.AddStudentCommand) (*student.Student, error) {
		got = cmd
		return student.NewStudent(student.NewStudentParams{
			ID:               uuid.NewString(),
			Name:             cmd.Name,
			Email:            cmd.Email,
			CodeforcesHandle: cmd.CodeforcesHandle,
		})
	})
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Add: add}).RegisterRoutes)

	rec, env := do(t, h, http.MethodPost, "/students", map[string]any{
		"name":             "Petr",
		"email":            "petr@example.com",
		"phoneNumber":      "+1 555 0100",
		"codeforcesHandle": "Petr",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "+1 555 0100", got.Phone)

	var dto StudentDTO
	decodeData(t, env, &dto)
	assert.Equal(t, "Petr", dto.Name)
	assert.True(t, dto.EmailReminderEnabled)
}

func TestStudentHandler_AddValidation(t *testing.T) {
	called := false
	add := addFunc(func(context.Context, command.AddStudentCommand) (*student.Student, error) {
		called = true
		return nil, nil
	})
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Add: add}).RegisterRoutes)

	rec, env := do(t, h, http.MethodPost, "/students", map[string]any{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
	require.NotNil(t, env.Error)
	assert.Equal(t, map[string]string{"name": "required", "email": "email"}, env.Error.Fields)
}

func TestStudentHandler_AddMalformedJSON(t *testing.T) {
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{}).RegisterRoutes)

	rec, env := do(t, h, http.MethodPost, "/students", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", env.Error.Code)
}

func TestStudentHandler_AddDuplicateEmail(t *testing.T) {
	add := addFunc(func(context.Context, command.AddStudentCommand) (*student.Student, error) {
		return nil, shared.ErrEmailTaken
	})
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Add: add}).RegisterRoutes)

	rec, env := do(t, h, http.MethodPost, "/students", map[string]any{"name": "A", "email": "a@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, env.Error.Message, "email already in use")
}

func TestStudentHandler_ProblemsAllPeriods(t *testing.T) {
	problems := &fakeProblems{}
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Problems: problems}).RegisterRoutes)

	rec, env := do(t, h, http.MethodGet, "/students/"+uuid.NewString()+"/problems", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ProblemStatsPeriods, problems.calls)

	var out []ProblemStatsDTO
	decodeData(t, env, &out)
	require.Len(t, out, len(ProblemStatsPeriods))
	for i, days := range ProblemStatsPeriods {
		assert.Equal(t, days, out[i].Days)
	}
	assert.Len(t, out[0].RatingDistribution, stats.BucketCount)
	require.Len(t, out[0].DailySubmissions, 1)
	assert.Equal(t, "2024-03-09", out[0].DailySubmissions[0].Date)
}

func TestStudentHandler_ProblemsSinglePeriod(t *testing.T) {
	problems := &fakeProblems{}
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Problems: problems}).RegisterRoutes)

	rec, env := do(t, h, http.MethodGet, "/students/"+uuid.NewString()+"/problems?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{7}, problems.calls)

	var out ProblemStatsDTO
	decodeData(t, env, &out)
	assert.Equal(t, 7, out.Days)
	assert.Equal(t, 8, out.TotalSolved)
}

func TestStudentHandler_ContestsDefaultDays(t *testing.T) {
	contests := &fakeContests{}
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Contests: contests}).RegisterRoutes)

	rec, env := do(t, h, http.MethodGet, "/students/"+uuid.NewString()+"/contests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultContestsDays, contests.days)

	var out ContestHistoryDTO
	decodeData(t, env, &out)
	assert.Equal(t, DefaultContestsDays, out.Days)
	assert.NotNil(t, out.Contests)
}

func TestStudentHandler_ToggleRemindersRequiresFlag(t *testing.T) {
	called := false
	toggle := toggleFunc(func(context.Context, string, bool) (*student.Student, error) {
		called = true
		return nil, nil
	})
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Reminders: toggle}).RegisterRoutes)

	rec, env := do(t, h, http.MethodPut, "/students/"+uuid.NewString()+"/email-reminders", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "required", env.Error.Fields["enabled"])
}

func TestStudentHandler_ToggleRemindersOff(t *testing.T) {
	s := testStudent(t)
	toggle := toggleFunc(func(_ context.Context, id string, enabled bool) (*student.Student, error) {
		assert.Equal(t, s.ID, id)
		s.EmailReminderEnabled = enabled
		return s, nil
	})
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Reminders: toggle}).RegisterRoutes)

	rec, env := do(t, h, http.MethodPut, "/students/"+s.ID+"/email-reminders", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)

	var dto StudentDTO
	decodeData(t, env, &dto)
	assert.False(t, dto.EmailReminderEnabled)
}

func TestStudentHandler_SyncInProgress(t *testing.T) {
	syncer := syncFunc(func(context.Context, string) (*command.SyncReport, error) {
		return nil, shared.ErrSyncInProgress
	})
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Sync: syncer}).RegisterRoutes)

	rec, env := do(t, h, http.MethodPost, "/students/"+uuid.NewString()+"/sync", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", env.Error.Code)
}

func TestStudentHandler_SyncMissingHandle(t *testing.T) {
	syncer := syncFunc(func(context.Context, string) (*command.SyncReport, error) {
		return nil, shared.ErrMissingHandle
	})
	h := newTestRouter(NewStudentHandler(StudentHandlerDeps{Sync: syncer}).RegisterRoutes)

	rec, _ := do(t, h, http.MethodPost, "/students/"+uuid.NewString()+"/sync", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
