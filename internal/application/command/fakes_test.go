package command

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ─────────────────────────────────────────────────────────────────────────────
// student.Repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeStudents struct {
	mu        sync.Mutex
	byID      map[string]*student.Student
	order     []string
	summaries map[string]student.SyncSummary
	reminders map[string]int
}

func newFakeStudents(students ...*student.Student) *fakeStudents {
	f := &fakeStudents{
		byID:      map[string]*student.Student{},
		summaries: map[string]student.SyncSummary{},
		reminders: map[string]int{},
	}
	for _, s := range students {
		f.byID[s.ID] = s
		f.order = append(f.order, s.ID)
	}
	return f
}

func (f *fakeStudents) Create(_ context.Context, s *student.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[s.ID]; ok {
		return shared.ErrStudentAlreadyExists
	}
	cp := *s
	f.byID[s.ID] = &cp
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeStudents) GetByID(_ context.Context, id string) (*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudents) Update(_ context.Context, s *student.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[s.ID]; !ok {
		return shared.ErrStudentNotFound
	}
	cp := *s
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeStudents) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return shared.ErrStudentNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeStudents) all() []*student.Student {
	var out []*student.Student
	for _, id := range f.order {
		if s, ok := f.byID[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeStudents) List(_ context.Context, opts student.ListOptions) ([]*student.Student, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.all()
	return all, len(all), nil
}

// ListWithHandle returns every student; callers must still skip empty handles.
func (f *fakeStudents) ListWithHandle(_ context.Context) ([]*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all(), nil
}

func (f *fakeStudents) FindInactive(_ context.Context, cutoff time.Time) ([]*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*student.Student
	for _, s := range f.all() {
		if s.EmailReminderEnabled && s.IsInactiveSince(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStudents) exists(match func(*student.Student) bool, excludeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.byID {
		if id != excludeID && match(s) {
			return true
		}
	}
	return false
}

func (f *fakeStudents) ExistsByEmail(_ context.Context, v, excludeID string) (bool, error) {
	return f.exists(func(s *student.Student) bool { return strings.EqualFold(s.Email, v) }, excludeID), nil
}

func (f *fakeStudents) ExistsByPhone(_ context.Context, v, excludeID string) (bool, error) {
	return f.exists(func(s *student.Student) bool { return s.Phone == v }, excludeID), nil
}

func (f *fakeStudents) ExistsByHandle(_ context.Context, v, excludeID string) (bool, error) {
	return f.exists(func(s *student.Student) bool { return strings.EqualFold(s.CodeforcesHandle, v) }, excludeID), nil
}

func (f *fakeStudents) ApplySyncSummary(_ context.Context, id string, sum student.SyncSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return shared.ErrStudentNotFound
	}
	s.Apply(sum)
	f.summaries[id] = sum
	return nil
}

func (f *fakeStudents) UpdateHandle(_ context.Context, id, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return shared.ErrStudentNotFound
	}
	s.CodeforcesHandle = handle
	return nil
}

func (f *fakeStudents) IncrementReminderCount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return shared.ErrStudentNotFound
	}
	s.ReminderEmailCount++
	f.reminders[id]++
	return nil
}

func (f *fakeStudents) SetEmailReminders(_ context.Context, id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return shared.ErrStudentNotFound
	}
	s.EmailReminderEnabled = enabled
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// student.AggregateWriter
// ─────────────────────────────────────────────────────────────────────────────

type fakeAggregates struct {
	mu       sync.Mutex
	contests map[string][]stats.ContestSummary
	daily    map[string]stats.DailyResult
	calls    []string
}

func newFakeAggregates() *fakeAggregates {
	return &fakeAggregates{
		contests: map[string][]stats.ContestSummary{},
		daily:    map[string]stats.DailyResult{},
	}
}

func (f *fakeAggregates) ReplaceContests(_ context.Context, id string, rows []stats.ContestSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contests[id] = rows
	f.calls = append(f.calls, "contests:"+id)
	return nil
}

func (f *fakeAggregates) ReplaceDailyStats(_ context.Context, id string, r stats.DailyResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daily[id] = r
	f.calls = append(f.calls, "daily:"+id)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// JudgeClient
// ─────────────────────────────────────────────────────────────────────────────

type fakeJudge struct {
	profile     *judge.Profile
	profileErr  error
	submissions []judge.Submission
	ratings     []judge.RatingChange

	// onFetch runs after the list fetches.
	onFetch func()

	calls atomic.Int32
}

func (f *fakeJudge) FetchUserProfile(_ context.Context, handle string) (*judge.Profile, error) {
	f.calls.Add(1)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p := *f.profile
	p.Handle = handle
	return &p, nil
}

func (f *fakeJudge) FetchSubmissions(_ context.Context, _ string) []judge.Submission {
	return f.submissions
}

func (f *fakeJudge) FetchRatingHistory(_ context.Context, _ string) []judge.RatingChange {
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.ratings
}

// ─────────────────────────────────────────────────────────────────────────────
// StudentSyncer
// ─────────────────────────────────────────────────────────────────────────────

type fakeSyncer struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]error
	failAll  error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSyncer) Handle(_ context.Context, id string) (*SyncReport, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, id)
	err := f.failFor[id]
	if err == nil {
		err = f.failAll
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &SyncReport{StudentID: id}, nil
}

func (f *fakeSyncer) sortedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Email collaborators
// ─────────────────────────────────────────────────────────────────────────────

type fakeSender struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg notification.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeEmailLogs struct {
	mu   sync.Mutex
	logs []notification.EmailLog
}

func (f *fakeEmailLogs) Append(_ context.Context, l notification.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeEmailLogs) ListByStudent(_ context.Context, id string, limit int) ([]notification.EmailLog, error) {
	return nil, errors.New("not used")
}

func (f *fakeEmailLogs) CountByStudentKind(_ context.Context, id string, kind notification.Kind) (int, error) {
	return 0, errors.New("not used")
}

func (f *fakeEmailLogs) Stats(_ context.Context, recent int) (*notification.Stats, error) {
	return nil, errors.New("not used")
}

type fakeTemplates struct {
	stored *notification.Template
}

func (f *fakeTemplates) Latest(_ context.Context) (*notification.Template, error) {
	if f.stored == nil {
		return nil, shared.NewDomainError("email", "LatestTemplate", shared.ErrNotFound, "no email template stored")
	}
	cp := *f.stored
	return &cp, nil
}

func (f *fakeTemplates) Replace(_ context.Context, t notification.Template) (*notification.Template, error) {
	t.ID = "tmpl-1"
	f.stored = &t
	return &t, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func intPtr(v int) *int { return &v }

func newTestStudent(id, name, handle string) *student.Student {
	return &student.Student{
		ID:                   id,
		Name:                 name,
		CodeforcesHandle:     handle,
		EmailReminderEnabled: true,
	}
}
