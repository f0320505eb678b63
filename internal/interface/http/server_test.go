package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/command"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/query"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/scheduler"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/interface/http/handlers"
)

type stubEmails struct{}

func (stubEmails) Template(context.Context) (*notification.Template, error) {
	t := notification.DefaultReminderTemplate()
	return &t, nil
}

func (stubEmails) History(context.Context, string) (*query.EmailHistory, error) {
	return &query.EmailHistory{}, nil
}

func (stubEmails) Stats(context.Context) (*notification.Stats, error) {
	return &notification.Stats{}, nil
}

func (stubEmails) Handle(_ context.Context, cmd command.UpdateEmailTemplateCommand) (*notification.Template, error) {
	return &notification.Template{Name: cmd.Name, Subject: cmd.Subject, Body: cmd.Body}, nil
}

type stubJobs struct{}

func (stubJobs) ListJobs() []scheduler.JobInfo                      { return nil }
func (stubJobs) Trigger(context.Context, string) error              { return nil }
func (stubJobs) Update(context.Context, string, string, bool) error { return nil }
func (stubJobs) Enable(context.Context, string) error               { return nil }
func (stubJobs) Disable(context.Context, string) error              { return nil }

func newTestServer() *Server {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"http://localhost:3000"}

	return NewServer(cfg, Dependencies{
		Health:  handlers.NewHealthHandler(handlers.NewCompositeHealthChecker("test")),
		Cron:    handlers.NewCronHandler(stubJobs{}, nil),
		Student: handlers.NewStudentHandler(handlers.StudentHandlerDeps{}),
		Email:   handlers.NewEmailHandler(stubEmails{}, stubEmails{}),
	})
}

func TestServer_Routes(t *testing.T) {
	h := newTestServer().Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/live", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/cron/configs", http.StatusOK},
		{http.MethodGet, "/api/student/emailTemplate", http.StatusOK},
		{http.MethodGet, "/api/student/emailStats", http.StatusOK},
		{http.MethodGet, "/api/student/students/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_ResponseHeaders(t *testing.T) {
	h := newTestServer().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newTestServer().Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/student/students", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/student/students", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ShutdownWhenNotRunning(t *testing.T) {
	s := newTestServer()
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, "0.0.0.0:8080", s.Address())
}
