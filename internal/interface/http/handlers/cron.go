package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/scheduler"
)

// JobScheduler is the subset of *scheduler.Scheduler used by the cron API.
type JobScheduler interface {
	ListJobs() []scheduler.JobInfo
	Trigger(ctx context.Context, name string) error
	Update(ctx context.Context, name, expr string, enabled bool) error
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
}

// CronHandler exposes job configuration and manual triggers under /api/cron.
type CronHandler struct {
	scheduler JobScheduler
	logger    *slog.Logger
}

// NewCronHandler creates a CronHandler.
func NewCronHandler(s JobScheduler, logger *slog.Logger) *CronHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronHandler{scheduler: s, logger: logger}
}

// RegisterRoutes mounts the cron endpoints on r.
func (h *CronHandler) RegisterRoutes(r chi.Router) {
	r.Get("/configs", h.listConfigs)
	r.Put("/{jobName}", h.updateConfig)
	r.Post("/{jobName}/enable", h.enable)
	r.Post("/{jobName}/disable", h.disable)
	r.Post("/{jobName}/trigger", h.trigger)
}

func (h *CronHandler) listConfigs(w http.ResponseWriter, r *http.Request) {
	jobs := h.scheduler.ListJobs()
	out := make([]CronJobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toCronJobDTO(j))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *CronHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "jobName")

	var req UpdateCronRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	info, ok := h.find(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("job %s not found", name))
		return
	}
	enabled := info.Config.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	if err := h.scheduler.Update(r.Context(), name, req.CronExpression, enabled); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, fmt.Sprintf("Cron job %s updated successfully", name))
}

func (h *CronHandler) enable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "jobName")
	if err := h.scheduler.Enable(r.Context(), name); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, fmt.Sprintf("Cron job %s enabled successfully", name))
}

func (h *CronHandler) disable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "jobName")
	if err := h.scheduler.Disable(r.Context(), name); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, fmt.Sprintf("Cron job %s disabled successfully", name))
}

// trigger runs the job in the background and answers 202; with ?wait=true it
// runs synchronously and reports the job's error.
func (h *CronHandler) trigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "jobName")
	if _, ok := h.find(name); !ok {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("job %s not found", name))
		return
	}

	// Detached from the request; Scheduler.Stop still cancels and awaits it.
	ctx := context.WithoutCancel(r.Context())

	if r.URL.Query().Get("wait") == "true" {
		if err := h.scheduler.Trigger(ctx, name); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeMessage(w, r, http.StatusOK, fmt.Sprintf("Cron job %s completed successfully", name))
		return
	}

	go func() {
		if err := h.scheduler.Trigger(ctx, name); err != nil {
			h.logger.Error("background job failed", "job", name, "error", err)
		}
	}()
	writeMessage(w, r, http.StatusAccepted, fmt.Sprintf("Cron job %s triggered successfully", name))
}

func (h *CronHandler) find(name string) (scheduler.JobInfo, bool) {
	for _, j := range h.scheduler.ListJobs() {
		if j.Name == name {
			return j, true
		}
	}
	return scheduler.JobInfo{}, false
}
