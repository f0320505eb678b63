package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/command"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/query"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
)

type EmailReader interface {
	Template(ctx context.Context) (*notification.Template, error)
	History(ctx context.Context, studentID string) (*query.EmailHistory, error)
	Stats(ctx context.Context) (*notification.Stats, error)
}

type TemplateUpdater interface {
	Handle(ctx context.Context, cmd command.UpdateEmailTemplateCommand) (*notification.Template, error)
}

// EmailHandler serves the reminder template, email history and delivery stats.
type EmailHandler struct {
	reader  EmailReader
	updater TemplateUpdater
}

// NewEmailHandler creates an EmailHandler.
func NewEmailHandler(reader EmailReader, updater TemplateUpdater) *EmailHandler {
	return &EmailHandler{reader: reader, updater: updater}
}

// RegisterRoutes mounts the email endpoints on r, next to the student routes.
func (h *EmailHandler) RegisterRoutes(r chi.Router) {
	r.Get("/emailTemplate", h.getTemplate)
	r.Put("/emailTemplate", h.updateTemplate)
	r.Get("/emailStats", h.stats)
	r.Get("/students/{studentId}/emails", h.history)
}

func (h *EmailHandler) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.reader.Template(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTemplateDTO(t))
}

func (h *EmailHandler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req UpdateTemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	t, err := h.updater.Handle(r.Context(), command.UpdateEmailTemplateCommand{
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTemplateDTO(t))
}

func (h *EmailHandler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}
	hist, err := h.reader.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEmailHistoryDTO(hist))
}

func (h *EmailHandler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.reader.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEmailStatsDTO(s))
}
