package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", shared.ErrStudentNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", shared.ErrCronJobNotFound), http.StatusNotFound},
		{"already exists", shared.ErrHandleTaken, http.StatusConflict},
		{"in progress", shared.ErrSyncInProgress, http.StatusConflict},
		{"validation", shared.ErrNameRequired, http.StatusBadRequest},
		{"invalid format", shared.ErrInvalidCronExpression, http.StatusBadRequest},
		{"circuit open", shared.ErrJudgeUnavailable, http.StatusServiceUnavailable},
		{"upstream", shared.ErrEmailFailed, http.StatusBadGateway},
		{"timeout", shared.ErrJudgeTimeout, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpStatusFromError(tt.err))
		})
	}
}

func TestWriteDomainError_HidesInternalMessage(t *testing.T) {
	h := newTestRouter(func(r chi.Router) {
		r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
			writeDomainError(w, r, errors.New("pq: password authentication failed"))
		})
	})

	rec, env := do(t, h, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_server_error", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "password")
	assert.NotEmpty(t, env.Meta.RequestID)
}

func TestNotFound(t *testing.T) {
	h := newTestRouter(func(r chi.Router) {
		r.NotFound(NotFound)
	})

	rec, env := do(t, h, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route GET /nowhere not found", env.Error.Message)
}
