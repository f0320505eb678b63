package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
	Error   *APIError     `json:"error,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId,omitempty"`
	Total      int       `json:"total,omitempty"`
	Page       int       `json:"page,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	TotalPages int       `json:"totalPages,omitempty"`
}

func newMeta(r *http.Request) *ResponseMeta {
	return &ResponseMeta{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetReqID(r.Context()),
	}
}

func writeEnvelope(w http.ResponseWriter, status int, resp JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a successful response with data.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, JSONResponse{Success: true, Data: data, Meta: newMeta(r)})
}

// writeMessage writes a successful response that carries only a message.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(w, status, JSONResponse{Success: true, Message: message, Meta: newMeta(r)})
}

// writePage writes a paginated list.
func writePage(w http.ResponseWriter, r *http.Request, data any, total, page, limit, totalPages int) {
	meta := newMeta(r)
	meta.Total, meta.Page, meta.Limit, meta.TotalPages = total, page, limit, totalPages
	writeEnvelope(w, http.StatusOK, JSONResponse{Success: true, Data: data, Meta: meta})
}

// writeError writes an error response with an explicit status.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, JSONResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    newMeta(r),
	})
}

// NotFound answers unmatched routes with the standard error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, errorCode(http.StatusNotFound),
		"route "+r.Method+" "+r.URL.Path+" not found")
}

// writeDomainError maps err to a status code and writes it.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	writeError(w, r, status, errorCode(status), message)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// httpStatusFromError maps domain error kinds to HTTP status codes.
func httpStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case shared.IsNotFound(err):
		return http.StatusNotFound
	case shared.IsAlreadyExists(err), shared.IsConflict(err):
		return http.StatusConflict
	case shared.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case shared.IsExternalService(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusBadGateway:
		return "upstream_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_server_error"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// maxBodyBytes bounds every JSON body.
const maxBodyBytes = 1 << 20

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// On failure it writes a 400 response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "Invalid request body: "+err.Error())
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			writeError(w, r, http.StatusBadRequest, "validation_failed", err.Error())
			return false
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		writeEnvelope(w, http.StatusBadRequest, JSONResponse{
			Success: false,
			Error:   &APIError{Code: "validation_failed", Message: "Request validation failed", Fields: fields},
			Meta:    newMeta(r),
		})
		return false
	}
	return true
}

// studentIDParam returns the {studentId} URL parameter if it is a UUID.
func studentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "studentId")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", fmt.Sprintf("invalid student id %q", id))
		return "", false
	}
	return id, true
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
