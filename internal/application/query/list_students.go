// Package query contains read operations (CQRS - Queries).
// Queries never change state; they read students and the stored aggregates
// and fold them into response shapes.
package query

import (
	"context"
	"fmt"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentsQuery contains paging and search parameters.
type ListStudentsQuery struct {
	Page   int
	Limit  int
	Search string
}

// ListStudentsResult is one page of students.
type ListStudentsResult struct {
	Students   []*student.Student
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// ListStudentsHandler handles ListStudentsQuery and single-student lookups.
type ListStudentsHandler struct {
	students student.Repository
}

// NewListStudentsHandler creates a new ListStudentsHandler.
func NewListStudentsHandler(students student.Repository) *ListStudentsHandler {
	return &ListStudentsHandler{students: students}
}

// Handle returns the requested page, ordered by creation time.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) (*ListStudentsResult, error) {
	opts := student.ListOptions{Page: q.Page, Limit: q.Limit, Search: q.Search}.Normalize()

	students, total, err := h.students.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list_students: %w", err)
	}

	return &ListStudentsResult{
		Students:   students,
		Total:      total,
		Page:       opts.Page,
		Limit:      opts.Limit,
		TotalPages: (total + opts.Limit - 1) / opts.Limit,
	}, nil
}

// Get returns one student by ID.
func (h *ListStudentsHandler) Get(ctx context.Context, id string) (*student.Student, error) {
	return h.students.GetByID(ctx, id)
}
