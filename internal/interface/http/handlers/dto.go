package handlers

import (
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/command"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/query"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/stats"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/student"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/scheduler"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// StudentRequest is the body of POST /students and PUT /students/{id}/update.
type StudentRequest struct {
	Name             string `json:"name" validate:"required,max=200"`
	Email            string `json:"email" validate:"omitempty,email,max=320"`
	PhoneNumber      string `json:"phoneNumber" validate:"omitempty,max=32"`
	CodeforcesHandle string `json:"codeforcesHandle" validate:"omitempty,max=24"`
}

// UpdateHandleRequest is the body of PUT /students/{id}/codeforces.
type UpdateHandleRequest struct {
	CodeforcesHandle string `json:"codeforcesHandle" validate:"required,max=24"`
}

// ToggleRemindersRequest is the body of PUT /students/{id}/email-reminders.
type ToggleRemindersRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// UpdateTemplateRequest is the body of PUT /emailTemplate. Empty fields get defaults.
type UpdateTemplateRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Subject string `json:"subject" validate:"max=500"`
	Body    string `json:"body"`
}

// UpdateCronRequest is the body of PUT /cron/{jobName}.
// A missing enabled flag keeps the current value.
type UpdateCronRequest struct {
	CronExpression string `json:"cronExpression" validate:"required"`
	Enabled        *bool  `json:"enabled"`
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// StudentDTO is the public view of a student.
type StudentDTO struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email,omitempty"`
	PhoneNumber          string     `json:"phoneNumber,omitempty"`
	CodeforcesHandle     string     `json:"codeforcesHandle,omitempty"`
	CurrentRating        int        `json:"currentRating"`
	MaxRating            int        `json:"maxRating"`
	Rank                 string     `json:"rank,omitempty"`
	MaxRank              string     `json:"maxRank,omitempty"`
	TitlePhoto           string     `json:"titlePhoto,omitempty"`
	LastDataUpdate       *time.Time `json:"lastDataUpdate"`
	LastSubmissionDate   *time.Time `json:"lastSubmissionDate"`
	ReminderEmailCount   int        `json:"reminderEmailCount"`
	EmailReminderEnabled bool       `json:"emailReminderEnabled"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func toStudentDTO(s *student.Student) StudentDTO {
	return StudentDTO{
		ID:                   s.ID,
		Name:                 s.Name,
		Email:                s.Email,
		PhoneNumber:          s.Phone,
		CodeforcesHandle:     s.CodeforcesHandle,
		CurrentRating:        s.CurrentRating,
		MaxRating:            s.MaxRating,
		Rank:                 s.Rank,
		MaxRank:              s.MaxRank,
		TitlePhoto:           s.TitlePhoto,
		LastDataUpdate:       s.LastDataUpdate,
		LastSubmissionDate:   s.LastSubmissionDate,
		ReminderEmailCount:   s.ReminderEmailCount,
		EmailReminderEnabled: s.EmailReminderEnabled,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func toStudentDTOs(list []*student.Student) []StudentDTO {
	out := make([]StudentDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toStudentDTO(s))
	}
	return out
}

// UpdateStudentResponse reports an update and the sync it may have triggered.
type UpdateStudentResponse struct {
	Student   StudentDTO `json:"student"`
	Synced    bool       `json:"synced"`
	SyncError string     `json:"syncError,omitempty"`
}

func toUpdateStudentResponse(r *command.UpdateStudentResult) UpdateStudentResponse {
	return UpdateStudentResponse{
		Student:   toStudentDTO(r.Student),
		Synced:    r.Synced,
		SyncError: r.SyncError,
	}
}

// SyncReportDTO summarizes one completed sync.
type SyncReportDTO struct {
	StudentID     string    `json:"studentId"`
	Handle        string    `json:"codeforcesHandle"`
	Submissions   int       `json:"submissions"`
	RatingChanges int       `json:"ratingChanges"`
	Contests      int       `json:"contests"`
	ProblemDays   int       `json:"problemDays"`
	HeatmapDays   int       `json:"heatmapDays"`
	CurrentRating int       `json:"currentRating"`
	SyncedAt      time.Time `json:"syncedAt"`
	DurationMs    int64     `json:"durationMs"`
}

func toSyncReportDTO(r *command.SyncReport) SyncReportDTO {
	return SyncReportDTO{
		StudentID:     r.StudentID,
		Handle:        r.Handle,
		Submissions:   r.Submissions,
		RatingChanges: r.RatingChanges,
		Contests:      r.Contests,
		ProblemDays:   r.ProblemDays,
		HeatmapDays:   r.HeatmapDays,
		CurrentRating: r.CurrentRating,
		SyncedAt:      r.SyncedAt,
		DurationMs:    r.Duration.Milliseconds(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// ContestDTO is one rated contest.
type ContestDTO struct {
	ContestID        int       `json:"contestId"`
	ContestName      string    `json:"contestName"`
	Rank             int       `json:"rank"`
	OldRating        int       `json:"oldRating"`
	NewRating        int       `json:"newRating"`
	RatingChange     int       `json:"ratingChange"`
	ContestTime      time.Time `json:"contestTime"`
	TotalProblems    int       `json:"totalProblems"`
	ProblemsSolved   int       `json:"problemsSolved"`
	UnsolvedProblems int       `json:"unsolvedProblems"`
	HardestProblem   string    `json:"hardestProblem,omitempty"`
	HardestRating    *int      `json:"hardestRating"`
}

// RatingPointDTO is one point of the rating graph.
type RatingPointDTO struct {
	Date   time.Time `json:"date"`
	Rating int       `json:"rating"`
}

// ContestHistoryDTO is the response of GET /students/{id}/contests.
type ContestHistoryDTO struct {
	Days                int              `json:"days"`
	Contests            []ContestDTO     `json:"contests"`
	RatingGraph         []RatingPointDTO `json:"ratingGraph"`
	TotalContests       int              `json:"totalContests"`
	AverageRatingChange float64          `json:"averageRatingChange"`
}

func toContestHistoryDTO(days int, h *stats.ContestHistory) ContestHistoryDTO {
	dto := ContestHistoryDTO{
		Days:                days,
		Contests:            make([]ContestDTO, 0, len(h.Contests)),
		RatingGraph:         make([]RatingPointDTO, 0, len(h.Series)),
		TotalContests:       h.TotalContests,
		AverageRatingChange: h.AverageChange,
	}
	for _, c := range h.Contests {
		dto.Contests = append(dto.Contests, ContestDTO{
			ContestID:        c.ContestID,
			ContestName:      c.ContestName,
			Rank:             c.Rank,
			OldRating:        c.OldRating,
			NewRating:        c.NewRating,
			RatingChange:     c.RatingChange,
			ContestTime:      c.ContestTime,
			TotalProblems:    c.TotalProblems,
			ProblemsSolved:   c.ProblemsSolved,
			UnsolvedProblems: c.TotalProblems - c.ProblemsSolved,
			HardestProblem:   c.HardestProblem,
			HardestRating:    c.HardestRating,
		})
	}
	for _, p := range h.Series {
		dto.RatingGraph = append(dto.RatingGraph, RatingPointDTO{Date: p.Date, Rating: p.Rating})
	}
	return dto
}

// DailySubmissionsDTO is one heatmap cell.
type DailySubmissionsDTO struct {
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Accepted int    `json:"accepted"`
}

// ProblemStatsDTO is one period of GET /students/{id}/problems.
type ProblemStatsDTO struct {
	Days               int                   `json:"days"`
	TotalSolved        int                   `json:"totalSolved"`
	MaxRating          *int                  `json:"maxRating"`
	AvgRating          *float64              `json:"avgRating"`
	AvgPerDay          float64               `json:"avgPerDay"`
	RatingDistribution map[string]int        `json:"ratingDistribution"`
	DailySubmissions   []DailySubmissionsDTO `json:"dailySubmissions"`
}

func toProblemStatsDTO(days int, s *stats.ProblemSummary) ProblemStatsDTO {
	dto := ProblemStatsDTO{
		Days:               days,
		TotalSolved:        s.TotalSolved,
		MaxRating:          s.MaxRating,
		AvgRating:          s.AvgRating,
		AvgPerDay:          s.AvgPerDay,
		RatingDistribution: s.Distribution.Map(),
		DailySubmissions:   make([]DailySubmissionsDTO, 0, len(s.Daily)),
	}
	for _, d := range s.Daily {
		dto.DailySubmissions = append(dto.DailySubmissions, DailySubmissionsDTO{
			Date:     timeutil.FormatDateStr(d.Date),
			Count:    d.SubmissionCount,
			Accepted: d.AcceptedCount,
		})
	}
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// EmailLogDTO is one delivery attempt.
type EmailLogDTO struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"studentId"`
	EmailType    string    `json:"emailType"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	SentAt       time.Time `json:"sentAt"`
	StudentName  string    `json:"studentName,omitempty"`
	StudentEmail string    `json:"studentEmail,omitempty"`
}

func toEmailLogDTOs(logs []notification.EmailLog) []EmailLogDTO {
	out := make([]EmailLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, EmailLogDTO{
			ID:           l.ID,
			StudentID:    l.StudentID,
			EmailType:    string(l.Kind),
			Success:      l.Success,
			ErrorMessage: l.ErrorMessage,
			SentAt:       l.SentAt,
			StudentName:  l.StudentName,
			StudentEmail: l.StudentEmail,
		})
	}
	return out
}

// EmailHistoryDTO is the response of GET /students/{id}/emails.
type EmailHistoryDTO struct {
	Logs           []EmailLogDTO `json:"emailLogs"`
	TotalReminders int           `json:"totalReminders"`
}

func toEmailHistoryDTO(h *query.EmailHistory) EmailHistoryDTO {
	return EmailHistoryDTO{Logs: toEmailLogDTOs(h.Logs), TotalReminders: h.TotalReminders}
}

// EmailStatsDTO is the response of GET /emailStats.
type EmailStatsDTO struct {
	TotalEmails      int           `json:"totalEmails"`
	SuccessfulEmails int           `json:"successfulEmails"`
	FailedEmails     int           `json:"failedEmails"`
	ReminderEmails   int           `json:"reminderEmails"`
	SuccessRate      float64       `json:"successRate"`
	RecentEmails     []EmailLogDTO `json:"recentEmails"`
}

func toEmailStatsDTO(s *notification.Stats) EmailStatsDTO {
	return EmailStatsDTO{
		TotalEmails:      s.Total,
		SuccessfulEmails: s.Successful,
		FailedEmails:     s.Failed,
		ReminderEmails:   s.Reminders,
		SuccessRate:      s.SuccessRate,
		RecentEmails:     toEmailLogDTOs(s.Recent),
	}
}

// TemplateDTO is the reminder template.
type TemplateDTO struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func toTemplateDTO(t *notification.Template) TemplateDTO {
	dto := TemplateDTO{ID: t.ID, Name: t.Name, Subject: t.Subject, Body: t.Body}
	if !t.UpdatedAt.IsZero() {
		updated := t.UpdatedAt
		dto.UpdatedAt = &updated
	}
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// JobResultDTO is the outcome of the last run.
type JobResultDTO struct {
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// CronJobDTO is one entry of GET /cron/configs.
type CronJobDTO struct {
	Name           string        `json:"jobName"`
	Description    string        `json:"description"`
	CronExpression string        `json:"cronExpression"`
	Enabled        bool          `json:"enabled"`
	LastRun        *time.Time    `json:"lastRun"`
	NextRun        *time.Time    `json:"nextRun"`
	Running        bool          `json:"running"`
	RunCount       int64         `json:"runCount"`
	FailCount      int64         `json:"failCount"`
	LastResult     *JobResultDTO `json:"lastResult,omitempty"`
}

func toCronJobDTO(info scheduler.JobInfo) CronJobDTO {
	dto := CronJobDTO{
		Name:           info.Name,
		Description:    info.Description,
		CronExpression: info.Config.CronExpression,
		Enabled:        info.Config.Enabled,
		LastRun:        info.Config.LastRun,
		NextRun:        info.Config.NextRun,
		Running:        info.Running,
		RunCount:       info.RunCount,
		FailCount:      info.FailCount,
	}
	if r := info.LastResult; r != nil {
		dto.LastResult = &JobResultDTO{
			Trigger:    r.Trigger,
			StartedAt:  r.StartedAt,
			DurationMs: r.Duration.Milliseconds(),
			Success:    r.Success,
		}
		if r.Error != nil {
			dto.LastResult.Error = r.Error.Error()
		}
	}
	return dto
}
