package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
)

// parser accepts the standard five fields plus descriptors such as @daily.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a parsed five-field cron expression.
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 2 * * *"    - every day at 02:00
//   - "0 0 * * 0"    - every Sunday at midnight
type Schedule struct {
	raw   string
	inner cron.Schedule
}

// ParseSchedule parses expr and evaluates it in loc (UTC when nil).
func ParseSchedule(expr string, loc *time.Location) (*Schedule, error) {
	raw := strings.TrimSpace(expr)
	inner, err := parser.Parse(raw)
	if err != nil {
		return nil, shared.WrapError("cronjob", "Parse", shared.ErrInvalidCronExpression,
			fmt.Sprintf("invalid cron expression %q", expr), err)
	}

	if loc == nil {
		loc = time.UTC
	}
	if s, ok := inner.(*cron.SpecSchedule); ok {
		s.Location = loc
	}

	return &Schedule{raw: raw, inner: inner}, nil
}

// ValidateExpression reports whether expr is an acceptable cron expression.
func ValidateExpression(expr string) error {
	_, err := ParseSchedule(expr, time.UTC)
	return err
}

// Next returns the first activation strictly after t.
func (s *Schedule) Next(t time.Time) time.Time {
	return s.inner.Next(t)
}

// String returns the expression as given.
func (s *Schedule) String() string {
	return s.raw
}
