// Package scheduler runs the named background jobs of the tracker
// (DATA_SYNC, INACTIVITY_CHECK) on cron expressions persisted in PostgreSQL.
// Each job is armed with a one-shot timer that is re-armed after every fire,
// and at most one run of a job is in flight at any moment.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/cronjob"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job, e.g. "DATA_SYNC".
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Trigger sources, used as a metrics label.
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	Trigger     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilJob is returned when trying to register a nil job.
	ErrNilJob = fmt.Errorf("job cannot be nil")

	// ErrJobAlreadyExists is returned when a job with the same name is registered twice.
	ErrJobAlreadyExists = fmt.Errorf("job already exists")

	// ErrJobNotFound is returned for a name that has no registered job.
	ErrJobNotFound = shared.NewDomainError("scheduler", "Find", shared.ErrNotFound, "job not found")

	// ErrJobAlreadyRunning is returned when a run of the same job is still in flight.
	ErrJobAlreadyRunning = shared.NewDomainError("scheduler", "Run", shared.ErrInProgress, "job is already running")

	// ErrSchedulerAlreadyRunning is returned when Start is called on a running scheduler.
	ErrSchedulerAlreadyRunning = fmt.Errorf("scheduler is already running")

	// ErrSchedulerNotRunning is returned when Stop is called on a stopped scheduler.
	ErrSchedulerNotRunning = fmt.Errorf("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	// Repository persists cron expressions and run timestamps.
	Repository cronjob.Repository

	// Defaults are seeded on Start for names that have no stored config.
	Defaults []cronjob.Config

	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location

	// JobTimeout bounds a single run (0 means unbounded).
	JobTimeout time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Defaults: cronjob.Defaults("", ""),
		Logger:   slog.Default(),
		Timezone: time.UTC,
		Now:      time.Now,
	}
}

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.Mutex

	repo       cronjob.Repository
	defaults   []cronjob.Config
	logger     *slog.Logger
	timezone   *time.Location
	jobTimeout time.Duration
	now        func() time.Time

	jobs    map[string]*scheduledJob
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	onJobStart    func(jobName string)
	onJobComplete func(result JobResult)
}

// scheduledJob wraps a Job with its persisted config and timer.
type scheduledJob struct {
	job        Job
	config     cronjob.Config
	timer      *time.Timer
	running    bool
	runCount   int64
	failCount  int64
	lastResult *JobResult
}

// NewScheduler creates a new Scheduler with the given configuration.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		repo:       cfg.Repository,
		defaults:   cfg.Defaults,
		logger:     cfg.Logger,
		timezone:   cfg.Timezone,
		jobTimeout: cfg.JobTimeout,
		now:        cfg.Now,
		jobs:       make(map[string]*scheduledJob),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job. Its schedule is loaded from the repository on Start.
func (s *Scheduler) Register(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	s.jobs[name] = &scheduledJob{
		job:    job,
		config: cronjob.Config{Name: name},
	}

	s.logger.Info("job registered", "job", name, "description", job.Description())
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start seeds default configs, loads the stored ones and arms enabled jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.mu.Unlock()

	now := s.now().In(s.timezone)
	for _, d := range s.defaults {
		if d.NextRun == nil && d.Enabled {
			if sched, err := ParseSchedule(d.CronExpression, s.timezone); err == nil {
				next := sched.Next(now)
				d.NextRun = &next
			}
		}
		if err := s.repo.CreateIfAbsent(ctx, d); err != nil {
			return fmt.Errorf("failed to seed job %s: %w", d.Name, err)
		}
	}

	configs, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load job configs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true

	for _, cfg := range configs {
		sj, ok := s.jobs[cfg.Name]
		if !ok {
			s.logger.Warn("stored config has no registered job", "job", cfg.Name)
			continue
		}
		sj.config = cfg
		if cfg.Enabled {
			s.armLocked(sj)
		}
	}

	s.logger.Info("scheduler started", "jobs_count", len(s.jobs))
	return nil
}

// Stop cancels all timers, cancels running jobs' context and waits for them.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	for _, sj := range s.jobs {
		s.disarmLocked(sj)
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMERS
// ══════════════════════════════════════════════════════════════════════════════

// armLocked schedules the next fire of sj. The caller holds s.mu.
func (s *Scheduler) armLocked(sj *scheduledJob) {
	s.disarmLocked(sj)

	sched, err := ParseSchedule(sj.config.CronExpression, s.timezone)
	if err != nil {
		s.logger.Error("job has invalid cron expression",
			"job", sj.config.Name,
			"expression", sj.config.CronExpression,
			"error", err,
		)
		return
	}

	now := s.now().In(s.timezone)
	next := sched.Next(now)
	sj.config.NextRun = &next

	name := sj.config.Name
	sj.timer = time.AfterFunc(next.Sub(now), func() { s.fire(name) })

	s.logger.Info("job scheduled", "job", name, "next_run", next.Format(time.RFC3339))
}

func (s *Scheduler) disarmLocked(sj *scheduledJob) {
	if sj.timer != nil {
		sj.timer.Stop()
		sj.timer = nil
	}
}

// fire runs a timer-triggered job and re-arms it. Errors are logged only.
func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	if !s.running || !ok {
		s.mu.Unlock()
		return
	}
	sj.timer = nil
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	if err := s.execute(ctx, sj, TriggerTimer); errors.Is(err, ErrJobAlreadyRunning) {
		s.logger.Warn("skipping scheduled run, previous run still in flight", "job", name)
	}

	s.mu.Lock()
	if s.running && sj.config.Enabled && sj.timer == nil {
		s.armLocked(sj)
	}
	s.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// execute runs sj once. lastRun is persisted at start and nextRun at completion.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, trigger string) error {
	name := sj.config.Name

	s.mu.Lock()
	if sj.running {
		s.mu.Unlock()
		metrics.JobRuns.WithLabelValues(name, trigger, metrics.ResultSkipped).Inc()
		return ErrJobAlreadyRunning
	}
	sj.running = true
	startedAt := s.now()
	sj.config.LastRun = &startedAt
	onStart := s.onJobStart
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		sj.running = false
		s.mu.Unlock()
	}()

	if onStart != nil {
		onStart(name)
	}
	if err := s.repo.MarkStarted(ctx, name, startedAt); err != nil {
		s.logger.Warn("failed to persist job start", "job", name, "error", err)
	}

	s.logger.Info("job started", "job", name, "trigger", trigger)

	runCtx := ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	err := sj.job.Run(runCtx)

	completedAt := s.now()
	result := JobResult{
		JobName:     name,
		Trigger:     trigger,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
	}

	metrics.JobRuns.WithLabelValues(name, trigger, metrics.Result(err)).Inc()
	metrics.JobDuration.WithLabelValues(name).Observe(result.Duration.Seconds())

	s.mu.Lock()
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	sj.lastResult = &result
	nextRun := s.nextRunLocked(sj, completedAt)
	sj.config.NextRun = nextRun
	onComplete := s.onJobComplete
	s.mu.Unlock()

	if perr := s.repo.MarkCompleted(context.WithoutCancel(ctx), name, nextRun); perr != nil {
		s.logger.Warn("failed to persist job completion", "job", name, "error", perr)
	}

	if err != nil {
		s.logger.Error("job failed",
			"job", name,
			"trigger", trigger,
			"duration", result.Duration.String(),
			"error", err,
		)
	} else {
		s.logger.Info("job completed",
			"job", name,
			"trigger", trigger,
			"duration", result.Duration.String(),
		)
	}

	if onComplete != nil {
		onComplete(result)
	}
	return err
}

// nextRunLocked is nil for a disabled job or an unparsable expression.
func (s *Scheduler) nextRunLocked(sj *scheduledJob, after time.Time) *time.Time {
	if !sj.config.Enabled {
		return nil
	}
	sched, err := ParseSchedule(sj.config.CronExpression, s.timezone)
	if err != nil {
		return nil
	}
	next := sched.Next(after.In(s.timezone))
	return &next
}

// ══════════════════════════════════════════════════════════════════════════════
// MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Trigger runs a job synchronously and returns its error.
// While the scheduler is running the run is cancelled by Stop, and Stop
// waits for it to return.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	sj, err := s.lookup(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.running {
		s.wg.Add(1)
		defer s.wg.Done()

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		defer context.AfterFunc(s.ctx, cancel)()
	}
	s.mu.Unlock()

	s.logger.Info("manual job execution requested", "job", name)
	return s.execute(ctx, sj, TriggerManual)
}

// Update validates expr, persists it with the enabled flag and re-arms the job.
// An invalid expression leaves both the stored and in-memory state untouched.
func (s *Scheduler) Update(ctx context.Context, name, expr string, enabled bool) error {
	sj, err := s.lookup(name)
	if err != nil {
		return err
	}

	sched, err := ParseSchedule(expr, s.timezone)
	if err != nil {
		return err
	}

	var nextRun *time.Time
	if enabled {
		next := sched.Next(s.now().In(s.timezone))
		nextRun = &next
	}

	if err := s.repo.Upsert(ctx, name, sched.String(), enabled, nextRun); err != nil {
		return fmt.Errorf("failed to update job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sj.config.CronExpression = sched.String()
	sj.config.Enabled = enabled
	sj.config.NextRun = nextRun

	s.disarmLocked(sj)
	if enabled && s.running {
		s.armLocked(sj)
	}

	s.logger.Info("job updated", "job", name, "expression", sched.String(), "enabled", enabled)
	return nil
}

// Enable turns a job on using its stored expression.
func (s *Scheduler) Enable(ctx context.Context, name string) error {
	sj, err := s.lookup(name)
	if err != nil {
		return err
	}

	cfg, err := s.repo.Get(ctx, name)
	if err != nil {
		return err
	}

	sched, err := ParseSchedule(cfg.CronExpression, s.timezone)
	if err != nil {
		return err
	}
	next := sched.Next(s.now().In(s.timezone))

	if err := s.repo.SetEnabled(ctx, name, true, &next); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sj.config = *cfg
	sj.config.Enabled = true
	sj.config.NextRun = &next
	if s.running {
		s.armLocked(sj)
	}

	s.logger.Info("job enabled", "job", name, "next_run", next.Format(time.RFC3339))
	return nil
}

// Disable turns a job off, clears its next run and cancels its timer.
func (s *Scheduler) Disable(ctx context.Context, name string) error {
	sj, err := s.lookup(name)
	if err != nil {
		return err
	}

	if err := s.repo.SetEnabled(ctx, name, false, nil); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked(sj)
	sj.config.Enabled = false
	sj.config.NextRun = nil

	s.logger.Info("job disabled", "job", name)
	return nil
}

func (s *Scheduler) lookup(name string) (*scheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[name]
	if !ok {
		return nil, shared.WrapError("scheduler", "Find", shared.ErrNotFound,
			fmt.Sprintf("job %s not found", name), ErrJobNotFound)
	}
	return sj, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string
	Description string
	Config      cronjob.Config
	Running     bool
	Scheduled   bool
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns all registered jobs ordered by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Config:      sj.config,
			Running:     sj.running,
			Scheduled:   sj.timer != nil,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
			LastResult:  sj.lastResult,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ══════════════════════════════════════════════════════════════════════════════
// HOOKS
// ══════════════════════════════════════════════════════════════════════════════

// OnJobStart sets a callback to be called when a job starts.
func (s *Scheduler) OnJobStart(fn func(jobName string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobStart = fn
}

// OnJobComplete sets a callback to be called when a job completes.
func (s *Scheduler) OnJobComplete(fn func(result JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobComplete = fn
}
