// Package main - точка входа Codeforces tracker.
//
// Один процесс обслуживает:
//   - REST API управления студентами, статистики и cron-задач
//   - Планировщик задач DATA_SYNC (синхронизация всех студентов) и
//     INACTIVITY_CHECK (напоминания неактивным студентам)
//   - Метрики Prometheus и health checks
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrF1yn/TLE-Codeforces-tracker/config"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/command"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/application/query"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/cronjob"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/notification"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/shared"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/external/codeforces"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/external/smtp"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/metrics"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/persistence/postgres"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/persistence/redis"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/scheduler"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/MrF1yn/TLE-Codeforces-tracker/internal/interface/http"
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/interface/http/handlers"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/logger"
	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// .env необязателен: в production переменные задаёт окружение
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting Codeforces tracker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	if cfg.Observability.MetricsEnabled {
		metrics.Register()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := connectDatabase(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально: блокировки синхронизации и кеш статистики)
	// ─────────────────────────────────────────────────────────────────────────
	redisCache := connectRedis(cfg.Redis, log)
	if redisCache != nil {
		defer func() { _ = redisCache.Close() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ И ВНЕШНИЕ КЛИЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	studentRepo := postgres.NewStudentRepository(dbConn)
	aggregateRepo := postgres.NewAggregateRepository(dbConn)
	cronRepo := postgres.NewCronJobRepository(dbConn)
	emailLogRepo := postgres.NewEmailLogRepository(dbConn)
	templateRepo := postgres.NewEmailTemplateRepository(dbConn)

	cfClient := codeforces.NewClient(codeforces.ClientConfig{
		BaseURL:      cfg.Codeforces.BaseURL,
		RequestDelay: cfg.Codeforces.RequestDelay,
		Timeout:      cfg.Codeforces.Timeout,
		UserAgent:    cfg.Codeforces.UserAgent,
		Logger:       log,
		Debug:        cfg.App.Debug,
	})

	var (
		sender     notification.Sender
		smtpSender *smtp.Sender
	)
	if cfg.Email.Disabled {
		log.Warn("email delivery disabled")
		sender = disabledSender{}
	} else {
		smtpSender = smtp.NewSender(smtp.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			Timeout:  cfg.Email.Timeout,
			Logger:   log,
		})
		sender = smtpSender
		verifyCtx, cancel := context.WithTimeout(ctx, cfg.Email.Timeout)
		if err := smtpSender.Verify(verifyCtx); err != nil {
			log.Warn("SMTP relay verification failed, emails may not be delivered", "error", err)
		} else {
			log.Info("SMTP relay verified", "addr", cfg.Email.Host)
		}
		cancel()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	flags := cfg.Features

	syncConfig := command.SyncStudentHandlerConfig{Logger: log}
	var statsCache query.ProblemStatsCache
	if redisCache != nil {
		problemCache := redis.NewProblemStatsCache(redisCache)
		statsCache = problemCache
		syncConfig.Cache = problemCache
		if flags.Enabled(config.FeatureSyncDistributedLock) {
			syncConfig.Guard = command.ChainGuard{
				command.NewLocalGuard(),
				redis.NewSyncLock(redisCache, cfg.Sync.LockTTL, log),
			}
		}
	}

	syncStudent := command.NewSyncStudentHandler(studentRepo, aggregateRepo, cfClient, syncConfig)
	syncAll := command.NewSyncAllStudentsHandler(studentRepo, syncStudent, command.SyncAllStudentsConfig{
		BatchSize:  cfg.Sync.BatchSize,
		BatchDelay: cfg.Sync.BatchDelay,
		Logger:     log,
	})
	emails := command.NewEmailHandler(studentRepo, templateRepo, emailLogRepo, sender, log)

	addStudent := command.NewAddStudentHandler(studentRepo, syncStudent, emails, command.AddStudentConfig{
		InitialSync: flags.Enabled(config.FeatureSyncInitialOnCreate),
		Welcome:     flags.Enabled(config.FeatureEmailWelcome),
		Logger:      log,
	})
	updateStudent := command.NewUpdateStudentHandler(studentRepo, syncStudent, flags.Enabled(config.FeatureSyncOnHandleChange), log)
	deleteStudent := command.NewDeleteStudentHandler(studentRepo, syncConfig.Cache, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.Config{
		Repository: cronRepo,
		Defaults:   cronjob.Defaults(cfg.Scheduler.DataSyncCron, cfg.Scheduler.InactivityCheckCron),
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(jobs.NewDataSyncJob(syncAll, log)); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}
	inactivity := jobs.NewInactivityCheckJob(studentRepo, emails, jobs.InactivityCheckConfig{
		Threshold: cfg.Scheduler.InactivityThreshold,
	}, log)
	if err := sched.Register(inactivity); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if r.Error != nil {
			log.Warn("job finished with error", "job", r.JobName, "trigger", r.Trigger, "error", r.Error)
		}
	})

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled, jobs run only on manual trigger")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", dbConn.Check)
	if redisCache != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(redisCache))
	}
	if smtpSender != nil {
		health.AddOptionalCheck("smtp", handlers.NewVerifyCheck(smtpSender))
	}

	server := httpserver.NewServer(httpserver.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxHeaderBytes: 1 << 20,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		EnableMetrics:  cfg.Observability.MetricsEnabled,
	}, httpserver.Dependencies{
		Health: handlers.NewHealthHandler(health),
		Cron:   handlers.NewCronHandler(sched, log),
		Student: handlers.NewStudentHandler(handlers.StudentHandlerDeps{
			List:      query.NewListStudentsHandler(studentRepo),
			Add:       addStudent,
			Update:    updateStudent,
			Delete:    deleteStudent,
			Reminders: command.NewSetEmailRemindersHandler(studentRepo),
			Sync:      syncStudent,
			Contests:  query.NewGetContestHistoryHandler(studentRepo, aggregateRepo),
			Problems:  query.NewGetProblemStatsHandler(studentRepo, aggregateRepo, statsCache, log),
		}),
		Email: handlers.NewEmailHandler(
			query.NewEmailQueries(studentRepo, templateRepo, emailLogRepo),
			command.NewUpdateEmailTemplateHandler(templateRepo),
		),
		Logger: log,
	})

	serverErr := server.StartAsync()
	log.Info("Codeforces tracker is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())

	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("http: %w", err))
	}
	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("scheduler: %w", err))
		}
	}

	if shutdownErr != nil {
		return shutdownErr
	}
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}
	opts.Format = logger.ParseFormat(cfg.Observability.LogFormat)
	opts.Attrs = []slog.Attr{
		slog.String("service", cfg.App.Name),
		slog.String("version", cfg.App.Version),
	}

	log := logger.New(opts)
	slog.SetDefault(log)
	return log
}

// connectDatabase подключается к PostgreSQL с повторами: база может
// подниматься одновременно с сервисом.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*postgres.Connection, error) {
	retrier := retry.ConnectRetrier(cfg.ConnectAttempts, func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
	})

	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = cfg.Host
	pgCfg.Port = cfg.Port
	pgCfg.Database = cfg.Name
	pgCfg.User = cfg.User
	pgCfg.Password = cfg.Password
	pgCfg.SSLMode = cfg.SSLMode
	pgCfg.MaxConns = cfg.MaxConns
	pgCfg.MinConns = cfg.MinConns
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.ConnectTimeout

	var conn *postgres.Connection
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		if cfg.URL != "" {
			conn, err = postgres.NewConnectionFromURL(ctx, cfg.URL, pgCfg)
			return err
		}
		conn, err = postgres.NewConnection(ctx, pgCfg)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("database connection established")
	return conn, nil
}

// connectRedis возвращает nil, если Redis отключён или недоступен:
// сервис продолжает работу с локальными блокировками и без кеша.
func connectRedis(cfg config.RedisConfig, log *slog.Logger) *redis.Cache {
	if cfg.Disabled {
		log.Info("Redis disabled")
		return nil
	}

	var (
		cache *redis.Cache
		err   error
	)
	if cfg.URL != "" {
		cache, err = redis.NewCacheFromURL(cfg.URL, cfg.DialTimeout)
	} else {
		rc := redis.DefaultConfig()
		rc.Host = cfg.Host
		rc.Port = cfg.Port
		rc.Password = cfg.Password
		rc.DB = cfg.DB
		rc.PoolSize = cfg.PoolSize
		rc.MinIdleConns = cfg.MinIdleConns
		rc.DialTimeout = cfg.DialTimeout
		rc.ReadTimeout = cfg.ReadTimeout
		rc.WriteTimeout = cfg.WriteTimeout
		cache, err = redis.NewCache(rc)
	}
	if err != nil {
		log.Warn("failed to connect to Redis, running without cache and distributed locks", "error", err)
		return nil
	}

	log.Info("Redis connection established")
	return cache
}

// disabledSender отклоняет все письма, когда EMAIL_DISABLED=true.
// Попытки всё равно попадают в журнал писем как неудачные.
type disabledSender struct{}

func (disabledSender) Send(context.Context, notification.Message) error {
	return shared.NewDomainError("email", "Send", shared.ErrServiceUnavailable, "email delivery is disabled")
}
