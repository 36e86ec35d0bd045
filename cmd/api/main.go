package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/schedule"
	appHTTP "github.com/cmlabs-hris/payroll-engine/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/payroll-engine/internal/service/attendance"
	compensationService "github.com/cmlabs-hris/payroll-engine/internal/service/compensation"
	hoursbankService "github.com/cmlabs-hris/payroll-engine/internal/service/hoursbank"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	taxtableService "github.com/cmlabs-hris/payroll-engine/internal/service/taxtable"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Payroll engine stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.App.LogLevel)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL(), database.PoolConfig{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := postgresql.Migrate(ctx, db); err != nil {
		return err
	}

	healthChecks := map[string]appHTTP.HealthCheck{"postgres": db.Ping}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL)
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		slog.Info("Using Redis period locks", "addr", cfg.Redis.Addr)
	} else {
		slog.Warn("REDIS_ADDR not set, period locks are process local")
	}

	txManager := postgresql.NewTxManager(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	workScheduleRepo := postgresql.NewWorkScheduleRepository(db)
	timeEntryRepo := postgresql.NewTimeEntryRepository(db)
	leaveRepo := postgresql.NewLeaveRepository(db)
	enrollmentRepo := postgresql.NewEnrollmentRepository(db)
	bracketRepo := postgresql.NewBracketRepository(db)
	hoursBankRepo := postgresql.NewHoursBankRepository(db)
	payrollRepo := postgresql.NewPayrollRepository(db)

	retryPolicy := retry.DefaultPolicy()
	retryPolicy.MaxAttempts = cfg.Payroll.RetryAttempts
	retryPolicy.InitialDelay = cfg.Payroll.RetryInitialDelay
	retryPolicy.MaxDelay = cfg.Payroll.RetryMaxDelay

	settings := payrollService.Settings{
		Workers:            cfg.Payroll.Workers,
		DefaultMode:        payroll.CalculationMode(cfg.Payroll.Mode),
		FGTSRate:           cfg.Payroll.FGTSRate,
		DependentDeduction: cfg.Payroll.DependentDeduction,
		Attendance: attendance.Policy{
			OvertimeToleranceMinutes: cfg.Attendance.OvertimeTolerance,
			LateToleranceMinutes:     cfg.Attendance.LateTolerance,
			NightStartMinute:         cfg.Attendance.NightStartMinute,
			NightEndMinute:           cfg.Attendance.NightEndMinute,
			PremiumWeekdays:          attendance.DefaultPolicy().PremiumWeekdays,
		},
		Retry: retryPolicy,
	}
	compensationPolicy := compensationService.Policy{
		MonthlyHours:          cfg.Payroll.MonthlyHours,
		Overtime50Multiplier:  cfg.Payroll.Overtime50Multiplier,
		Overtime100Multiplier: cfg.Payroll.Overtime100Multiplier,
		NightPremium:          cfg.Payroll.NightPremium,
		VTRate:                cfg.Payroll.VTRate,
		PayoutHoursBank:       cfg.Payroll.HoursBankPayout,
		LateDeduction:         cfg.Payroll.LateDeduction,
	}
	defaultSchedule := schedule.WorkSchedule{
		DailyMinutes: cfg.Attendance.DailyMinutes,
		StartMinute:  cfg.Attendance.StartMinute,
		Workdays:     schedule.DefaultWorkdays,
	}

	aggregator := attendanceService.NewAggregator(timeEntryRepo, workScheduleRepo, leaveRepo, defaultSchedule, retryPolicy)
	ledger := hoursbankService.NewLedger(txManager, hoursBankRepo, payrollRepo)
	assembler := compensationService.NewAssembler(payrollRepo, enrollmentRepo, compensationPolicy)
	resolver := taxtableService.NewResolver(bracketRepo)
	engine := payrollService.NewEngine(txManager, payrollRepo, employeeRepo, resolver, aggregator, assembler, ledger, settings)
	periodService := payrollService.NewPeriodService(txManager, payrollRepo, employeeRepo, engine, locker)

	scheduler := cron.NewScheduler()
	cron.NewPayrollJobs(periodService, cfg.Cron.ResumeInterval).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	payrollHandler := appHTTP.NewPayrollHandler(periodService, ledger, settings.DefaultMode)
	router := appHTTP.NewRouter(JWTService, payrollHandler, appHTTP.RouterOptions{
		Env:          cfg.App.Env,
		HealthChecks: healthChecks,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func logLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
