package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Redis      RedisConfig
	Payroll    PayrollConfig
	Attendance AttendanceConfig
	Cron       CronConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// RedisConfig is optional. An empty Addr keeps period locks in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type PayrollConfig struct {
	Workers               int
	Mode                  string
	FGTSRate              decimal.Decimal
	DependentDeduction    decimal.Decimal
	VTRate                decimal.Decimal
	MonthlyHours          decimal.Decimal
	Overtime50Multiplier  decimal.Decimal
	Overtime100Multiplier decimal.Decimal
	NightPremium          decimal.Decimal
	HoursBankPayout       bool
	LateDeduction         bool
	RetryAttempts         int
	RetryInitialDelay     time.Duration
	RetryMaxDelay         time.Duration
}

// AttendanceConfig carries the default schedule and the tolerances.
// Clock values are minutes after midnight.
type AttendanceConfig struct {
	DailyMinutes      int
	StartMinute       int
	OvertimeTolerance int
	LateTolerance     int
	NightStartMinute  int
	NightEndMinute    int
}

type CronConfig struct {
	ResumeInterval time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded, using process environment")
	}

	var errs []error
	config := &Config{}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432, &errs),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: getEnvInt("DB_MAX_CONNS", 25, &errs),
		MinConns: getEnvInt("DB_MIN_CONNS", 5, &errs),
	}

	config.App = AppConfig{
		Port:     getEnvInt("APP_PORT", 8080, &errs),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnvDuration("JWT_ACCESS_EXPIRATION_TIME", time.Hour, &errs),
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0, &errs),
		LockTTL:  getEnvDuration("PAYROLL_LOCK_TTL", 2*time.Minute, &errs),
	}

	config.Payroll = PayrollConfig{
		Workers:               getEnvInt("PAYROLL_WORKERS", 4, &errs),
		Mode:                  getEnv("PAYROLL_MODE", "resume"),
		FGTSRate:              getEnvDecimal("PAYROLL_FGTS_RATE", "0.08", &errs),
		DependentDeduction:    getEnvDecimal("PAYROLL_DEPENDENT_DEDUCTION", "189.59", &errs),
		VTRate:                getEnvDecimal("PAYROLL_VT_RATE", "0.06", &errs),
		MonthlyHours:          getEnvDecimal("PAYROLL_MONTHLY_HOURS", "220", &errs),
		Overtime50Multiplier:  getEnvDecimal("PAYROLL_OVERTIME50_MULTIPLIER", "1.5", &errs),
		Overtime100Multiplier: getEnvDecimal("PAYROLL_OVERTIME100_MULTIPLIER", "2", &errs),
		NightPremium:          getEnvDecimal("PAYROLL_NIGHT_PREMIUM", "0.20", &errs),
		HoursBankPayout:       getEnvBool("PAYROLL_HOURS_BANK_PAYOUT", true, &errs),
		LateDeduction:         getEnvBool("PAYROLL_LATE_DEDUCTION", false, &errs),
		RetryAttempts:         getEnvInt("PAYROLL_RETRY_ATTEMPTS", 4, &errs),
		RetryInitialDelay:     getEnvDuration("PAYROLL_RETRY_INITIAL_DELAY", 100*time.Millisecond, &errs),
		RetryMaxDelay:         getEnvDuration("PAYROLL_RETRY_MAX_DELAY", 2*time.Second, &errs),
	}

	config.Attendance = AttendanceConfig{
		DailyMinutes:      getEnvInt("ATTENDANCE_DAILY_MINUTES", 480, &errs),
		StartMinute:       getEnvClock("ATTENDANCE_START", "08:00", &errs),
		OvertimeTolerance: getEnvInt("ATTENDANCE_OVERTIME_TOLERANCE", 10, &errs),
		LateTolerance:     getEnvInt("ATTENDANCE_LATE_TOLERANCE", 10, &errs),
		NightStartMinute:  getEnvClock("ATTENDANCE_NIGHT_START", "22:00", &errs),
		NightEndMinute:    getEnvClock("ATTENDANCE_NIGHT_END", "05:00", &errs),
	}

	config.Cron = CronConfig{
		ResumeInterval: getEnvDuration("CRON_RESUME_INTERVAL", 5*time.Minute, &errs),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be at least 1")
	}
	if c.Payroll.Mode != "resume" && c.Payroll.Mode != "strict" {
		return fmt.Errorf("PAYROLL_MODE must be resume or strict, got %q", c.Payroll.Mode)
	}
	if c.Payroll.RetryAttempts < 1 {
		return fmt.Errorf("PAYROLL_RETRY_ATTEMPTS must be at least 1")
	}
	if !c.Payroll.MonthlyHours.IsPositive() {
		return fmt.Errorf("PAYROLL_MONTHLY_HOURS must be positive")
	}
	if c.Attendance.DailyMinutes < 0 || c.Attendance.DailyMinutes > 24*60 {
		return fmt.Errorf("ATTENDANCE_DAILY_MINUTES must be between 0 and 1440")
	}
	if c.Cron.ResumeInterval < 0 {
		return fmt.Errorf("CRON_RESUME_INTERVAL must not be negative")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func getEnvDecimal(key, fallback string, errs *[]error) decimal.Decimal {
	v, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return decimal.RequireFromString(fallback)
	}
	return v
}

// getEnvClock reads an HH:MM value as minutes after midnight.
func getEnvClock(key, fallback string, errs *[]error) int {
	raw := getEnv(key, fallback)
	minutes, ok := validator.ParseClock(raw)
	if !ok {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q is not HH:MM", key, raw))
		minutes, _ = validator.ParseClock(fallback)
	}
	return minutes
}
