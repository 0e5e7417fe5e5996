package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "staffforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("STAFFFORGE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "STAFFFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "STAFFFORGE_CORS_ORIGIN")
	setDuration(&cfg.Server.ReadTimeout, "STAFFFORGE_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "STAFFFORGE_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "STAFFFORGE_SHUTDOWN_TIMEOUT")
	setInt64(&cfg.Server.MaxBodyBytes, "STAFFFORGE_MAX_BODY_BYTES")
	setString(&cfg.Store.Driver, "STAFFFORGE_STORE_DRIVER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "STAFFFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "STAFFFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "STAFFFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "STAFFFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "STAFFFORGE_PG_HEALTH_CHECK")
	setStringAllowEmpty(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "STAFFFORGE_NATS_STREAM")
	setString(&cfg.NATS.Consumer, "STAFFFORGE_NATS_CONSUMER")
	setString(&cfg.Logging.Level, "STAFFFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "STAFFFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "STAFFFORGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "STAFFFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "STAFFFORGE_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "STAFFFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "STAFFFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "STAFFFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "STAFFFORGE_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "STAFFFORGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "STAFFFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "STAFFFORGE_CACHE_L2_TTL")
	setDuration(&cfg.Cache.TTL, "STAFFFORGE_CACHE_TTL")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "STAFFFORGE_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "STAFFFORGE_IDEMPOTENCY_TTL")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "STAFFFORGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "STAFFFORGE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "STAFFFORGE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "STAFFFORGE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "STAFFFORGE_OTEL_SAMPLE_RATE")

	// Notifications
	setString(&cfg.Notification.Provider, "STAFFFORGE_NOTIFY_PROVIDER")
	setString(&cfg.Notification.From, "STAFFFORGE_NOTIFY_FROM")
	setString(&cfg.Notification.SMTPHost, "STAFFFORGE_SMTP_HOST")
	setInt(&cfg.Notification.SMTPPort, "STAFFFORGE_SMTP_PORT")
	setString(&cfg.Notification.SMTPUser, "STAFFFORGE_SMTP_USER")
	setString(&cfg.Notification.SMTPPassword, "STAFFFORGE_SMTP_PASSWORD")
	setString(&cfg.Notification.SlackWebhook, "STAFFFORGE_SLACK_WEBHOOK")
	setString(&cfg.Notification.DiscordHook, "STAFFFORGE_DISCORD_WEBHOOK")
	setStringSlice(&cfg.Notification.EnabledEvents, "STAFFFORGE_NOTIFY_EVENTS")

	// Scheduling
	setFloat64(&cfg.Scheduling.DefaultHoursPerWeek, "STAFFFORGE_DEFAULT_HOURS_PER_WEEK")
	setInt(&cfg.Scheduling.DefaultWorkDays, "STAFFFORGE_DEFAULT_WORK_DAYS")
	setFloat64(&cfg.Scheduling.DefaultHoursPerDay, "STAFFFORGE_DEFAULT_HOURS_PER_DAY")
	setFloat64(&cfg.Scheduling.UtilizationTarget, "STAFFFORGE_UTILIZATION_TARGET")
	setFloat64(&cfg.Scheduling.MaxAllocation, "STAFFFORGE_MAX_ALLOCATION")
	setFloat64(&cfg.Scheduling.WarningThreshold, "STAFFFORGE_ALLOCATION_WARNING")
	setInt(&cfg.Scheduling.MaxConcurrent, "STAFFFORGE_MAX_CONCURRENT")
	setBool(&cfg.Scheduling.AllowOverallocation, "STAFFFORGE_ALLOW_OVERALLOCATION")

	// Time off
	setInt(&cfg.TimeOff.AutoApproveDays, "STAFFFORGE_TIMEOFF_AUTO_APPROVE_DAYS")
	setInt(&cfg.TimeOff.AdvanceNoticeDays, "STAFFFORGE_TIMEOFF_NOTICE_DAYS")
	setInt(&cfg.TimeOff.MaxDaysPerRequest, "STAFFFORGE_TIMEOFF_MAX_DAYS")
	setStringSlice(&cfg.TimeOff.SeniorRoles, "STAFFFORGE_TIMEOFF_SENIOR_ROLES")

	// Approval
	setInt(&cfg.Approval.AutoApproveMaxDays, "STAFFFORGE_APPROVAL_MAX_DAYS")
	setFloat64(&cfg.Approval.RateCeiling, "STAFFFORGE_APPROVAL_RATE_CEILING")
	setFloat64(&cfg.Approval.AutoApproveAllocation, "STAFFFORGE_APPROVAL_MAX_ALLOCATION")
	setStringSlice(&cfg.Approval.DefaultApprovers, "STAFFFORGE_DEFAULT_APPROVERS")

	// Projection
	setBool(&cfg.Projection.OnStartup, "STAFFFORGE_PROJECTION_ON_STARTUP")
	setDuration(&cfg.Projection.Timeout, "STAFFFORGE_PROJECTION_TIMEOUT")
	setInt(&cfg.Projection.Concurrency, "STAFFFORGE_PROJECTION_CONCURRENCY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", cfg.Store.Driver)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Scheduling.DefaultHoursPerDay <= 0 {
		return errors.New("scheduling.default_hours_per_day must be > 0")
	}
	if cfg.Scheduling.MaxAllocation <= 0 {
		return errors.New("scheduling.max_allocation must be > 0")
	}
	if cfg.Scheduling.MaxConcurrent < 1 {
		return errors.New("scheduling.max_concurrent must be >= 1")
	}
	if cfg.TimeOff.AutoApproveDays < 0 || cfg.TimeOff.AdvanceNoticeDays < 0 {
		return errors.New("time_off day limits must be >= 0")
	}
	if cfg.Projection.Concurrency < 1 {
		return errors.New("projection.concurrency must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStringAllowEmpty overrides dst when key is set, even to "".
func setStringAllowEmpty(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

// setStringSlice splits a comma-separated value.
func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
