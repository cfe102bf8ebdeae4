package config

import (
	"strings"
	"time"

	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/overtime"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
	Redis    RedisConfig    `yaml:"redis"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH" env-default:"./attendance.db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// EngineConfig holds reconciliation defaults and the sweeper schedule.
type EngineConfig struct {
	DefaultTimezone  string        `yaml:"default_timezone"   env:"ENGINE_DEFAULT_TIMEZONE"   env-default:"UTC"`
	DefaultWeekStart string        `yaml:"default_week_start" env:"ENGINE_DEFAULT_WEEK_START" env-default:"monday"`
	SweepEnabled     bool          `yaml:"sweep_enabled"      env:"ENGINE_SWEEP_ENABLED"      env-default:"true"`
	SweepInterval    time.Duration `yaml:"sweep_interval"     env:"ENGINE_SWEEP_INTERVAL"     env-default:"15m"`
	SweepBatchSize   int           `yaml:"sweep_batch_size"   env:"ENGINE_SWEEP_BATCH_SIZE"   env-default:"500"`

	// Jurisdictions adds or replaces overtime jurisdictions (YAML only).
	Jurisdictions []JurisdictionConfig `yaml:"jurisdictions"`

	// resolved by Validate
	timezone  *time.Location
	weekStart time.Weekday
}

// Timezone returns the parsed DefaultTimezone (UTC before Validate).
func (e EngineConfig) Timezone() *time.Location {
	if e.timezone == nil {
		return time.UTC
	}
	return e.timezone
}

// WeekStart returns the parsed DefaultWeekStart.
func (e EngineConfig) WeekStart() time.Weekday {
	return e.weekStart
}

// JurisdictionConfig is one extra overtime jurisdiction. Zero minutes
// disable a threshold, as in the built-in table.
type JurisdictionConfig struct {
	Code                   string `yaml:"code"`
	DailyThresholdMinutes  int    `yaml:"daily_threshold_minutes"`
	DailyDoubleTimeMinutes int    `yaml:"daily_double_time_minutes"`
	WeeklyThresholdMinutes int    `yaml:"weekly_threshold_minutes"`
	SeventhDayRule         bool   `yaml:"seventh_day_rule"`
}

// Policy converts the entry to an overtime policy.
func (j JurisdictionConfig) Policy() overtime.OvertimePolicy {
	return overtime.OvertimePolicy{
		DailyThresholdMinutes:  generic.Minutes(j.DailyThresholdMinutes),
		DailyDoubleTimeMinutes: generic.Minutes(j.DailyDoubleTimeMinutes),
		WeeklyThresholdMinutes: generic.Minutes(j.WeeklyThresholdMinutes),
		SeventhDayRule:         j.SeventhDayRule,
	}
}

// Registry returns the built-in jurisdictions plus the configured ones.
// A configured code that matches a built-in one replaces it.
func (e EngineConfig) Registry() *overtime.Registry {
	reg := overtime.NewRegistry()
	for _, j := range e.Jurisdictions {
		reg = reg.WithJurisdiction(j.Code, j.Policy())
	}
	return reg
}

// RedisConfig enables the distributed per-day lock. An empty Addr keeps
// locks in process.
type RedisConfig struct {
	Addr     string        `yaml:"addr"      env:"REDIS_ADDR"`
	Password string        `yaml:"password"  env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"        env:"REDIS_DB"        env-default:"0"`
	LockTTL  time.Duration `yaml:"lock_ttl"  env:"REDIS_LOCK_TTL"  env-default:"30s"`
	LockWait time.Duration `yaml:"lock_wait" env:"REDIS_LOCK_WAIT" env-default:"10s"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Accept,Authorization,Content-Type,X-Request-ID"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"300"`
}

// Origins splits AllowedOrigins on commas.
func (c CORSConfig) Origins() []string { return splitList(c.AllowedOrigins) }

// Methods splits AllowedMethods on commas.
func (c CORSConfig) Methods() []string { return splitList(c.AllowedMethods) }

// Headers splits AllowedHeaders on commas.
func (c CORSConfig) Headers() []string { return splitList(c.AllowedHeaders) }

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
