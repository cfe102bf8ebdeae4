package config

import (
	"fmt"
	"strings"

	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/overtime"
)

// Validate performs business-rule validation on the loaded configuration
// and resolves the engine's timezone and week start.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "text":
	default:
		return fmt.Errorf("log.format must be json, console or text (got %q)", c.Log.Format)
	}

	if err := c.Engine.validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if c.Redis.Enabled() && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be > 0 (got %s)", c.Redis.LockTTL)
	}

	return nil
}

func (e *EngineConfig) validate() error {
	loc, err := generic.LoadLocation(e.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("default_timezone: %w", err)
	}
	e.timezone = loc

	wd, err := generic.ParseWeekday(e.DefaultWeekStart)
	if err != nil {
		return fmt.Errorf("default_week_start: %w", err)
	}
	e.weekStart = wd

	if e.SweepEnabled && e.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be > 0 when sweeping is enabled (got %s)", e.SweepInterval)
	}
	if e.SweepBatchSize <= 0 {
		return fmt.Errorf("sweep_batch_size must be > 0 (got %d)", e.SweepBatchSize)
	}

	seen := make(map[string]bool, len(e.Jurisdictions))
	for i, j := range e.Jurisdictions {
		code := overtime.NormalizeJurisdiction(j.Code)
		switch {
		case code == "":
			return fmt.Errorf("jurisdictions[%d]: code is required", i)
		case seen[code]:
			return fmt.Errorf("jurisdictions[%d]: duplicate code %s", i, code)
		case j.DailyThresholdMinutes < 0 || j.DailyDoubleTimeMinutes < 0 || j.WeeklyThresholdMinutes < 0:
			return fmt.Errorf("jurisdictions[%d] %s: minutes must not be negative", i, code)
		}
		seen[code] = true
	}
	return nil
}
