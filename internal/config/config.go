/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/elpalenque/rienda/internal/clock"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string

	// Operational calendar
	Timezone string

	// Lifecycle ticker: cadence in minutes, operating window and days.
	TickerCadenceMinutes int
	TickerWindowStart    string // "09:00"
	TickerWindowEnd      string // "18:00"
	TickerDays           string // comma separated weekday names, e.g. "Tue,Wed,Thu,Fri,Sat"

	// Multi-instance configuration: when leader election is enabled only
	// the elected instance runs the lifecycle ticker.
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("RIENDA_ENV", "development"),
		HTTPBind:    getEnv("RIENDA_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("RIENDA_HTTP_PORT", 8080),
		DBBackend:   DatabaseBackend(getEnv("RIENDA_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("RIENDA_DB_DSN", ""),

		Timezone: getEnv("RIENDA_TIMEZONE", clock.DefaultTimezone),

		TickerCadenceMinutes: getEnvInt("RIENDA_TICKER_CADENCE_MINUTES", 30),
		TickerWindowStart:    getEnv("RIENDA_TICKER_WINDOW_START", "09:00"),
		TickerWindowEnd:      getEnv("RIENDA_TICKER_WINDOW_END", "18:00"),
		TickerDays:           getEnv("RIENDA_TICKER_DAYS", "Tue,Wed,Thu,Fri,Sat"),

		LeaderElectionEnabled: getEnvBool("RIENDA_LEADER_ELECTION_ENABLED", false),
		RedisAddr:             getEnv("RIENDA_REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("RIENDA_REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("RIENDA_REDIS_DB", 0),
		InstanceID:            getEnv("RIENDA_INSTANCE_ID", ""),

		TracingEnabled:    getEnvBool("RIENDA_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("RIENDA_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("RIENDA_TRACING_SAMPLE_RATE", 1.0),
	}

	switch cfg.DBBackend {
	case DatabasePostgres, DatabaseMySQL:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("RIENDA_DB_DSN must be provided for backend %q", cfg.DBBackend)
		}
	case DatabaseSQLite:
		if cfg.DBDSN == "" {
			cfg.DBDSN = "rienda.db"
		}
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if _, err := clock.ParseTimeOfDay(cfg.TickerWindowStart); err != nil {
		return nil, fmt.Errorf("RIENDA_TICKER_WINDOW_START: %w", err)
	}
	if _, err := clock.ParseTimeOfDay(cfg.TickerWindowEnd); err != nil {
		return nil, fmt.Errorf("RIENDA_TICKER_WINDOW_END: %w", err)
	}
	if cfg.TickerCadenceMinutes <= 0 {
		return nil, fmt.Errorf("RIENDA_TICKER_CADENCE_MINUTES must be positive")
	}
	if _, err := ParseWeekdays(cfg.TickerDays); err != nil {
		return nil, fmt.Errorf("RIENDA_TICKER_DAYS: %w", err)
	}

	return cfg, nil
}

var weekdayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// ParseWeekdays parses a comma separated weekday list ("Tue,Wed,Sat")
// into a set keyed by time.Weekday values.
func ParseWeekdays(s string) (map[int]bool, error) {
	days := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		day, ok := weekdayNames[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days[day] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("empty weekday list")
	}
	return days, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
