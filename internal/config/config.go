package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
)

// user-level env file, e.g. ~/.config/ai-connect-four/.env
const userEnvFile = "ai-connect-four/.env"

type Config struct {
	Port           string
	AllowedOrigins []string

	SolverAPIURL  string
	SolverTimeout time.Duration
	DefaultSolver domain.SolverIdentity

	BoardRows    int
	BoardColumns int
	MovePacing   time.Duration

	HealthInterval time.Duration

	RedisURL        string
	RedisPassword   string
	RedisDB         int
	CatalogCacheTTL time.Duration

	BridgeSecret   string
	BridgeTokenTTL time.Duration

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// LoadEnvFiles loads ./.env, ../.env and the user config file, in that order.
// Variables already set in the environment win.
func LoadEnvFiles() {
	loaded := false
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			loaded = true
		}
	}
	if path, err := xdg.SearchConfigFile(userEnvFile); err == nil {
		if err := godotenv.Load(path); err == nil {
			loaded = true
		}
	}
	if !loaded {
		log.Debug().Str("component", "config").Msg("no .env file found")
	}
}

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")

	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:5173")
	allowedOrigins := []string{frontendURL}
	for _, origin := range strings.Split(GetEnv("ALLOWED_ORIGINS", ""), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			allowedOrigins = append(allowedOrigins, trimmed)
		}
	}

	rows := GetEnvAsInt("BOARD_ROWS", domain.DefaultRows)
	if rows <= 0 {
		log.Warn().Str("component", "config").Int("value", rows).Msg("BOARD_ROWS must be positive, using default")
		rows = domain.DefaultRows
	}
	cols := GetEnvAsInt("BOARD_COLUMNS", domain.DefaultColumns)
	if cols <= 0 {
		log.Warn().Str("component", "config").Int("value", cols).Msg("BOARD_COLUMNS must be positive, using default")
		cols = domain.DefaultColumns
	}

	healthInterval := GetEnvAsDuration("HEALTH_INTERVAL", 5*time.Second)
	if healthInterval <= 0 {
		log.Warn().Str("component", "config").Dur("value", healthInterval).Msg("HEALTH_INTERVAL must be positive, using default")
		healthInterval = 5 * time.Second
	}

	AppConfig = &Config{
		Port:           port,
		AllowedOrigins: allowedOrigins,

		SolverAPIURL:  GetEnv("SOLVER_API_URL", "http://localhost:8000"),
		SolverTimeout: GetEnvAsDuration("SOLVER_TIMEOUT", 60*time.Second),
		DefaultSolver: domain.SolverIdentity{
			Type: GetEnv("SOLVER_TYPE", ""),
			Name: GetEnv("SOLVER_NAME", ""),
		},

		BoardRows:    rows,
		BoardColumns: cols,
		MovePacing:   GetEnvAsDuration("MOVE_PACING", 50*time.Millisecond),

		HealthInterval: healthInterval,

		RedisURL:        GetEnv("REDIS_URL", ""),
		RedisPassword:   GetEnv("REDIS_PASSWORD", ""),
		RedisDB:         GetEnvAsInt("REDIS_DB", 0),
		CatalogCacheTTL: GetEnvAsDuration("CATALOG_CACHE_TTL", 10*time.Minute),

		BridgeSecret:   GetEnv("BRIDGE_SECRET", ""),
		BridgeTokenTTL: GetEnvAsDuration("BRIDGE_TOKEN_TTL", 24*time.Hour),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),
	}

	return AppConfig
}

// SetupLogging applies LOG_LEVEL and LOG_FORMAT to the global zerolog logger.
func (c *Config) SetupLogging() {
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("component", "config").Str("key", key).Str("value", valueStr).
			Int("default", defaultValue).Msg("invalid integer, using default")
		return defaultValue
	}
	return value
}

// GetEnvAsDuration accepts Go durations ("750ms", "1m") or a bare number of
// milliseconds.
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	log.Warn().Str("component", "config").Str("key", key).Str("value", valueStr).
		Dur("default", defaultValue).Msg("invalid duration, using default")
	return defaultValue
}
