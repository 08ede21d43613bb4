// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidBudget is returned when a budget limit is not a positive finite
// number.
var ErrInvalidBudget = errors.New("budget limit must be positive")

// Config holds the application configuration.
type Config struct {
	Host                 string
	Port                 int
	SessionsPath         string
	DatabasePath         string
	ClientDir            string
	GatewayURL           string
	GatewayToken         string
	DailyBudget          float64
	MonthlyBudget        float64
	SnapshotInterval     time.Duration
	SnapshotEnabled      bool
	Serverless           bool
	DailyFolding         bool
	SourceTimeout        time.Duration
	IngestRateLimit      float64
	DesktopNotifications bool
	LogLevel             string
	AgentName            string
	AgentModel           string
}

// Default values
const (
	defaultHost             = "127.0.0.1"
	defaultPort             = 3333
	defaultGatewayURL       = "ws://127.0.0.1:63362"
	defaultDailyBudget      = 10.00
	defaultMonthlyBudget    = 200.00
	defaultSnapshotInterval = 5 * time.Minute
	defaultSourceTimeout    = 2 * time.Second
	defaultIngestRateLimit  = 20
	defaultAgentName        = "main"
	defaultAgentModel       = "unknown"
)

// Default returns a configuration populated with built-in defaults only.
func Default() *Config {
	return &Config{
		Host:                 defaultHost,
		Port:                 defaultPort,
		SessionsPath:         getDefaultSessionsPath(),
		DatabasePath:         getDefaultDatabasePath(),
		GatewayURL:           defaultGatewayURL,
		DailyBudget:          defaultDailyBudget,
		MonthlyBudget:        defaultMonthlyBudget,
		SnapshotInterval:     defaultSnapshotInterval,
		SnapshotEnabled:      true,
		SourceTimeout:        defaultSourceTimeout,
		IngestRateLimit:      defaultIngestRateLimit,
		DesktopNotifications: true,
		LogLevel:             "info",
		AgentName:            defaultAgentName,
		AgentModel:           defaultAgentModel,
	}
}

// Load reads configuration from .env files, the optional TOML file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := Default()

	fc, err := loadFile(getEnvString("MISSION_CONTROL_CONFIG", getDefaultConfigFilePath()))
	if err != nil {
		return nil, err
	}
	fc.apply(cfg)

	cfg.Host = getEnvString("HOST", cfg.Host)
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.SessionsPath = expandHome(getEnvString("OPENCLAW_SESSIONS_PATH", cfg.SessionsPath))
	cfg.DatabasePath = expandHome(getEnvString("DATABASE_PATH", cfg.DatabasePath))
	cfg.ClientDir = getEnvString("CLIENT_DIR", cfg.ClientDir)
	cfg.GatewayURL = getEnvString("GATEWAY_WS_URL", getEnvString("OPENCLAW_GATEWAY_WS_URL", cfg.GatewayURL))
	cfg.GatewayToken = getEnvString("GATEWAY_TOKEN", getEnvString("OPENCLAW_GATEWAY_TOKEN", cfg.GatewayToken))
	cfg.DailyBudget = getEnvFloat("BUDGET_DAILY", cfg.DailyBudget)
	cfg.MonthlyBudget = getEnvFloat("BUDGET_MONTHLY", cfg.MonthlyBudget)
	cfg.SnapshotInterval = getEnvDuration("SNAPSHOT_INTERVAL", cfg.SnapshotInterval)
	cfg.SnapshotEnabled = getEnvBool("SNAPSHOT_ENABLED", cfg.SnapshotEnabled)
	cfg.Serverless = getEnvBool("SERVERLESS", getEnvBool("VERCEL", cfg.Serverless))
	cfg.DailyFolding = getEnvBool("USAGE_DAILY_FOLDING", cfg.DailyFolding)
	cfg.SourceTimeout = getEnvDuration("USAGE_SOURCE_TIMEOUT", cfg.SourceTimeout)
	cfg.IngestRateLimit = getEnvFloat("INGEST_RATE_LIMIT", cfg.IngestRateLimit)
	cfg.DesktopNotifications = getEnvBool("DESKTOP_NOTIFICATIONS", cfg.DesktopNotifications)
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.AgentName = getEnvString("AGENT_NAME", cfg.AgentName)
	cfg.AgentModel = getEnvString("AGENT_MODEL", cfg.AgentModel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if !positiveFinite(c.DailyBudget) {
		return fmt.Errorf("daily %w (got %.2f)", ErrInvalidBudget, c.DailyBudget)
	}
	if !positiveFinite(c.MonthlyBudget) {
		return fmt.Errorf("monthly %w (got %.2f)", ErrInvalidBudget, c.MonthlyBudget)
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot interval must be positive (got %s)", c.SnapshotInterval)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !positiveFinite(c.IngestRateLimit) {
		return fmt.Errorf("ingest rate limit must be positive (got %v)", c.IngestRateLimit)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BackgroundEnabled reports whether long-lived goroutines (snapshotter,
// watcher, gateway client) may run in this environment.
func (c *Config) BackgroundEnabled() bool {
	return !c.Serverless
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "mission-control", ".env"),
			filepath.Join(home, ".openclaw", ".env"),
		)
	}

	// Parent directory (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(cwd), ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mission-control.db"
	}
	return filepath.Join(home, ".config", "mission-control", "mission-control.db")
}

// getDefaultSessionsPath returns the default root of the agent session logs.
func getDefaultSessionsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".openclaw"
	}
	return filepath.Join(home, ".openclaw")
}

// getDefaultConfigFilePath returns the default path for the TOML config file.
func getDefaultConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "mission-control", "config.toml")
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns the default.
// Unparseable values fall back to the default; zero and negative values are
// kept so Validate can reject them.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
// Accepts the forms understood by strconv.ParseBool.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
