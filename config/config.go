package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// Discord
	DiscordBotToken     string
	DiscordChannelID    string
	DiscordOwnerID      string // when set, only this user may start runs
	CoordinationChannel string // lounge channel id (optional)

	// Claude CLI
	ClaudeCommand        string
	ClaudeModel          string
	ClaudePermissionMode string
	ClaudeWorkingDir     string

	// Session supervision
	MaxConcurrentSessions int
	SessionTimeoutSeconds int

	// ContextWindowTokens enables the context usage banner on done embeds
	// when > 0
	ContextWindowTokens int

	// Embedded HTTP API
	APIHost   string
	APIPort   int
	APISecret string

	// Data directory
	DataDir      string
	DatabasePath string

	Env string // "development" or "production"

	// Debug settings
	DBLogQueries bool
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		cfg = load()
	})
	return cfg
}

// load reads configuration from environment variables
func load() *Config {
	dataDir := getEnv("CCDB_DATA_DIR", "./data")

	return &Config{
		DiscordBotToken:     getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID:    getEnv("DISCORD_CHANNEL_ID", ""),
		DiscordOwnerID:      getEnv("DISCORD_OWNER_ID", ""),
		CoordinationChannel: getEnv("COORDINATION_CHANNEL_ID", ""),

		ClaudeCommand:        getEnv("CLAUDE_COMMAND", "claude"),
		ClaudeModel:          getEnv("CLAUDE_MODEL", ""),
		ClaudePermissionMode: getEnv("CLAUDE_PERMISSION_MODE", "acceptEdits"),
		ClaudeWorkingDir:     getEnv("CLAUDE_WORKING_DIR", ""),

		MaxConcurrentSessions: getEnvInt("MAX_CONCURRENT_SESSIONS", 3),
		SessionTimeoutSeconds: getEnvInt("SESSION_TIMEOUT_SECONDS", 0),
		ContextWindowTokens:   getEnvInt("CONTEXT_WINDOW_TOKENS", 200000),

		APIHost:   getEnv("API_HOST", "127.0.0.1"),
		APIPort:   getEnvInt("API_PORT", 8737),
		APISecret: getEnv("API_SECRET_KEY", ""),

		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "ccdb.sqlite"),

		Env: getEnv("ENV", "development"),

		DBLogQueries: getEnv("DB_LOG_QUERIES", "") == "1",
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
