package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the runtime configuration for both binaries. Values come from
// the environment (a .env file is loaded by the binaries via godotenv);
// everything has a working default except API keys.
type Config struct {
	// DataDir holds the sqlite database and logs
	DataDir string
	DBPath  string

	// HTTP port for the monitor service
	Port int

	// AI provider settings
	AnthropicAPIKey string
	AnthropicModel  string
	OllamaEndpoint  string
	OllamaModel     string

	// Monitor settings
	MonitorSchedule   string // cron expression for the monitor tasks
	MaxDailyPushes    int
	MockNotifications bool
	ExpoPushURL       string

	// Source settings
	NewsAPIKey      string // optional key for the L3 supplemental API
	SourceOverrides []string

	// Extra ticker symbols unioned into the extraction vocabulary
	ExtraTickers []string
}

// Load builds a Config from the environment.
func Load() *Config {
	home, _ := os.UserHomeDir()
	dataDir := envOrDefault("MARKETBRIEF_DATA_DIR", filepath.Join(home, ".marketbrief"))

	cfg := &Config{
		DataDir:           dataDir,
		DBPath:            envOrDefault("MARKETBRIEF_DB", filepath.Join(dataDir, "marketbrief.db")),
		Port:              envInt("MARKETBRIEF_PORT", 8090),
		AnthropicAPIKey:   firstEnv("ANTHROPIC_API_KEY", "CLAUDE_API_KEY"),
		AnthropicModel:    envOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		OllamaEndpoint:    envOrDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
		OllamaModel:       os.Getenv("OLLAMA_MODEL"),
		MonitorSchedule:   envOrDefault("MONITOR_SCHEDULE", "0 0 * * * *"),
		MaxDailyPushes:    envInt("MAX_DAILY_PUSHES", 5),
		MockNotifications: envBool("ENABLE_MOCK_NOTIFICATIONS", false),
		ExpoPushURL:       envOrDefault("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		NewsAPIKey:        os.Getenv("NEWS_API_KEY"),
		SourceOverrides:   envList("SOURCE_OVERRIDES"),
		ExtraTickers:      envList("EXTRA_TICKERS"),
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envList parses a comma-separated environment variable
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
