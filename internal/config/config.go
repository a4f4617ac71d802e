package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	ListenAddr      string
	DBPath          string
	LogLevel        string
	LogFile         string
	AttachmentsPath string
	WebhookURLs     []string
	WebhookTimeout  time.Duration
	AdminUser       string
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset.
func Load() *Config {
	return &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "gadgetry.sqlite3"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		AttachmentsPath: getEnv("ATTACHMENTS_PATH", "attachments"),
		WebhookURLs:     splitList(getEnv("WEBHOOK_URLS", "")),
		WebhookTimeout:  getDuration("WEBHOOK_TIMEOUT_SECONDS", 10) * time.Second,
		AdminUser:       getEnv("ADMIN_USER", "admin"),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultSecs int) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(defaultSecs)
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
