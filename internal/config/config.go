package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sprintstat/internal/github"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the environment-level configuration.
type AppConfig struct {
	GitHub      github.Config
	Concurrency int
	// CacheTTL is the lifetime of cached issues and events in the MCP server.
	CacheTTL time.Duration
	DataPath string
	// SnapshotDir is where --snapshot writes by default.
	SnapshotDir string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// The binary's directory wins over the working directory: godotenv never
	// overrides a variable that is already set.
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	token := getEnv("GITHUB_TOKEN", "")
	if token == "" {
		token = getEnv("githubtoken", "")
	}
	if token == "" {
		log.Debug().Msg("No GitHub token configured, using anonymous access")
	}

	cfg := &AppConfig{
		GitHub: github.Config{
			Token:       token,
			BaseURL:     getEnv("GITHUB_API_URL", ""),
			MaxAttempts: getEnvInt("SPRINTSTAT_MAX_ATTEMPTS", 3),
			BaseDelay:   time.Duration(getEnvInt("SPRINTSTAT_BASE_DELAY_MS", 300)) * time.Millisecond,
			MaxWait:     time.Duration(getEnvInt("SPRINTSTAT_MAX_WAIT_SECONDS", 900)) * time.Second,
		},
		Concurrency: getEnvInt("SPRINTSTAT_CONCURRENCY", 10),
		CacheTTL:    time.Duration(getEnvInt("SPRINTSTAT_CACHE_TTL_SECONDS", 300)) * time.Second,
		DataPath:    dataPath,
		SnapshotDir: filepath.Join(dataPath, "snapshots"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", fallback).Msg("Ignoring invalid number")
	}
	return fallback
}
