package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Sandbox  SandboxConfig
	Archive  ArchiveConfig
	Firebase FirebaseConfig
	App      AppConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AIConfig configures the generative backend. APIKey is mandatory: the
// orchestrator has no fallback persona, so a missing key is a startup
// failure rather than a per-request one.
type AIConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	GenTimeout  time.Duration
}

type SandboxConfig struct {
	WorkDir        string
	CallbackSecret string
	IdleTTL        time.Duration
}

// ArchiveConfig configures snapshot archival. An empty bucket disables it.
type ArchiveConfig struct {
	Bucket string
	Prefix string
}

type FirebaseConfig struct {
	CredentialsPath string
}

type AppConfig struct {
	Environment string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AI: AIConfig{
			APIKey:      getEnv("GOOGLE_AI_KEY", ""),
			Model:       getEnv("AI_MODEL", "gemini-2.0-flash"),
			Temperature: 0.4,
			GenTimeout:  time.Duration(getEnvAsInt("AI_GEN_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Sandbox: SandboxConfig{
			WorkDir:        getEnv("SANDBOX_WORK_DIR", os.TempDir()),
			CallbackSecret: getEnv("SANDBOX_CALLBACK_SECRET", ""),
			IdleTTL:        time.Duration(getEnvAsInt("SANDBOX_IDLE_TTL_MINUTES", 30)) * time.Minute,
		},
		Archive: ArchiveConfig{
			Bucket: getEnv("SNAPSHOT_ARCHIVE_BUCKET", ""),
			Prefix: getEnv("SNAPSHOT_ARCHIVE_PREFIX", "snapshots"),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	// The AI credential is the only fatal-at-startup secret.
	if c.AI.APIKey == "" {
		return fmt.Errorf("GOOGLE_AI_KEY is required")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}
