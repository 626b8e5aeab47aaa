package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Session persistence backends.
const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

type Config struct {
	Env string

	API     APIConfig
	Session SessionConfig
	Redis   RedisConfig
	Log     LogConfig
	View    ViewConfig
	Files   FilesConfig
	Mock    MockConfig
	Metrics MetricsConfig
	Jobs    JobsConfig
}

// APIConfig describes the remote REST backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls where the token pair is persisted.
type SessionConfig struct {
	Backend string
	File    string
	Key     string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// ViewConfig tunes the client-side list projection.
type ViewConfig struct {
	SearchDebounce time.Duration
}

// FilesConfig lists local directories for downloaded and exported documents.
type FilesConfig struct {
	DownloadDir string
	ExportDir   string
}

// MockConfig configures the in-memory development backend.
type MockConfig struct {
	Port          int
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	PageSize      int
	AdminUsername string
	AdminPassword string
	CORSOrigins   []string
	// TokenStore selects where refresh tokens live: memory or redis.
	TokenStore    string
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool
}

// JobsConfig tunes the background queue used for bulk operations.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.API = APIConfig{
		BaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("HTTP_TIMEOUT"), 15*time.Second),
	}

	sessionFile := v.GetString("SESSION_FILE")
	if sessionFile == "" {
		sessionFile = defaultSessionFile()
	}
	cfg.Session = SessionConfig{
		Backend: strings.ToLower(v.GetString("SESSION_BACKEND")),
		File:    sessionFile,
		Key:     v.GetString("SESSION_KEY"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.View = ViewConfig{
		SearchDebounce: parseDuration(v.GetString("SEARCH_DEBOUNCE"), 300*time.Millisecond),
	}

	cfg.Files = FilesConfig{
		DownloadDir: v.GetString("DOWNLOAD_DIR"),
		ExportDir:   v.GetString("EXPORT_DIR"),
	}

	pageSize := v.GetInt("MOCK_PAGE_SIZE")
	if pageSize <= 0 {
		pageSize = 10
	}
	cfg.Mock = MockConfig{
		Port:          v.GetInt("MOCK_PORT"),
		JWTSecret:     v.GetString("MOCK_JWT_SECRET"),
		AccessTTL:     parseDuration(v.GetString("MOCK_ACCESS_TTL"), 5*time.Minute),
		RefreshTTL:    parseDuration(v.GetString("MOCK_REFRESH_TTL"), 24*time.Hour),
		PageSize:      pageSize,
		AdminUsername: v.GetString("MOCK_ADMIN_USERNAME"),
		AdminPassword: v.GetString("MOCK_ADMIN_PASSWORD"),
		CORSOrigins:   SplitAndTrim(v.GetString("MOCK_CORS_ORIGINS")),
		TokenStore:    strings.ToLower(v.GetString("MOCK_TOKEN_STORE")),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("METRICS_ENABLED"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("API_BASE_URL", "http://localhost:8000/api")
	v.SetDefault("HTTP_TIMEOUT", "15s")

	v.SetDefault("SESSION_BACKEND", SessionBackendFile)
	v.SetDefault("SESSION_FILE", "")
	v.SetDefault("SESSION_KEY", "authTokens")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("SEARCH_DEBOUNCE", "300ms")

	v.SetDefault("DOWNLOAD_DIR", "./downloads")
	v.SetDefault("EXPORT_DIR", "./exports")

	v.SetDefault("MOCK_PORT", 8000)
	v.SetDefault("MOCK_JWT_SECRET", "dev_secret")
	v.SetDefault("MOCK_ACCESS_TTL", "5m")
	v.SetDefault("MOCK_REFRESH_TTL", "24h")
	v.SetDefault("MOCK_PAGE_SIZE", 10)
	v.SetDefault("MOCK_ADMIN_USERNAME", "admin")
	v.SetDefault("MOCK_ADMIN_PASSWORD", "admin123")
	v.SetDefault("MOCK_CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("MOCK_TOKEN_STORE", "memory")

	v.SetDefault("METRICS_ENABLED", true)

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".tutor-admin-session.json"
	}
	return filepath.Join(dir, "tutor-admin", "session.json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// SplitAndTrim turns a comma separated list into trimmed, non-empty parts.
func SplitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
