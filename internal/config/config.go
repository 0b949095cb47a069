package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/amillerrr/clipforge/pkg/models"
)

// Config holds all application configuration.
type Config struct {
	Environment   string
	API           APIConfig
	Paths         PathsConfig
	Tools         ToolsConfig
	Telegram      TelegramConfig
	Pipeline      PipelineConfig
	Video         VideoConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
}

// APIConfig holds ingest API server configuration.
type APIConfig struct {
	Port      string
	Username  string
	Password  string
	JWTSecret string
}

// PathsConfig holds working directory and database locations.
type PathsConfig struct {
	DownloadDir  string
	ProcessedDir string
	DatabasePath string
}

// ToolsConfig holds external tool locations and bounds.
type ToolsConfig struct {
	FFmpegPath            string
	FFprobePath           string
	Video2xPath           string
	Video2xTimeoutSeconds int
}

// TelegramConfig holds bot credentials for the upload channel and delivery.
type TelegramConfig struct {
	BotToken  string
	SendToken string
	ChatID    string
}

// PipelineConfig holds worker scheduling configuration.
type PipelineConfig struct {
	MaxRetries          int
	RetryFailedOnly     bool
	MaxConcurrentJobs   int
	PollIntervalSeconds int
	MetricsPort         int
}

// VideoConfig holds the target platform's video requirements.
type VideoConfig struct {
	MinHeight          int
	TargetBitrateKbps  int
	MinBitrateKbps     int
	MinDurationSeconds int
	MaxDurationSeconds int
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// Default values
const (
	DefaultPort               = "8080"
	DefaultMetricsPort        = 2112
	DefaultMaxConcurrentJobs  = 2
	DefaultPollInterval       = 15
	DefaultMaxRetries         = 2
	DefaultVideo2xTimeout     = 900
	DefaultOTLPEndpoint       = "localhost:4317"
	DefaultMinHeight          = 720
	DefaultTargetBitrateKbps  = 3000
	DefaultMinBitrateKbps     = 2000
	DefaultMinDurationSeconds = 3
	DefaultMaxDurationSeconds = 60
)

// Load reads configuration from environment variables and returns a Config.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "dev"),
		API: APIConfig{
			Port:      getEnv("PORT", DefaultPort),
			Username:  os.Getenv("API_USERNAME"),
			Password:  os.Getenv("API_PASSWORD"),
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Paths: PathsConfig{
			DownloadDir:  getEnv("DOWNLOAD_DIR", "/tmp/clipforge/downloads"),
			ProcessedDir: getEnv("PROCESSED_DIR", "/tmp/clipforge/processed"),
			DatabasePath: getEnv("DB_PATH", "data/clipforge.db"),
		},
		Tools: ToolsConfig{
			FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:           getEnv("FFPROBE_PATH", "ffprobe"),
			Video2xPath:           getEnv("VIDEO2X_PATH", "video2x"),
			Video2xTimeoutSeconds: getEnvInt("VIDEO2X_TIMEOUT_SECONDS", DefaultVideo2xTimeout),
		},
		Telegram: TelegramConfig{
			BotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
			SendToken: os.Getenv("TELEGRAM_SEND_TOKEN"),
			ChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Pipeline: PipelineConfig{
			MaxRetries:          getEnvInt("MAX_RETRIES", DefaultMaxRetries),
			RetryFailedOnly:     getEnvBool("RETRY_FAILED_ONLY", false),
			MaxConcurrentJobs:   getEnvInt("MAX_CONCURRENT_JOBS", DefaultMaxConcurrentJobs),
			PollIntervalSeconds: getEnvInt("POLL_INTERVAL_SECONDS", DefaultPollInterval),
			MetricsPort:         getEnvInt("METRICS_PORT", DefaultMetricsPort),
		},
		Video: VideoConfig{
			MinHeight:          getEnvInt("VIDEO_MIN_HEIGHT", DefaultMinHeight),
			TargetBitrateKbps:  getEnvInt("VIDEO_TARGET_BITRATE_KBPS", DefaultTargetBitrateKbps),
			MinBitrateKbps:     getEnvInt("VIDEO_MIN_BITRATE_KBPS", DefaultMinBitrateKbps),
			MinDurationSeconds: getEnvInt("VIDEO_MIN_DURATION_SECONDS", DefaultMinDurationSeconds),
			MaxDurationSeconds: getEnvInt("VIDEO_MAX_DURATION_SECONDS", DefaultMaxDurationSeconds),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
			}),
		},
	}

	return cfg, nil
}

// LoadAPI loads configuration required for the ingest API service.
func LoadAPI() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateAPI(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWorker loads configuration required for the pipeline worker.
func LoadWorker() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateAPI validates configuration required for the ingest API service.
func (c *Config) ValidateAPI() error {
	var errs []string

	if c.Paths.DatabasePath == "" {
		errs = append(errs, "DB_PATH is required")
	}

	if c.IsProduction() {
		if c.API.Username == "" {
			errs = append(errs, "API_USERNAME is required in production")
		}
		if c.API.Password == "" {
			errs = append(errs, "API_PASSWORD is required in production")
		}
		if c.API.JWTSecret == "" {
			errs = append(errs, "JWT_SECRET is required in production")
		}
		if len(c.API.JWTSecret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateWorker validates configuration required for the pipeline worker.
func (c *Config) ValidateWorker() error {
	var errs []string

	if c.Paths.DatabasePath == "" {
		errs = append(errs, "DB_PATH is required")
	}
	if c.Paths.DownloadDir == "" {
		errs = append(errs, "DOWNLOAD_DIR is required")
	}
	if c.Paths.ProcessedDir == "" {
		errs = append(errs, "PROCESSED_DIR is required")
	}
	if c.Telegram.SendToken == "" && c.Telegram.BotToken == "" {
		errs = append(errs, "TELEGRAM_SEND_TOKEN or TELEGRAM_BOT_TOKEN is required")
	}
	if c.Telegram.ChatID == "" {
		errs = append(errs, "TELEGRAM_CHAT_ID is required")
	}
	if c.Video.MinDurationSeconds <= 0 {
		errs = append(errs, "VIDEO_MIN_DURATION_SECONDS must be positive")
	}
	if c.Video.MaxDurationSeconds < c.Video.MinDurationSeconds {
		errs = append(errs, "VIDEO_MAX_DURATION_SECONDS must be >= VIDEO_MIN_DURATION_SECONDS")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "prod" || env == "production"
}

// TargetSpec builds the delivery target requirements from configuration.
func (c *Config) TargetSpec() models.TargetSpec {
	spec := models.DefaultTargetSpec()
	spec.MinHeight = c.Video.MinHeight
	spec.TargetBitrateKbps = c.Video.TargetBitrateKbps
	spec.MinBitrateKbps = c.Video.MinBitrateKbps
	spec.MinDurationSeconds = float64(c.Video.MinDurationSeconds)
	spec.MaxDurationSeconds = float64(c.Video.MaxDurationSeconds)
	return spec
}

// SendToken returns the token used for delivery, falling back to the
// ingestion bot token when a dedicated send token is not configured.
func (c *Config) SendToken() string {
	if c.Telegram.SendToken != "" {
		return c.Telegram.SendToken
	}
	return c.Telegram.BotToken
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
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
