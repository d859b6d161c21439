package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MLLPPort          int
	WebPort           int
	DirectoryBaseURL  string
	SchedulingBaseURL string
	AuditDir          string
	DataPath          string
	FallbackDoctorID  int64
	HTTPTimeout       time.Duration
	LogLevel          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MLLPPort:          getEnvAsInt("MLLP_PORT", 2575),
		WebPort:           getEnvAsInt("WEB_PORT", 5678),
		DirectoryBaseURL:  getEnv("DIRECTORY_BASE_URL", "http://localhost:5010"),
		SchedulingBaseURL: getEnv("SCHEDULING_BASE_URL", "http://localhost:5020"),
		AuditDir:          getEnv("AUDIT_DIR", "logs"),
		DataPath:          getEnv("DATA_PATH", "/data"),
		FallbackDoctorID:  int64(getEnvAsInt("FALLBACK_DOCTOR_ID", 1)),
		HTTPTimeout:       time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	setupLogger(cfg.LogLevel)

	slog.Info("Yapılandırma yüklendi",
		"mllpPort", cfg.MLLPPort,
		"webPort", cfg.WebPort,
		"directoryBaseURL", cfg.DirectoryBaseURL,
		"schedulingBaseURL", cfg.SchedulingBaseURL,
		"auditDir", cfg.AuditDir,
	)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)
}
