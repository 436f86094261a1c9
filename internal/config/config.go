// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Whisper       WhisperConfig
	Kafka         KafkaConfig
	Store         StoreConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal     string
	HTTPPort      string
	GRPCPort      string
	PublicBaseURL string
}

type STTConfig struct {
	Provider     string // onramp_lab_whisper, mock
	LanguageCode string
	MockDelay    time.Duration
}

type WhisperConfig struct {
	Region         string
	AccessKey      string
	AccessSecret   string
	FunctionName   string
	CallbackMethod string
}

type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicCompleted string
	TopicFailed    string
	Principal      string
}

type StoreConfig struct {
	Driver       string // sqlite3, postgres
	DSN          string
	MaxOpenConns int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	PresignExpiry time.Duration
}

type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads the optional env file and then the environment. Unset or
// unparsable values fall back to defaults.
func Load() *Config {
	loadEnvFile(envOrDefault("ENV_FILE", ".env"))

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-speech-transcription")

	return &Config{
		Service: ServiceConfig{
			Principal:     principal,
			HTTPPort:      envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:      envOrDefault("GRPC_PORT", "50051"),
			PublicBaseURL: strings.TrimRight(envOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		STT: STTConfig{
			Provider:     envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode: envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			MockDelay:    envOrDefaultDuration("STT_MOCK_DELAY", 2*time.Second),
		},
		Whisper: WhisperConfig{
			Region:         envOrDefault("WHISPER_REGION", "us-east-1"),
			AccessKey:      os.Getenv("WHISPER_ACCESS_KEY"),
			AccessSecret:   os.Getenv("WHISPER_ACCESS_SECRET"),
			FunctionName:   envOrDefault("WHISPER_FUNCTION_NAME", "open-ai-whisper-transcribe:v2"),
			CallbackMethod: envCallbackMethod("WHISPER_CALLBACK_METHOD", "POST"),
		},
		Kafka: KafkaConfig{
			Enabled:        envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:        envOrDefaultSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicCompleted: envOrDefault("KAFKA_TOPIC_COMPLETED", "transcript.completed"),
			TopicFailed:    envOrDefault("KAFKA_TOPIC_FAILED", "transcript.failed"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Store: StoreConfig{
			Driver:       envOrDefault("STORE_DRIVER", "sqlite3"),
			DSN:          envOrDefault("STORE_DSN", "file:transcripts.db?cache=shared&mode=rwc"),
			MaxOpenConns: envOrDefaultInt("STORE_MAX_OPEN_CONNS", 10),
		},
		Storage: StorageConfig{
			Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
			Region:        envOrDefault("STORAGE_REGION", "us-east-1"),
			UseSSL:        envOrDefaultBool("STORAGE_USE_SSL", true),
			PresignExpiry: envOrDefaultDuration("STORAGE_PRESIGN_EXPIRY", time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

// loadEnvFile merges path into the environment without overriding
// variables that are already set. A missing file is ignored.
func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to load env file")
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envCallbackMethod accepts the methods the callback route serves.
func envCallbackMethod(key, def string) string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "POST", "PUT":
		return v
	default:
		log.Warn().Str("key", key).Str("value", v).Str("default", def).
			Msg("Unsupported callback method, using default")
		return def
	}
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
