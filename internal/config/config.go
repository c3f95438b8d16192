// Package config loads service configuration from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"live-transcript-service/internal/schema"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	Recognition   RecognitionConfig   `yaml:"recognition"`
	Restart       RestartConfig       `yaml:"restart"`
	Storage       StorageConfig       `yaml:"storage"`
	Export        ExportConfig        `yaml:"export"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	NATS          NATSConfig          `yaml:"nats"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	HTTPPort    string `yaml:"http_port"`
	GRPCPort    string `yaml:"grpc_port"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// RecognitionConfig holds the engine selection and the initial client settings.
type RecognitionConfig struct {
	Provider              string  `yaml:"provider"` // mock, google
	LanguageCode          string  `yaml:"language_code"`
	HighAccuracy          bool    `yaml:"high_accuracy"`
	MeetingMode           bool    `yaml:"meeting_mode"`
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"`
	LowConfidenceAdvisory float64 `yaml:"low_confidence_advisory"`
	AudioSource           string  `yaml:"audio_source"` // file path, or "-" for stdin
	SampleRateHz          int     `yaml:"sample_rate_hz"`
	AudioEncoding         string  `yaml:"audio_encoding"`
}

// RestartConfig holds the auto-restart and advisory timings.
type RestartConfig struct {
	EndedDelay       time.Duration `yaml:"ended_delay"`
	NoSpeechDelay    time.Duration `yaml:"no_speech_delay"`
	NetworkDelay     time.Duration `yaml:"network_delay"`
	AdvisoryDuration time.Duration `yaml:"advisory_duration"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite
	Path    string `yaml:"path"`
}

type ExportConfig struct {
	Dir              string `yaml:"dir"`
	ClipboardCommand string `yaml:"clipboard_command"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topic_partial"`
	TopicFinal   string   `yaml:"topic_final"`
	Principal    string   `yaml:"principal"`
}

type NATSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	SubjectPartial string   `yaml:"subject_partial"`
	SubjectFinal   string   `yaml:"subject_final"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:   "svc-live-transcript",
			HTTPPort:    "8080",
			GRPCPort:    "50051",
			MetricsAddr: ":9090",
		},
		Recognition: RecognitionConfig{
			Provider:              "mock",
			LanguageCode:          "en-US",
			ConfidenceThreshold:   0.5,
			LowConfidenceAdvisory: 0.7,
			AudioSource:           "-",
			SampleRateHz:          16000,
			AudioEncoding:         "LINEAR16",
		},
		Restart: RestartConfig{
			EndedDelay:       500 * time.Millisecond,
			NoSpeechDelay:    1000 * time.Millisecond,
			NetworkDelay:     2000 * time.Millisecond,
			AdvisoryDuration: 2 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "./data/transcript.db",
		},
		Export: ExportConfig{
			Dir: "./exports",
		},
		Kafka: KafkaConfig{
			TopicPartial: "transcript.partial",
			TopicFinal:   "transcript.final",
		},
		NATS: NATSConfig{
			Servers:        []string{"nats://localhost:4222"},
			SubjectPartial: "transcript.partial",
			SubjectFinal:   "transcript.final",
			ConnectTimeout: 2000,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, the file named by CONFIG_FILE
// (if any), and environment overrides. A broken config file is logged and skipped.
func Load() *Configuration {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err := LoadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Ignoring config file")
		} else {
			return cfg
		}
	}
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// LoadFile reads a YAML config file over the defaults and then applies environment overrides.
func LoadFile(path string) (*Configuration, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// Validate checks the values the reconciler depends on.
func (c *Configuration) Validate() error {
	v := schema.New()
	if err := v.ValidateLanguage(c.Recognition.LanguageCode); err != nil {
		return err
	}
	if err := v.ValidateConfidence("confidence threshold", c.Recognition.ConfidenceThreshold); err != nil {
		return err
	}
	if err := v.ValidateConfidence("low confidence advisory", c.Recognition.LowConfidenceAdvisory); err != nil {
		return err
	}
	switch c.Recognition.Provider {
	case "mock", "google":
	default:
		return fmt.Errorf("unknown recognition provider %q", c.Recognition.Provider)
	}
	switch c.Storage.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func applyEnv(cfg *Configuration) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.HTTPPort = envOrDefault("HTTP_PORT", cfg.Service.HTTPPort)
	cfg.Service.GRPCPort = envOrDefault("GRPC_PORT", cfg.Service.GRPCPort)
	cfg.Service.MetricsAddr = envOrDefault("METRICS_ADDR", cfg.Service.MetricsAddr)

	cfg.Recognition.Provider = envOrDefault("RECOGNITION_PROVIDER", cfg.Recognition.Provider)
	cfg.Recognition.LanguageCode = envOrDefault("RECOGNITION_LANGUAGE_CODE", cfg.Recognition.LanguageCode)
	cfg.Recognition.HighAccuracy = envOrDefaultBool("RECOGNITION_HIGH_ACCURACY", cfg.Recognition.HighAccuracy)
	cfg.Recognition.MeetingMode = envOrDefaultBool("RECOGNITION_MEETING_MODE", cfg.Recognition.MeetingMode)
	cfg.Recognition.ConfidenceThreshold = envOrDefaultFloat("RECOGNITION_CONFIDENCE_THRESHOLD", cfg.Recognition.ConfidenceThreshold)
	cfg.Recognition.LowConfidenceAdvisory = envOrDefaultFloat("RECOGNITION_LOW_CONFIDENCE_ADVISORY", cfg.Recognition.LowConfidenceAdvisory)
	cfg.Recognition.AudioSource = envOrDefault("RECOGNITION_AUDIO_SOURCE", cfg.Recognition.AudioSource)
	cfg.Recognition.SampleRateHz = envOrDefaultInt("RECOGNITION_SAMPLE_RATE_HZ", cfg.Recognition.SampleRateHz)
	cfg.Recognition.AudioEncoding = envOrDefault("RECOGNITION_AUDIO_ENCODING", cfg.Recognition.AudioEncoding)

	cfg.Restart.EndedDelay = envOrDefaultDuration("RESTART_ENDED_DELAY", cfg.Restart.EndedDelay)
	cfg.Restart.NoSpeechDelay = envOrDefaultDuration("RESTART_NO_SPEECH_DELAY", cfg.Restart.NoSpeechDelay)
	cfg.Restart.NetworkDelay = envOrDefaultDuration("RESTART_NETWORK_DELAY", cfg.Restart.NetworkDelay)
	cfg.Restart.AdvisoryDuration = envOrDefaultDuration("ADVISORY_DURATION", cfg.Restart.AdvisoryDuration)

	cfg.Storage.Backend = envOrDefault("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Path = envOrDefault("STORAGE_PATH", cfg.Storage.Path)

	cfg.Export.Dir = envOrDefault("EXPORT_DIR", cfg.Export.Dir)
	cfg.Export.ClipboardCommand = envOrDefault("CLIPBOARD_COMMAND", cfg.Export.ClipboardCommand)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", cfg.Kafka.TopicPartial)
	cfg.Kafka.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", cfg.Kafka.TopicFinal)
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	cfg.NATS.Enabled = envOrDefaultBool("NATS_ENABLED", cfg.NATS.Enabled)
	cfg.NATS.Servers = envOrDefaultList("NATS_SERVERS", cfg.NATS.Servers)
	cfg.NATS.SubjectPartial = envOrDefault("NATS_SUBJECT_PARTIAL", cfg.NATS.SubjectPartial)
	cfg.NATS.SubjectFinal = envOrDefault("NATS_SUBJECT_FINAL", cfg.NATS.SubjectFinal)
	cfg.NATS.ConnectTimeout = envOrDefaultInt("NATS_CONNECT_TIMEOUT_MS", cfg.NATS.ConnectTimeout)

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

func envOrDefaultList(key string, def []string) []string {
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
