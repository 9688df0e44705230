// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/voxleaf/voxleaf/internal/provider"
)

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig selects the cache backend. With Enabled false the service runs
// on the in-process cache, which is fine for a single node.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig selects the audio/PDF object store. With Bucket empty the
// service keeps objects in memory; endpoint is for S3-compatible stores such
// as R2 or MinIO.
type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type TTSConfig struct {
	Providers      []provider.Settings `yaml:"providers"`
	Placeholder    bool                `yaml:"placeholder"`
	Voice          string              `yaml:"voice"`
	Model          string              `yaml:"model"`
	Speed          float64             `yaml:"speed"`
	Format         string              `yaml:"format"`
	CallTimeoutMS  int                 `yaml:"call_timeout_ms"`
	PrefetchWindow int                 `yaml:"prefetch_window"`
	BatchWidth     int                 `yaml:"batch_width"`
	BatchPauseMS   int                 `yaml:"batch_pause_ms"`
}

type PDFConfig struct {
	ExtractCommand []string `yaml:"extract_command"`
	MaxWords       int      `yaml:"max_words"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

type Config struct {
	Environment string         `yaml:"environment"`
	LogLevel    string         `yaml:"log_level"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Storage     StorageConfig  `yaml:"storage"`
	TTS         TTSConfig      `yaml:"tts"`
	PDF         PDFConfig      `yaml:"pdf"`
}

func Default() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8000,
		},
		Database: DatabaseConfig{
			Path: "./data/voxleaf.db",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		TTS: TTSConfig{
			Providers: []provider.Settings{
				{Name: provider.NameOpenAI},
			},
			Voice:          "alloy",
			Speed:          1.0,
			Format:         "mp3",
			CallTimeoutMS:  45000,
			PrefetchWindow: 2,
			BatchWidth:     3,
			BatchPauseMS:   1000,
		},
		PDF: PDFConfig{
			MaxWords:    50,
			MaxUploadMB: 50,
		},
	}
}

// Level returns the configured zerolog level, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Environment, "VOXLEAF_ENVIRONMENT")
	overrideString(&cfg.LogLevel, "VOXLEAF_LOG_LEVEL")
	overrideString(&cfg.Server.Bind, "VOXLEAF_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "VOXLEAF_SERVER_PORT")
	overrideString(&cfg.Database.Path, "VOXLEAF_DATABASE_PATH")
	overrideBool(&cfg.Redis.Enabled, "VOXLEAF_REDIS_ENABLED")
	overrideString(&cfg.Redis.Addr, "VOXLEAF_REDIS_ADDR")
	overrideString(&cfg.Redis.Password, "VOXLEAF_REDIS_PASSWORD")
	overrideInt(&cfg.Redis.DB, "VOXLEAF_REDIS_DB")
	overrideString(&cfg.Storage.Bucket, "VOXLEAF_STORAGE_BUCKET")
	overrideString(&cfg.Storage.Region, "VOXLEAF_STORAGE_REGION")
	overrideString(&cfg.Storage.Endpoint, "VOXLEAF_STORAGE_ENDPOINT")
	overrideString(&cfg.Storage.AccessKeyID, "VOXLEAF_STORAGE_ACCESS_KEY_ID")
	overrideString(&cfg.Storage.SecretAccessKey, "VOXLEAF_STORAGE_SECRET_ACCESS_KEY")
	overrideBool(&cfg.TTS.Placeholder, "VOXLEAF_TTS_PLACEHOLDER")
	overrideString(&cfg.TTS.Voice, "VOXLEAF_TTS_VOICE")
	overrideString(&cfg.TTS.Model, "VOXLEAF_TTS_MODEL")
	overrideInt(&cfg.TTS.CallTimeoutMS, "VOXLEAF_TTS_CALL_TIMEOUT_MS")
	overrideInt(&cfg.TTS.PrefetchWindow, "VOXLEAF_TTS_PREFETCH_WINDOW")
	overrideInt(&cfg.TTS.BatchWidth, "VOXLEAF_TTS_BATCH_WIDTH")
	overrideInt(&cfg.TTS.BatchPauseMS, "VOXLEAF_TTS_BATCH_PAUSE_MS")
	overrideInt(&cfg.PDF.MaxWords, "VOXLEAF_PDF_MAX_WORDS")
	overrideInt(&cfg.PDF.MaxUploadMB, "VOXLEAF_PDF_MAX_UPLOAD_MB")

	if value, ok := os.LookupEnv("VOXLEAF_TTS_PROVIDERS"); ok {
		var settings []provider.Settings
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				settings = append(settings, provider.Settings{Name: name})
			}
		}
		if len(settings) > 0 {
			cfg.TTS.Providers = settings
		}
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if cfg.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("log_level %q is not a valid level", cfg.LogLevel)
		}
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis.addr must not be empty when redis is enabled")
	}
	if len(cfg.TTS.Providers) == 0 && !cfg.TTS.Placeholder {
		return errors.New("tts.providers must not be empty unless the placeholder provider is enabled")
	}
	known := make(map[string]bool)
	for _, name := range provider.Names() {
		known[name] = true
	}
	for _, p := range cfg.TTS.Providers {
		if !known[p.Name] {
			return fmt.Errorf("tts.providers contains unknown provider %q (valid: %s)", p.Name, strings.Join(provider.Names(), "|"))
		}
	}
	if cfg.TTS.Speed != 0 && (cfg.TTS.Speed < 0.25 || cfg.TTS.Speed > 4.0) {
		return errors.New("tts.speed must be between 0.25 and 4.0")
	}
	if cfg.TTS.PrefetchWindow < 0 {
		return errors.New("tts.prefetch_window must be >= 0")
	}
	if cfg.TTS.BatchWidth < 0 {
		return errors.New("tts.batch_width must be >= 0")
	}
	if cfg.PDF.MaxWords <= 0 {
		return errors.New("pdf.max_words must be positive")
	}
	if cfg.PDF.MaxUploadMB <= 0 {
		return errors.New("pdf.max_upload_mb must be positive")
	}
	return nil
}
