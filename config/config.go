// Package config loads service settings from the environment (prefix TAPU_),
// an optional .env file and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	Mode            string        `mapstructure:"mode"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
	ErrorPaths  []string `mapstructure:"error_paths"`
}

// PipelineConfig holds document processing settings.
type PipelineConfig struct {
	WorkDir            string        `mapstructure:"work_dir"`
	CleanWatermarks    bool          `mapstructure:"clean_watermarks"`
	WatermarkSize      float64       `mapstructure:"watermark_size"`
	WatermarkTolerance float64       `mapstructure:"watermark_tolerance"`
	KeepAlive          time.Duration `mapstructure:"keep_alive"`
	DownloadURLPrefix  string        `mapstructure:"download_url_prefix"`
	MaxFiles           int           `mapstructure:"max_files"`
	MaxPages           int           `mapstructure:"max_pages"`
	LayoutFile         string        `mapstructure:"layout_file"`
}

// ExtractorConfig points at the table extraction service.
type ExtractorConfig struct {
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects and configures the output store.
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Local LocalConfig `mapstructure:"local"`
	S3    S3Config    `mapstructure:"s3"`
	Minio MinioConfig `mapstructure:"minio"`
}

type LocalConfig struct {
	Root string `mapstructure:"root"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	BucketName string `mapstructure:"bucket"`
	Region     string `mapstructure:"region"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
}

// MinioConfig holds MinIO settings.
type MinioConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket"`
}

// RedisConfig enables job snapshots and output retention. An empty Addr
// disables both.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	SnapshotTTL     time.Duration `mapstructure:"snapshot_ttl"`
	OutputRetention time.Duration `mapstructure:"output_retention"`
	Concurrency     int           `mapstructure:"concurrency"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration. Values come, in order of precedence, from TAPU_*
// environment variables (also read from .env), config.yaml and defaults.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TAPU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout", "logs/app.log"})
	v.SetDefault("log.error_paths", []string{"logs/error.log"})

	v.SetDefault("pipeline.work_dir", "/tmp/tapu")
	v.SetDefault("pipeline.clean_watermarks", true)
	v.SetDefault("pipeline.watermark_size", 108.9)
	v.SetDefault("pipeline.watermark_tolerance", 0.05)
	v.SetDefault("pipeline.keep_alive", "15s")
	v.SetDefault("pipeline.download_url_prefix", "/api/v1/jobs")
	v.SetDefault("pipeline.max_files", 200)
	v.SetDefault("pipeline.max_pages", 200)
	v.SetDefault("pipeline.layout_file", "")

	v.SetDefault("extractor.address", "localhost:50051")
	v.SetDefault("extractor.timeout", "5m")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.root", "/tmp/tapu/outputs")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "eu-central-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.region", "")
	v.SetDefault("storage.minio.bucket", "tapu-outputs")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", "24h")
	v.SetDefault("redis.output_retention", "24h")
	v.SetDefault("redis.concurrency", 2)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "local", "s3", "minio":
	default:
		return fmt.Errorf("config: unsupported storage type %q", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.BucketName == "" {
		return errors.New("config: storage.s3.bucket is required")
	}
	if c.Pipeline.KeepAlive <= 0 {
		return errors.New("config: pipeline.keep_alive must be positive")
	}
	if c.Pipeline.WatermarkTolerance < 0 {
		return errors.New("config: pipeline.watermark_tolerance must not be negative")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("config: server.max_upload_mb must be positive")
	}
	return nil
}

// MaxUploadBytes returns the request body limit for uploads.
func (s ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}
