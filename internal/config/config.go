package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	S3         S3Config
	Log        LogConfig
	Extraction ExtractionConfig
	Processing ProcessingConfig
	CORS       CORSConfig
	Queue      QueueConfig
}

// QueueConfig holds processing worker settings.
type QueueConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	PollIntervalSecs int  `mapstructure:"poll_interval_secs"`
	Concurrency      int  `mapstructure:"concurrency"`
}

// ProcessingConfig holds chunking and batch settings for placeholder extraction.
type ProcessingConfig struct {
	MaxChunkLength int           `mapstructure:"max_chunk_length"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ExtractionProviderConfig holds settings for a single LLM provider.
type ExtractionProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ExtractionConfig holds structured-extraction settings with ordered provider fallback.
type ExtractionConfig struct {
	Primary   ExtractionProviderConfig `mapstructure:"primary"`
	Secondary ExtractionProviderConfig `mapstructure:"secondary"`
	Tertiary  ExtractionProviderConfig `mapstructure:"tertiary"`
}

// Providers returns the configured providers in fallback order, skipping empty slots.
func (e *ExtractionConfig) Providers() []*ExtractionProviderConfig {
	var out []*ExtractionProviderConfig
	for _, p := range []*ExtractionProviderConfig{&e.Primary, &e.Secondary, &e.Tertiary} {
		if p.Provider != "" {
			out = append(out, p)
		}
	}
	return out
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`

	// ConnMaxLifetime recycles pooled connections; zero keeps them indefinitely.
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the DOCFILL_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "docfill")
	v.SetDefault("db.password", "docfill_secret")
	v.SetDefault("db.name", "docfill_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("db.conn_max_lifetime", "30m")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "docfill-templates")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 20)
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Queue defaults
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.poll_interval_secs", 5)
	v.SetDefault("queue.concurrency", 4)

	// Processing defaults
	v.SetDefault("processing.max_chunk_length", 6000)
	v.SetDefault("processing.batch_size", 3)
	v.SetDefault("processing.batch_timeout", "5m")

	// Extraction defaults
	v.SetDefault("extraction.primary.provider", "claude")
	v.SetDefault("extraction.primary.api_key", "")
	v.SetDefault("extraction.primary.default_model", "")
	v.SetDefault("extraction.primary.timeout_secs", 120)
	v.SetDefault("extraction.secondary.provider", "")
	v.SetDefault("extraction.secondary.api_key", "")
	v.SetDefault("extraction.secondary.default_model", "")
	v.SetDefault("extraction.secondary.timeout_secs", 120)
	v.SetDefault("extraction.tertiary.provider", "")
	v.SetDefault("extraction.tertiary.api_key", "")
	v.SetDefault("extraction.tertiary.default_model", "")
	v.SetDefault("extraction.tertiary.timeout_secs", 120)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                        "DOCFILL_SERVER_PORT",
		"server.read_timeout":                "DOCFILL_SERVER_READ_TIMEOUT",
		"server.write_timeout":               "DOCFILL_SERVER_WRITE_TIMEOUT",
		"server.environment":                 "DOCFILL_SERVER_ENVIRONMENT",
		"db.host":                            "DOCFILL_DB_HOST",
		"db.port":                            "DOCFILL_DB_PORT",
		"db.user":                            "DOCFILL_DB_USER",
		"db.password":                        "DOCFILL_DB_PASSWORD",
		"db.name":                            "DOCFILL_DB_NAME",
		"db.sslmode":                         "DOCFILL_DB_SSLMODE",
		"db.max_open":                        "DOCFILL_DB_MAX_OPEN",
		"db.max_idle":                        "DOCFILL_DB_MAX_IDLE",
		"db.conn_max_lifetime":               "DOCFILL_DB_CONN_MAX_LIFETIME",
		"s3.region":                          "DOCFILL_S3_REGION",
		"s3.bucket":                          "DOCFILL_S3_BUCKET",
		"s3.endpoint":                        "DOCFILL_S3_ENDPOINT",
		"s3.access_key":                      "DOCFILL_S3_ACCESS_KEY",
		"s3.secret_key":                      "DOCFILL_S3_SECRET_KEY",
		"s3.max_file_size_mb":                "DOCFILL_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":                  "DOCFILL_S3_PRESIGN_EXPIRY",
		"log.level":                          "DOCFILL_LOG_LEVEL",
		"log.format":                         "DOCFILL_LOG_FORMAT",
		"cors.allowed_origins":               "DOCFILL_CORS_ALLOWED_ORIGINS",
		"queue.enabled":                      "DOCFILL_QUEUE_ENABLED",
		"queue.poll_interval_secs":           "DOCFILL_QUEUE_POLL_INTERVAL_SECS",
		"queue.concurrency":                  "DOCFILL_QUEUE_CONCURRENCY",
		"processing.max_chunk_length":        "DOCFILL_PROCESSING_MAX_CHUNK_LENGTH",
		"processing.batch_size":              "DOCFILL_PROCESSING_BATCH_SIZE",
		"processing.batch_timeout":           "DOCFILL_PROCESSING_BATCH_TIMEOUT",
		"extraction.primary.provider":        "DOCFILL_EXTRACTION_PRIMARY_PROVIDER",
		"extraction.primary.api_key":         "DOCFILL_EXTRACTION_PRIMARY_API_KEY",
		"extraction.primary.default_model":   "DOCFILL_EXTRACTION_PRIMARY_DEFAULT_MODEL",
		"extraction.primary.timeout_secs":    "DOCFILL_EXTRACTION_PRIMARY_TIMEOUT_SECS",
		"extraction.secondary.provider":      "DOCFILL_EXTRACTION_SECONDARY_PROVIDER",
		"extraction.secondary.api_key":       "DOCFILL_EXTRACTION_SECONDARY_API_KEY",
		"extraction.secondary.default_model": "DOCFILL_EXTRACTION_SECONDARY_DEFAULT_MODEL",
		"extraction.secondary.timeout_secs":  "DOCFILL_EXTRACTION_SECONDARY_TIMEOUT_SECS",
		"extraction.tertiary.provider":       "DOCFILL_EXTRACTION_TERTIARY_PROVIDER",
		"extraction.tertiary.api_key":        "DOCFILL_EXTRACTION_TERTIARY_API_KEY",
		"extraction.tertiary.default_model":  "DOCFILL_EXTRACTION_TERTIARY_DEFAULT_MODEL",
		"extraction.tertiary.timeout_secs":   "DOCFILL_EXTRACTION_TERTIARY_TIMEOUT_SECS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if DOCFILL_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOCFILL_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),

		ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Queue = QueueConfig{
		Enabled:          v.GetBool("queue.enabled"),
		PollIntervalSecs: v.GetInt("queue.poll_interval_secs"),
		Concurrency:      v.GetInt("queue.concurrency"),
	}

	cfg.Processing = ProcessingConfig{
		MaxChunkLength: v.GetInt("processing.max_chunk_length"),
		BatchSize:      v.GetInt("processing.batch_size"),
		BatchTimeout:   v.GetDuration("processing.batch_timeout"),
	}

	cfg.Extraction = ExtractionConfig{
		Primary:   loadProvider(v, "extraction.primary"),
		Secondary: loadProvider(v, "extraction.secondary"),
		Tertiary:  loadProvider(v, "extraction.tertiary"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadProvider(v *viper.Viper, prefix string) ExtractionProviderConfig {
	return ExtractionProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
	}
}

func (c *Config) validate() error {
	if c.Processing.MaxChunkLength <= 0 {
		return fmt.Errorf("processing.max_chunk_length must be positive, got %d", c.Processing.MaxChunkLength)
	}
	if c.Processing.BatchSize <= 0 {
		return fmt.Errorf("processing.batch_size must be positive, got %d", c.Processing.BatchSize)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue.concurrency must be positive, got %d", c.Queue.Concurrency)
	}
	if len(c.Extraction.Providers()) == 0 {
		return fmt.Errorf("at least one extraction provider must be configured")
	}
	return nil
}
