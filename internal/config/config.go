package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Feed       FeedConfig      `yaml:"feed" envconfig:"FEED"`
	HTTP       HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	Archive    ArchiveConfig   `yaml:"archive" envconfig:"ARCHIVE"`
	Extract    ExtractConfig   `yaml:"extract" envconfig:"EXTRACT"`
	Output     OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Storage    StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Logging    LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry  TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Paths      PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	RunTimeout time.Duration   `yaml:"run_timeout" split_words:"true" validate:"gte=0"`
}

// FeedConfig describes the registry document and the link to select from it
type FeedConfig struct {
	URL    string `yaml:"url" split_words:"true" validate:"required,url"`
	Prefix string `yaml:"prefix" split_words:"true" validate:"required"`
}

// HTTPConfig contains fetch behaviour for the feed and the archive
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
	RetryMax     int           `yaml:"retry_max" split_words:"true" validate:"gte=0,lte=10"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min" split_words:"true" validate:"gte=0"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max" split_words:"true" validate:"gtefield=RetryWaitMin"`
	UserAgent    string        `yaml:"user_agent" split_words:"true"`
}

// ArchiveConfig controls how the downloaded package is handled
type ArchiveConfig struct {
	Persist bool   `yaml:"persist" split_words:"true"`
	Name    string `yaml:"name" split_words:"true"`
	// LocalPath reads the package from disk instead of the feed
	LocalPath string `yaml:"local_path" split_words:"true"`
}

// ExtractConfig controls the record extractor
type ExtractConfig struct {
	OnMalformed      string        `yaml:"on_malformed" split_words:"true" validate:"oneof=abort skip"`
	ProgressInterval time.Duration `yaml:"progress_interval" split_words:"true" validate:"gte=0"`
}

// OutputConfig describes the tabular file
type OutputConfig struct {
	FileName string `yaml:"file_name" split_words:"true" validate:"required"`
	Format   string `yaml:"format" split_words:"true" validate:"oneof=csv xlsx parquet"`
}

// StorageConfig contains the remote bucket and its credentials
type StorageConfig struct {
	Backend         string `yaml:"backend" split_words:"true" validate:"oneof=none s3 minio gcs"`
	Bucket          string `yaml:"bucket" split_words:"true" validate:"required_unless=Backend none"`
	ObjectPrefix    string `yaml:"object_prefix" split_words:"true"`
	Region          string `yaml:"region" split_words:"true"`
	AccessKeyID     string `yaml:"access_key_id" split_words:"true" validate:"required_if=Backend minio"`
	SecretAccessKey string `yaml:"secret_access_key" split_words:"true" validate:"required_with=AccessKeyID"`
	SessionToken    string `yaml:"session_token" split_words:"true"`
	Endpoint        string `yaml:"endpoint" split_words:"true" validate:"required_if=Backend minio"`
	UseSSL          bool   `yaml:"use_ssl" split_words:"true"`
	CredentialsFile string `yaml:"credentials_file" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" split_words:"true" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	TraceExporter   string `yaml:"trace_exporter" split_words:"true" validate:"oneof=none stdout"`
	MetricsEnabled  bool   `yaml:"metrics_enabled" split_words:"true"`
	MetricsTextfile string `yaml:"metrics_textfile" split_words:"true"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir string `yaml:"data_dir" split_words:"true" validate:"required"`
}

// Load builds the configuration from defaults, then the YAML file, then the
// environment. Later sources override earlier ones field by field. An empty
// configFile falls back to $FIRDS_CONFIG_FILE; when both are empty no file is
// read. Overrides, typically command-line flags, are applied last and before
// validation.
func Load(configFile string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = os.Getenv(ConfigFileEnv)
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are set override; no default tags are declared so
	// file values survive. Leaf fields use split_words rather than explicit
	// envconfig names, which would also match the bare unprefixed variable.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New()

// Validate checks field constraints declared in the struct tags
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:    DefaultFeedURL,
			Prefix: DefaultFilePrefix,
		},
		HTTP: HTTPConfig{
			Timeout:      5 * time.Minute,
			RetryMax:     2,
			RetryWaitMin: 1 * time.Second,
			RetryWaitMax: 30 * time.Second,
			UserAgent:    DefaultUserAgent,
		},
		Archive: ArchiveConfig{
			Persist: false,
		},
		Extract: ExtractConfig{
			OnMalformed:      "abort",
			ProgressInterval: 10 * time.Second,
		},
		Output: OutputConfig{
			FileName: "fininstr.csv",
			Format:   "csv",
		},
		Storage: StorageConfig{
			Backend: "s3",
			Region:  "us-east-1",
			UseSSL:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "both",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
		Paths: PathsConfig{
			DataDir: "data",
		},
		RunTimeout: 30 * time.Minute,
	}
}
