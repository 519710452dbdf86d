package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		overrides   []func(*Config)
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with bucket from env",
			env:  map[string]string{"FIRDS_STORAGE_BUCKET": "firds-exports"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultFeedURL, cfg.Feed.URL)
				assert.Equal(t, "DLTINS", cfg.Feed.Prefix)
				assert.Equal(t, 2, cfg.HTTP.RetryMax)
				assert.Equal(t, 5*time.Minute, cfg.HTTP.Timeout)
				assert.Equal(t, "abort", cfg.Extract.OnMalformed)
				assert.Equal(t, "csv", cfg.Output.Format)
				assert.Equal(t, "fininstr.csv", cfg.Output.FileName)
				assert.Equal(t, "s3", cfg.Storage.Backend)
				assert.Equal(t, "firds-exports", cfg.Storage.Bucket)
				assert.Equal(t, "us-east-1", cfg.Storage.Region)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "data", cfg.Paths.DataDir)
				assert.Equal(t, 30*time.Minute, cfg.RunTimeout)
			},
		},
		{
			name: "environment overrides nested fields",
			env: map[string]string{
				"FIRDS_STORAGE_BACKEND": "none",
				"FIRDS_FEED_PREFIX":     "FULINS",
				"FIRDS_HTTP_RETRY_MAX":  "0",
				"FIRDS_HTTP_TIMEOUT":    "45s",
				"FIRDS_OUTPUT_FORMAT":   "parquet",
				"FIRDS_ARCHIVE_PERSIST": "true",
				"FIRDS_LOGGING_LEVEL":   "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "FULINS", cfg.Feed.Prefix)
				assert.Equal(t, 0, cfg.HTTP.RetryMax)
				assert.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
				assert.Equal(t, "parquet", cfg.Output.Format)
				assert.True(t, cfg.Archive.Persist)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "file values survive when env is unset",
			file: `
feed:
  prefix: DLTINS
storage:
  backend: minio
  bucket: from-file
  endpoint: localhost:9000
  access_key_id: minio
  secret_access_key: minio123
http:
  retry_max: 5
  retry_wait_min: 10ms
  retry_wait_max: 50ms
output:
  file_name: out.xlsx
  format: xlsx
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "minio", cfg.Storage.Backend)
				assert.Equal(t, "from-file", cfg.Storage.Bucket)
				assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
				assert.Equal(t, 5, cfg.HTTP.RetryMax)
				assert.Equal(t, 10*time.Millisecond, cfg.HTTP.RetryWaitMin)
				assert.Equal(t, "xlsx", cfg.Output.Format)
				// untouched sections keep their defaults
				assert.Equal(t, 5*time.Minute, cfg.HTTP.Timeout)
				assert.Equal(t, DefaultFeedURL, cfg.Feed.URL)
			},
		},
		{
			name: "env takes precedence over file",
			file: `
storage:
  backend: s3
  bucket: from-file
`,
			env: map[string]string{"FIRDS_STORAGE_BUCKET": "from-env"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "from-env", cfg.Storage.Bucket)
			},
		},
		{
			name: "overrides applied before validation",
			overrides: []func(*Config){
				func(c *Config) { c.Storage.Backend = "none" },
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "none", cfg.Storage.Backend)
				assert.Empty(t, cfg.Storage.Bucket)
			},
		},
		{
			name:    "s3 backend without bucket",
			wantErr: true,
		},
		{
			name: "minio backend without endpoint",
			env: map[string]string{
				"FIRDS_STORAGE_BACKEND":           "minio",
				"FIRDS_STORAGE_BUCKET":            "b",
				"FIRDS_STORAGE_ACCESS_KEY_ID":     "k",
				"FIRDS_STORAGE_SECRET_ACCESS_KEY": "s",
			},
			wantErr: true,
		},
		{
			name: "unknown output format",
			env: map[string]string{
				"FIRDS_STORAGE_BACKEND": "none",
				"FIRDS_OUTPUT_FORMAT":   "json",
			},
			wantErr: true,
		},
		{
			name: "unknown malformed record policy",
			env: map[string]string{
				"FIRDS_STORAGE_BACKEND":      "none",
				"FIRDS_EXTRACT_ON_MALFORMED": "ignore",
			},
			wantErr: true,
		},
		{
			name: "retry wait max below min",
			env: map[string]string{
				"FIRDS_STORAGE_BACKEND":     "none",
				"FIRDS_HTTP_RETRY_WAIT_MIN": "10s",
				"FIRDS_HTTP_RETRY_WAIT_MAX": "1s",
			},
			wantErr: true,
		},
		{
			name:    "malformed duration in env",
			env:     map[string]string{"FIRDS_HTTP_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "storage: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigFileEnv, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := Load(path, tt.overrides...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

// Shell and CI variables without the FIRDS_ prefix must not reach the config.
func TestLoadIgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	for k, v := range map[string]string{
		"PREFIX":   "FULINS",
		"URL":      "not a url",
		"FORMAT":   "parquet",
		"BUCKET":   "stray-bucket",
		"REGION":   "eu-west-3",
		"TIMEOUT":  "1s",
		"LEVEL":    "debug",
		"OUTPUT":   "file",
		"NAME":     "stray.zip",
		"DATA_DIR": "/tmp/stray",
	} {
		t.Setenv(k, v)
	}

	cfg, err := Load("", func(c *Config) { c.Storage.Backend = "none" })
	require.NoError(t, err)
	assert.Equal(t, DefaultFilePrefix, cfg.Feed.Prefix)
	assert.Equal(t, DefaultFeedURL, cfg.Feed.URL)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, 5*time.Minute, cfg.HTTP.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Empty(t, cfg.Archive.Name)
	assert.Equal(t, "data", cfg.Paths.DataDir)
}

func TestLoadSplitWordNames(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("FIRDS_STORAGE_BACKEND", "minio")
	t.Setenv("FIRDS_STORAGE_BUCKET", "b")
	t.Setenv("FIRDS_STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("FIRDS_STORAGE_ACCESS_KEY_ID", "k")
	t.Setenv("FIRDS_STORAGE_SECRET_ACCESS_KEY", "s")
	t.Setenv("FIRDS_STORAGE_USE_SSL", "false")
	t.Setenv("FIRDS_ARCHIVE_LOCAL_PATH", "/tmp/DLTINS_20210117_01of01.zip")
	t.Setenv("FIRDS_PATHS_DATA_DIR", "/tmp/firds")
	t.Setenv("FIRDS_RUN_TIMEOUT", "2m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Storage.AccessKeyID)
	assert.Equal(t, "s", cfg.Storage.SecretAccessKey)
	assert.False(t, cfg.Storage.UseSSL)
	assert.Equal(t, "/tmp/DLTINS_20210117_01of01.zip", cfg.Archive.LocalPath)
	assert.Equal(t, "/tmp/firds", cfg.Paths.DataDir)
	assert.Equal(t, 2*time.Minute, cfg.RunTimeout)
}

func TestLoadConfigFileFromEnv(t *testing.T) {
	path := writeConfigFile(t, "storage:\n  backend: none\noutput:\n  file_name: env.csv\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.csv", cfg.Output.FileName)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultNeedsOnlyABucket(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Storage.Bucket = "firds"
	assert.NoError(t, cfg.Validate())
}
