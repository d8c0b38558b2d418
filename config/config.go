// Package config loads the support bundle builder settings.
//
// Settings live in $FLEDGE_ROOT/etc/support.yaml. A missing file yields the
// defaults. Values from a .env file in the working directory and from the
// process environment override whatever the file says, so packaged installs
// can be re-pointed without editing yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fledge/internal/defaults"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	DefaultMaxBundles  = 3
	DefaultStepTimeout = 2 * time.Minute
)

// Storage selects the storage engine the table collectors read from.
type Storage struct {
	Engine string `yaml:"engine"`
	Path   string `yaml:"path,omitempty"`   // sqlite database file
	DSN    string `yaml:"dsn,omitempty"`    // postgres connection string
	Schema string `yaml:"schema,omitempty"` // postgres schema holding the tables
}

// Upload configures optional publication of sealed bundles to S3-compatible
// object storage.
type Upload struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Config holds every knob of the builder and its CLI.
type Config struct {
	Root        string        `yaml:"root"`
	Data        string        `yaml:"data"`
	SupportDir  string        `yaml:"support_dir"`
	WorkDir     string        `yaml:"work_dir,omitempty"`
	SyslogFile  string        `yaml:"syslog_file"`
	ScratchDir  string        `yaml:"scratch_dir"`
	MaxBundles  int           `yaml:"max_bundles"`
	StepTimeout time.Duration `yaml:"step_timeout"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	Storage     Storage       `yaml:"storage"`
	Upload      Upload        `yaml:"upload"`
}

// Path returns the default config file location.
func Path() string {
	return defaults.ConfigPath(defaults.Root())
}

// Load reads the config at path (Path() when empty), applies environment
// overrides and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = Path()
	}
	_ = godotenv.Load() // optional .env

	// Defaults a zero value can't stand in for are seeded before decoding so
	// an explicit "step_timeout: 0s" keeps its meaning (no per-step bound).
	cfg := &Config{StepTimeout: DefaultStepTimeout}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func (c *Config) Save(path string) error {
	if strings.TrimSpace(path) == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects settings the builder cannot run with.
func (c *Config) Validate() error {
	if c.MaxBundles < 1 {
		return fmt.Errorf("max_bundles must be at least 1, got %d", c.MaxBundles)
	}
	if c.StepTimeout < 0 {
		return fmt.Errorf("step_timeout must not be negative")
	}
	switch c.Storage.Engine {
	case StorageSQLite:
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for the postgres engine")
		}
	default:
		return fmt.Errorf("unknown storage engine %q", c.Storage.Engine)
	}
	if c.Upload.Enabled && strings.TrimSpace(c.Upload.Endpoint) == "" {
		return fmt.Errorf("upload.endpoint is required when upload is enabled")
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Root, "FLEDGE_ROOT")
	setString(&c.Data, "FLEDGE_DATA")
	setString(&c.SupportDir, "FLEDGE_SUPPORT_DIR")
	setString(&c.Storage.DSN, "FLEDGE_STORAGE_DSN")
	if c.Storage.DSN != "" && c.Storage.Engine == "" {
		c.Storage.Engine = StoragePostgres
	}

	setString(&c.Upload.Endpoint, "SUPPORT_S3_ENDPOINT")
	setString(&c.Upload.Region, "SUPPORT_S3_REGION")
	setString(&c.Upload.AccessKey, "SUPPORT_S3_ACCESS_KEY")
	setString(&c.Upload.SecretKey, "SUPPORT_S3_SECRET_KEY")
	setString(&c.Upload.Bucket, "SUPPORT_S3_BUCKET")
	if raw := strings.TrimSpace(os.Getenv("SUPPORT_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			c.Upload.UseSSL = v
		}
	}
}

func (c *Config) fillDefaults() {
	if c.Root == "" {
		c.Root = defaults.Root()
	}
	if c.Data == "" {
		c.Data = defaults.DataDir(c.Root)
	}
	if c.SupportDir == "" {
		c.SupportDir = defaults.SupportDir(c.Data)
	}
	if c.WorkDir == "" {
		c.WorkDir = c.SupportDir
	}
	if c.SyslogFile == "" {
		c.SyslogFile = defaults.SyslogFile()
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	if c.MaxBundles == 0 {
		c.MaxBundles = DefaultMaxBundles
	}
	if c.Storage.Engine == "" {
		c.Storage.Engine = StorageSQLite
	}
	if c.Storage.Engine == StorageSQLite && c.Storage.Path == "" {
		c.Storage.Path = defaults.StoragePath(c.Data)
	}
	if c.Storage.Engine == StoragePostgres && c.Storage.Schema == "" {
		c.Storage.Schema = "fledge"
	}
	if c.Upload.Region == "" {
		c.Upload.Region = "us-east-1"
	}
	if c.Upload.Bucket == "" {
		c.Upload.Bucket = "fledge-support"
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
