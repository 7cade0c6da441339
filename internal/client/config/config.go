// Package config holds the client configuration persisted as JSON.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/assetsync/internal/router"
	"github.com/openmined/assetsync/internal/storage"
	"github.com/openmined/assetsync/internal/transport"
	"github.com/openmined/assetsync/internal/utils"
)

const (
	DefaultProgressInterval = time.Second
	stateDirName            = ".assetsync"
	journalFileName         = "journal.db"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".assetsync", "config.json")
	DefaultDataDir     = filepath.Join(home, ".assetsync", "data")
	DefaultLogFilePath = filepath.Join(home, ".assetsync", "logs", "assetsync.log")
)

var (
	ErrNoBundledDir = errors.New("config: bundled_dir required")
	ErrNoDataDir    = errors.New("config: data_dir required")
	ErrNoRemoteURL  = errors.New("config: remote_url required")
	ErrSameDirs     = errors.New("config: bundled_dir and data_dir must differ")
)

type Config struct {
	BundledDir           string                  `json:"bundled_dir" mapstructure:"bundled_dir"`
	DataDir              string                  `json:"data_dir" mapstructure:"data_dir"`
	RemoteURL            string                  `json:"remote_url" mapstructure:"remote_url"`
	ManifestName         string                  `json:"manifest_name,omitempty" mapstructure:"manifest_name"`
	VersionName          string                  `json:"version_name,omitempty" mapstructure:"version_name"`
	DynamicOnly          []string                `json:"dynamic_only,omitempty" mapstructure:"dynamic_only"`
	FullPackageThreshold *int                    `json:"full_package_threshold,omitempty" mapstructure:"full_package_threshold"`
	ProgressInterval     string                  `json:"progress_interval,omitempty" mapstructure:"progress_interval"`
	ReadPolicy           string                  `json:"read_policy,omitempty" mapstructure:"read_policy"`
	OfflineFallback      bool                    `json:"offline_fallback,omitempty" mapstructure:"offline_fallback"`
	JournalPath          string                  `json:"journal_path,omitempty" mapstructure:"journal_path"`
	RetryCount           int                     `json:"retry_count,omitempty" mapstructure:"retry_count"`
	S3                   transport.S3Credentials `json:"s3,omitempty" mapstructure:"s3"`
	Path                 string                  `json:"-" mapstructure:"config_path"`

	progressInterval time.Duration
	readPolicy       router.Policy
}

// Validate normalises paths, fills defaults and rejects unusable settings.
func (c *Config) Validate() error {
	var err error

	if c.BundledDir == "" {
		return ErrNoBundledDir
	}
	if c.BundledDir, err = utils.ResolvePath(c.BundledDir); err != nil {
		return fmt.Errorf("config: bundled_dir: %w", err)
	}

	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("config: data_dir: %w", err)
	}
	if c.DataDir == c.BundledDir {
		return ErrSameDirs
	}

	c.RemoteURL = strings.TrimSpace(c.RemoteURL)
	if c.RemoteURL == "" {
		return ErrNoRemoteURL
	}
	if !utils.IsValidURL(c.RemoteURL, "http", "https", "s3") {
		return fmt.Errorf("config: invalid remote url %q", c.RemoteURL)
	}

	if c.ManifestName == "" {
		c.ManifestName = storage.DefaultManifestName
	}
	if c.VersionName == "" {
		c.VersionName = storage.DefaultVersionName
	}
	if c.ManifestName == c.VersionName {
		return fmt.Errorf("config: manifest_name and version_name must differ")
	}

	// unset means the default, an explicit 0 is kept
	if c.FullPackageThreshold == nil {
		threshold := router.DefaultFullPackageThreshold
		c.FullPackageThreshold = &threshold
	}
	if *c.FullPackageThreshold < 0 {
		return fmt.Errorf("config: full_package_threshold must not be negative")
	}

	c.progressInterval = DefaultProgressInterval
	if c.ProgressInterval != "" {
		d, err := time.ParseDuration(c.ProgressInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: invalid progress_interval %q", c.ProgressInterval)
		}
		c.progressInterval = d
	}

	if c.readPolicy, err = router.ParsePolicy(c.ReadPolicy); err != nil {
		return fmt.Errorf("config: read_policy: %w", err)
	}

	if c.RetryCount < 0 {
		return fmt.Errorf("config: retry_count must not be negative")
	}
	if c.RetryCount == 0 {
		c.RetryCount = transport.DefaultRetryCount
	}

	if c.JournalPath == "" {
		c.JournalPath = filepath.Join(c.StateDir(), journalFileName)
	} else if c.JournalPath, err = utils.ResolvePath(c.JournalPath); err != nil {
		return fmt.Errorf("config: journal_path: %w", err)
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config: path: %w", err)
		}
	}

	return nil
}

// StateDir holds the journal and the sync lock inside the data dir.
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, stateDirName)
}

// Interval is the parsed progress_interval, valid after Validate.
func (c *Config) Interval() time.Duration {
	if c.progressInterval <= 0 {
		return DefaultProgressInterval
	}
	return c.progressInterval
}

// Threshold is full_package_threshold, or the default when it is unset.
func (c *Config) Threshold() int {
	if c.FullPackageThreshold == nil {
		return router.DefaultFullPackageThreshold
	}
	return *c.FullPackageThreshold
}

// Policy is the parsed read_policy override, valid after Validate.
func (c *Config) Policy() router.Policy {
	return c.readPolicy
}

// Origin maps the config onto the transport settings.
func (c *Config) Origin() transport.Config {
	return transport.Config{
		URL:          c.RemoteURL,
		ManifestName: c.ManifestName,
		VersionName:  c.VersionName,
		RetryCount:   c.RetryCount,
		S3:           c.S3,
	}
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bundled_dir", c.BundledDir),
		slog.String("data_dir", c.DataDir),
		slog.String("remote_url", c.RemoteURL),
		slog.Int("full_package_threshold", c.Threshold()),
		slog.String("read_policy", c.readPolicy.String()),
		slog.Bool("offline_fallback", c.OfflineFallback),
		slog.String("s3_access_key", utils.MaskSecret(c.S3.AccessKey)),
		slog.String("path", c.Path),
	)
}

// Save writes the config to c.Path.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config: path not set")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return utils.WriteFileAtomic(c.Path, data, 0o600)
}

// LoadClientConfig reads a JSON config. The result is not validated.
func LoadClientConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Path = path
	return &cfg, nil
}
