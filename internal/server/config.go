package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/assetsync/internal/server/blob"
	"github.com/openmined/assetsync/internal/utils"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultRateLimit = "100-S"
)

var ErrNoAssetSource = errors.New("server: either assets.dir or s3 is required")

type Config struct {
	HTTP      HTTPConfig     `mapstructure:"http"`
	Assets    AssetsConfig   `mapstructure:"assets"`
	S3        *blob.S3Config `mapstructure:"s3"`
	RateLimit string         `mapstructure:"rate_limit"`
	LogLevel  string         `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type AssetsConfig struct {
	Dir          string        `mapstructure:"dir"`
	Version      string        `mapstructure:"version"`
	ManifestName string        `mapstructure:"manifest_name"`
	VersionName  string        `mapstructure:"version_name"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Watch        bool          `mapstructure:"watch"`
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return fmt.Errorf("http: cert_file and key_file must be set together")
	}
	for _, f := range []string{c.HTTP.CertFile, c.HTTP.KeyFile} {
		if f != "" && !utils.FileExists(f) {
			return fmt.Errorf("http: %q does not exist", f)
		}
	}

	if c.RateLimit == "" {
		c.RateLimit = DefaultRateLimit
	}
	if c.Assets.ManifestName == "" {
		c.Assets.ManifestName = "filelist.txt"
	}
	if c.Assets.VersionName == "" {
		c.Assets.VersionName = "version.txt"
	}
	if c.Assets.CacheTTL <= 0 {
		c.Assets.CacheTTL = blob.DefaultCacheTTL
	}

	switch {
	case c.S3 != nil && c.S3.BucketName != "":
		if err := c.S3.Validate(); err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		c.Assets.Dir = ""
		c.Assets.Watch = false
	case c.Assets.Dir != "":
		c.S3 = nil
		dir, err := utils.ResolvePath(c.Assets.Dir)
		if err != nil {
			return fmt.Errorf("assets: %w", err)
		}
		if !utils.DirExists(dir) {
			return fmt.Errorf("assets: %q is not a directory", dir)
		}
		c.Assets.Dir = dir
	default:
		return ErrNoAssetSource
	}

	return nil
}

func (c *Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("addr", c.HTTP.Addr),
		slog.Bool("tls", c.HTTP.TLS()),
		slog.String("assets_dir", c.Assets.Dir),
		slog.String("version", c.Assets.Version),
		slog.String("rate_limit", c.RateLimit),
	}
	if c.S3 != nil {
		attrs = append(attrs, slog.Any("s3", c.S3))
	}
	return slog.GroupValue(attrs...)
}
