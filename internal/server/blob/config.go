package blob

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/assetsync/internal/utils"
)

type S3Config struct {
	BucketName    string `mapstructure:"bucket_name"`
	Prefix        string `mapstructure:"prefix"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint, "http", "https") {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	c.Prefix = strings.Trim(c.Prefix, "/")
	return nil
}

func (c *S3Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket_name", c.BucketName),
		slog.String("prefix", c.Prefix),
		slog.String("region", c.Region),
		slog.String("access_key", utils.MaskSecret(c.AccessKey)),
		slog.String("endpoint", c.Endpoint),
	)
}
