package transport

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout     = 5 * time.Minute
	DefaultRetryCount  = 3
	DefaultRetryWait   = time.Second
	progressInterval   = 100 * time.Millisecond
	defaultManifestKey = "filelist.txt"
	defaultVersionKey  = "version.txt"
)

// S3Credentials configures an s3:// origin. Empty keys fall back to the
// default AWS credential chain.
type S3Credentials struct {
	Region    string `mapstructure:"region" json:"region,omitempty"`
	AccessKey string `mapstructure:"access_key" json:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" json:"-"`
	Endpoint  string `mapstructure:"endpoint" json:"endpoint,omitempty"`
}

type Config struct {
	URL          string
	ManifestName string
	VersionName  string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	S3           S3Credentials
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ManifestName == "" {
		out.ManifestName = defaultManifestKey
	}
	if out.VersionName == "" {
		out.VersionName = defaultVersionKey
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.RetryCount < 0 {
		out.RetryCount = 0
	}
	if out.RetryWait <= 0 {
		out.RetryWait = DefaultRetryWait
	}
	return out
}

// escapePath escapes every segment of a manifest path for use in a URL.
func escapePath(p string) string {
	segs := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segs, "/")
}

// parseS3URL splits s3://bucket/prefix into its bucket and key prefix.
func parseS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("transport: parse %q: %w", raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("transport: invalid s3 url %q", raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
