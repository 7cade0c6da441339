package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/openmined/assetsync/internal/manifest"
)

// S3Origin serves assets, the manifest and the version marker from a bucket prefix.
type S3Origin struct {
	client       *s3.Client
	bucket       string
	prefix       string
	manifestName string
	versionName  string
}

// NewS3Origin builds an S3 client for cfg.URL (s3://bucket/prefix).
func NewS3Origin(ctx context.Context, cfg Config) (*S3Origin, error) {
	cfg = cfg.withDefaults()
	bucket, prefix, err := parseS3URL(cfg.URL)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		config.WithRetryMaxAttempts(cfg.RetryCount + 1),
	}
	if cfg.S3.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.S3.Region))
	}
	if cfg.S3.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("transport: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3OriginWithClient(client, bucket, prefix, cfg.ManifestName, cfg.VersionName), nil
}

func NewS3OriginWithClient(client *s3.Client, bucket, prefix, manifestName, versionName string) *S3Origin {
	if manifestName == "" {
		manifestName = defaultManifestKey
	}
	if versionName == "" {
		versionName = defaultVersionKey
	}
	return &S3Origin{
		client:       client,
		bucket:       bucket,
		prefix:       prefix,
		manifestName: manifestName,
		versionName:  versionName,
	}
}

func (o *S3Origin) key(rel string) string {
	if o.prefix == "" {
		return rel
	}
	return path.Join(o.prefix, rel)
}

func (o *S3Origin) Fetch(ctx context.Context, rel string, onProgress ProgressFunc) ([]byte, error) {
	resp, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key(rel)),
	})
	if err != nil {
		return nil, s3Error(ctx, rel, err)
	}
	defer resp.Body.Close()

	size := aws.ToInt64(resp.ContentLength)
	counter := &progressCounter{fn: onProgress}
	if size > 0 {
		counter.total = uint64(size)
	}

	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, &countingReader{r: resp.Body, counter: counter}); err != nil {
		return nil, s3Error(ctx, rel, err)
	}
	return buf.Bytes(), nil
}

func (o *S3Origin) FetchManifest(ctx context.Context) (*manifest.Manifest, error) {
	data, err := o.Fetch(ctx, o.manifestName, nil)
	if err != nil {
		return nil, err
	}
	m, err := manifest.ParseAll(string(data))
	if err != nil {
		return nil, fmt.Errorf("transport: remote manifest: %w", err)
	}

	marker, err := o.Fetch(ctx, o.versionName, nil)
	switch {
	case err == nil:
		m.Version = manifest.ParseVersionMarker(string(marker))
	case IsNotFound(err):
		slog.Warn("remote version marker missing", "bucket", o.bucket, "key", o.key(o.versionName))
	default:
		return nil, err
	}
	return m, nil
}

func (o *S3Origin) Close() error {
	return nil
}

func s3Error(ctx context.Context, rel string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return &TransportError{Code: CodeNotFound, Status: http.StatusNotFound, Path: rel, Err: err}
	}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		status := re.HTTPStatusCode()
		return &TransportError{Code: codeForStatus(status), Status: status, Path: rel, Err: err}
	}

	return networkError(rel, err)
}

var _ Origin = (*S3Origin)(nil)
