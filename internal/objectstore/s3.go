// Package objectstore wraps the remote Parquet sink (S3), adapted from the
// teacher's internal/cloud/s3.go S3Client — same bucket/key plumbing and
// PutObject/GetObject calls, repointed from uploading JSON search results
// at uploading/downloading partitioned Parquet batch files from disk.
package objectstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client uploads and downloads objects in one bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New creates a Client for the given bucket using the default AWS config
// chain (environment, shared config, IMDS).
func New(ctx context.Context, bucket, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Client{s3: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// UploadFile uploads the local file at path to key and, on success, removes
// the local temp copy — the "local file is a temp artifact deleted after
// successful upload" flow from spec.md §4.8.
func (c *Client) UploadFile(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", path, err)
	}
	defer f.Close()

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s/%s: %w", path, c.bucket, key, err)
	}

	f.Close()
	return os.Remove(path)
}

// DownloadFile fetches key and writes it to the local path.
func (c *Client) DownloadFile(ctx context.Context, key, path string) error {
	resp, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("getting s3://%s/%s: %w", c.bucket, key, err)
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ParseURI parses an s3://bucket/key URI into bucket and key components.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URI (must start with s3://): %s", uri)
	}
	rest := uri[len("s3://"):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", "", fmt.Errorf("invalid S3 URI (no key): %s", uri)
	}
	return rest[:idx], rest[idx+1:], nil
}
