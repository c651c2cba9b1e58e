// Package feed opens the archival account feed and streams its records line by line.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source is a read-only byte resource holding the compressed feed.
type Source interface {
	// Open returns a fresh reader positioned at the start of the resource.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the resource in logs.
	Name() string
}

// FileSource reads the feed from the local filesystem.
type FileSource struct{ Path string }

// Open opens the file.
func (s FileSource) Open(context.Context) (io.ReadCloser, error) { return os.Open(s.Path) }

// Name returns the file path.
func (s FileSource) Name() string { return s.Path }

// ObjectGetter is the subset of the S3 client used by S3Source.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the feed from an S3-compatible object store.
type S3Source struct {
	Client ObjectGetter
	Bucket string
	Key    string
}

// S3Options configures the client built by NewS3Source.
type S3Options struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// NewS3Source builds an S3 client from the default AWS chain, overridden by static
// credentials and a custom endpoint when given.
func NewS3Source(ctx context.Context, bucket, key string, o S3Options) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	})
	return &S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

// Open fetches the object body.
func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return out.Body, nil
}

// Name returns the s3:// URL of the object.
func (s *S3Source) Name() string { return "s3://" + s.Bucket + "/" + s.Key }

// ParseS3URL splits s3://bucket/key. ok is false for anything else.
func ParseS3URL(raw string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(raw, "s3://") {
		return "", "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}
