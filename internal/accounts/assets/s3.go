package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config describes an S3 compatible bucket. Endpoint is optional and
// points the client at MinIO or similar.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// PublicURL is the prefix objects are reachable under, usually a CDN or
	// the bucket's public endpoint.
	PublicURL string
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Host struct {
	client    objectAPI
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewS3Host builds an S3 client from cfg. Static credentials are used when
// an access key is given, otherwise the default AWS credential chain.
func NewS3Host(ctx context.Context, cfg S3Config) (*S3Host, error) {
	if cfg.Bucket == "" || cfg.PublicURL == "" {
		return nil, fmt.Errorf("assets: s3 bucket and public url are required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("assets: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Host(client, cfg.Bucket, cfg.PublicURL), nil
}

func newS3Host(client objectAPI, bucket, publicURL string) *S3Host {
	return &S3Host{client: client, bucket: bucket, publicURL: publicURL, now: time.Now}
}

func (h *S3Host) Upload(ctx context.Context, kind Kind, a domain.Asset) (string, error) {
	a, err := DetectImage(a)
	if err != nil {
		return "", err
	}

	// The SDK needs a seekable body to sign the payload over plain HTTP
	body, size, err := seekable(a)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", ErrEmptyAsset
	}

	key := objectKey(kind, a, h.now())
	in := &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(a.ContentType),
	}

	if _, err := h.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("assets: put %s: %w", key, err)
	}
	return joinURL(h.publicURL, key), nil
}

func (h *S3Host) Remove(ctx context.Context, url string) error {
	key, err := keyFromURL(h.publicURL, url)
	if err != nil {
		return err
	}

	_, err = h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("assets: delete %s: %w", key, err)
	}
	return nil
}

func seekable(a domain.Asset) (io.ReadSeeker, int64, error) {
	if rs, ok := a.Body.(io.ReadSeeker); ok && a.Size > 0 {
		return rs, a.Size, nil
	}
	buf, err := io.ReadAll(a.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("assets: read upload: %w", err)
	}
	return bytes.NewReader(buf), int64(len(buf)), nil
}
