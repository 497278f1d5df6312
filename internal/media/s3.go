package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds construction parameters for the S3 uploader.
type S3Config struct {
	Bucket        string
	Region        string // default us-east-1
	Endpoint      string // optional, e.g. MinIO
	PathStyle     bool
	PublicBaseURL string // optional; overrides the URL returned for uploaded objects
}

// S3 uploads into a single bucket (AWS S3 or an S3-compatible service).
type S3 struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3 loads the default AWS credential chain and builds the uploader.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3FromClient(client, cfg), nil
}

// NewS3FromClient wraps an existing client.
func NewS3FromClient(client *s3.Client, cfg S3Config) *S3 {
	return &S3{client: client, bucket: cfg.Bucket, baseURL: publicBaseURL(cfg)}
}

func publicBaseURL(cfg S3Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
	}
}

func (s *S3) PublicBase() string { return s.baseURL }

func (s *S3) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := CheckImage(contentType); err != nil {
		return "", err
	}
	key := ObjectKey(name, contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}
