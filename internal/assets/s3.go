package assets

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config describes an S3-compatible target (AWS, Cloudflare R2, MinIO)
type S3Config struct {
	Bucket          string
	Key             string
	Endpoint        string // Empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ContentType     string
}

// S3Publisher uploads the asset to an S3-compatible bucket
type S3Publisher struct {
	uploader *manager.Uploader
	cfg      S3Config
	log      zerolog.Logger
}

// NewS3Publisher builds the S3 client from static credentials
func NewS3Publisher(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Publisher, error) {
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Publisher(manager.NewUploader(client), cfg, log), nil
}

func newS3Publisher(uploader *manager.Uploader, cfg S3Config, log zerolog.Logger) *S3Publisher {
	return &S3Publisher{
		uploader: uploader,
		cfg:      cfg,
		log:      log.With().Str("publisher", "s3").Str("bucket", cfg.Bucket).Logger(),
	}
}

// Name returns the s3:// URI of the target
func (p *S3Publisher) Name() string {
	return fmt.Sprintf("s3://%s/%s", p.cfg.Bucket, p.cfg.Key)
}

// Publish uploads data to the configured bucket and key
func (p *S3Publisher) Publish(ctx context.Context, data []byte) error {
	out, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(p.cfg.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(p.cfg.ContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", p.Name(), err)
	}

	p.log.Info().Str("key", p.cfg.Key).Str("location", out.Location).Int("bytes", len(data)).Msg("Asset uploaded")
	return nil
}
