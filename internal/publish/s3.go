package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
)

// S3Publisher uploads files to S3-compatible object storage.
type S3Publisher struct {
	client *s3.Client
	loc    Location
	logger *slog.Logger
}

// NewS3Publisher creates an S3 client from static credentials. A custom
// endpoint switches to path-style addressing.
func NewS3Publisher(cfg config.PublishConfig, loc Location, logger *slog.Logger) (*S3Publisher, error) {
	if !cfg.HasS3Config() {
		return nil, fmt.Errorf("S3 config is incomplete")
	}
	opts := s3.Options{
		Region:      *cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(*cfg.S3KeyID, *cfg.S3Secret, ""),
	}
	if cfg.S3Endpoint != nil && *cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String("https://" + *cfg.S3Endpoint)
		opts.UsePathStyle = true
	}
	return &S3Publisher{client: s3.New(opts), loc: loc, logger: logger}, nil
}

// Target returns the destination URL.
func (p *S3Publisher) Target() string { return p.loc.String() }

// Publish uploads localPath as <prefix>/<name>.
func (p *S3Publisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // datamart file
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	key := p.loc.Key(name)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.loc.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", p.loc.Bucket, key, err)
	}
	p.logger.Debug("published", "path", localPath, "bucket", p.loc.Bucket, "key", key)
	return "s3://" + p.loc.Bucket + "/" + key, nil
}
