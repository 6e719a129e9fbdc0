package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
)

// GCSPublisher uploads files to Google Cloud Storage.
type GCSPublisher struct {
	client *storage.Client
	loc    Location
	logger *slog.Logger
}

// NewGCSPublisher creates a GCS client from the service account key file, or
// from application default credentials when no key file is configured.
func NewGCSPublisher(ctx context.Context, cfg config.PublishConfig, loc Location, logger *slog.Logger) (*GCSPublisher, error) {
	var opts []option.ClientOption
	if cfg.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSPublisher{client: client, loc: loc, logger: logger}, nil
}

// Target returns the destination URL.
func (p *GCSPublisher) Target() string { return p.loc.String() }

// Publish streams localPath into gs://<bucket>/<prefix>/<name>.
func (p *GCSPublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // datamart file
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	key := p.loc.Key(name)
	w := p.client.Bucket(p.loc.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(name)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", p.loc.Bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", p.loc.Bucket, key, err)
	}
	p.logger.Debug("published", "path", localPath, "bucket", p.loc.Bucket, "key", key)
	return "gs://" + p.loc.Bucket + "/" + key, nil
}
