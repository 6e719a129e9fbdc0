package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
)

// AzurePublisher uploads files to an Azure Blob Storage container.
type AzurePublisher struct {
	client *azblob.Client
	loc    Location
	logger *slog.Logger
}

// NewAzurePublisher creates a blob client with shared-key credentials.
func NewAzurePublisher(cfg config.PublishConfig, loc Location, logger *slog.Logger) (*AzurePublisher, error) {
	if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
		return nil, fmt.Errorf("Azure account name and key are required")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzurePublisher{client: client, loc: loc, logger: logger}, nil
}

// Target returns the destination URL.
func (p *AzurePublisher) Target() string { return p.loc.String() }

// Publish uploads localPath as a block blob.
func (p *AzurePublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // datamart file
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	key := p.loc.Key(name)
	if _, err := p.client.UploadFile(ctx, p.loc.Bucket, key, f, nil); err != nil {
		return "", fmt.Errorf("upload az://%s/%s: %w", p.loc.Bucket, key, err)
	}
	p.logger.Debug("published", "path", localPath, "container", p.loc.Bucket, "key", key)
	return "az://" + p.loc.Bucket + "/" + key, nil
}
