package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time checks.
var (
	_ domain.DatamartPublisher = (*FilePublisher)(nil)
	_ domain.DatamartPublisher = (*S3Publisher)(nil)
	_ domain.DatamartPublisher = (*GCSPublisher)(nil)
	_ domain.DatamartPublisher = (*AzurePublisher)(nil)
)

// FilePublisher copies files into a local or mounted directory.
type FilePublisher struct {
	loc    Location
	logger *slog.Logger
}

// NewFilePublisher creates a FilePublisher for a file:// location.
func NewFilePublisher(loc Location, logger *slog.Logger) *FilePublisher {
	return &FilePublisher{loc: loc, logger: logger}
}

// Target returns the destination URL.
func (p *FilePublisher) Target() string { return p.loc.String() }

// Publish copies localPath to <dir>/<name> through a temp file.
func (p *FilePublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.loc.Prefix, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", p.loc.Prefix, err)
	}
	src, err := os.Open(localPath) //nolint:gosec // datamart file
	if err != nil {
		return "", err
	}
	defer src.Close() //nolint:errcheck

	dest := filepath.Join(p.loc.Prefix, name)
	tmp, err := os.CreateTemp(p.loc.Prefix, "."+name+".*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("copy %s: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	p.logger.Debug("published", "path", localPath, "dest", dest)
	return "file://" + filepath.ToSlash(dest), nil
}
