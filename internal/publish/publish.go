// Package publish copies finished datamart files to an external location.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Location is a parsed publish destination.
type Location struct {
	Scheme string // s3, gs, az or file
	Bucket string // bucket or container; empty for file
	Prefix string // key prefix, or the directory for file
}

// String renders the location back as a URL.
func (l Location) String() string {
	if l.Scheme == "file" {
		return "file://" + filepath.ToSlash(l.Prefix)
	}
	if l.Prefix == "" {
		return l.Scheme + "://" + l.Bucket
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}

// Key returns the object key name is stored under.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// ParseLocation parses s3://bucket/prefix, gs://bucket/prefix,
// az://container/prefix or file:///dir.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse publish URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "s3", "gs", "az":
		if u.Host == "" {
			return Location{}, fmt.Errorf("missing bucket in publish URL %q", raw)
		}
		return Location{
			Scheme: u.Scheme,
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}, nil
	case "file":
		dir := u.Path
		if u.Host != "" {
			// file://relative/dir
			dir = u.Host + u.Path
		}
		if dir == "" {
			return Location{}, fmt.Errorf("missing directory in publish URL %q", raw)
		}
		return Location{Scheme: "file", Prefix: filepath.FromSlash(dir)}, nil
	default:
		return Location{}, fmt.Errorf("unsupported publish scheme %q in %q", u.Scheme, raw)
	}
}

// New builds the publisher for cfg.URL. It returns nil when publishing is
// disabled.
func New(ctx context.Context, cfg config.PublishConfig, logger *slog.Logger) (domain.DatamartPublisher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	loc, err := ParseLocation(cfg.URL)
	if err != nil {
		return nil, err
	}
	var p domain.DatamartPublisher
	switch loc.Scheme {
	case "s3":
		p, err = NewS3Publisher(cfg, loc, logger)
	case "gs":
		p, err = NewGCSPublisher(ctx, cfg, loc, logger)
	case "az":
		p, err = NewAzurePublisher(cfg, loc, logger)
	default:
		p = NewFilePublisher(loc, logger)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Files publishes each local file under its base name and returns the
// destination URLs in order. It stops at the first failure.
func Files(ctx context.Context, p domain.DatamartPublisher, paths []string) ([]string, error) {
	urls := make([]string, 0, len(paths))
	for _, local := range paths {
		dest, err := p.Publish(ctx, local, filepath.Base(local))
		if err != nil {
			return urls, fmt.Errorf("publish %s to %s: %w", local, p.Target(), err)
		}
		urls = append(urls, dest)
	}
	return urls, nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".parquet") {
		return "application/vnd.apache.parquet"
	}
	return "application/octet-stream"
}
