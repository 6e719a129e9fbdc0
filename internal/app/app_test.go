package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		RawDir:       filepath.Join(root, "raw"),
		ProcessedDir: filepath.Join(root, "processed"),
		DatamartDir:  filepath.Join(root, "datamart"),
		LedgerPath:   filepath.Join(root, "runs.sqlite"),
		Workers:      2,
		ProbeBytes:   1024,
	}
}

func TestNew_BuildsDatamart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish.URL = "file://" + filepath.ToSlash(filepath.Join(filepath.Dir(cfg.RawDir), "published"))

	a, err := New(context.Background(), Deps{Cfg: cfg, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.DirExists(t, cfg.RawDir)
	require.DirExists(t, cfg.ProcessedDir)
	require.NotNil(t, a.Runs)
	require.NotNil(t, a.Publisher)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.RawDir, "vendas.csv"), []byte("produto,quantidade\nNotebook,2\n"), 0o644))
	res, err := a.Service.Run(context.Background(), pipeline.Options{BuildDatamart: true})
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
	assert.Len(t, res.Published, 2)
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg.RawDir), "published", "vendas_dados.parquet"))

	latest, err := a.Runs.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Run.ID, latest.ID)
}

func TestNew_WithoutLedgerOrPublisher(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), Deps{Cfg: cfg, Logger: slog.New(slog.DiscardHandler), NoLedger: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Runs)
	assert.Nil(t, a.Publisher)
	assert.NoFileExists(t, cfg.LedgerPath)
}

func TestNew_BadPublishURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish.URL = "ftp://host/x"
	_, err := New(context.Background(), Deps{Cfg: cfg, Logger: slog.New(slog.DiscardHandler)})
	assert.Error(t, err)
}
