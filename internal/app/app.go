// Package app wires the pipeline, its stores and the optional publisher
// from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/datamart"
	internaldb "github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/db"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/db/repository"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/dispatch"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/engine"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/extract"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/intermediate"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/normalize"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/optimize"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/pipeline"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/publish"
)

// Deps holds what the caller must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	// NoLedger skips opening the run ledger.
	NoLedger bool
}

// App is the fully wired application.
type App struct {
	Service   *pipeline.Service
	Runs      domain.RunRepository // nil when NoLedger
	Publisher domain.DatamartPublisher

	duck   *sql.DB
	ledger *internaldb.Ledger
}

// New creates the directories, opens the in-process DuckDB and the ledger,
// and assembles the pipeline.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	duck, err := engine.OpenDuckDB(ctx, "")
	if err != nil {
		return nil, err
	}
	a := &App{duck: duck}

	if !deps.NoLedger {
		a.ledger, err = internaldb.OpenLedger(ctx, cfg.LedgerPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		a.Runs = repository.NewRunRepo(a.ledger.Write, a.ledger.Read)
	}

	a.Publisher, err = publish.New(ctx, cfg.Publish, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("configure publisher: %w", err)
	}

	registry := extract.NewDefaultRegistry(duck, extract.Options{
		ProbeBytes: cfg.ProbeBytes,
		TempDir:    filepath.Join(cfg.ProcessedDir, ".tmp"),
	}, logger)
	dispatcher := dispatch.New(dispatch.Deps{
		Router:      registry,
		Workers:     cfg.Workers,
		FileTimeout: cfg.FileTimeout,
		MaxBytes:    func(c domain.Category) int64 { return cfg.MaxBytes(string(c)) },
		Logger:      logger,
	})

	a.Service = pipeline.NewService(pipeline.Deps{
		Batcher:      dispatcher,
		Intermediate: intermediate.NewWriter(cfg.ProcessedDir, logger),
		Normalizer:   normalize.New(logger, nil),
		Optimizer:    optimize.New(logger),
		Writer:       datamart.NewWriter(duck, cfg.DatamartDir, logger),
		Catalog:      datamart.NewConsolidator(duck, logger),
		Runs:         a.Runs,
		Publisher:    a.Publisher,
		RawDir:       cfg.RawDir,
		DatamartDir:  cfg.DatamartDir,
		Workers:      cfg.Workers,
		Logger:       logger,
	})
	return a, nil
}

// Close releases the database handles.
func (a *App) Close() error {
	var errs []error
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.duck != nil {
		errs = append(errs, a.duck.Close())
	}
	return errors.Join(errs...)
}
