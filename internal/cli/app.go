package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/family-ledger/internal/config"
	"github.com/dvloznov/family-ledger/internal/export"
	"github.com/dvloznov/family-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/family-ledger/internal/infra/bigquery"
	"github.com/dvloznov/family-ledger/internal/infra/sqlite"
	"github.com/dvloznov/family-ledger/internal/logger"
	"github.com/dvloznov/family-ledger/internal/notionsync"
	"github.com/dvloznov/family-ledger/internal/pipeline"
	"github.com/rs/zerolog"
)

// app holds the resources shared by commands. close releases them in
// reverse order of acquisition.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	db      *sqlite.DB
	gcs     *gcsuploader.GCSStorageService
	closers []func() error
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.NewWithOptions(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", cfg.Database.Path).Msg("Database opened")

	a := &app{cfg: cfg, log: log, db: db}
	a.closers = append(a.closers, db.Close)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("Failed to release resource")
		}
	}
}

// context attaches the app logger to ctx for packages that log through it.
func (a *app) context(ctx context.Context) context.Context {
	return logger.WithContext(ctx, a.log)
}

// storage returns the shared GCS client, creating it on first use.
func (a *app) storage(ctx context.Context) (*gcsuploader.GCSStorageService, error) {
	if a.gcs != nil {
		return a.gcs, nil
	}
	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	a.gcs = svc
	a.closers = append(a.closers, svc.Close)
	return svc, nil
}

// importer builds the import service from configuration: classifier
// strategy, raw upload archive and the statement model fallback.
func (a *app) importer(ctx context.Context) (*pipeline.Service, error) {
	svc := pipeline.NewService(a.db, a.db, a.log)
	if err := svc.SetStrategy(a.cfg.Ingest.Classifier); err != nil {
		return nil, err
	}

	if a.cfg.Archive.Bucket != "" {
		storage, err := a.storage(ctx)
		if err != nil {
			return nil, err
		}
		svc.SetArchiver(gcsuploader.NewArchiver(storage, a.cfg.Archive.Bucket, a.cfg.Archive.Prefix))
		a.log.Info().Str("bucket", a.cfg.Archive.Bucket).Msg("Upload archiving enabled")
	}

	if a.cfg.Model.Enabled {
		model, err := pipeline.NewGeminiModel(ctx, a.cfg.Model.Name)
		if err != nil {
			return nil, fmt.Errorf("creating statement model: %w", err)
		}
		svc.SetModel(model)
		a.log.Info().Str("model", a.cfg.Model.Name).Msg("Statement model fallback enabled")
	}

	return svc, nil
}

// warehouse opens the BigQuery store.
func (a *app) warehouse(ctx context.Context) (*infraBQ.Store, error) {
	w := a.cfg.Warehouse
	store, err := infraBQ.NewStore(ctx, w.ProjectID, w.Dataset, w.Table)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *app) notion() *notionsync.Syncer {
	return notionsync.NewSyncer(notionsync.NewNotionClient(a.cfg.Notion.Token), a.cfg.Notion.DatabaseID)
}

// exporter returns an exporter over the enabled sinks, or nil when none is
// enabled.
func (a *app) exporter(ctx context.Context) (*export.Exporter, error) {
	var sinks []export.Sink
	if a.cfg.Warehouse.Enabled {
		store, err := a.warehouse(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if a.cfg.Notion.Enabled {
		sinks = append(sinks, a.notion())
	}
	if len(sinks) == 0 {
		return nil, nil
	}

	e := export.NewExporter(a.db, a.log, sinks...)
	a.log.Info().Strs("sinks", e.Sinks()).Msg("Sync sinks enabled")
	return e, nil
}
