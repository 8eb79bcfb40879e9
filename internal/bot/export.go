// internal/bot/export.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/export"
	"github.com/lasersell/lasersell/internal/logger"
	"github.com/lasersell/lasersell/internal/storage"
	"github.com/lasersell/lasersell/internal/storage/gormstore"
)

// ExportJournal writes the recorded sells to a file and returns its path.
func ExportJournal(ctx context.Context, configPath string, opts export.Options) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if !cfg.Journal.Enabled {
		return "", errors.New("journal is disabled in config")
	}

	log, err := logger.New(cfg.Logging, logger.Options{Console: true, Secrets: []string{cfg.Account.APIKey}})
	if err != nil {
		return "", fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	js, err := gormstore.Open(cfg.Journal.Path, log, cfg.Logging.Debug)
	if err != nil {
		return "", fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if err := js.Close(); err != nil {
			log.Warn("journal_close_failed", zap.Error(err))
		}
	}()

	return exportFrom(ctx, js, opts, log)
}

func exportFrom(ctx context.Context, journal storage.Journal, opts export.Options, log *zap.Logger) (string, error) {
	sells, err := journal.ListSells(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("list sells: %w", err)
	}
	return export.NewSellExporter(log).Export(sells, opts)
}
