// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/lasersell/lasersell/internal/storage/models"
)

// Journal persists the outcome of every exit the engine attempts.
type Journal interface {
	RecordSell(ctx context.Context, sell *models.Sell) error
	RecordError(ctx context.Context, rec *models.SessionError) error

	// ListSells returns the newest sells first.
	ListSells(ctx context.Context, limit int) ([]*models.Sell, error)
	ListErrors(ctx context.Context, limit int) ([]*models.SessionError, error)

	Close() error
}
