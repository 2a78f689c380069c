// Package storage is the off-chain indexing collaborator: it persists
// treasury events and detected opportunities for later inspection.
package storage

import (
	"context"

	"github.com/atomx-labs/atomx/internal/storage/models"
)

// Storage is the indexer's persistence interface.
type Storage interface {
	SaveTreasuryEvent(ctx context.Context, ev *models.TreasuryEvent) error
	ListTreasuryEvents(ctx context.Context, kind string, limit, offset int) ([]*models.TreasuryEvent, error)

	SaveOpportunity(ctx context.Context, opp *models.Opportunity) error
	ListOpportunities(ctx context.Context, pair string, limit, offset int) ([]*models.Opportunity, error)

	RunMigrations() error
	Close() error
}
