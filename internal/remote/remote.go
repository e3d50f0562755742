// Package remote provides clients for the upstream record store.
package remote

import (
	"context"
	"encoding/json"

	"github.com/kimhsiao/dietdaily/internal/models"
)

// Record is a record as reported by the remote store. The payload is
// carried opaquely; the metadata fields mirror the local match fields.
type Record struct {
	ID         models.ID       `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	Owner      string          `json:"owner"`
	Name       string          `json:"name"`
	Amount     float64         `json:"amount"`
	OccurredAt int64           `json:"occurred_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// Store is the upstream side of the sync pipeline. Create returns the
// id the remote assigned, which may differ from the local id.
type Store interface {
	Create(ctx context.Context, rec *Record) (models.ID, error)
	List(ctx context.Context, owner string, from, to int64) ([]*Record, error)
	Delete(ctx context.Context, id models.ID) (bool, error)
}
