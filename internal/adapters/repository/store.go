// Package repository keeps completed peel results for querying.
package repository

import (
	"context"

	"github.com/okian/peelforce/internal/domain/model"
)

// Store provides read/write access to completed session results.
type Store interface {
	// Put records a completed result, evicting the oldest when full.
	Put(ctx context.Context, r model.PeelResult) error

	// Latest returns up to n results, newest first.
	Latest(ctx context.Context, n int) ([]model.PeelResult, error)

	// ByLayer returns the results of one layer, newest first.
	// Returns ErrNotFound if the layer has none.
	ByLayer(ctx context.Context, layerID int64) ([]model.PeelResult, error)

	// Session returns the result with the given session id.
	Session(ctx context.Context, sessionID string) (model.PeelResult, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) int
}
