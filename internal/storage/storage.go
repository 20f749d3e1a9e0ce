package storage

import (
	"context"

	"github.com/voxlane/symphony/internal/models"
)

// Storage is the durable conversation log and per-channel settings store.
// Turn order is assigned at write time; readers never supply ordering.
type Storage interface {
	AppendTurn(ctx context.Context, turn *models.Turn) error

	// RecentTurns returns the last limit turns of a thread in insertion
	// order. A thread with no history yields an empty slice, not an error.
	RecentTurns(ctx context.Context, thread models.ThreadID, limit int) ([]models.Turn, error)

	// GetChannelModel returns the model override for a channel, or the
	// empty string when none is set.
	GetChannelModel(ctx context.Context, channelID string) (string, error)
	SetChannelModel(ctx context.Context, channelID, model string) error

	Close() error
}
