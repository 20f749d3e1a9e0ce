package storage

import (
	"context"
	"sync"
	"time"

	"github.com/voxlane/symphony/internal/models"
)

// MemoryStorage keeps the conversation log and channel settings in process
// memory. It backs local runs without a database and the test suite.
type MemoryStorage struct {
	mu       sync.RWMutex
	turns    map[models.ThreadID][]models.Turn
	settings map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		turns:    make(map[models.ThreadID][]models.Turn),
		settings: make(map[string]string),
	}
}

func (s *MemoryStorage) AppendTurn(ctx context.Context, turn *models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *turn
	stored.CreatedAt = time.Now()
	s.turns[turn.Thread] = append(s.turns[turn.Thread], stored)
	turn.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MemoryStorage) RecentTurns(ctx context.Context, thread models.ThreadID, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[thread]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]models.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (s *MemoryStorage) GetChannelModel(ctx context.Context, channelID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings[channelID], nil
}

func (s *MemoryStorage) SetChannelModel(ctx context.Context, channelID, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[channelID] = model
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
