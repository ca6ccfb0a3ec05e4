package anticheat

import (
	"sync"
	"time"
)

// MemoryFlagStore keeps the flag log in memory. Used by tests and by
// deployments that only need in-process trust scoring.
type MemoryFlagStore struct {
	mu    sync.Mutex
	flags []*Flag
}

func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{}
}

func (s *MemoryFlagStore) Append(f *Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, f)
	return nil
}

func (s *MemoryFlagStore) ByPlayerSince(playerID string, since time.Time) ([]*Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Flag, 0)
	for _, f := range s.flags {
		if f.PlayerID == playerID && !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

// MemoryHistoryStore keeps score history in memory.
type MemoryHistoryStore struct {
	mu   sync.Mutex
	recs []*ScoreRecord
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) Append(r *ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, r)
	return nil
}

func (s *MemoryHistoryStore) ByPlayerGameSince(playerID, gameID string, since time.Time) ([]*ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ScoreRecord, 0)
	for _, r := range s.recs {
		if r.PlayerID == playerID && r.GameID == gameID && !r.At.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}
