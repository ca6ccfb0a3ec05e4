package anticheat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FlagStore is the durable, append-only flag log. The trust score is derived
// from this log on read, so concurrent validations never contend on a mutable
// counter.
type FlagStore interface {
	Append(f *Flag) error
	ByPlayerSince(playerID string, since time.Time) ([]*Flag, error)
}

// ScoreRecord is one validated-or-not submission kept for the pattern-repeat
// lookback.
type ScoreRecord struct {
	PlayerID  string    `json:"playerId"`
	GameID    string    `json:"gameId"`
	SessionID string    `json:"sessionId"`
	Score     int64     `json:"score"`
	At        time.Time `json:"at"`
}

// HistoryStore keeps recent score submissions per (player, game).
type HistoryStore interface {
	Append(r *ScoreRecord) error
	ByPlayerGameSince(playerID, gameID string, since time.Time) ([]*ScoreRecord, error)
}

// FileFlagStore appends flags to data/anticheat_flags.json.
type FileFlagStore struct {
	mu      sync.Mutex
	dataDir string
}

func NewFileFlagStore(dataDir string) *FileFlagStore {
	if dataDir == "" {
		dataDir = "data"
	}
	return &FileFlagStore{dataDir: dataDir}
}

func (s *FileFlagStore) path() string {
	return filepath.Join(s.dataDir, "anticheat_flags.json")
}

func (s *FileFlagStore) Append(f *Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	var list []*Flag
	data, err := os.ReadFile(s.path())
	if err == nil {
		_ = json.Unmarshal(data, &list)
	}
	if list == nil {
		list = []*Flag{}
	}
	list = append(list, f)
	data, err = json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0644)
}

func (s *FileFlagStore) ByPlayerSince(playerID string, since time.Time) ([]*Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return []*Flag{}, nil
		}
		return nil, err
	}
	var list []*Flag
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := make([]*Flag, 0)
	for _, f := range list {
		if f != nil && f.PlayerID == playerID && !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

// FileHistoryStore appends score records to data/score_history.json.
type FileHistoryStore struct {
	mu      sync.Mutex
	dataDir string
}

func NewFileHistoryStore(dataDir string) *FileHistoryStore {
	if dataDir == "" {
		dataDir = "data"
	}
	return &FileHistoryStore{dataDir: dataDir}
}

func (s *FileHistoryStore) path() string {
	return filepath.Join(s.dataDir, "score_history.json")
}

func (s *FileHistoryStore) Append(r *ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	var list []*ScoreRecord
	data, err := os.ReadFile(s.path())
	if err == nil {
		_ = json.Unmarshal(data, &list)
	}
	if list == nil {
		list = []*ScoreRecord{}
	}
	list = append(list, r)
	data, err = json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0644)
}

func (s *FileHistoryStore) ByPlayerGameSince(playerID, gameID string, since time.Time) ([]*ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return []*ScoreRecord{}, nil
		}
		return nil, err
	}
	var list []*ScoreRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := make([]*ScoreRecord, 0)
	for _, r := range list {
		if r != nil && r.PlayerID == playerID && r.GameID == gameID && !r.At.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}
