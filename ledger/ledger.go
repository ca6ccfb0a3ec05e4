package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry records one coin movement for audit. Delta is negative for entry-fee
// debits and positive for reward credits and refunds.
type Entry struct {
	PlayerID  string    `json:"playerId"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"` // "entry_fee", "reward", "refund"
	SessionID string    `json:"sessionId"`
	At        time.Time `json:"at"`
}

// Store appends coin movements to data/ledger.json. Ledger failures must not
// block gameplay; callers log and continue.
type Store struct {
	mu      sync.Mutex
	dataDir string
}

func NewStore(dataDir string) *Store {
	if dataDir == "" {
		dataDir = "data"
	}
	return &Store{dataDir: dataDir}
}

func (s *Store) path() string {
	return filepath.Join(s.dataDir, "ledger.json")
}

// Append adds an entry to the ledger file (append to array).
func (s *Store) Append(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	path := s.path()
	var list []*Entry
	data, err := os.ReadFile(path)
	if err == nil {
		_ = json.Unmarshal(data, &list)
	}
	if list == nil {
		list = []*Entry{}
	}
	list = append(list, e)
	data, err = json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ByPlayer returns all movements for a player, oldest first.
func (s *Store) ByPlayer(playerID string) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return []*Entry{}, nil
		}
		return nil, err
	}
	var list []*Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(list))
	for _, e := range list {
		if e != nil && e.PlayerID == playerID {
			out = append(out, e)
		}
	}
	return out, nil
}
