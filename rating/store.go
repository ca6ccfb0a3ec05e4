package rating

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrVersionConflict reports a lost optimistic-concurrency race: the record
// changed since it was read. Callers re-read and re-apply.
var ErrVersionConflict = errors.New("rating: version conflict")

// Store persists rating records keyed by (player, mode, season). Save must
// enforce the record's version so two concurrent updates to the same player
// cannot silently lose one another.
type Store interface {
	Get(playerID, mode, season string) (*PlayerRating, error) // nil, nil when absent
	Save(r *PlayerRating) error
	ListBySeason(mode, season string) ([]*PlayerRating, error)
	ListSeason(season string) ([]*PlayerRating, error) // every mode, for season reset
	Leaderboard(mode, season string, limit int) ([]*PlayerRating, error)
}

func key(playerID, mode, season string) string {
	return playerID + "|" + mode + "|" + season
}

// MemoryStore is the in-process Store used by tests and single-node deploys.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*PlayerRating
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*PlayerRating)}
}

func clone(r *PlayerRating) *PlayerRating {
	cp := *r
	cp.RecentMatches = append([]RecentMatch(nil), r.RecentMatches...)
	cp.RankHistory = append([]RankEvent(nil), r.RankHistory...)
	return &cp
}

func (s *MemoryStore) Get(playerID, mode, season string) (*PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key(playerID, mode, season)]
	if !ok {
		return nil, nil
	}
	return clone(r), nil
}

func (s *MemoryStore) Save(r *PlayerRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(r.PlayerID, r.GameMode, r.SeasonID)
	if cur, ok := s.records[k]; ok && cur.Version != r.Version {
		return ErrVersionConflict
	}
	cp := clone(r)
	cp.Version++
	cp.Recompute()
	s.records[k] = cp
	r.Version = cp.Version
	return nil
}

func (s *MemoryStore) ListBySeason(mode, season string) ([]*PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PlayerRating, 0)
	for _, r := range s.records {
		if r.GameMode == mode && r.SeasonID == season {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListSeason(season string) ([]*PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PlayerRating, 0)
	for _, r := range s.records {
		if r.SeasonID == season {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (s *MemoryStore) Leaderboard(mode, season string, limit int) ([]*PlayerRating, error) {
	list, err := s.ListBySeason(mode, season)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].MMR != list[j].MMR {
			return list[i].MMR > list[j].MMR
		}
		return list[i].PlayerID < list[j].PlayerID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// FileStore persists ratings to data/ratings.json, loading on start.
type FileStore struct {
	mu      sync.Mutex
	records map[string]*PlayerRating
	dataDir string
}

func NewFileStore(dataDir string) *FileStore {
	if dataDir == "" {
		dataDir = "data"
	}
	s := &FileStore{
		records: make(map[string]*PlayerRating),
		dataDir: dataDir,
	}
	s.load()
	return s
}

func (s *FileStore) path() string {
	return filepath.Join(s.dataDir, "ratings.json")
}

func (s *FileStore) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path())
	if err != nil {
		return
	}
	var list []*PlayerRating
	if err := json.Unmarshal(data, &list); err != nil {
		return
	}
	for _, r := range list {
		if r != nil && r.PlayerID != "" {
			r.Recompute()
			s.records[key(r.PlayerID, r.GameMode, r.SeasonID)] = r
		}
	}
}

// saveLocked writes the store to disk. Caller must hold s.mu.
func (s *FileStore) saveLocked() error {
	list := make([]*PlayerRating, 0, len(s.records))
	for _, r := range s.records {
		list = append(list, r)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0644)
}

func (s *FileStore) Get(playerID, mode, season string) (*PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key(playerID, mode, season)]
	if !ok {
		return nil, nil
	}
	return clone(r), nil
}

func (s *FileStore) Save(r *PlayerRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(r.PlayerID, r.GameMode, r.SeasonID)
	if cur, ok := s.records[k]; ok && cur.Version != r.Version {
		return ErrVersionConflict
	}
	cp := clone(r)
	cp.Version++
	cp.Recompute()
	s.records[k] = cp
	if err := s.saveLocked(); err != nil {
		return err
	}
	r.Version = cp.Version
	return nil
}

func (s *FileStore) ListBySeason(mode, season string) ([]*PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PlayerRating, 0)
	for _, r := range s.records {
		if r.GameMode == mode && r.SeasonID == season {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (s *FileStore) ListSeason(season string) ([]*PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PlayerRating, 0)
	for _, r := range s.records {
		if r.SeasonID == season {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (s *FileStore) Leaderboard(mode, season string, limit int) ([]*PlayerRating, error) {
	list, err := s.ListBySeason(mode, season)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].MMR != list[j].MMR {
			return list[i].MMR > list[j].MMR
		}
		return list[i].PlayerID < list[j].PlayerID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
