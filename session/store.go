package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotPlaying reports a conditional update against a session that already
// reached a terminal state.
var ErrNotPlaying = errors.New("session: not in playing state")

// Store holds sessions and persists them to sessions.json so an in-flight
// session survives a restart (the persisted session is the durable checkpoint
// of truth for settlement retries).
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	dataDir  string
}

func NewStore(dataDir string) *Store {
	if dataDir == "" {
		dataDir = "data"
	}
	s := &Store{
		sessions: make(map[string]*Session),
		dataDir:  dataDir,
	}
	s.load()
	return s
}

func (s *Store) path() string {
	return filepath.Join(s.dataDir, "sessions.json")
}

func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path())
	if err != nil {
		return
	}
	var list []*Session
	if err := json.Unmarshal(data, &list); err != nil {
		return
	}
	for _, sess := range list {
		if sess != nil && sess.ID != "" {
			s.sessions[sess.ID] = sess
		}
	}
}

// saveLocked writes the store to disk. Caller must hold s.mu.
func (s *Store) saveLocked() error {
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
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

func (s *Store) Create(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return s.saveLocked()
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

// FinishIfPlaying applies mutate and persists, but only while the session is
// still in the playing state: the playing -> terminal transition is one-way
// and single-winner, so a concurrent double submission loses here. The
// mutation runs on a copy that is installed only after the disk write
// succeeds, so a failed save leaves the session playing and retryable.
func (s *Store) FinishIfPlaying(id string, mutate func(*Session)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotPlaying
	}
	if sess.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	cp := *sess
	mutate(&cp)
	s.sessions[id] = &cp
	if err := s.saveLocked(); err != nil {
		s.sessions[id] = sess
		return nil, err
	}
	out := cp
	return &out, nil
}
