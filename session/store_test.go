package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Create(&Session{
		ID: "s1", GameID: "blitz_math", PlayerID: "p1",
		Status: StatusPlaying, CreatedAt: time.Now(),
	}))

	reopened := NewStore(dir)
	sess, ok := reopened.Get("s1")
	require.True(t, ok)
	assert.Equal(t, StatusPlaying, sess.Status)
}

func TestFinishIfPlayingOneWay(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Create(&Session{ID: "s1", Status: StatusPlaying}))

	_, err := s.FinishIfPlaying("s1", func(sess *Session) { sess.Status = StatusCompleted })
	require.NoError(t, err)

	_, err = s.FinishIfPlaying("s1", func(sess *Session) { sess.Status = StatusAbandoned })
	assert.ErrorIs(t, err, ErrNotPlaying)

	_, err = s.FinishIfPlaying("missing", func(*Session) {})
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestFinishIfPlayingFailedSaveStaysPlaying(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Create(&Session{ID: "s1", Status: StatusPlaying}))

	// Point the store at an unwritable location: a path whose parent is a
	// regular file, so MkdirAll fails and the save cannot land.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	goodDir := s.dataDir
	s.dataDir = filepath.Join(blocker, "data")

	_, err := s.FinishIfPlaying("s1", func(sess *Session) { sess.Status = StatusCompleted })
	require.Error(t, err)

	// The transition did not happen: the session is still playing and a
	// retry succeeds once the store is writable again.
	sess, ok := s.Get("s1")
	require.True(t, ok)
	assert.Equal(t, StatusPlaying, sess.Status)

	s.dataDir = goodDir
	settled, err := s.FinishIfPlaying("s1", func(sess *Session) { sess.Status = StatusCompleted })
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, settled.Status)
}
