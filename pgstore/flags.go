package pgstore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/playforge/arena-core/anticheat"
)

// FlagStore persists anti-cheat flags in anticheat_flags(id, kind, severity,
// evidence jsonb, session_id, player_id, game_id, action_taken, created_at).
// Append-only: the trust score derives from reads of this table.
type FlagStore struct {
	db *sql.DB
}

func NewFlagStore(db *sql.DB) *FlagStore {
	return &FlagStore{db: db}
}

func (s *FlagStore) Append(f *anticheat.Flag) error {
	evidence, err := json.Marshal(f.Evidence)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO anticheat_flags (id, kind, severity, evidence, session_id, player_id, game_id, action_taken, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, string(f.Kind), string(f.Severity), evidence,
		f.SessionID, f.PlayerID, f.GameID, string(f.ActionTaken), f.CreatedAt)
	return err
}

func (s *FlagStore) ByPlayerSince(playerID string, since time.Time) ([]*anticheat.Flag, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, severity, COALESCE(evidence, '{}'), session_id, player_id, game_id, action_taken, created_at
		FROM anticheat_flags
		WHERE player_id = $1 AND created_at >= $2
		ORDER BY created_at ASC`, playerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*anticheat.Flag{}
	for rows.Next() {
		var f anticheat.Flag
		var kind, severity, action string
		var evidence []byte
		if err := rows.Scan(&f.ID, &kind, &severity, &evidence,
			&f.SessionID, &f.PlayerID, &f.GameID, &action, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Kind = anticheat.FlagKind(kind)
		f.Severity = anticheat.Severity(severity)
		f.ActionTaken = anticheat.ActionTaken(action)
		_ = json.Unmarshal(evidence, &f.Evidence)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// HistoryStore persists score submissions in score_history(player_id,
// game_id, session_id, score, at) for the pattern-repeat lookback.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(r *anticheat.ScoreRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO score_history (player_id, game_id, session_id, score, at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.PlayerID, r.GameID, r.SessionID, r.Score, r.At)
	return err
}

func (s *HistoryStore) ByPlayerGameSince(playerID, gameID string, since time.Time) ([]*anticheat.ScoreRecord, error) {
	rows, err := s.db.Query(`
		SELECT player_id, game_id, session_id, score, at
		FROM score_history
		WHERE player_id = $1 AND game_id = $2 AND at >= $3
		ORDER BY at ASC`, playerID, gameID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*anticheat.ScoreRecord{}
	for rows.Next() {
		var r anticheat.ScoreRecord
		if err := rows.Scan(&r.PlayerID, &r.GameID, &r.SessionID, &r.Score, &r.At); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
