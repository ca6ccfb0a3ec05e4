// Package pgstore provides Postgres-backed persistence for rating records and
// the anti-cheat flag log. Schema (see also the CREATE TABLE statements in the
// repo README):
//
//	player_ratings(player_id, game_mode, season_id, mu, sigma, mmr, wins,
//	  losses, games_played, current_streak, longest_win_streak,
//	  longest_loss_streak, peak_mmr, rank_up_games, account_age_days,
//	  performance_anomaly, rapid_climb, recent_matches jsonb,
//	  rank_history jsonb, last_match_at, version, created_at, updated_at,
//	  PRIMARY KEY (player_id, game_mode, season_id))
//
// mmr is stored only to serve the descending-mmr leaderboard index; it is
// recomputed from mu/sigma on every save, never read back as truth.
package pgstore

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/playforge/arena-core/rating"
)

type RatingStore struct {
	db *sql.DB
}

func NewRatingStore(db *sql.DB) *RatingStore {
	return &RatingStore{db: db}
}

const ratingColumns = `player_id, game_mode, season_id, mu, sigma, wins, losses,
	games_played, current_streak, longest_win_streak, longest_loss_streak,
	peak_mmr, rank_up_games, account_age_days, performance_anomaly, rapid_climb,
	COALESCE(recent_matches, '[]'), COALESCE(rank_history, '[]'),
	last_match_at, version, created_at, updated_at`

func scanRating(row interface{ Scan(...interface{}) error }) (*rating.PlayerRating, error) {
	var r rating.PlayerRating
	var recent, history []byte
	var lastMatch sql.NullTime
	err := row.Scan(
		&r.PlayerID, &r.GameMode, &r.SeasonID, &r.Mu, &r.Sigma,
		&r.Wins, &r.Losses, &r.GamesPlayed, &r.CurrentStreak,
		&r.LongestWinStreak, &r.LongestLossStreak, &r.PeakMMR, &r.RankUpGames,
		&r.AccountAgeDays, &r.PerformanceAnomaly, &r.RapidClimb,
		&recent, &history, &lastMatch, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(recent, &r.RecentMatches)
	_ = json.Unmarshal(history, &r.RankHistory)
	if lastMatch.Valid {
		r.LastMatchAt = lastMatch.Time
	}
	r.Tau = rating.DefaultTau
	r.Beta = rating.DefaultBeta
	r.Recompute()
	return &r, nil
}

// isUniqueViolation reports SQLSTATE 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *RatingStore) Get(playerID, mode, season string) (*rating.PlayerRating, error) {
	row := s.db.QueryRow(`SELECT `+ratingColumns+` FROM player_ratings
		WHERE player_id = $1 AND game_mode = $2 AND season_id = $3`,
		playerID, mode, season)
	r, err := scanRating(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Save inserts a new record or applies a conditional update guarded by the
// record's version. A lost race surfaces as rating.ErrVersionConflict.
func (s *RatingStore) Save(r *rating.PlayerRating) error {
	r.Recompute()
	recent, err := json.Marshal(r.RecentMatches)
	if err != nil {
		return err
	}
	history, err := json.Marshal(r.RankHistory)
	if err != nil {
		return err
	}
	var lastMatch sql.NullTime
	if !r.LastMatchAt.IsZero() {
		lastMatch = sql.NullTime{Time: r.LastMatchAt, Valid: true}
	}
	if r.Version == 0 {
		_, err := s.db.Exec(`
			INSERT INTO player_ratings (
				player_id, game_mode, season_id, mu, sigma, mmr, wins, losses,
				games_played, current_streak, longest_win_streak, longest_loss_streak,
				peak_mmr, rank_up_games, account_age_days, performance_anomaly,
				rapid_climb, recent_matches, rank_history, last_match_at, version,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1,$21,$22)`,
			r.PlayerID, r.GameMode, r.SeasonID, r.Mu, r.Sigma, r.MMR,
			r.Wins, r.Losses, r.GamesPlayed, r.CurrentStreak,
			r.LongestWinStreak, r.LongestLossStreak, r.PeakMMR, r.RankUpGames,
			r.AccountAgeDays, r.PerformanceAnomaly, r.RapidClimb,
			recent, history, lastMatch, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			// A concurrent first write for the same key trips the primary key;
			// anything else (connection loss, other constraints) is a real
			// failure and must not look like a retryable conflict.
			if isUniqueViolation(err) {
				return rating.ErrVersionConflict
			}
			return err
		}
		r.Version = 1
		return nil
	}
	res, err := s.db.Exec(`
		UPDATE player_ratings SET
			mu = $4, sigma = $5, mmr = $6, wins = $7, losses = $8,
			games_played = $9, current_streak = $10, longest_win_streak = $11,
			longest_loss_streak = $12, peak_mmr = $13, rank_up_games = $14,
			account_age_days = $15, performance_anomaly = $16, rapid_climb = $17,
			recent_matches = $18, rank_history = $19, last_match_at = $20,
			version = version + 1, updated_at = $21
		WHERE player_id = $1 AND game_mode = $2 AND season_id = $3 AND version = $22`,
		r.PlayerID, r.GameMode, r.SeasonID, r.Mu, r.Sigma, r.MMR,
		r.Wins, r.Losses, r.GamesPlayed, r.CurrentStreak,
		r.LongestWinStreak, r.LongestLossStreak, r.PeakMMR, r.RankUpGames,
		r.AccountAgeDays, r.PerformanceAnomaly, r.RapidClimb,
		recent, history, lastMatch, r.UpdatedAt, r.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rating.ErrVersionConflict
	}
	r.Version++
	return nil
}

func (s *RatingStore) list(query string, args ...interface{}) ([]*rating.PlayerRating, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*rating.PlayerRating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if out == nil {
		out = []*rating.PlayerRating{}
	}
	return out, rows.Err()
}

func (s *RatingStore) ListBySeason(mode, season string) ([]*rating.PlayerRating, error) {
	return s.list(`SELECT `+ratingColumns+` FROM player_ratings
		WHERE game_mode = $1 AND season_id = $2`, mode, season)
}

func (s *RatingStore) ListSeason(season string) ([]*rating.PlayerRating, error) {
	return s.list(`SELECT `+ratingColumns+` FROM player_ratings
		WHERE season_id = $1`, season)
}

func (s *RatingStore) Leaderboard(mode, season string, limit int) ([]*rating.PlayerRating, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.list(`SELECT `+ratingColumns+` FROM player_ratings
		WHERE game_mode = $1 AND season_id = $2
		ORDER BY mmr DESC, player_id ASC
		LIMIT $3`, mode, season, limit)
}
