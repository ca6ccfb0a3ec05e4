package rating

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSamePlayer     = errors.New("rating: winner and loser are the same player")
	ErrRatingNotFound = errors.New("rating: no rating record for player")
)

// saveRetries bounds the optimistic-concurrency retry loop. Conflicts are
// rare (two simultaneous matches ending for one player) and resolve on the
// first re-read in practice.
const saveRetries = 5

// matchmakingRadii are the expanding mmr windows, widened in fixed steps.
// The search is bounded: no waiting or polling happens here.
var matchmakingRadii = []int64{50, 100, 150, 200, 300}

// RatingDelta reports one side's outcome of a rating update.
type RatingDelta struct {
	PlayerID    string `json:"playerId"`
	Delta       int    `json:"delta"`
	NewMMR      int64  `json:"newMmr"`
	Tier        string `json:"tier"`
	Division    int    `json:"division"`
	TierChanged bool   `json:"tierChanged"`
}

// Rank is the player-facing ladder position.
type Rank struct {
	MMR                 int64   `json:"mmr"`
	Tier                string  `json:"tier"`
	Division            int     `json:"division"`
	LeaderboardPosition int     `json:"leaderboardPosition"`
	Percentile          float64 `json:"percentile"`
}

// Engine owns rating records and the matchmaking query.
type Engine struct {
	store Store

	mu       sync.RWMutex
	seasonID string

	// Restricted reports whether a player is excluded from matchmaking by an
	// active penalty. Nil means nobody is restricted.
	Restricted func(playerID string) bool

	now func() time.Time
}

func NewEngine(store Store, seasonID string) *Engine {
	return &Engine{
		store:    store,
		seasonID: seasonID,
		now:      time.Now,
	}
}

// Season returns the active season id.
func (e *Engine) Season() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seasonID
}

// UpdateAfterMatch applies the fixed-K Elo update to both participants of a
// decided match. Winner and loser records are updated independently (disjoint
// records, order not significant); each side retries on a version conflict so
// concurrent updates to the same player never lose writes. matchID dedups the
// sides: a record whose recent-match ring already carries it is skipped, so a
// retry after a partial failure (one side saved, the other not) finishes the
// missing side without re-applying the other. An empty matchID gets a random
// one, which makes the call non-retryable.
func (e *Engine) UpdateAfterMatch(gameMode, matchID, winnerID, loserID string, isDraw bool) (winner, loser RatingDelta, err error) {
	if winnerID == loserID {
		return RatingDelta{}, RatingDelta{}, ErrSamePlayer
	}
	if matchID == "" {
		matchID = uuid.New().String()
	}
	season := e.Season()

	w, err := e.getOrCreate(winnerID, gameMode, season)
	if err != nil {
		return RatingDelta{}, RatingDelta{}, err
	}
	l, err := e.getOrCreate(loserID, gameMode, season)
	if err != nil {
		return RatingDelta{}, RatingDelta{}, err
	}

	expW := Expected(w.MMR, l.MMR)
	actualW, actualL := 1.0, 0.0
	outcomeW, outcomeL := OutcomeWin, OutcomeLoss
	if isDraw {
		actualW, actualL = 0.5, 0.5
		outcomeW, outcomeL = OutcomeDraw, OutcomeDraw
	}
	deltaW := EloDelta(actualW, expW)
	deltaL := EloDelta(actualL, 1-expW)

	winner, err = e.applyMatchSide(winnerID, gameMode, season, matchID, outcomeW, deltaW)
	if err != nil {
		return RatingDelta{}, RatingDelta{}, err
	}
	loser, err = e.applyMatchSide(loserID, gameMode, season, matchID, outcomeL, deltaL)
	if err != nil {
		return RatingDelta{}, RatingDelta{}, err
	}
	return winner, loser, nil
}

func (e *Engine) getOrCreate(playerID, mode, season string) (*PlayerRating, error) {
	r, err := e.store.Get(playerID, mode, season)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = NewPlayerRating(playerID, mode, season)
	}
	return r, nil
}

// applyMatchSide mutates one record under optimistic concurrency: re-read and
// re-apply on version conflict. A record that already carries matchID in its
// recent-match ring has this side applied and is returned as-is.
func (e *Engine) applyMatchSide(playerID, mode, season, matchID string, outcome MatchOutcome, delta int) (RatingDelta, error) {
	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		r, err := e.getOrCreate(playerID, mode, season)
		if err != nil {
			return RatingDelta{}, err
		}
		if hasMatch(r.RecentMatches, matchID) {
			return RatingDelta{
				PlayerID: playerID,
				Delta:    delta,
				NewMMR:   r.MMR,
				Tier:     r.Tier,
				Division: r.Division,
			}, nil
		}
		prevTier := r.Tier

		r.Mu += float64(delta)
		r.GamesPlayed++
		switch outcome {
		case OutcomeWin:
			r.Wins++
			if r.CurrentStreak < 0 {
				r.CurrentStreak = 0
			}
			r.CurrentStreak++
			if r.CurrentStreak > r.LongestWinStreak {
				r.LongestWinStreak = r.CurrentStreak
			}
		case OutcomeLoss:
			r.Losses++
			if r.CurrentStreak > 0 {
				r.CurrentStreak = 0
			}
			r.CurrentStreak--
			if -r.CurrentStreak > r.LongestLossStreak {
				r.LongestLossStreak = -r.CurrentStreak
			}
		case OutcomeDraw:
			r.CurrentStreak = 0
		}
		now := e.now()
		r.LastMatchAt = now
		r.UpdatedAt = now
		r.pushRecentMatch(RecentMatch{MatchID: matchID, Result: outcome, Delta: delta, At: now})
		r.Recompute()

		tierChanged := r.Tier != prevTier
		if tierChanged {
			r.RankUpGames = 0
			r.RankHistory = append(r.RankHistory, RankEvent{FromTier: prevTier, ToTier: r.Tier, MMR: r.MMR, At: now})
			log.Printf("rating: player %s %s -> %s (mmr %d, mode %s)", playerID, prevTier, r.Tier, r.MMR, mode)
		} else {
			r.RankUpGames++
		}
		e.annotateSmurfSignals(r)

		if err := e.store.Save(r); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return RatingDelta{}, err
		}
		return RatingDelta{
			PlayerID:    playerID,
			Delta:       delta,
			NewMMR:      r.MMR,
			Tier:        r.Tier,
			Division:    r.Division,
			TierChanged: tierChanged,
		}, nil
	}
	return RatingDelta{}, fmt.Errorf("rating: update for player %s kept conflicting: %w", playerID, lastErr)
}

func hasMatch(ms []RecentMatch, matchID string) bool {
	for _, m := range ms {
		if m.MatchID == matchID {
			return true
		}
	}
	return false
}

// annotateSmurfSignals updates the advisory anti-smurf fields. These only
// annotate a record, never block the update.
func (e *Engine) annotateSmurfSignals(r *PlayerRating) {
	if r.GamesPlayed >= 5 {
		r.PerformanceAnomaly = r.WinRate()
	}
	r.RapidClimb = r.GamesPlayed <= 20 && r.MMR >= 800
}

// FindOpponent runs the expanding-radius search around the requester's mmr:
// widen in fixed steps, exclude the requester and penalty-restricted players,
// and within a window prefer whoever has waited longest since their last
// match. Returns nil when no candidate exists at the widest radius; retry and
// backoff policy belong to the caller.
func (e *Engine) FindOpponent(playerID, gameMode string) (*PlayerRating, error) {
	season := e.Season()
	self, err := e.store.Get(playerID, gameMode, season)
	if err != nil {
		return nil, err
	}
	selfMMR := ConservativeMMR(DefaultMu, DefaultSigma)
	if self != nil {
		selfMMR = self.MMR
	}
	pool, err := e.store.ListBySeason(gameMode, season)
	if err != nil {
		return nil, err
	}
	for _, radius := range matchmakingRadii {
		var best *PlayerRating
		for _, c := range pool {
			if c.PlayerID == playerID {
				continue
			}
			if e.Restricted != nil && e.Restricted(c.PlayerID) {
				continue
			}
			gap := c.MMR - selfMMR
			if gap < 0 {
				gap = -gap
			}
			if gap > radius {
				continue
			}
			if best == nil || c.LastMatchAt.Before(best.LastMatchAt) {
				best = c
			}
		}
		if best != nil {
			return best, nil
		}
	}
	return nil, nil
}

// GetPlayerRank returns ladder position (1 + players with strictly greater
// mmr) and percentile over the ranked population.
func (e *Engine) GetPlayerRank(playerID, gameMode string) (Rank, error) {
	season := e.Season()
	self, err := e.store.Get(playerID, gameMode, season)
	if err != nil {
		return Rank{}, err
	}
	if self == nil {
		return Rank{}, ErrRatingNotFound
	}
	pool, err := e.store.ListBySeason(gameMode, season)
	if err != nil {
		return Rank{}, err
	}
	position := 1
	for _, c := range pool {
		if c.MMR > self.MMR {
			position++
		}
	}
	total := len(pool)
	percentile := 0.0
	if total > 0 {
		percentile = (1 - float64(position-1)/float64(total)) * 100
	}
	return Rank{
		MMR:                 self.MMR,
		Tier:                self.Tier,
		Division:            self.Division,
		LeaderboardPosition: position,
		Percentile:          percentile,
	}, nil
}

// GetRating returns the player's record for stats display, or nil.
func (e *Engine) GetRating(playerID, gameMode string) (*PlayerRating, error) {
	return e.store.Get(playerID, gameMode, e.Season())
}

// Leaderboard returns the top records by descending mmr.
func (e *Engine) Leaderboard(gameMode string, limit int) ([]*PlayerRating, error) {
	return e.store.Leaderboard(gameMode, e.Season(), limit)
}

// ResetSeason carries every record of the active season into newSeasonID:
// mean pulled halfway back to the default, uncertainty reset upward, tiers
// and counters cleared. Prior-season records are retained untouched. Already
// an administrative bulk operation, so records are migrated on a small worker
// pool.
func (e *Engine) ResetSeason(newSeasonID string) error {
	oldSeason := e.Season()
	if newSeasonID == "" || newSeasonID == oldSeason {
		return fmt.Errorf("rating: invalid new season %q", newSeasonID)
	}
	records, err := e.store.ListSeason(oldSeason)
	if err != nil {
		return err
	}
	log.Printf("rating: season reset %s -> %s, migrating %d records", oldSeason, newSeasonID, len(records))

	var g errgroup.Group
	g.SetLimit(8)
	for _, old := range records {
		old := old
		g.Go(func() error {
			existing, err := e.store.Get(old.PlayerID, old.GameMode, newSeasonID)
			if err != nil {
				return err
			}
			if existing != nil {
				return nil // reset retried, record already migrated
			}
			fresh := NewPlayerRating(old.PlayerID, old.GameMode, newSeasonID)
			fresh.Mu = (old.Mu + DefaultMu) / 2
			fresh.Sigma = DefaultSigma
			fresh.AccountAgeDays = old.AccountAgeDays
			fresh.Recompute()
			log.Printf("rating: reset player %s mode %s: mu %.2f -> %.2f, mmr %d -> %d",
				old.PlayerID, old.GameMode, old.Mu, fresh.Mu, old.MMR, fresh.MMR)
			return e.store.Save(fresh)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.mu.Lock()
	e.seasonID = newSeasonID
	e.mu.Unlock()
	log.Printf("rating: season %s active", newSeasonID)
	return nil
}
