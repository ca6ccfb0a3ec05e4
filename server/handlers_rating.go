package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/playforge/arena-core/rating"
)

type playerStatsResponse struct {
	PlayerID     string  `json:"playerId"`
	GameMode     string  `json:"gameMode"`
	Season       string  `json:"season"`
	MMR          int64   `json:"mmr"`
	Tier         string  `json:"tier"`
	Division     int     `json:"division"`
	LeaguePoints int     `json:"leaguePoints"`
	GamesPlayed  int     `json:"gamesPlayed"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"`
	Streak       int     `json:"streak"`
	PeakMMR      int64   `json:"peakMmr"`
	TrustScore   int     `json:"trustScore"`
	Error        string  `json:"error,omitempty"`
}

// playerStats joins the rating record with the live trust score
// (GET /arena/player/stats?playerId=x&gameMode=y).
func (s *Server) playerStats(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	gameMode := strings.TrimSpace(r.URL.Query().Get("gameMode"))
	if playerID == "" || gameMode == "" {
		writeJSON(w, http.StatusBadRequest, playerStatsResponse{Error: "playerId and gameMode required"})
		return
	}
	rec, err := s.engine.GetRating(playerID, gameMode)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, playerStatsResponse{Error: "failed to load rating"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, playerStatsResponse{Error: "no rating record"})
		return
	}
	trust, err := s.validator.TrustScore(playerID)
	if err != nil {
		// Stats still render without trust; full confidence is the neutral
		// display value.
		trust = 100
	}
	writeJSON(w, http.StatusOK, playerStatsResponse{
		PlayerID:     rec.PlayerID,
		GameMode:     rec.GameMode,
		Season:       rec.SeasonID,
		MMR:          rec.MMR,
		Tier:         rec.Tier,
		Division:     rec.Division,
		LeaguePoints: rec.LeaguePoints,
		GamesPlayed:  rec.GamesPlayed,
		Wins:         rec.Wins,
		Losses:       rec.Losses,
		WinRate:      rec.WinRate(),
		Streak:       rec.CurrentStreak,
		PeakMMR:      rec.PeakMMR,
		TrustScore:   trust,
	})
}

// playerRank returns ladder position and percentile
// (GET /arena/player/rank?playerId=x&gameMode=y).
func (s *Server) playerRank(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	gameMode := strings.TrimSpace(r.URL.Query().Get("gameMode"))
	if playerID == "" || gameMode == "" {
		writeError(w, http.StatusBadRequest, "playerId and gameMode required", "INVALID_QUERY")
		return
	}
	rank, err := s.engine.GetPlayerRank(playerID, gameMode)
	if err != nil {
		if errors.Is(err, rating.ErrRatingNotFound) {
			writeError(w, http.StatusNotFound, "no rating record", "RATING_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute rank", "TECHNICAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

func (s *Server) playerTrust(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "playerId required", "INVALID_QUERY")
		return
	}
	trust, err := s.validator.TrustScore(playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute trust score", "TECHNICAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playerId":   playerID,
		"trustScore": trust,
		"restricted": trust < minMatchmakingTrust,
	})
}

type leaderboardEntry struct {
	Position int    `json:"position"`
	PlayerID string `json:"playerId"`
	MMR      int64  `json:"mmr"`
	Tier     string `json:"tier"`
	Division int    `json:"division"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// leaderboard returns the top of the ladder
// (GET /arena/leaderboard?gameMode=x&limit=50).
func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	gameMode := strings.TrimSpace(r.URL.Query().Get("gameMode"))
	if gameMode == "" {
		writeError(w, http.StatusBadRequest, "gameMode required", "INVALID_QUERY")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	records, err := s.engine.Leaderboard(gameMode, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard", "TECHNICAL_ERROR")
		return
	}
	entries := make([]leaderboardEntry, 0, len(records))
	for i, rec := range records {
		entries = append(entries, leaderboardEntry{
			Position: i + 1,
			PlayerID: rec.PlayerID,
			MMR:      rec.MMR,
			Tier:     rec.Tier,
			Division: rec.Division,
			Wins:     rec.Wins,
			Losses:   rec.Losses,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gameMode": gameMode,
		"season":   s.engine.Season(),
		"entries":  entries,
	})
}

type matchmakingResponse struct {
	Found      bool   `json:"found"`
	OpponentID string `json:"opponentId,omitempty"`
	MMR        int64  `json:"mmr,omitempty"`
	Tier       string `json:"tier,omitempty"`
	Error      string `json:"error,omitempty"`
}

// matchmakingOpponent runs one bounded opponent search; the client retries
// with its own backoff when nobody is in range
// (GET /arena/matchmaking/opponent?playerId=x&gameMode=y).
func (s *Server) matchmakingOpponent(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	gameMode := strings.TrimSpace(r.URL.Query().Get("gameMode"))
	if playerID == "" || gameMode == "" {
		writeJSON(w, http.StatusBadRequest, matchmakingResponse{Error: "playerId and gameMode required"})
		return
	}
	opponent, err := s.engine.FindOpponent(playerID, gameMode)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, matchmakingResponse{Error: "matchmaking query failed"})
		return
	}
	if opponent == nil {
		writeJSON(w, http.StatusOK, matchmakingResponse{Found: false})
		return
	}
	writeJSON(w, http.StatusOK, matchmakingResponse{
		Found:      true,
		OpponentID: opponent.PlayerID,
		MMR:        opponent.MMR,
		Tier:       opponent.Tier,
	})
}

type seasonResetRequest struct {
	SeasonID string `json:"seasonId"`
}

// seasonReset migrates every active-season record into the named season
// (POST /arena/admin/season/reset).
func (s *Server) seasonReset(w http.ResponseWriter, r *http.Request) {
	var req seasonResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "INVALID_BODY")
		return
	}
	req.SeasonID = strings.TrimSpace(req.SeasonID)
	if req.SeasonID == "" {
		writeError(w, http.StatusBadRequest, "seasonId required", "INVALID_BODY")
		return
	}
	if err := s.engine.ResetSeason(req.SeasonID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "RESET_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"season": req.SeasonID, "status": "active"})
}
