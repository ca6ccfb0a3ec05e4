package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/playforge/arena-core/session"
)

type sessionStartRequest struct {
	PlayerID     string `json:"playerId"`
	GameID       string `json:"gameId"`
	EntryFee     int64  `json:"entryFee"`
	Mode         string `json:"mode"`
	OpponentID   string `json:"opponentId"`
	TournamentID string `json:"tournamentId"`
}

type sessionStartResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	EntryFee  int64  `json:"entryFee"`
	CreatedAt string `json:"createdAt"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) sessionStart(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sessionStartResponse{Error: "invalid body"})
		return
	}
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	req.GameID = strings.TrimSpace(req.GameID)
	if req.PlayerID == "" || req.GameID == "" {
		writeJSON(w, http.StatusBadRequest, sessionStartResponse{Error: "playerId and gameId required"})
		return
	}

	sess, err := s.manager.StartSession(req.PlayerID, req.GameID, req.EntryFee, req.Mode, req.OpponentID, req.TournamentID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInsufficientBalance):
			writeJSON(w, http.StatusPaymentRequired, sessionStartResponse{Error: "insufficient balance"})
		case errors.Is(err, session.ErrInvalidEntryFee), errors.Is(err, session.ErrUnknownGame):
			writeJSON(w, http.StatusBadRequest, sessionStartResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusBadGateway, sessionStartResponse{Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, sessionStartResponse{
		SessionID: sess.ID,
		Status:    string(sess.Status),
		EntryFee:  sess.EntryFee,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

type sessionEndRequest struct {
	SessionID string            `json:"sessionId"`
	Score     int64             `json:"score"`
	Telemetry session.Telemetry `json:"telemetry"`
}

type sessionEndResponse struct {
	SessionID      string `json:"sessionId"`
	Status         string `json:"status"`
	Reward         int64  `json:"reward"`
	Rake           int64  `json:"rake"`
	Validated      bool   `json:"validated"`
	SuspicionScore int    `json:"suspicionScore"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) sessionEnd(w http.ResponseWriter, r *http.Request) {
	var req sessionEndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sessionEndResponse{Error: "invalid body"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, sessionEndResponse{Error: "sessionId required"})
		return
	}
	if req.Score < 0 {
		writeJSON(w, http.StatusBadRequest, sessionEndResponse{Error: "score must be >= 0"})
		return
	}

	res, err := s.manager.EndSession(req.SessionID, req.Score, req.Telemetry)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, sessionEndResponse{Error: "session not found"})
		case errors.Is(err, session.ErrAlreadyEnded):
			writeJSON(w, http.StatusConflict, sessionEndResponse{Error: "session already ended"})
		default:
			writeJSON(w, http.StatusBadGateway, sessionEndResponse{Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, sessionEndResponse{
		SessionID:      res.SessionID,
		Status:         string(res.Status),
		Reward:         res.Reward,
		Rake:           res.Rake,
		Validated:      res.Validated,
		SuspicionScore: res.SuspicionScore,
	})
}

type sessionAbandonRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) sessionAbandon(w http.ResponseWriter, r *http.Request) {
	var req sessionAbandonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "INVALID_BODY")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "sessionId required", "INVALID_BODY")
		return
	}
	sess, err := s.manager.AbandonSession(req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
		case errors.Is(err, session.ErrAlreadyEnded):
			writeError(w, http.StatusConflict, "session already ended", "ALREADY_ENDED")
		default:
			writeError(w, http.StatusBadGateway, err.Error(), "TECHNICAL_ERROR")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": sess.ID,
		"status":    string(sess.Status),
		"refunded":  sess.EntryFee,
	})
}

// sessionGet returns the full stored session (GET /arena/session?sessionId=x).
func (s *Server) sessionGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "sessionId required", "INVALID_QUERY")
		return
	}
	sess, ok := s.manager.GetSession(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// walletBalance proxies the player's spendable balance from the wallet
// service (GET /arena/wallet/balance?playerId=x).
func (s *Server) walletBalance(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "playerId required", "INVALID_QUERY")
		return
	}
	balance, err := s.wallet.Balance(playerID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), "WALLET_UNAVAILABLE")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playerId": playerID,
		"balance":  balance,
	})
}

// playerLedger returns the balance movements recorded for a player.
func (s *Server) playerLedger(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "playerId required", "INVALID_QUERY")
		return
	}
	entries, err := s.ledger.ByPlayer(playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read ledger", "TECHNICAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
