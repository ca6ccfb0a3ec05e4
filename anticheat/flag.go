package anticheat

import (
	"time"

	"github.com/google/uuid"
)

// FlagKind identifies the anomaly class a check detected.
type FlagKind string

const (
	FlagImpossibleScore     FlagKind = "impossible_score"
	FlagAbnormalTiming      FlagKind = "abnormal_timing"
	FlagInputRateAnomaly    FlagKind = "input_rate_anomaly"
	FlagReplayMismatch      FlagKind = "replay_mismatch"
	FlagNetworkManipulation FlagKind = "network_manipulation"
	FlagClientTamper        FlagKind = "client_tamper"
	FlagPatternRecognition  FlagKind = "pattern_recognition"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Points maps severity to its suspicion point value.
func (s Severity) Points() int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 15
	case SeverityHigh:
		return 30
	case SeverityCritical:
		return 50
	}
	return 0
}

// ActionTaken is set by the moderation workflow after review, never by the
// validator itself.
type ActionTaken string

const (
	ActionNone             ActionTaken = "none"
	ActionWarning          ActionTaken = "warning"
	ActionScoreInvalidated ActionTaken = "score_invalidated"
	ActionTempBan          ActionTaken = "temp_ban"
	ActionPermanentBan     ActionTaken = "permanent_ban"
)

// Flag is one detected anomaly. Flags are append-only: created by the
// validator, retained for trust-score lookback and admin review.
type Flag struct {
	ID          string                 `json:"id"`
	Kind        FlagKind               `json:"kind"`
	Severity    Severity               `json:"severity"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
	SessionID   string                 `json:"sessionId"`
	PlayerID    string                 `json:"playerId"`
	GameID      string                 `json:"gameId"`
	ActionTaken ActionTaken            `json:"actionTaken"`
	CreatedAt   time.Time              `json:"createdAt"`
}

func newFlag(kind FlagKind, sev Severity, sessionID, playerID, gameID string, evidence map[string]interface{}) *Flag {
	return &Flag{
		ID:          uuid.New().String(),
		Kind:        kind,
		Severity:    sev,
		Evidence:    evidence,
		SessionID:   sessionID,
		PlayerID:    playerID,
		GameID:      gameID,
		ActionTaken: ActionNone,
		CreatedAt:   time.Now(),
	}
}
