package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/playforge/arena-core/anticheat"
)

type Status string

const (
	StatusPlaying      Status = "playing"
	StatusCompleted    Status = "completed"
	StatusDisqualified Status = "disqualified"
	StatusAbandoned    Status = "abandoned"
)

// Terminal reports whether the status ends the session's one-way lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDisqualified || s == StatusAbandoned
}

// Mode separates casual play from ranked matches that feed the rating engine.
const (
	ModeCasual = "casual"
	ModeRanked = "ranked"
)

// Telemetry is the client-submitted measurement bundle for one session. The
// action log shape is game-specific but always timestamped; duration is never
// taken from here, it is derived server-side from the session start.
type Telemetry struct {
	FrameRates []float64              `json:"frameRates,omitempty"`
	Latencies  []float64              `json:"latencies,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	ActionLog  []anticheat.Action     `json:"actionLog,omitempty"`
}

// Session is one attempt at a game. Mutated only by the Manager, immutable
// once terminal.
type Session struct {
	ID           string `json:"id"`
	GameID       string `json:"gameId"`
	PlayerID     string `json:"playerId"`
	OpponentID   string `json:"opponentId,omitempty"` // ranked matches
	TournamentID string `json:"tournamentId,omitempty"`
	Mode         string `json:"mode"`

	EntryFee int64 `json:"entryFee"`
	Reward   int64 `json:"reward"` // paid out, set only at completion
	Rake     int64 `json:"rake"`

	Score     int64     `json:"score"`
	Telemetry Telemetry `json:"telemetry"`

	Flags          []*anticheat.Flag `json:"flags,omitempty"`
	SuspicionScore int               `json:"suspicionScore"`
	Validated      bool              `json:"validated"`
	ValidationHash string            `json:"validationHash,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}

// ValidationHash is the deterministic digest of session id, score and the
// ordered action log, kept for replay auditing.
func ValidationHash(sessionID string, score int64, actions []anticheat.Action) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d", sessionID, score)
	for _, a := range actions {
		fmt.Fprintf(h, "|%s@%d", a.Type, a.At.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
