package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playforge/arena-core/anticheat"
	"github.com/playforge/arena-core/economy"
	"github.com/playforge/arena-core/ledger"
	"github.com/playforge/arena-core/notify"
	"github.com/playforge/arena-core/rating"
	"github.com/playforge/arena-core/wallet"
)

var (
	ErrInvalidEntryFee     = errors.New("session: entry fee must be >= 0")
	ErrUnknownGame         = errors.New("session: unknown game")
	ErrInsufficientBalance = errors.New("session: insufficient balance")
	ErrSessionNotFound     = errors.New("session: not found")
	ErrAlreadyEnded        = errors.New("session: already ended")
)

// Wallet is the external account store. Debit is an atomic
// decrement-if-sufficient; a rejection carries no side effects.
type Wallet interface {
	Debit(playerID string, amount int64) error
	Credit(playerID string, amount int64) error
}

// Ledger is the append-only audit trail. Its failure must not block
// gameplay.
type Ledger interface {
	Append(e *ledger.Entry) error
}

// Validator decides score integrity for one submission.
type Validator interface {
	Validate(in anticheat.Input) anticheat.Result
}

// RatingUpdater is invoked after decided ranked matches. matchID dedups
// retries of a partially applied update.
type RatingUpdater interface {
	UpdateAfterMatch(gameMode, matchID, winnerID, loserID string, isDraw bool) (rating.RatingDelta, rating.RatingDelta, error)
}

// EndResult is the settled outcome of EndSession.
type EndResult struct {
	SessionID      string `json:"sessionId"`
	Status         Status `json:"status"`
	Reward         int64  `json:"reward"`
	Rake           int64  `json:"rake"`
	Validated      bool   `json:"validated"`
	SuspicionScore int    `json:"suspicionScore"`
}

// Manager owns the session state machine: entry-fee escrow on start, score
// validation and reward payout on end.
type Manager struct {
	store     *Store
	wallet    Wallet
	ledger    Ledger
	validator Validator
	economics *economy.Table
	ratings   RatingUpdater
	publisher notify.Publisher

	// Per-session locks serialize settlement; the store's conditional
	// transition is the backstop if sessions ever span processes.
	locks sync.Map // sessionID -> *sync.Mutex
}

func NewManager(store *Store, wallet Wallet, led Ledger, validator Validator, eco *economy.Table, ratings RatingUpdater, pub notify.Publisher) *Manager {
	if eco == nil {
		eco = economy.NewTable()
	}
	if pub == nil {
		pub = notify.LogPublisher{}
	}
	return &Manager{
		store:     store,
		wallet:    wallet,
		ledger:    led,
		validator: validator,
		economics: eco,
		ratings:   ratings,
		publisher: pub,
	}
}

func (m *Manager) lockFor(sessionID string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// newSessionID builds a globally unique, collision-free id even under
// concurrent starts by the same player: game + player + monotonic timestamp +
// random suffix.
func newSessionID(gameID, playerID string) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s_%d_%s", gameID, playerID, time.Now().UnixNano(), suffix)
}

// StartSession escrows the entry fee and opens a session in the playing
// state. A failed debit is the single source of truth for insufficient
// balance and aborts with no side effects.
func (m *Manager) StartSession(playerID, gameID string, entryFee int64, mode, opponentID, tournamentID string) (*Session, error) {
	if entryFee < 0 {
		return nil, ErrInvalidEntryFee
	}
	if _, ok := m.economics.Get(gameID); !ok {
		return nil, ErrUnknownGame
	}
	if mode == "" {
		mode = ModeCasual
	}
	if entryFee > 0 {
		if err := m.wallet.Debit(playerID, entryFee); err != nil {
			if isInsufficient(err) {
				return nil, ErrInsufficientBalance
			}
			return nil, err
		}
	}
	sess := &Session{
		ID:           newSessionID(gameID, playerID),
		GameID:       gameID,
		PlayerID:     playerID,
		OpponentID:   opponentID,
		TournamentID: tournamentID,
		Mode:         mode,
		EntryFee:     entryFee,
		Status:       StatusPlaying,
		CreatedAt:    time.Now(),
	}
	if err := m.store.Create(sess); err != nil {
		// Undo the escrow so the player is not charged for a session that
		// never opened.
		if entryFee > 0 {
			if cerr := m.wallet.Credit(playerID, entryFee); cerr != nil {
				log.Printf("session: failed to refund %d to %s after store error: %v", entryFee, playerID, cerr)
			}
		}
		return nil, err
	}
	if entryFee > 0 {
		m.appendLedger(playerID, -entryFee, "entry_fee", sess.ID)
	}
	return sess, nil
}

func isInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) || errors.Is(err, wallet.ErrInsufficientFunds)
}

// EndSession settles one session: validate, compute reward, credit funds,
// persist the terminal state, then (ranked only) notify the rating engine.
// Idempotent by session id: the loser of a double-submission race gets
// ErrAlreadyEnded and no balance moves twice. If crediting fails the session
// stays in playing state, so a retry re-runs settlement from the checkpoint.
func (m *Manager) EndSession(sessionID string, score int64, tel Telemetry) (EndResult, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok := m.store.Get(sessionID)
	if !ok {
		m.locks.Delete(sessionID)
		return EndResult{}, ErrSessionNotFound
	}
	if sess.Status != StatusPlaying {
		m.locks.Delete(sessionID)
		return EndResult{}, ErrAlreadyEnded
	}

	// Duration is derived server-side from the session start, never trusted
	// from the client.
	duration := time.Since(sess.CreatedAt)
	vres := m.validator.Validate(anticheat.Input{
		PlayerID:  sess.PlayerID,
		GameID:    sess.GameID,
		SessionID: sess.ID,
		Score:     score,
		Duration:  duration,
		ActionLog: tel.ActionLog,
	})

	reward := m.economics.ComputeReward(sess.GameID, sess.EntryFee, score, vres.Valid)
	if reward.Payout > 0 {
		if err := m.wallet.Credit(sess.PlayerID, reward.Payout); err != nil {
			// No reward is ever recorded without a successful credit: leave
			// the session playing and let the caller retry.
			return EndResult{}, fmt.Errorf("session: reward credit failed: %w", err)
		}
		m.appendLedger(sess.PlayerID, reward.Payout, "reward", sess.ID)
	}

	status := StatusCompleted
	if !vres.Valid {
		status = StatusDisqualified
	}
	settled, err := m.store.FinishIfPlaying(sessionID, func(s *Session) {
		s.Score = score
		s.Telemetry = tel
		s.Flags = vres.Flags
		s.SuspicionScore = vres.SuspicionScore
		s.Validated = vres.Valid
		s.ValidationHash = ValidationHash(s.ID, score, tel.ActionLog)
		s.Reward = reward.Payout
		s.Rake = reward.Rake
		s.Status = status
		s.EndedAt = time.Now()
	})
	if err != nil {
		if errors.Is(err, ErrNotPlaying) {
			return EndResult{}, ErrAlreadyEnded
		}
		return EndResult{}, err
	}

	// The session is terminal now: the per-session lock entry is done for
	// good, so drop it instead of growing the map for the process lifetime.
	m.locks.Delete(sessionID)

	if sess.Mode == ModeRanked && sess.OpponentID != "" && settled.Validated {
		m.notifyRating(settled)
	}
	m.publisher.Publish(notify.Event{
		Type:     "session_end",
		PlayerID: settled.PlayerID,
		Payload: map[string]interface{}{
			"sessionId": settled.ID,
			"status":    string(settled.Status),
			"reward":    settled.Reward,
			"validated": settled.Validated,
		},
	})
	return EndResult{
		SessionID:      settled.ID,
		Status:         settled.Status,
		Reward:         settled.Reward,
		Rake:           settled.Rake,
		Validated:      settled.Validated,
		SuspicionScore: settled.SuspicionScore,
	}, nil
}

// notifyRating maps a settled ranked session to a decided match: score > 0
// is a win for the session's player, a draw is declared via telemetry
// metadata. Rating failure after a persisted terminal session is logged, not
// surfaced; the session outcome already stands.
func (m *Manager) notifyRating(sess *Session) {
	if m.ratings == nil {
		return
	}
	isDraw := false
	if v, ok := sess.Telemetry.Metadata["draw"].(bool); ok {
		isDraw = v
	}
	winner, loser := sess.PlayerID, sess.OpponentID
	if sess.Score == 0 && !isDraw {
		winner, loser = sess.OpponentID, sess.PlayerID
	}
	// The session id doubles as the match id, so a replayed update after a
	// partial failure never re-applies a side that already saved.
	wd, ld, err := m.ratings.UpdateAfterMatch(sess.GameID, sess.ID, winner, loser, isDraw)
	if err != nil {
		log.Printf("session: rating update failed for session %s, retrying once: %v", sess.ID, err)
		wd, ld, err = m.ratings.UpdateAfterMatch(sess.GameID, sess.ID, winner, loser, isDraw)
		if err != nil {
			log.Printf("session: rating update failed for session %s: %v", sess.ID, err)
			return
		}
	}
	for _, d := range []rating.RatingDelta{wd, ld} {
		if d.TierChanged {
			m.publisher.Publish(notify.Event{
				Type:     "rank_change",
				PlayerID: d.PlayerID,
				Payload: map[string]interface{}{
					"tier":     d.Tier,
					"division": d.Division,
					"mmr":      d.NewMMR,
				},
			})
		}
	}
}

// AbandonSession closes an in-flight session without settlement and refunds
// the entry fee. Same one-way transition rules as EndSession.
func (m *Manager) AbandonSession(sessionID string) (*Session, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok := m.store.Get(sessionID)
	if !ok {
		m.locks.Delete(sessionID)
		return nil, ErrSessionNotFound
	}
	if sess.Status != StatusPlaying {
		m.locks.Delete(sessionID)
		return nil, ErrAlreadyEnded
	}
	if sess.EntryFee > 0 {
		if err := m.wallet.Credit(sess.PlayerID, sess.EntryFee); err != nil {
			return nil, fmt.Errorf("session: refund failed: %w", err)
		}
		m.appendLedger(sess.PlayerID, sess.EntryFee, "refund", sess.ID)
	}
	settled, err := m.store.FinishIfPlaying(sessionID, func(s *Session) {
		s.Status = StatusAbandoned
		s.EndedAt = time.Now()
	})
	if err != nil {
		if errors.Is(err, ErrNotPlaying) {
			return nil, ErrAlreadyEnded
		}
		return nil, err
	}
	m.locks.Delete(sessionID)
	return settled, nil
}

// GetSession returns a session by id for stats display.
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	return m.store.Get(sessionID)
}

func (m *Manager) appendLedger(playerID string, delta int64, reason, sessionID string) {
	if m.ledger == nil {
		return
	}
	err := m.ledger.Append(&ledger.Entry{
		PlayerID:  playerID,
		Delta:     delta,
		Reason:    reason,
		SessionID: sessionID,
		At:        time.Now(),
	})
	if err != nil {
		log.Printf("session: ledger append failed (%s %d for %s): %v", reason, delta, playerID, err)
	}
}
