package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playforge/arena-core/anticheat"
	"github.com/playforge/arena-core/economy"
	"github.com/playforge/arena-core/ledger"
	"github.com/playforge/arena-core/notify"
	"github.com/playforge/arena-core/rating"
	"github.com/playforge/arena-core/wallet"
)

type fakeWallet struct {
	mu         sync.Mutex
	balances   map[string]int64
	failCredit bool
	credits    int
}

func newFakeWallet(balances map[string]int64) *fakeWallet {
	return &fakeWallet{balances: balances}
}

func (w *fakeWallet) Debit(playerID string, amount int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[playerID] < amount {
		return wallet.ErrInsufficientFunds
	}
	w.balances[playerID] -= amount
	return nil
}

func (w *fakeWallet) Credit(playerID string, amount int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failCredit {
		return errors.New("wallet unreachable")
	}
	w.balances[playerID] += amount
	w.credits++
	return nil
}

func (w *fakeWallet) balance(playerID string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[playerID]
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []*ledger.Entry
}

func (l *fakeLedger) Append(e *ledger.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *fakeLedger) byReason(reason string) []*ledger.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []*ledger.Entry{}
	for _, e := range l.entries {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

type stubValidator struct {
	result anticheat.Result
}

func (v *stubValidator) Validate(anticheat.Input) anticheat.Result {
	return v.result
}

func validResult() anticheat.Result {
	return anticheat.Result{Valid: true}
}

func invalidResult(suspicion int) anticheat.Result {
	return anticheat.Result{Valid: false, SuspicionScore: suspicion, Reason: "impossible_score"}
}

type stubRatings struct {
	calls    int
	failures int
	mode     string
	matchID  string
	winner   string
	loser    string
	draw     bool
}

func (r *stubRatings) UpdateAfterMatch(gameMode, matchID, winnerID, loserID string, isDraw bool) (rating.RatingDelta, rating.RatingDelta, error) {
	r.calls++
	r.mode = gameMode
	r.matchID = matchID
	r.winner = winnerID
	r.loser = loserID
	r.draw = isDraw
	if r.failures > 0 {
		r.failures--
		return rating.RatingDelta{}, rating.RatingDelta{}, errors.New("rating store unavailable")
	}
	return rating.RatingDelta{PlayerID: winnerID}, rating.RatingDelta{PlayerID: loserID}, nil
}

func newTestManager(t *testing.T, w Wallet, led Ledger, v Validator, r RatingUpdater) *Manager {
	t.Helper()
	store := NewStore(t.TempDir())
	return NewManager(store, w, led, v, economy.NewTable(), r, notify.NopPublisher{})
}

func TestStartSessionDebitsEntryFee(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	led := &fakeLedger{}
	m := newTestManager(t, w, led, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, sess.Status)
	assert.Equal(t, int64(100), sess.EntryFee)
	assert.Equal(t, int64(400), w.balance("p1"))

	fees := led.byReason("entry_fee")
	require.Len(t, fees, 1)
	assert.Equal(t, int64(-100), fees[0].Delta)
	assert.Equal(t, sess.ID, fees[0].SessionID)
}

func TestStartSessionInsufficientBalance(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 50})
	led := &fakeLedger{}
	m := newTestManager(t, w, led, &stubValidator{result: validResult()}, nil)

	_, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(50), w.balance("p1"))
	assert.Empty(t, led.entries)
}

func TestStartSessionRejectsNegativeFee(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, nil)

	_, err := m.StartSession("p1", "blitz_math", -1, ModeCasual, "", "")
	assert.ErrorIs(t, err, ErrInvalidEntryFee)
	assert.Equal(t, int64(500), w.balance("p1"))
}

func TestStartSessionRejectsUnknownGame(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, nil)

	_, err := m.StartSession("p1", "no_such_game", 100, ModeCasual, "", "")
	assert.ErrorIs(t, err, ErrUnknownGame)
	assert.Equal(t, int64(500), w.balance("p1"))
}

func TestStartSessionFreeEntry(t *testing.T) {
	w := newFakeWallet(map[string]int64{})
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "trivia_duel", 0, ModeCasual, "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, sess.Status)
	assert.Equal(t, int64(0), w.balance("p1"))
}

func TestEndSessionPaysValidatedReward(t *testing.T) {
	// blitz_math: 3x multiplier, 15% rake, score cap 1000. Fee 100 at score
	// 800 grosses 240, rakes 36, pays 204.
	w := newFakeWallet(map[string]int64{"p1": 500})
	led := &fakeLedger{}
	m := newTestManager(t, w, led, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)

	res, err := m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.Validated)
	assert.Equal(t, int64(204), res.Reward)
	assert.Equal(t, int64(36), res.Rake)
	assert.Equal(t, int64(604), w.balance("p1"))

	rewards := led.byReason("reward")
	require.Len(t, rewards, 1)
	assert.Equal(t, int64(204), rewards[0].Delta)

	stored, ok := m.GetSession(sess.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, int64(800), stored.Score)
	assert.NotEmpty(t, stored.ValidationHash)
	assert.False(t, stored.EndedAt.IsZero())
}

func TestEndSessionDisqualifiedPaysNothing(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	led := &fakeLedger{}
	m := newTestManager(t, w, led, &stubValidator{result: invalidResult(75)}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)

	res, err := m.EndSession(sess.ID, 999999, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, StatusDisqualified, res.Status)
	assert.False(t, res.Validated)
	assert.Equal(t, int64(0), res.Reward)
	assert.Equal(t, 75, res.SuspicionScore)
	assert.Equal(t, int64(400), w.balance("p1"))
	assert.Empty(t, led.byReason("reward"))
}

func TestEndSessionIdempotent(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	after := w.balance("p1")

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	assert.ErrorIs(t, err, ErrAlreadyEnded)
	assert.Equal(t, after, w.balance("p1"))
	assert.Equal(t, 1, w.credits)
}

func TestEndSessionNotFound(t *testing.T) {
	m := newTestManager(t, newFakeWallet(nil), &fakeLedger{}, &stubValidator{result: validResult()}, nil)
	_, err := m.EndSession("missing", 100, Telemetry{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEndSessionCreditFailureIsRetryable(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)

	w.failCredit = true
	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.Error(t, err)

	stored, ok := m.GetSession(sess.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPlaying, stored.Status)

	w.failCredit = false
	res, err := m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, int64(204), res.Reward)
	assert.Equal(t, int64(604), w.balance("p1"))
}

func TestEndSessionRankedUpdatesRatings(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	ratings := &stubRatings{}
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, ratings)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeRanked, "p2", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, 1, ratings.calls)
	assert.Equal(t, "blitz_math", ratings.mode)
	// The session id is reused as the match id so the rating engine can dedup
	// a replayed update.
	assert.Equal(t, sess.ID, ratings.matchID)
	assert.Equal(t, "p1", ratings.winner)
	assert.Equal(t, "p2", ratings.loser)
	assert.False(t, ratings.draw)
}

func TestEndSessionRetriesRatingUpdate(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	ratings := &stubRatings{failures: 1}
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, ratings)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeRanked, "p2", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, 2, ratings.calls)
	assert.Equal(t, sess.ID, ratings.matchID)
}

func TestEndSessionRankedZeroScoreLoses(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	ratings := &stubRatings{}
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, ratings)

	sess, err := m.StartSession("p1", "coin_duel", 100, ModeRanked, "p2", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 0, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, "p2", ratings.winner)
	assert.Equal(t, "p1", ratings.loser)
}

func TestEndSessionRankedDraw(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	ratings := &stubRatings{}
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, ratings)

	sess, err := m.StartSession("p1", "coin_duel", 100, ModeRanked, "p2", "")
	require.NoError(t, err)

	tel := Telemetry{Metadata: map[string]interface{}{"draw": true}}
	_, err = m.EndSession(sess.ID, 0, tel)
	require.NoError(t, err)
	assert.Equal(t, 1, ratings.calls)
	assert.True(t, ratings.draw)
}

func TestEndSessionCasualSkipsRatings(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	ratings := &stubRatings{}
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, ratings)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, 0, ratings.calls)
}

func TestEndSessionDisqualifiedSkipsRatings(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	ratings := &stubRatings{}
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: invalidResult(80)}, ratings)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeRanked, "p2", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, 0, ratings.calls)
}

func TestAbandonSessionRefunds(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	led := &fakeLedger{}
	m := newTestManager(t, w, led, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(400), w.balance("p1"))

	settled, err := m.AbandonSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, settled.Status)
	assert.Equal(t, int64(500), w.balance("p1"))

	refunds := led.byReason("refund")
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(100), refunds[0].Delta)
}

func TestAbandonAfterEndRejected(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)

	_, err = m.AbandonSession(sess.ID)
	assert.ErrorIs(t, err, ErrAlreadyEnded)
	assert.Equal(t, int64(604), w.balance("p1"))
}

func TestTerminalSessionDropsLockEntry(t *testing.T) {
	w := newFakeWallet(map[string]int64{"p1": 500})
	m := newTestManager(t, w, &fakeLedger{}, &stubValidator{result: validResult()}, nil)

	sess, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)

	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	require.NoError(t, err)
	_, held := m.locks.Load(sess.ID)
	assert.False(t, held)

	// A replayed end allocates a fresh entry but releases it too.
	_, err = m.EndSession(sess.ID, 800, Telemetry{})
	assert.ErrorIs(t, err, ErrAlreadyEnded)
	_, held = m.locks.Load(sess.ID)
	assert.False(t, held)

	other, err := m.StartSession("p1", "blitz_math", 100, ModeCasual, "", "")
	require.NoError(t, err)
	_, err = m.AbandonSession(other.ID)
	require.NoError(t, err)
	_, held = m.locks.Load(other.ID)
	assert.False(t, held)
}

func TestSessionIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newSessionID("blitz_math", "p1")
		assert.False(t, seen[id])
		seen[id] = true
	}
}
