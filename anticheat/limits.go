package anticheat

// Limits holds the per-game plausibility bounds the validation checks run
// against. A game without limits gets no checks (configuration warning, not a
// player flag).
type Limits struct {
	GameID              string  `json:"game_id"`
	MaxScorePerSecond   float64 `json:"max_score_per_second"`   // linear cap: maxScore(d) = rate x d
	MinDurationSeconds  float64 `json:"min_duration_seconds"`   // shortest plausible full run
	MinStepSeconds      float64 `json:"min_step_seconds"`       // multi-step games: shortest gap between actions
	MaxActionsPerSecond float64 `json:"max_actions_per_second"` // input rate ceiling
	ScoreCap            int64   `json:"score_cap"`              // near-max reference for the pattern check
	PatternTolerance    float64 `json:"pattern_tolerance"`      // relative spread treated as "suspiciously identical"
	PatternMinSessions  int     `json:"pattern_min_sessions"`   // history size before the pattern check applies
	Binary              bool    `json:"binary"`                 // 0/1 score space: identical scores are the norm, not a pattern
}

const (
	defaultPatternTolerance   = 0.02
	defaultPatternMinSessions = 5
)

var defaultLimits = map[string]Limits{
	"blitz_math":  {GameID: "blitz_math", MaxScorePerSecond: 25, MinDurationSeconds: 20, MinStepSeconds: 0.35, MaxActionsPerSecond: 8, ScoreCap: 1000},
	"word_rush":   {GameID: "word_rush", MaxScorePerSecond: 10, MinDurationSeconds: 15, MinStepSeconds: 0.5, MaxActionsPerSecond: 10, ScoreCap: 500},
	"sky_runner":  {GameID: "sky_runner", MaxScorePerSecond: 600, MinDurationSeconds: 10, MaxActionsPerSecond: 15, ScoreCap: 100000},
	"tile_smash":  {GameID: "tile_smash", MaxScorePerSecond: 200, MinDurationSeconds: 12, MinStepSeconds: 0.1, MaxActionsPerSecond: 12, ScoreCap: 20000},
	"coin_duel":   {GameID: "coin_duel", MinDurationSeconds: 5, MaxActionsPerSecond: 6, Binary: true},
	"trivia_duel": {GameID: "trivia_duel", MinDurationSeconds: 8, MinStepSeconds: 1.0, MaxActionsPerSecond: 4, Binary: true},
}

// LimitsTable resolves limits per game and fills pattern-check defaults.
type LimitsTable struct {
	games map[string]Limits
}

func NewLimitsTable() *LimitsTable {
	return &LimitsTable{games: defaultLimits}
}

func NewLimitsTableWith(entries []Limits) *LimitsTable {
	m := make(map[string]Limits, len(entries))
	for _, e := range entries {
		if e.GameID != "" {
			m[e.GameID] = e
		}
	}
	return &LimitsTable{games: m}
}

func (t *LimitsTable) Get(gameID string) (Limits, bool) {
	l, ok := t.games[gameID]
	if !ok {
		return Limits{}, false
	}
	if l.PatternTolerance <= 0 {
		l.PatternTolerance = defaultPatternTolerance
	}
	if l.PatternMinSessions <= 0 {
		l.PatternMinSessions = defaultPatternMinSessions
	}
	return l, true
}
