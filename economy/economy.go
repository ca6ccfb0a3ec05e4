package economy

// GameEconomics is the tuning knob for one game's coin flow. This table is the
// single place reward multipliers, rake and score caps are set.
type GameEconomics struct {
	GameID      string  `json:"game_id"`
	Multiplier  float64 `json:"multiplier"`   // gross reward = entry fee x multiplier at a perfect score
	RakePercent float64 `json:"rake_percent"` // platform cut of the gross reward, 0..1
	ScoreCap    int64   `json:"score_cap"`    // scalar games: score at which the full multiplier is earned
	Binary      bool    `json:"binary"`       // win/lose games: score is 0 or 1, no partial reward
}

// defaultTable covers the launch catalog. Binary duel games run low
// multiplier/low rake; high-skill-ceiling games go up to 10x/25%.
var defaultTable = map[string]GameEconomics{
	"coin_duel":   {GameID: "coin_duel", Multiplier: 1.8, RakePercent: 0.05, Binary: true},
	"blitz_math":  {GameID: "blitz_math", Multiplier: 3.0, RakePercent: 0.15, ScoreCap: 1000},
	"word_rush":   {GameID: "word_rush", Multiplier: 2.5, RakePercent: 0.10, ScoreCap: 500},
	"sky_runner":  {GameID: "sky_runner", Multiplier: 10.0, RakePercent: 0.25, ScoreCap: 100000},
	"tile_smash":  {GameID: "tile_smash", Multiplier: 4.0, RakePercent: 0.12, ScoreCap: 20000},
	"trivia_duel": {GameID: "trivia_duel", Multiplier: 2.0, RakePercent: 0.08, Binary: true},
}

// Table resolves per-game economics.
type Table struct {
	games map[string]GameEconomics
}

func NewTable() *Table {
	return &Table{games: defaultTable}
}

// NewTableWith builds a table from explicit entries (tests, staging overrides).
func NewTableWith(entries []GameEconomics) *Table {
	m := make(map[string]GameEconomics, len(entries))
	for _, e := range entries {
		if e.GameID != "" {
			m[e.GameID] = e
		}
	}
	return &Table{games: m}
}

func (t *Table) Get(gameID string) (GameEconomics, bool) {
	e, ok := t.games[gameID]
	return e, ok
}

// Reward is one settled reward computation. Payout + Rake == Gross always.
type Reward struct {
	Gross  int64 `json:"gross"`
	Rake   int64 `json:"rake"`
	Payout int64 `json:"payout"`
}

// ComputeReward settles the reward for a validated session. Unvalidated
// sessions and unknown games earn nothing. Binary games pay the full
// multiplier on score > 0; scalar games pay proportionally up to the score
// cap. Rake is floored out of the gross, so payout + rake always equals gross
// and payout never exceeds entryFee x multiplier.
func (t *Table) ComputeReward(gameID string, entryFee, score int64, validated bool) Reward {
	if !validated || entryFee <= 0 {
		return Reward{}
	}
	eco, ok := t.games[gameID]
	if !ok {
		return Reward{}
	}
	var gross int64
	if eco.Binary {
		if score > 0 {
			gross = int64(float64(entryFee) * eco.Multiplier)
		}
	} else {
		if eco.ScoreCap <= 0 || score <= 0 {
			return Reward{}
		}
		ratio := float64(score) / float64(eco.ScoreCap)
		if ratio > 1 {
			ratio = 1
		}
		gross = int64(float64(entryFee) * eco.Multiplier * ratio)
	}
	if gross <= 0 {
		return Reward{}
	}
	rake := int64(float64(gross) * eco.RakePercent)
	if rake < 0 {
		rake = 0
	}
	if rake > gross {
		rake = gross
	}
	return Reward{Gross: gross, Rake: rake, Payout: gross - rake}
}
