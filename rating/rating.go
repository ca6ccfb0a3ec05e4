package rating

import (
	"math"
	"time"
)

// Rating distribution defaults (TrueSkill-style). The per-match update only
// moves Mu; Sigma stays until a full uncertainty model lands, so the schema
// already carries both.
const (
	DefaultMu    = 25.0
	DefaultSigma = 8.333
	DefaultTau   = 0.0833
	DefaultBeta  = 4.1665
	KFactor      = 32
)

// RecentMatchCap bounds the per-record form/audit ring buffer.
const RecentMatchCap = 20

type MatchOutcome string

const (
	OutcomeWin  MatchOutcome = "win"
	OutcomeLoss MatchOutcome = "loss"
	OutcomeDraw MatchOutcome = "draw"
)

// RecentMatch is one ring-buffer entry for form display and audit.
type RecentMatch struct {
	MatchID string       `json:"matchId"`
	Result  MatchOutcome `json:"result"`
	Delta   int          `json:"delta"`
	At      time.Time    `json:"at"`
}

// RankEvent records a tier promotion or demotion.
type RankEvent struct {
	FromTier string    `json:"fromTier"`
	ToTier   string    `json:"toTier"`
	MMR      int64     `json:"mmr"`
	At       time.Time `json:"at"`
}

// PlayerRating is one skill record per (player, game mode, season). MMR,
// tier, division and league points are derived from Mu/Sigma and recomputed
// on every save; they are never trusted as independent state.
type PlayerRating struct {
	PlayerID string `json:"playerId"`
	GameMode string `json:"gameMode"`
	SeasonID string `json:"seasonId"`

	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
	Tau   float64 `json:"tau"`
	Beta  float64 `json:"beta"`

	MMR          int64  `json:"mmr"` // conservative estimate, max(0, mu - 3*sigma)
	Tier         string `json:"tier"`
	Division     int    `json:"division"` // 1-5, 5 = top of tier
	LeaguePoints int    `json:"leaguePoints"`
	RankUpGames  int    `json:"rankUpGames"`

	Wins              int   `json:"wins"`
	Losses            int   `json:"losses"`
	GamesPlayed       int   `json:"gamesPlayed"`
	CurrentStreak     int   `json:"currentStreak"` // positive run of wins, negative of losses
	LongestWinStreak  int   `json:"longestWinStreak"`
	LongestLossStreak int   `json:"longestLossStreak"`
	PeakMMR           int64 `json:"peakMmr"`

	RecentMatches []RecentMatch `json:"recentMatches,omitempty"`
	RankHistory   []RankEvent   `json:"rankHistory,omitempty"`

	// Anti-smurf signals: advisory only, never block an update.
	AccountAgeDays     int     `json:"accountAgeDays,omitempty"`
	PerformanceAnomaly float64 `json:"performanceAnomaly,omitempty"`
	RapidClimb         bool    `json:"rapidClimb,omitempty"`

	LastMatchAt time.Time `json:"lastMatchAt,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewPlayerRating creates the lazy default record for a first match.
func NewPlayerRating(playerID, mode, season string) *PlayerRating {
	now := time.Now()
	r := &PlayerRating{
		PlayerID:  playerID,
		GameMode:  mode,
		SeasonID:  season,
		Mu:        DefaultMu,
		Sigma:     DefaultSigma,
		Tau:       DefaultTau,
		Beta:      DefaultBeta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Recompute()
	return r
}

// ConservativeMMR derives the point estimate from the distribution.
func ConservativeMMR(mu, sigma float64) int64 {
	v := mu - 3*sigma
	if v < 0 {
		return 0
	}
	return int64(math.Round(v))
}

// Recompute refreshes every derived field from Mu/Sigma. Called on every read
// and write path so derived state can never drift.
func (r *PlayerRating) Recompute() {
	r.MMR = ConservativeMMR(r.Mu, r.Sigma)
	r.Tier, r.Division, r.LeaguePoints = RankForMMR(r.MMR)
	if r.MMR > r.PeakMMR {
		r.PeakMMR = r.MMR
	}
}

// WinRate is derived on read, never stored.
func (r *PlayerRating) WinRate() float64 {
	if r.GamesPlayed == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.GamesPlayed)
}

func (r *PlayerRating) pushRecentMatch(m RecentMatch) {
	r.RecentMatches = append(r.RecentMatches, m)
	if len(r.RecentMatches) > RecentMatchCap {
		r.RecentMatches = r.RecentMatches[len(r.RecentMatches)-RecentMatchCap:]
	}
}

// tierThreshold is one row of the ordered rank ladder. Keep thresholds here,
// in one table, not scattered in conditionals.
type tierThreshold struct {
	Tier   string
	MinMMR int64
}

var tierTable = []tierThreshold{
	{"Bronze", 0},
	{"Silver", 500},
	{"Gold", 1000},
	{"Platinum", 1500},
	{"Diamond", 2000},
	{"Master", 2500},
	{"Grandmaster", 3000},
	{"Legend", 4000},
}

// legendBandWidth is the virtual band above the last threshold used to derive
// divisions inside the open-ended top tier.
const legendBandWidth = 1000

// RankForMMR derives tier, division (1-5, 5 = top) and league points (0-100)
// from mmr alone. Pure: equal mmr always yields an identical rank.
func RankForMMR(mmr int64) (tier string, division int, leaguePoints int) {
	if mmr < 0 {
		mmr = 0
	}
	idx := 0
	for i, t := range tierTable {
		if mmr >= t.MinMMR {
			idx = i
		}
	}
	t := tierTable[idx]
	var bandTop int64
	if idx+1 < len(tierTable) {
		bandTop = tierTable[idx+1].MinMMR
	} else {
		bandTop = t.MinMMR + legendBandWidth
	}
	band := bandTop - t.MinMMR
	into := mmr - t.MinMMR
	if into >= band {
		into = band - 1 // open-ended top tier saturates at division 5 / 100 LP
	}
	divWidth := float64(band) / 5
	division = 1 + int(float64(into)/divWidth)
	if division > 5 {
		division = 5
	}
	intoDiv := float64(into) - float64(division-1)*divWidth
	leaguePoints = int(intoDiv / divWidth * 100)
	if leaguePoints > 100 {
		leaguePoints = 100
	}
	return t.Tier, division, leaguePoints
}

// Expected is the Elo win probability of a against b.
func Expected(mmrA, mmrB int64) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(mmrB-mmrA)/400.0))
}

// EloDelta is the signed rating change for one side of a decided match.
// actual = 1 for a win, 0 for a loss, 0.5 for a draw.
func EloDelta(actual, expected float64) int {
	return int(math.Round(KFactor * (actual - expected)))
}
