package anticheat

import (
	"fmt"
	"log"
	"time"
)

// DisqualifyThreshold is the suspicion score at or above which a single
// submission is rejected.
const DisqualifyThreshold = 60

// Lookback is the window used for trust score and the pattern-repeat check.
const Lookback = 30 * 24 * time.Hour

// Action is one timestamped entry of a session's ordered action log. Data is
// game-specific.
type Action struct {
	Type string                 `json:"type"`
	At   time.Time              `json:"at"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Input is one score submission to validate.
type Input struct {
	PlayerID  string
	GameID    string
	SessionID string
	Score     int64
	Duration  time.Duration // server-derived, never trusted from the client
	ActionLog []Action
}

// Result is the decision for one submission. All checks run even after one
// fails, so the decision is explainable from Flags alone.
type Result struct {
	Valid          bool    `json:"valid"`
	Flags          []*Flag `json:"flags"`
	SuspicionScore int     `json:"suspicionScore"`
	Reason         string  `json:"reason,omitempty"`
}

// Validator runs the score-integrity pipeline and owns the flag log.
type Validator struct {
	flags   FlagStore
	history HistoryStore
	limits  *LimitsTable
	now     func() time.Time
}

func NewValidator(flags FlagStore, history HistoryStore, limits *LimitsTable) *Validator {
	if limits == nil {
		limits = NewLimitsTable()
	}
	return &Validator{
		flags:   flags,
		history: history,
		limits:  limits,
		now:     time.Now,
	}
}

// Validate runs every applicable check against the submission, durably logs
// all raised flags, records the score for future pattern lookback, and
// returns the pass/fail decision. It never fails for a well-formed input; a
// game without configured limits simply gets no checks.
func (v *Validator) Validate(in Input) Result {
	limits, ok := v.limits.Get(in.GameID)
	if !ok {
		log.Printf("anticheat: no limits configured for game %q, skipping checks", in.GameID)
		v.recordScore(in)
		return Result{Valid: true}
	}

	var flags []*Flag
	flags = append(flags, v.checkImpossibleScore(in, limits)...)
	flags = append(flags, v.checkTiming(in, limits)...)
	flags = append(flags, v.checkInputRate(in, limits)...)
	flags = append(flags, v.checkPatternRepeat(in, limits)...)

	suspicion := 0
	for _, f := range flags {
		suspicion += f.Severity.Points()
		if err := v.flags.Append(f); err != nil {
			log.Printf("anticheat: failed to persist flag %s for session %s: %v", f.Kind, in.SessionID, err)
		}
	}
	v.recordScore(in)

	res := Result{
		Valid:          suspicion < DisqualifyThreshold,
		Flags:          flags,
		SuspicionScore: suspicion,
	}
	if !res.Valid {
		res.Reason = fmt.Sprintf("suspicion score %d exceeds threshold %d", suspicion, DisqualifyThreshold)
	}
	return res
}

func (v *Validator) recordScore(in Input) {
	if v.history == nil {
		return
	}
	err := v.history.Append(&ScoreRecord{
		PlayerID:  in.PlayerID,
		GameID:    in.GameID,
		SessionID: in.SessionID,
		Score:     in.Score,
		At:        v.now(),
	})
	if err != nil {
		log.Printf("anticheat: failed to record score history for session %s: %v", in.SessionID, err)
	}
}

// checkImpossibleScore flags scores above the game's linear rate cap.
// Severity scales with how far the score overshoots the cap.
func (v *Validator) checkImpossibleScore(in Input, l Limits) []*Flag {
	if l.MaxScorePerSecond <= 0 || in.Duration <= 0 {
		return nil
	}
	maxScore := l.MaxScorePerSecond * in.Duration.Seconds()
	if float64(in.Score) <= maxScore {
		return nil
	}
	ratio := float64(in.Score) / maxScore
	sev := SeverityMedium
	if ratio >= 3 {
		sev = SeverityCritical
	} else if ratio >= 1.5 {
		sev = SeverityHigh
	}
	return []*Flag{newFlag(FlagImpossibleScore, sev, in.SessionID, in.PlayerID, in.GameID, map[string]interface{}{
		"score":     in.Score,
		"max_score": maxScore,
		"ratio":     ratio,
	})}
}

// checkTiming flags sessions shorter than the game's minimum plausible
// duration, and action gaps shorter than the per-step minimum.
func (v *Validator) checkTiming(in Input, l Limits) []*Flag {
	var flags []*Flag
	if l.MinDurationSeconds > 0 && in.Duration.Seconds() < l.MinDurationSeconds {
		flags = append(flags, newFlag(FlagAbnormalTiming, SeverityHigh, in.SessionID, in.PlayerID, in.GameID, map[string]interface{}{
			"duration_seconds": in.Duration.Seconds(),
			"min_seconds":      l.MinDurationSeconds,
		}))
	}
	if l.MinStepSeconds > 0 && len(in.ActionLog) >= 2 {
		tooFast := 0
		for i := 1; i < len(in.ActionLog); i++ {
			gap := in.ActionLog[i].At.Sub(in.ActionLog[i-1].At).Seconds()
			if gap >= 0 && gap < l.MinStepSeconds {
				tooFast++
			}
		}
		if tooFast > 0 {
			flags = append(flags, newFlag(FlagAbnormalTiming, SeverityMedium, in.SessionID, in.PlayerID, in.GameID, map[string]interface{}{
				"steps_below_min":  tooFast,
				"min_step_seconds": l.MinStepSeconds,
			}))
		}
	}
	return flags
}

// checkInputRate flags action logs denser than a human could produce.
func (v *Validator) checkInputRate(in Input, l Limits) []*Flag {
	if l.MaxActionsPerSecond <= 0 || in.Duration <= 0 || len(in.ActionLog) == 0 {
		return nil
	}
	rate := float64(len(in.ActionLog)) / in.Duration.Seconds()
	if rate <= l.MaxActionsPerSecond {
		return nil
	}
	sev := SeverityMedium
	if rate >= 2*l.MaxActionsPerSecond {
		sev = SeverityHigh
	}
	return []*Flag{newFlag(FlagInputRateAnomaly, sev, in.SessionID, in.PlayerID, in.GameID, map[string]interface{}{
		"actions_per_second": rate,
		"max_per_second":     l.MaxActionsPerSecond,
	})}
}

// checkPatternRepeat compares the submission against the player's recent
// score history: a run of identical scores, or a run consistently within
// PatternTolerance of the score cap, is statistically implausible skill
// consistency. Binary games are exempt from the identical-score branch:
// their score space is 0/1, so every honest win repeats the same score.
func (v *Validator) checkPatternRepeat(in Input, l Limits) []*Flag {
	if v.history == nil {
		return nil
	}
	since := v.now().Add(-Lookback)
	recs, err := v.history.ByPlayerGameSince(in.PlayerID, in.GameID, since)
	if err != nil {
		log.Printf("anticheat: pattern lookback failed for player %s: %v", in.PlayerID, err)
		return nil
	}
	if len(recs) < l.PatternMinSessions {
		return nil
	}

	identical := 0
	for _, r := range recs {
		if r.Score == in.Score {
			identical++
		}
	}
	if !l.Binary && in.Score > 0 && identical >= l.PatternMinSessions {
		return []*Flag{newFlag(FlagPatternRecognition, SeverityHigh, in.SessionID, in.PlayerID, in.GameID, map[string]interface{}{
			"identical_scores": identical,
			"score":            in.Score,
		})}
	}

	if l.ScoreCap > 0 {
		nearMax := int64(float64(l.ScoreCap) * (1 - l.PatternTolerance))
		run := 0
		for _, r := range recs {
			if r.Score >= nearMax {
				run++
			}
		}
		if in.Score >= nearMax && run >= l.PatternMinSessions {
			return []*Flag{newFlag(FlagPatternRecognition, SeverityMedium, in.SessionID, in.PlayerID, in.GameID, map[string]interface{}{
				"near_max_sessions": run,
				"near_max_floor":    nearMax,
				"score_cap":         l.ScoreCap,
			})}
		}
	}
	return nil
}

// TrustScore derives the player's rolling trust from the append-only flag
// log: 100 minus the points of every flag in the lookback window, floored at
// zero. Computed on read so it is always consistent with the log and
// concurrent validations never contend on a counter.
func (v *Validator) TrustScore(playerID string) (int, error) {
	flags, err := v.flags.ByPlayerSince(playerID, v.now().Add(-Lookback))
	if err != nil {
		return 0, err
	}
	score := 100
	for _, f := range flags {
		score -= f.Severity.Points()
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}
