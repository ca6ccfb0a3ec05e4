package economy

import "testing"

func testTable() *Table {
	return NewTableWith([]GameEconomics{
		{GameID: "blitz_math", Multiplier: 3.0, RakePercent: 0.15, ScoreCap: 1000},
		{GameID: "coin_duel", Multiplier: 1.8, RakePercent: 0.05, Binary: true},
		{GameID: "sky_runner", Multiplier: 10.0, RakePercent: 0.25, ScoreCap: 100000},
	})
}

func TestComputeReward_ScalarExample(t *testing.T) {
	// Worked example: fee 100, 3x, 15% rake, score 800/1000.
	r := testTable().ComputeReward("blitz_math", 100, 800, true)
	if r.Gross != 240 {
		t.Errorf("gross = %d, want 240", r.Gross)
	}
	if r.Rake != 36 {
		t.Errorf("rake = %d, want 36", r.Rake)
	}
	if r.Payout != 204 {
		t.Errorf("payout = %d, want 204", r.Payout)
	}
}

func TestComputeReward_NotValidated(t *testing.T) {
	r := testTable().ComputeReward("blitz_math", 100, 800, false)
	if r.Gross != 0 || r.Rake != 0 || r.Payout != 0 {
		t.Errorf("unvalidated session paid out: %+v", r)
	}
}

func TestComputeReward_Binary(t *testing.T) {
	tbl := testTable()
	win := tbl.ComputeReward("coin_duel", 100, 1, true)
	if win.Gross != 180 {
		t.Errorf("binary win gross = %d, want 180", win.Gross)
	}
	if win.Payout+win.Rake != win.Gross {
		t.Errorf("payout %d + rake %d != gross %d", win.Payout, win.Rake, win.Gross)
	}
	lose := tbl.ComputeReward("coin_duel", 100, 0, true)
	if lose.Gross != 0 || lose.Payout != 0 {
		t.Errorf("binary loss paid out: %+v", lose)
	}
}

func TestComputeReward_ScoreCapped(t *testing.T) {
	r := testTable().ComputeReward("blitz_math", 100, 5000, true)
	if r.Gross != 300 {
		t.Errorf("capped gross = %d, want 300 (fee x multiplier)", r.Gross)
	}
}

func TestComputeReward_UnknownGame(t *testing.T) {
	r := testTable().ComputeReward("no_such_game", 100, 500, true)
	if r.Gross != 0 || r.Payout != 0 {
		t.Errorf("unknown game paid out: %+v", r)
	}
}

// Property sweep: for every game and a spread of fees/scores, payout + rake
// must equal gross and payout must never exceed fee x multiplier.
func TestComputeReward_Accounting(t *testing.T) {
	tbl := testTable()
	games := []string{"blitz_math", "coin_duel", "sky_runner"}
	fees := []int64{0, 1, 7, 50, 100, 999, 12345}
	scores := []int64{-5, 0, 1, 3, 499, 500, 800, 1000, 1001, 99999, 100000, 1 << 40}
	for _, g := range games {
		eco, _ := tbl.Get(g)
		for _, fee := range fees {
			for _, score := range scores {
				r := tbl.ComputeReward(g, fee, score, true)
				if r.Payout+r.Rake != r.Gross {
					t.Fatalf("%s fee=%d score=%d: payout %d + rake %d != gross %d",
						g, fee, score, r.Payout, r.Rake, r.Gross)
				}
				if r.Payout < 0 || r.Rake < 0 {
					t.Fatalf("%s fee=%d score=%d: negative component %+v", g, fee, score, r)
				}
				maxPayout := int64(float64(fee) * eco.Multiplier)
				if r.Payout > maxPayout {
					t.Fatalf("%s fee=%d score=%d: payout %d exceeds fee x multiplier %d",
						g, fee, score, r.Payout, maxPayout)
				}
			}
		}
	}
}
