package engine

import (
	"math"
	"testing"
	"time"

	"github.com/luckyblock/crash/internal/models"
)

func crashedRound(bets ...*models.Bet) *models.Round {
	r := &models.Round{
		ID:              "round-settle",
		Status:          models.StatusCrashed,
		CrashMultiplier: 2.5,
		Bets:            make(map[string]*models.Bet),
	}
	for _, b := range bets {
		r.Bets[b.UserID] = b
	}
	return r
}

func TestSettle_LossWithoutCashout(t *testing.T) {
	// bet 100 with no cashout, crash at 2.50x: a loss of the full stake
	r := crashedRound(&models.Bet{UserID: "alice", Amount: 100})
	var stats models.AggregateStats

	records := Settle(r, &stats, time.Now())
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.IsCashedOut {
		t.Error("bet without cashout must settle as a loss")
	}
	if rec.Profit != -100 {
		t.Errorf("expected profit -100, got %f", rec.Profit)
	}
	if !r.Bets["alice"].Settled {
		t.Error("bet must be marked settled")
	}
	if stats.TotalGames != 1 || stats.TotalBets != 1 || stats.TotalWagered != 100 {
		t.Errorf("stats wrong: %+v", stats)
	}
	if stats.ProfitLoss != 100 {
		t.Errorf("house profit should be 100, got %f", stats.ProfitLoss)
	}
}

func TestSettle_CashedOutWin(t *testing.T) {
	// bet 50 auto-cashed at 3.00x before a 5.00x crash: payout 150
	r := crashedRound(&models.Bet{
		UserID: "bob", Amount: 50, AutoCashout: 3.0,
		CashedOutAt: 3.0, Settled: true,
	})
	r.CrashMultiplier = 5.0
	var stats models.AggregateStats

	records := Settle(r, &stats, time.Now())
	rec := records[0]
	if !rec.IsCashedOut || rec.CashoutMultiplier != 3.0 {
		t.Errorf("expected cashed-out record at 3.0, got %+v", rec)
	}
	if rec.Profit != 100 {
		t.Errorf("expected profit 100, got %f", rec.Profit)
	}
	if stats.TotalPayout != 150 {
		t.Errorf("expected payout 150, got %f", stats.TotalPayout)
	}
	if stats.BiggestWin != 100 {
		t.Errorf("expected biggest win 100, got %f", stats.BiggestWin)
	}
	if stats.ProfitLoss != -100 {
		t.Errorf("house P/L should be -100, got %f", stats.ProfitLoss)
	}
}

// No funds are created or destroyed: total wagered equals total payouts
// plus the house take, bet by bet.
func TestSettle_Conservation(t *testing.T) {
	r := crashedRound(
		&models.Bet{UserID: "a", Amount: 100},
		&models.Bet{UserID: "b", Amount: 50, CashedOutAt: 2.0, Settled: true},
		&models.Bet{UserID: "c", Amount: 75, CashedOutAt: 1.2, Settled: true},
		&models.Bet{UserID: "d", Amount: 10},
	)
	var stats models.AggregateStats
	records := Settle(r, &stats, time.Now())

	var wagered, payouts, houseTake float64
	for _, rec := range records {
		wagered += rec.Amount
		if rec.IsCashedOut {
			payouts += rec.Amount * rec.CashoutMultiplier
		}
		houseTake += rec.Amount - payoutOf(rec)
	}
	if math.Abs(wagered-(payouts+houseTake)) > 1e-9 {
		t.Errorf("conservation violated: wagered=%f payouts=%f house=%f", wagered, payouts, houseTake)
	}
	if math.Abs(stats.ProfitLoss-(wagered-payouts)) > 1e-9 {
		t.Errorf("ProfitLoss %f != wagered-payouts %f", stats.ProfitLoss, wagered-payouts)
	}
}

func payoutOf(rec models.SettlementRecord) float64 {
	if !rec.IsCashedOut {
		return 0
	}
	return rec.Amount * rec.CashoutMultiplier
}

// ProfitLoss is recomputed from totals each settlement, so repeated
// rounds cannot drift.
func TestSettle_ProfitLossRecomputed(t *testing.T) {
	var stats models.AggregateStats

	r1 := crashedRound(&models.Bet{UserID: "a", Amount: 100})
	Settle(r1, &stats, time.Now())

	r2 := crashedRound(&models.Bet{UserID: "a", Amount: 40, CashedOutAt: 2.0, Settled: true})
	Settle(r2, &stats, time.Now())

	if stats.TotalGames != 2 || stats.TotalBets != 2 {
		t.Errorf("totals wrong: %+v", stats)
	}
	want := stats.TotalWagered - stats.TotalPayout
	if stats.ProfitLoss != want {
		t.Errorf("ProfitLoss %f, want %f", stats.ProfitLoss, want)
	}
	if stats.ProfitLoss != 140-80 {
		t.Errorf("expected house P/L 60, got %f", stats.ProfitLoss)
	}
}

func TestSettle_EmptyRound(t *testing.T) {
	r := crashedRound()
	var stats models.AggregateStats
	records := Settle(r, &stats, time.Now())
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	if stats.TotalGames != 1 {
		t.Errorf("a betless round still counts as a game")
	}
}
