package engine

import (
	"time"

	"github.com/luckyblock/crash/internal/models"
)

// Settle finalizes a crashed round: every unsettled bet becomes a loss,
// the aggregate totals are updated, and one settlement record per bet is
// produced for the history ledger. ProfitLoss is recomputed from the
// totals rather than accumulated, so it cannot drift.
func Settle(r *models.Round, stats *models.AggregateStats, now time.Time) []models.SettlementRecord {
	records := make([]models.SettlementRecord, 0, len(r.Bets))

	stats.TotalGames++
	for _, b := range r.Bets {
		if !b.Settled {
			b.Settled = true
		}
		rec := models.SettlementRecord{
			RoundID:     r.ID,
			UserID:      b.UserID,
			Amount:      b.Amount,
			IsCashedOut: b.CashedOutAt > 0,
			CreatedAt:   now,
		}
		stats.TotalBets++
		stats.TotalWagered += b.Amount
		if rec.IsCashedOut {
			payout := b.Amount * b.CashedOutAt
			rec.CashoutMultiplier = b.CashedOutAt
			rec.Profit = payout - b.Amount
			stats.TotalPayout += payout
			if rec.Profit > stats.BiggestWin {
				stats.BiggestWin = rec.Profit
			}
		} else {
			rec.Profit = -b.Amount
		}
		records = append(records, rec)
	}
	stats.ProfitLoss = stats.TotalWagered - stats.TotalPayout

	return records
}
