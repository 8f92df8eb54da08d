package engine

import (
	"errors"
	"time"

	"github.com/luckyblock/crash/internal/models"
)

// Validation errors returned to callers. These never mutate state and
// are never retried.
var (
	ErrAlreadyBet            = errors.New("user already has a bet this round")
	ErrBetOutOfRange         = errors.New("bet amount out of range")
	ErrRoundNotAcceptingBets = errors.New("round is not accepting bets")
	ErrNoActiveBet           = errors.New("no active bet this round")
	ErrAlreadySettled        = errors.New("bet already settled")
	ErrRoundNotRunning       = errors.New("round is not running")
)

// minAutoCashout is the lowest accepted auto-cashout threshold.
const minAutoCashout = 1.01

// Ledger enforces the per-user, per-round bet constraints. It records
// wagers only; balances are the wallet's concern. Not safe for
// concurrent use on its own: the engine serializes all access.
type Ledger struct {
	MinBet        float64
	MaxBet        float64
	MinMultiplier float64
}

// Validate checks a bet without mutating the round. The engine calls
// this before debiting funds so obviously bad bets never touch the
// wallet.
func (l Ledger) Validate(r *models.Round, userID string, amount, autoCashout float64) error {
	if r == nil || r.Status != models.StatusWaiting {
		return ErrRoundNotAcceptingBets
	}
	if _, ok := r.Bets[userID]; ok {
		return ErrAlreadyBet
	}
	if amount < l.MinBet || amount > l.MaxBet {
		return ErrBetOutOfRange
	}
	if autoCashout != 0 && autoCashout < minAutoCashout {
		return ErrBetOutOfRange
	}
	return nil
}

// PlaceBet records a wager. Funds must already be reserved by the
// caller via the balance ledger.
func (l Ledger) PlaceBet(r *models.Round, userID string, amount, autoCashout float64, now time.Time) (*models.Bet, error) {
	if err := l.Validate(r, userID, amount, autoCashout); err != nil {
		return nil, err
	}
	b := &models.Bet{
		UserID:      userID,
		Amount:      amount,
		AutoCashout: autoCashout,
		PlacedAt:    now,
	}
	r.Bets[userID] = b
	return b, nil
}

// CashOut settles the user's active bet at the given multiplier and
// returns the payout. The bet can only be settled once.
func (l Ledger) CashOut(r *models.Round, userID string, multiplier float64) (float64, error) {
	if r == nil || r.Status != models.StatusRunning {
		return 0, ErrRoundNotRunning
	}
	b, ok := r.Bets[userID]
	if !ok {
		return 0, ErrNoActiveBet
	}
	if b.Settled {
		return 0, ErrAlreadySettled
	}
	if multiplier < l.MinMultiplier {
		multiplier = l.MinMultiplier
	}
	b.Settled = true
	b.CashedOutAt = multiplier
	return b.Amount * multiplier, nil
}

// AutoCashoutCandidates returns the users whose auto-cashout threshold
// is crossed at the current multiplier and who are not yet settled.
// All candidates in one tick are paid at the same multiplier, so the
// order of the result does not matter.
func (l Ledger) AutoCashoutCandidates(r *models.Round, multiplier float64) []string {
	if r == nil || r.Status != models.StatusRunning {
		return nil
	}
	var out []string
	for uid, b := range r.Bets {
		if b.Settled || b.AutoCashout == 0 {
			continue
		}
		if b.AutoCashout <= multiplier {
			out = append(out, uid)
		}
	}
	return out
}
