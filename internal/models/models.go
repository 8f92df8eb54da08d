package models

import "time"

// RoundStatus is the lifecycle phase of a round
type RoundStatus string

const (
	StatusWaiting RoundStatus = "waiting"
	StatusRunning RoundStatus = "running"
	StatusCrashed RoundStatus = "crashed"
)

// Bet represents one user's stake in the current round.
// A bet belongs to exactly one round and is never carried forward.
type Bet struct {
	UserID      string
	Amount      float64
	AutoCashout float64 // multiplier threshold, 0 means none
	PlacedAt    time.Time
	CashedOutAt float64 // multiplier at cash-out, 0 until cashed out
	Settled     bool
}

// Round holds one complete game cycle. The crash multiplier is fixed
// the instant the round starts running and never recomputed.
type Round struct {
	ID              string
	Status          RoundStatus
	ServerSeed      string // revealed only after the crash
	SeedHash        string // SHA-256 commitment, public from round start
	StartTime       time.Time
	CrashMultiplier float64
	CrashDeadline   time.Time
	Bets            map[string]*Bet
}

// SettlementRecord is one finalized bet outcome, immutable once written
type SettlementRecord struct {
	ID                int       `json:"id"`
	RoundID           string    `json:"round_id"`
	UserID            string    `json:"user_id"`
	Amount            float64   `json:"amount"`
	CashoutMultiplier float64   `json:"cashout_multiplier,omitempty"`
	Profit            float64   `json:"profit"`
	IsCashedOut       bool      `json:"is_cashed_out"`
	CreatedAt         time.Time `json:"created_at"`
}

// AggregateStats are process-wide running totals, mutated only by the
// settlement step of one round at a time.
type AggregateStats struct {
	TotalGames   int64   `json:"total_games"`
	TotalBets    int64   `json:"total_bets"`
	TotalWagered float64 `json:"total_wagered"`
	TotalPayout  float64 `json:"total_payout"`
	ProfitLoss   float64 `json:"profit_loss"`
	BiggestWin   float64 `json:"biggest_win"`
}

// BetView is the wire representation of a bet in a snapshot
type BetView struct {
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
	CashedOutAt float64 `json:"cashed_out_at,omitempty"`
	Settled     bool    `json:"settled"`
}

// RoundSnapshot is what subscribers see. The crash multiplier and the
// server seed are zero until the round has crashed.
type RoundSnapshot struct {
	RoundID           string      `json:"round_id"`
	Status            RoundStatus `json:"status"`
	SeedHash          string      `json:"seed_hash"`
	ServerSeed        string      `json:"server_seed,omitempty"`
	StartTime         *time.Time  `json:"start_time,omitempty"`
	CurrentMultiplier float64     `json:"current_multiplier"`
	CrashMultiplier   float64     `json:"crash_multiplier,omitempty"`
	Bets              []BetView   `json:"bets"`
	History           []float64   `json:"history"`
}
