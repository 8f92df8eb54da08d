package wallet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// credit is a payout that could not be applied yet.
type credit struct {
	UserID   string
	Amount   float64
	Attempts int
}

// CreditQueue retries payouts whose first credit attempt failed.
// A recorded cash-out represents winnings a player is entitled to, so
// failed credits are queued and retried until they go through, never
// dropped.
type CreditQueue struct {
	ledger   Ledger
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	pending []credit
}

func NewCreditQueue(ledger Ledger, logger *zap.Logger, interval time.Duration) *CreditQueue {
	if interval <= 0 {
		interval = time.Second
	}
	return &CreditQueue{
		ledger:   ledger,
		log:      logger,
		interval: interval,
	}
}

// Enqueue records a payout to retry in the background.
func (q *CreditQueue) Enqueue(userID string, amount float64) {
	q.mu.Lock()
	q.pending = append(q.pending, credit{UserID: userID, Amount: amount})
	q.mu.Unlock()
	q.log.Warn("credit queued for retry",
		zap.String("user_id", userID),
		zap.Float64("amount", amount))
}

// Pending reports how many credits are still waiting.
func (q *CreditQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run retries pending credits until ctx is canceled.
func (q *CreditQueue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

// Flush attempts every pending credit once, keeping the ones that still
// fail for the next cycle.
func (q *CreditQueue) Flush(ctx context.Context) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	var failed []credit
	for _, c := range batch {
		if err := q.ledger.Credit(ctx, c.UserID, c.Amount); err != nil {
			c.Attempts++
			failed = append(failed, c)
			q.log.Error("credit retry failed",
				zap.String("user_id", c.UserID),
				zap.Float64("amount", c.Amount),
				zap.Int("attempts", c.Attempts),
				zap.Error(err))
			continue
		}
		q.log.Info("queued credit applied",
			zap.String("user_id", c.UserID),
			zap.Float64("amount", c.Amount))
	}
	if len(failed) > 0 {
		q.mu.Lock()
		q.pending = append(failed, q.pending...)
		q.mu.Unlock()
	}
}
