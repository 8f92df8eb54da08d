package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/luckyblock/crash/internal/db"
)

// ErrInsufficientFunds means a debit would take a balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is the external balance ledger the engine consumes. A user's
// sequential bet -> cashout flow sees its own writes.
type Ledger interface {
	Debit(ctx context.Context, userID string, amount float64) error
	Credit(ctx context.Context, userID string, amount float64) error
}

// PGLedger keeps balances in the wallets table.
type PGLedger struct {
	DB *db.DB
}

func NewPGLedger(database *db.DB) *PGLedger {
	return &PGLedger{DB: database}
}

func (l *PGLedger) Debit(ctx context.Context, userID string, amount float64) error {
	ok, err := l.DB.DebitWallet(ctx, userID, amount)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if !ok {
		return ErrInsufficientFunds
	}
	return nil
}

func (l *PGLedger) Credit(ctx context.Context, userID string, amount float64) error {
	if err := l.DB.CreditWallet(ctx, userID, amount); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}
