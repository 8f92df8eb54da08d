package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luckyblock/crash/internal/models"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// CreateWallet creates a wallet for a user, or tops nothing up if one
// already exists.
func (db *DB) CreateWallet(ctx context.Context, userID string, balance float64) error {
	_, err := db.Pool.Exec(ctx,
		"INSERT INTO wallets (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING",
		userID, balance)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetBalance returns the user's current balance
func (db *DB) GetBalance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := db.Pool.QueryRow(ctx,
		"SELECT balance FROM wallets WHERE user_id = $1", userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// DebitWallet subtracts amount from the user's balance in one
// conditional statement. Returns false when funds are insufficient or
// the wallet does not exist.
func (db *DB) DebitWallet(ctx context.Context, userID string, amount float64) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		"UPDATE wallets SET balance = balance - $1 WHERE user_id = $2 AND balance >= $1",
		amount, userID)
	if err != nil {
		return false, fmt.Errorf("failed to debit wallet: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreditWallet adds amount to the user's balance
func (db *DB) CreditWallet(ctx context.Context, userID string, amount float64) error {
	tag, err := db.Pool.Exec(ctx,
		"UPDATE wallets SET balance = balance + $1 WHERE user_id = $2",
		amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found for user %s", userID)
	}
	return nil
}

// AppendSettlementRecords writes one immutable row per settled bet
func (db *DB) AppendSettlementRecords(ctx context.Context, records []models.SettlementRecord) error {
	for _, rec := range records {
		_, err := db.Pool.Exec(ctx,
			"INSERT INTO settlement_records (round_id, user_id, amount, cashout_multiplier, profit, is_cashed_out, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			rec.RoundID, rec.UserID, rec.Amount, rec.CashoutMultiplier, rec.Profit, rec.IsCashedOut, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to append settlement record: %w", err)
		}
	}
	return nil
}

// UserSettlements returns a user's settlement history, newest first
func (db *DB) UserSettlements(ctx context.Context, userID string, limit int) ([]models.SettlementRecord, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, round_id, user_id, amount, cashout_multiplier, profit, is_cashed_out, created_at FROM settlement_records WHERE user_id = $1 ORDER BY id DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlements: %w", err)
	}
	defer rows.Close()

	var records []models.SettlementRecord
	for rows.Next() {
		var rec models.SettlementRecord
		if err := rows.Scan(&rec.ID, &rec.RoundID, &rec.UserID, &rec.Amount, &rec.CashoutMultiplier, &rec.Profit, &rec.IsCashedOut, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AppendRoundHistory records a finished round with its revealed seed
func (db *DB) AppendRoundHistory(ctx context.Context, roundID string, crashMultiplier float64, serverSeed, seedHash string) error {
	_, err := db.Pool.Exec(ctx,
		"INSERT INTO round_history (round_id, crash_multiplier, server_seed, seed_hash) VALUES ($1, $2, $3, $4)",
		roundID, crashMultiplier, serverSeed, seedHash)
	if err != nil {
		return fmt.Errorf("failed to append round history: %w", err)
	}
	return nil
}

// RecentCrashHistory returns the last crash multipliers, newest first
func (db *DB) RecentCrashHistory(ctx context.Context, limit int) ([]float64, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT crash_multiplier FROM round_history ORDER BY id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get crash history: %w", err)
	}
	defer rows.Close()

	var history []float64
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan crash multiplier: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

// SaveStats upserts the single aggregate stats row
func (db *DB) SaveStats(ctx context.Context, stats models.AggregateStats) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO engine_stats (id, total_games, total_bets, total_wagered, total_payout, profit_loss, biggest_win)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			total_games = EXCLUDED.total_games,
			total_bets = EXCLUDED.total_bets,
			total_wagered = EXCLUDED.total_wagered,
			total_payout = EXCLUDED.total_payout,
			profit_loss = EXCLUDED.profit_loss,
			biggest_win = EXCLUDED.biggest_win`,
		stats.TotalGames, stats.TotalBets, stats.TotalWagered, stats.TotalPayout, stats.ProfitLoss, stats.BiggestWin)
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// LoadStats reads the aggregate stats row; zero stats if none saved yet
func (db *DB) LoadStats(ctx context.Context) (models.AggregateStats, error) {
	var stats models.AggregateStats
	err := db.Pool.QueryRow(ctx,
		"SELECT total_games, total_bets, total_wagered, total_payout, profit_loss, biggest_win FROM engine_stats WHERE id = 1").Scan(
		&stats.TotalGames, &stats.TotalBets, &stats.TotalWagered, &stats.TotalPayout, &stats.ProfitLoss, &stats.BiggestWin)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.AggregateStats{}, nil
		}
		return models.AggregateStats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}
