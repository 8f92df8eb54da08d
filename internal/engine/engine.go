package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luckyblock/crash/internal/config"
	"github.com/luckyblock/crash/internal/models"
	"github.com/luckyblock/crash/internal/wallet"
)

// Store persists round outcomes. Store failures are logged and never
// stall the round cycle.
type Store interface {
	AppendSettlementRecords(ctx context.Context, records []models.SettlementRecord) error
	AppendRoundHistory(ctx context.Context, roundID string, crashMultiplier float64, serverSeed, seedHash string) error
	RecentCrashHistory(ctx context.Context, limit int) ([]float64, error)
	SaveStats(ctx context.Context, stats models.AggregateStats) error
	LoadStats(ctx context.Context) (models.AggregateStats, error)
}

// Broadcaster pushes snapshots to subscribers. Delivery is
// at-least-once; late joiners fetch the full snapshot on demand.
type Broadcaster interface {
	Publish(snap models.RoundSnapshot)
}

const storeTimeout = 5 * time.Second

// Engine owns the single process-wide round and drives the perpetual
// waiting -> running -> crashed cycle. All reads and writes of the
// current round go through the engine's mutex, so client operations
// never race with a crash transition.
type Engine struct {
	cfg    *config.Config
	curve  Curve
	gen    Generator
	ledger Ledger

	wallet  wallet.Ledger
	credits *wallet.CreditQueue
	store   Store
	bc      Broadcaster
	log     *zap.Logger

	// now is swapped out by tests
	now func() time.Time

	mu      sync.Mutex
	round   *models.Round
	stats   models.AggregateStats
	history []float64

	restart chan struct{}
}

func New(cfg *config.Config, w wallet.Ledger, credits *wallet.CreditQueue, store Store, bc Broadcaster, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		curve:   Curve{Min: cfg.MinMultiplier, Max: cfg.MaxMultiplier},
		gen:     Generator{HouseEdge: cfg.HouseEdge, InstantBustProb: cfg.InstantBustProb, Min: cfg.MinMultiplier, Max: cfg.MaxMultiplier},
		ledger:  Ledger{MinBet: cfg.MinBet, MaxBet: cfg.MaxBet, MinMultiplier: cfg.MinMultiplier},
		wallet:  w,
		credits: credits,
		store:   store,
		bc:      bc,
		log:     logger,
		now:     time.Now,
		restart: make(chan struct{}, 1),
	}
}

// Run drives the round cycle until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	e.loadState(ctx)
	for {
		if err := e.runRound(ctx); err != nil {
			e.log.Info("engine stopped", zap.Error(err))
			return
		}
	}
}

// runRound executes one full cycle. A nil return means start the next
// round; any error means the engine is shutting down.
func (e *Engine) runRound(ctx context.Context) error {
	// Drop a restart signal left over from a previous round.
	select {
	case <-e.restart:
	default:
	}

	e.mu.Lock()
	needFresh := e.round == nil || e.round.Status != models.StatusWaiting
	e.mu.Unlock()
	if needFresh {
		if err := e.beginWaiting(); err != nil {
			e.log.Error("cannot open round", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.Cooldown):
			}
			return nil
		}
	}

	waitTimer := time.NewTimer(e.cfg.WaitDuration)
	select {
	case <-ctx.Done():
		waitTimer.Stop()
		return ctx.Err()
	case <-e.restart:
		waitTimer.Stop()
		e.discard("operator restart")
		return nil
	case <-waitTimer.C:
	}

	e.beginRunning()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.restart:
			e.discard("operator restart")
			return nil
		case <-ticker.C:
			if !e.tick(e.now()) {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.restart:
				// a restart during cooldown just shortens it
			case <-time.After(e.cfg.Cooldown):
			}
			return nil
		}
	}
}

// beginWaiting opens a fresh round: new id, new server seed, its hash
// committed in the first snapshot.
func (e *Engine) beginWaiting() error {
	seed, err := NewServerSeed()
	if err != nil {
		return err
	}
	r := &models.Round{
		ID:         uuid.NewString(),
		Status:     models.StatusWaiting,
		ServerSeed: seed,
		SeedHash:   SeedHash(seed),
		Bets:       make(map[string]*models.Bet),
	}

	e.mu.Lock()
	e.round = r
	snap := e.snapshotLocked(e.now())
	e.mu.Unlock()

	e.log.Info("round waiting",
		zap.String("round_id", r.ID),
		zap.String("seed_hash", r.SeedHash))
	e.bc.Publish(snap)
	return nil
}

// beginRunning fixes the crash multiplier and deadline and starts the
// clock. From here on the outcome is immutable.
func (e *Engine) beginRunning() {
	now := e.now()

	e.mu.Lock()
	r := e.round
	r.CrashMultiplier = e.gen.CrashPoint(r.ServerSeed, r.ID)
	r.StartTime = now
	r.CrashDeadline = now.Add(e.curve.TimeToReach(r.CrashMultiplier))
	r.Status = models.StatusRunning
	snap := e.snapshotLocked(now)
	e.mu.Unlock()

	e.log.Info("round running",
		zap.String("round_id", r.ID),
		zap.Int("bets", len(r.Bets)),
		zap.Duration("duration", r.CrashDeadline.Sub(now)))
	e.bc.Publish(snap)
}

// tick advances a running round: settles auto-cashouts whose threshold
// the current multiplier crossed, then crashes the round once the
// deadline has passed. Returns true when the round is over.
func (e *Engine) tick(now time.Time) bool {
	type payout struct {
		userID string
		amount float64
	}
	var payouts []payout
	var m float64

	e.mu.Lock()
	r := e.round
	if r == nil || r.Status != models.StatusRunning {
		e.mu.Unlock()
		return true
	}
	if !now.Before(r.CrashDeadline) {
		e.mu.Unlock()
		e.crash(now)
		return true
	}
	m = e.curve.MultiplierAt(now.Sub(r.StartTime))
	for _, uid := range e.ledger.AutoCashoutCandidates(r, m) {
		amount, err := e.ledger.CashOut(r, uid, m)
		if err != nil {
			continue
		}
		payouts = append(payouts, payout{userID: uid, amount: amount})
	}
	var snap models.RoundSnapshot
	if len(payouts) > 0 {
		snap = e.snapshotLocked(now)
	}
	e.mu.Unlock()

	if len(payouts) == 0 {
		return false
	}
	for _, p := range payouts {
		e.credit(p.userID, p.amount)
		e.log.Info("auto cashout",
			zap.String("round_id", r.ID),
			zap.String("user_id", p.userID),
			zap.Float64("multiplier", m),
			zap.Float64("payout", p.amount))
	}
	e.bc.Publish(snap)
	return false
}

// crash finalizes the round: settlement, stats, history, persistence.
func (e *Engine) crash(now time.Time) {
	e.mu.Lock()
	r := e.round
	if r == nil || r.Status == models.StatusCrashed {
		e.mu.Unlock()
		return
	}
	r.Status = models.StatusCrashed
	records := Settle(r, &e.stats, now)
	e.pushHistoryLocked(r.CrashMultiplier)
	stats := e.stats
	snap := e.snapshotLocked(now)
	e.mu.Unlock()

	e.log.Info("round crashed",
		zap.String("round_id", r.ID),
		zap.Float64("crash_multiplier", r.CrashMultiplier),
		zap.Int("bets", len(records)))
	e.bc.Publish(snap)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if len(records) > 0 {
		if err := e.store.AppendSettlementRecords(ctx, records); err != nil {
			e.log.Error("append settlement records failed", zap.Error(err))
		}
	}
	if err := e.store.AppendRoundHistory(ctx, r.ID, r.CrashMultiplier, r.ServerSeed, r.SeedHash); err != nil {
		e.log.Error("append round history failed", zap.Error(err))
	}
	if err := e.store.SaveStats(ctx, stats); err != nil {
		e.log.Error("save stats failed", zap.Error(err))
	}
}

// discard abandons the in-flight round without settling it. Cashouts
// already settled keep their credits; nothing else moves.
func (e *Engine) discard(reason string) {
	e.mu.Lock()
	r := e.round
	e.round = nil
	e.mu.Unlock()
	if r != nil {
		e.log.Warn("round discarded",
			zap.String("round_id", r.ID),
			zap.String("reason", reason))
	}
}

// ForceRestart is the operator escape hatch: abort the current round and
// open a fresh one. Safe to call at any time.
func (e *Engine) ForceRestart() {
	select {
	case e.restart <- struct{}{}:
	default:
	}
}

// PlaceBet reserves the user's funds and registers the wager. The debit
// happens before the bet exists; if the round closed in between, the
// reservation is handed straight back.
func (e *Engine) PlaceBet(ctx context.Context, userID string, amount, autoCashout float64) (models.BetView, error) {
	e.mu.Lock()
	err := e.ledger.Validate(e.round, userID, amount, autoCashout)
	e.mu.Unlock()
	if err != nil {
		return models.BetView{}, err
	}

	if err := e.wallet.Debit(ctx, userID, amount); err != nil {
		return models.BetView{}, err
	}

	now := e.now()
	e.mu.Lock()
	bet, err := e.ledger.PlaceBet(e.round, userID, amount, autoCashout, now)
	var snap models.RoundSnapshot
	if err == nil {
		snap = e.snapshotLocked(now)
	}
	e.mu.Unlock()
	if err != nil {
		e.credit(userID, amount)
		return models.BetView{}, err
	}

	e.log.Info("bet placed",
		zap.String("user_id", userID),
		zap.Float64("amount", amount),
		zap.Float64("auto_cashout", autoCashout))
	e.bc.Publish(snap)
	return betView(bet), nil
}

// CashOut settles the caller's bet at the multiplier of this instant.
// A cashout arriving after the crash deadline is rejected even if the
// crash tick has not fired yet.
func (e *Engine) CashOut(ctx context.Context, userID string) (payout, multiplier float64, err error) {
	now := e.now()

	e.mu.Lock()
	r := e.round
	if r == nil || r.Status != models.StatusRunning || !now.Before(r.CrashDeadline) {
		e.mu.Unlock()
		return 0, 0, ErrRoundNotRunning
	}
	m := e.curve.MultiplierAt(now.Sub(r.StartTime))
	payout, err = e.ledger.CashOut(r, userID, m)
	var snap models.RoundSnapshot
	if err == nil {
		snap = e.snapshotLocked(now)
	}
	e.mu.Unlock()
	if err != nil {
		return 0, 0, err
	}

	// The cashout is recorded, so the credit must eventually land.
	if cerr := e.wallet.Credit(ctx, userID, payout); cerr != nil {
		e.credits.Enqueue(userID, payout)
	}
	e.log.Info("cashout",
		zap.String("round_id", r.ID),
		zap.String("user_id", userID),
		zap.Float64("multiplier", m),
		zap.Float64("payout", payout))
	e.bc.Publish(snap)
	return payout, m, nil
}

// Snapshot returns the full current state for late joiners.
func (e *Engine) Snapshot() models.RoundSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.now())
}

// Stats returns the aggregate totals accumulated so far.
func (e *Engine) Stats() models.AggregateStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// credit applies a payout or refund, queueing it for retry if the
// balance ledger is unavailable. Winnings are never dropped.
func (e *Engine) credit(userID string, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := e.wallet.Credit(ctx, userID, amount); err != nil {
		e.credits.Enqueue(userID, amount)
	}
}

// loadState restores stats and crash history from the store,
// best-effort.
func (e *Engine) loadState(ctx context.Context) {
	stats, err := e.store.LoadStats(ctx)
	if err != nil {
		e.log.Warn("load stats failed", zap.Error(err))
	}
	history, herr := e.store.RecentCrashHistory(ctx, e.cfg.HistorySize)
	if herr != nil {
		e.log.Warn("load crash history failed", zap.Error(herr))
	}
	e.mu.Lock()
	if err == nil {
		e.stats = stats
	}
	if herr == nil {
		e.history = history
	}
	e.mu.Unlock()
}

// pushHistoryLocked prepends a crash multiplier, most recent first,
// capped at the configured size.
func (e *Engine) pushHistoryLocked(m float64) {
	e.history = append([]float64{m}, e.history...)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[:e.cfg.HistorySize]
	}
}

func (e *Engine) snapshotLocked(now time.Time) models.RoundSnapshot {
	snap := models.RoundSnapshot{
		Status:            models.StatusWaiting,
		CurrentMultiplier: e.curve.Min,
		Bets:              []models.BetView{},
		History:           append([]float64(nil), e.history...),
	}
	r := e.round
	if r == nil {
		return snap
	}
	snap.RoundID = r.ID
	snap.Status = r.Status
	snap.SeedHash = r.SeedHash
	switch r.Status {
	case models.StatusRunning:
		t := r.StartTime
		snap.StartTime = &t
		m := e.curve.MultiplierAt(now.Sub(r.StartTime))
		if m > r.CrashMultiplier {
			m = r.CrashMultiplier
		}
		snap.CurrentMultiplier = m
	case models.StatusCrashed:
		t := r.StartTime
		snap.StartTime = &t
		snap.CurrentMultiplier = r.CrashMultiplier
		snap.CrashMultiplier = r.CrashMultiplier
		snap.ServerSeed = r.ServerSeed
	}
	for _, b := range r.Bets {
		snap.Bets = append(snap.Bets, betView(b))
	}
	return snap
}

func betView(b *models.Bet) models.BetView {
	return models.BetView{
		UserID:      b.UserID,
		Amount:      b.Amount,
		AutoCashout: b.AutoCashout,
		CashedOutAt: b.CashedOutAt,
		Settled:     b.Settled,
	}
}
