package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/luckyblock/crash/internal/api"
	"github.com/luckyblock/crash/internal/auth"
	"github.com/luckyblock/crash/internal/config"
	"github.com/luckyblock/crash/internal/db"
	"github.com/luckyblock/crash/internal/engine"
	"github.com/luckyblock/crash/internal/logging"
	"github.com/luckyblock/crash/internal/wallet"
	"github.com/luckyblock/crash/internal/ws"
)

// Main entry point: wires the database, wallet, engine, broadcaster and
// HTTP server, then runs the round cycle until shutdown.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(ctx)

	ledger := wallet.NewPGLedger(database)
	credits := wallet.NewCreditQueue(ledger, logger, 2*time.Second)

	hub := ws.NewHub(logger)
	eng := engine.New(cfg, ledger, credits, database, hub, logger)
	hub.Current = eng.Snapshot

	verifier := auth.NewVerifier(cfg.JWTSecret)
	handler := api.NewHandler(eng, database, verifier, cfg.OperatorSecret)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Operator-Secret"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/ws", hub.Handle)
	r.Get("/api/state", handler.GetState)
	r.Get("/api/history", handler.GetHistory)
	r.Get("/api/stats", handler.GetStats)
	r.Post("/api/admin/restart", handler.ForceRestart)

	// Protected endpoints (require a platform identity token)
	r.Group(func(r chi.Router) {
		r.Use(handler.JWTAuthMiddleware)
		r.Post("/api/bets", handler.PlaceBet)
		r.Post("/api/cashout", handler.CashOut)
		r.Get("/api/settlements", handler.GetSettlements)
		r.Get("/api/balance", handler.GetBalance)
	})

	go eng.Run(ctx)
	go credits.Run(ctx)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}
