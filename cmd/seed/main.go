package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/luckyblock/crash/internal/auth"
	"github.com/luckyblock/crash/internal/config"
	"github.com/luckyblock/crash/internal/db"
)

// Seed the database with funded demo wallets and print identity tokens
// for local testing against the engine.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	users := []struct {
		ID      string
		Balance float64
	}{
		{"player1", 10000},
		{"player2", 10000},
	}

	for _, u := range users {
		if err := database.CreateWallet(ctx, u.ID, u.Balance); err != nil {
			log.Fatalf("Failed to create wallet for %s: %v", u.ID, err)
		}
		balance, err := database.GetBalance(ctx, u.ID)
		if err != nil {
			log.Fatalf("Failed to read balance for %s: %v", u.ID, err)
		}
		token, err := verifier.TokenForUser(u.ID, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to sign token for %s: %v", u.ID, err)
		}
		fmt.Printf("user=%s balance=%.2f\ntoken=%s\n\n", u.ID, balance, token)
	}

	fmt.Println("Successfully seeded demo wallets!")
}
