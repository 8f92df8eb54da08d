package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/luckyblock/crash/internal/auth"
	"github.com/luckyblock/crash/internal/engine"
	"github.com/luckyblock/crash/internal/models"
	"github.com/luckyblock/crash/internal/wallet"
)

// Store is the slice of persistence the HTTP surface reads from.
type Store interface {
	UserSettlements(ctx context.Context, userID string, limit int) ([]models.SettlementRecord, error)
	GetBalance(ctx context.Context, userID string) (float64, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Engine         *engine.Engine
	Store          Store
	Auth           *auth.Verifier
	OperatorSecret string
}

// NewHandler creates a new handler
func NewHandler(eng *engine.Engine, store Store, verifier *auth.Verifier, operatorSecret string) *Handler {
	return &Handler{Engine: eng, Store: store, Auth: verifier, OperatorSecret: operatorSecret}
}

// apiError is the standard error response shape.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := errorCode(err)
	writeJSON(w, status, apiError{Error: err.Error(), Code: code})
}

// errorCode maps engine and wallet errors to HTTP status and a stable
// machine-readable code.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrAlreadyBet):
		return http.StatusConflict, "ALREADY_BET"
	case errors.Is(err, engine.ErrBetOutOfRange):
		return http.StatusBadRequest, "BET_OUT_OF_RANGE"
	case errors.Is(err, engine.ErrRoundNotAcceptingBets):
		return http.StatusConflict, "ROUND_NOT_ACCEPTING_BETS"
	case errors.Is(err, engine.ErrNoActiveBet):
		return http.StatusNotFound, "NO_ACTIVE_BET"
	case errors.Is(err, engine.ErrAlreadySettled):
		return http.StatusConflict, "ALREADY_SETTLED"
	case errors.Is(err, engine.ErrRoundNotRunning):
		return http.StatusConflict, "ROUND_NOT_RUNNING"
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// JWTAuthMiddleware verifies identity tokens issued by the platform
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeJSON(w, http.StatusUnauthorized, apiError{Error: "authorization header required", Code: "UNAUTHORIZED"})
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}
		userID, err := h.Auth.UserFromToken(tokenString)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, apiError{Error: "invalid or expired token", Code: "UNAUTHORIZED"})
			return
		}
		ctx := context.WithValue(r.Context(), "user_id", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value("user_id").(string)
	return uid, ok && uid != ""
}

// GetState serves the full current snapshot for late joiners
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Snapshot())
}

// GetHistory serves the recent crash multipliers, newest first
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": h.Engine.Snapshot().History,
	})
}

// GetStats serves the aggregate engine totals
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Stats())
}

// PlaceBet stakes the caller's funds on the current waiting round
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized", Code: "UNAUTHORIZED"})
		return
	}

	var req struct {
		Amount      float64 `json:"amount"`
		AutoCashout float64 `json:"auto_cashout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: "BAD_REQUEST"})
		return
	}

	bet, err := h.Engine.PlaceBet(r.Context(), uid, req.Amount, req.AutoCashout)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// CashOut settles the caller's bet at the current multiplier
func (h *Handler) CashOut(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized", Code: "UNAUTHORIZED"})
		return
	}

	payout, multiplier, err := h.Engine.CashOut(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"payout":     payout,
		"multiplier": multiplier,
	})
}

// GetSettlements serves the caller's settlement history
func (h *Handler) GetSettlements(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized", Code: "UNAUTHORIZED"})
		return
	}

	records, err := h.Store.UserSettlements(r.Context(), uid, 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to retrieve settlements", Code: "INTERNAL"})
		return
	}
	if records == nil {
		records = []models.SettlementRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetBalance serves the caller's wallet balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized", Code: "UNAUTHORIZED"})
		return
	}

	balance, err := h.Store.GetBalance(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to retrieve balance", Code: "INTERNAL"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

// ForceRestart is the operator escape hatch. Requires the operator
// secret; disabled entirely when no secret is configured.
func (h *Handler) ForceRestart(w http.ResponseWriter, r *http.Request) {
	if h.OperatorSecret == "" || r.Header.Get("X-Operator-Secret") != h.OperatorSecret {
		writeJSON(w, http.StatusForbidden, apiError{Error: "operator secret required", Code: "FORBIDDEN"})
		return
	}
	h.Engine.ForceRestart()
	writeJSON(w, http.StatusOK, map[string]string{"status": "restarting"})
}
