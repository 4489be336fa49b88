package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tradeflow/internal/domain"
	"tradeflow/internal/engine"
	"tradeflow/internal/store"
)

// Server exposes the command surface over HTTP.
type Server struct {
	accounts   store.AccountStore
	strategies store.StrategyStore
	orders     store.OrderStore
	reconciler *engine.Reconciler
	brokerName string
	log        *slog.Logger
}

// NewServer creates a Server wired with the given stores and reconciler.
func NewServer(
	accounts store.AccountStore,
	strategies store.StrategyStore,
	orders store.OrderStore,
	reconciler *engine.Reconciler,
	brokerName string,
	log *slog.Logger,
) *Server {
	return &Server{
		accounts:   accounts,
		strategies: strategies,
		orders:     orders,
		reconciler: reconciler,
		brokerName: brokerName,
		log:        log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/accounts", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/v1/strategies/{name}", s.handleSetStrategy)
	mux.HandleFunc("GET /api/v1/strategies", s.handleListStrategies)
	mux.HandleFunc("POST /api/v1/fills", s.handleFill)
	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	account := &domain.Account{
		ID:          uuid.NewString(),
		AccessToken: uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.accounts.CreateAccount(r.Context(), account); err != nil {
		s.log.Error("creating account", "error", err)
		writeError(w, http.StatusInternalServerError, "creating account")
		return
	}
	s.log.Info("account created", "account_id", account.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AccountResponse{AccountID: account.ID, AccessToken: account.AccessToken})
}

func (s *Server) handleSetStrategy(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.strategies.SetStrategy(r.Context(), name, req.Enabled); err != nil {
		s.log.Error("setting strategy toggle", "strategy", name, "error", err)
		writeError(w, http.StatusInternalServerError, "persisting toggle")
		return
	}
	s.log.Info("strategy toggled", "strategy", name, "enabled", req.Enabled)
	writeJSON(w, ToggleResponse{Name: name, Enabled: req.Enabled})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	toggles, err := s.strategies.ListStrategies(r.Context())
	if err != nil {
		s.log.Error("listing strategies", "error", err)
		writeError(w, http.StatusInternalServerError, "listing strategies")
		return
	}
	resp := StrategiesResponse{Strategies: make([]ToggleResponse, 0, len(toggles))}
	for _, t := range toggles {
		resp.Strategies = append(resp.Strategies, ToggleResponse{Name: t.Name, Enabled: t.Enabled})
	}
	writeJSON(w, resp)
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var fill domain.Fill
	if err := json.NewDecoder(r.Body).Decode(&fill); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if fill.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	if err := s.reconciler.HandleFill(r.Context(), fill); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown order id")
		case errors.Is(err, engine.ErrFillMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, engine.ErrOrderNotFillable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.log.Error("reconciling fill", "order_id", fill.OrderID, "error", err)
			writeError(w, http.StatusInternalServerError, "reconciling fill")
		}
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.OrderStatusPending, domain.OrderStatusSubmitted,
		domain.OrderStatusFilled, domain.OrderStatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	orders, err := s.orders.ListOrders(r.Context(), status)
	if err != nil {
		s.log.Error("listing orders", "error", err)
		writeError(w, http.StatusInternalServerError, "listing orders")
		return
	}
	resp := OrdersResponse{Orders: make([]OrderJSON, 0, len(orders))}
	for i := range orders {
		resp.Orders = append(resp.Orders, convertOrder(&orders[i]))
	}
	writeJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Broker: s.brokerName})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
