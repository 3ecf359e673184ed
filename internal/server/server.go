// Package server exposes the monitor service HTTP API: user
// registration, settings, holdings, and alert history.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abelbrown/marketbrief/internal/logging"
	"github.com/abelbrown/marketbrief/internal/store"
)

// Server wraps the router and its collaborators.
type Server struct {
	store *store.Store
	http  *http.Server
}

// New builds the server on the given port.
func New(st *store.Store, port int) *Server {
	s := &Server{store: st}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/settings", s.handleCreateSettings)
			r.Put("/{userId}/push-token", s.handlePushToken)
			r.Put("/{userId}/settings", s.handleUpdateSettings)
			r.Get("/{userId}", s.handleGetUser)
		})
		r.Route("/holdings", func(r chi.Router) {
			r.Get("/symbols/all", s.handleAllSymbols)
			r.Post("/", s.handleUpsertHolding)
			r.Get("/{userId}", s.handleGetHoldings)
			r.Delete("/{userId}/{symbol}", s.handleDeleteHolding)
		})
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/{userId}", s.handleGetAlerts)
			r.Get("/{userId}/count/today", s.handleAlertCount)
		})
	})

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	logging.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// ---- handlers ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		Name      string `json:"name"`
		PushToken string `json:"pushToken"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	u, err := s.store.CreateUser(req.UserID, req.Name, req.PushToken)
	if err != nil {
		logging.Error("register failed", "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handlePushToken(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req struct {
		PushToken string `json:"pushToken"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PushToken == "" {
		writeError(w, http.StatusBadRequest, "pushToken is required")
		return
	}
	if err := s.store.UpdatePushToken(userID, req.PushToken); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

// settingsRequest covers both the create and update settings bodies.
type settingsRequest struct {
	UserID        string  `json:"userId"`
	Frequency     *string `json:"notificationFrequency"`
	Sensitivity   *string `json:"notificationSensitivity"`
	WeeklySummary *bool   `json:"weeklySummary"`
	Mode          *string `json:"mode"`
}

func (s *Server) applySettings(w http.ResponseWriter, userID string, req settingsRequest) {
	u, err := s.store.UpdateSettings(userID, store.SettingsUpdate{
		Frequency:     req.Frequency,
		Sensitivity:   req.Sensitivity,
		WeeklySummary: req.WeeklySummary,
		Mode:          req.Mode,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	// Settings posts may arrive before registration; create implicitly.
	if _, err := s.store.CreateUser(req.UserID, "", ""); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	s.applySettings(w, req.UserID, req)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.applySettings(w, userID, req)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.store.Holdings(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load holdings")
		return
	}
	if holdings == nil {
		holdings = []store.Holding{}
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (s *Server) handleUpsertHolding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string  `json:"userId"`
		Symbol     string  `json:"symbol"`
		Name       string  `json:"name"`
		Allocation float64 `json:"allocation"`
		Note       string  `json:"note"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "userId and symbol are required")
		return
	}
	h, err := s.store.UpsertHolding(store.Holding{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Name:       req.Name,
		Allocation: req.Allocation,
		Note:       req.Note,
	})
	if err != nil {
		logging.Error("holding upsert failed", "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save holding")
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	symbol := chi.URLParam(r, "symbol")
	if err := s.store.DeleteHolding(userID, symbol); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete holding")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAllSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.store.AllSymbols()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, symbols)
}

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	alerts, err := s.store.RecentAlerts(chi.URLParam(r, "userId"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []store.AlertLog{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAlertCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountAlertsToday(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
