package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Check interval presets accepted by the settings endpoint.
var frequencyIntervals = map[string]int64{
	"hourly":  3600,
	"daily":   86400,
	"weekly":  604800,
	"monthly": 2592000,
}

// Slippage bounds accepted by the settings endpoint, in percent.
const (
	minSlippagePercent = 0.1
	maxSlippagePercent = 5.0
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "rebalancr",
	})
}

// handleListPortfolios handles GET /api/portfolios?user_id=
func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	portfolios, err := s.portfolios.GetUserPortfolios(r.Context(), userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"portfolios": portfolios})
}

// handleGetPortfolio handles GET /api/portfolios/{id}
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := s.portfolioID(w, r)
	if !ok {
		return
	}

	p, err := s.portfolios.GetPortfolio(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

// handleAnalyze handles POST /api/portfolios/{id}/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := s.portfolioID(w, r)
	if !ok {
		return
	}

	result, err := s.rebalancer.Analyze(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleRebalance handles POST /api/portfolios/{id}/rebalance
func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.portfolioID(w, r)
	if !ok {
		return
	}

	var req struct {
		DryRun bool `json:"dry_run"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := s.rebalancer.Rebalance(r.Context(), id, req.DryRun)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleSimulate handles POST /api/portfolios/{id}/simulate
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.portfolioID(w, r)
	if !ok {
		return
	}

	var req struct {
		Target domain.AllocationTarget `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Target) == 0 {
		s.writeError(w, http.StatusBadRequest, "target allocations are required")
		return
	}

	result, err := s.rebalancer.SimulateRebalance(r.Context(), id, req.Target)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleGetEvents handles GET /api/portfolios/{id}/events?type=&limit=
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.portfolioID(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	eventsOut, err := s.rebalancer.History(id, r.URL.Query().Get("type"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": eventsOut})
}

// handleStatus handles GET /api/portfolios/{id}/status. It returns the
// portfolio summary with the latest stored analysis, never running the
// pipeline itself.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.portfolioID(w, r)
	if !ok {
		return
	}

	p, err := s.portfolios.GetPortfolio(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	analysis, err := s.rebalancer.LatestAnalysis(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": p,
		"analysis":  analysis,
	})
}

// handleUpdateSettings handles PATCH /api/portfolios/{id}/settings
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := s.portfolioID(w, r)
	if !ok {
		return
	}

	var req struct {
		AutoRebalance *bool    `json:"auto_rebalance"`
		Frequency     *string  `json:"frequency"`
		CheckInterval *int64   `json:"check_interval"`
		MaxSlippage   *float64 `json:"max_slippage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := domain.PortfolioUpdate{AutoRebalance: req.AutoRebalance}

	if req.Frequency != nil {
		interval, ok := frequencyIntervals[*req.Frequency]
		if !ok {
			s.writeError(w, http.StatusBadRequest, "frequency must be one of hourly, daily, weekly, monthly")
			return
		}
		update.CheckInterval = &interval
	} else if req.CheckInterval != nil {
		if *req.CheckInterval < 1 {
			s.writeError(w, http.StatusBadRequest, "check_interval must be positive")
			return
		}
		update.CheckInterval = req.CheckInterval
	}

	if req.MaxSlippage != nil {
		if *req.MaxSlippage < minSlippagePercent || *req.MaxSlippage > maxSlippagePercent {
			s.writeError(w, http.StatusBadRequest, "max_slippage must be between 0.1 and 5.0 percent")
			return
		}
		update.MaxSlippage = req.MaxSlippage
	}

	if err := s.portfolios.UpdatePortfolio(id, update); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	p, err := s.portfolios.GetPortfolio(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

// portfolioID resolves the {id} path segment. Numeric values are used
// directly; anything else is treated as a portfolio name and resolved for
// the user_id query parameter.
func (s *Server) portfolioID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")

	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, true
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id query parameter is required to resolve a portfolio name")
		return 0, false
	}

	id, err := s.portfolios.ResolvePortfolioName(userID, raw)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return 0, false
	}
	if id == 0 {
		s.writeError(w, http.StatusNotFound, "portfolio not found")
		return 0, false
	}

	return id, true
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
