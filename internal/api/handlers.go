package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pulse-lab/pulse-trading/internal/backtest"
	"github.com/pulse-lab/pulse-trading/internal/lifecycle"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

const listLimit = 100

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.store.ListSignals(listLimit)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}

type signalActionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleSignalAction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body signalActionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid action payload", err))

		return
	}

	action, err := lifecycle.ParseAction(body.Action)
	if err != nil {
		s.writeError(w, err)

		return
	}

	signal, err := s.lifecycle.Apply(r.Context(), id, action)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"signal": signal})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListPositions(listLimit)
	if err != nil {
		s.writeError(w, err)

		return
	}

	// mark-to-market open positions; a missing price maps to no entry,
	// not a failed request
	unrealized := map[string]float64{}

	for _, position := range positions {
		if position.Status != types.PositionStatusOpen {
			continue
		}

		mark, err := s.prices.MarkPrice(r.Context(), position.Symbol)
		if err != nil {
			continue
		}

		unrealized[position.ID] = position.UnrealizedPnl(mark)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"positions":     positions,
		"unrealizedPnl": unrealized,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings()
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

type setStrategyRequest struct {
	Strategy string `json:"strategy"`
}

func (s *Server) handleSetStrategy(w http.ResponseWriter, r *http.Request) {
	var body setStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid strategy payload", err))

		return
	}

	if _, err := s.registry.Get(body.Strategy); err != nil {
		s.writeError(w, err)

		return
	}

	settings, err := s.store.GetSettings()
	if err != nil {
		s.writeError(w, err)

		return
	}

	settings.ActiveStrategy = body.Strategy
	settings.LastUpdated = time.Now().UTC()

	if err := s.store.SaveSettings(settings); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

type setAutoTradeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetAutoTrade(w http.ResponseWriter, r *http.Request) {
	var body setAutoTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid auto-trade payload", err))

		return
	}

	settings, err := s.store.GetSettings()
	if err != nil {
		s.writeError(w, err)

		return
	}

	settings.AutoTrade = body.Enabled
	settings.LastUpdated = time.Now().UTC()

	if err := s.store.SaveSettings(settings); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *Server) handleScannerLatest(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running": s.scanner.IsRunning(),
		"scan":    s.scanner.Latest(),
	})
}

func (s *Server) handleScannerStart(w http.ResponseWriter, r *http.Request) {
	// the loop outlives the request
	if err := s.scanner.Start(context.Background()); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

func (s *Server) handleScannerStop(w http.ResponseWriter, r *http.Request) {
	s.scanner.Stop()
	s.writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

func (s *Server) handleScanNow(w http.ResponseWriter, r *http.Request) {
	candidates := s.scanner.ScanNow(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"time":       time.Now().UTC(),
		"candidates": candidates,
	})
}

func (s *Server) handleSubmitBacktest(w http.ResponseWriter, r *http.Request) {
	var request backtest.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid backtest payload", err))

		return
	}

	// the job outlives the request
	job, err := s.runner.Submit(context.Background(), request)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.ListBacktestResults(listLimit)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"backtests": results})
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.GetBacktestResult(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"backtest": result})
}

func (s *Server) handleBacktestSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := backtest.JobRequestSchema()
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(schema)
}
