// Package api exposes the engine over HTTP: signal decisions, scanner
// control, runtime settings and backtest jobs.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pulse-lab/pulse-trading/internal/backtest"
	"github.com/pulse-lab/pulse-trading/internal/lifecycle"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/scanner"
	"github.com/pulse-lab/pulse-trading/internal/store"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// PriceSource provides mark prices for open position enrichment.
type PriceSource interface {
	MarkPrice(ctx context.Context, symbol string) (float64, error)
}

// Server wires the HTTP routes to the engine components.
type Server struct {
	store     *store.Store
	scanner   *scanner.Scanner
	lifecycle *lifecycle.Service
	runner    *backtest.JobRunner
	registry  strategy.Registry
	prices    PriceSource
	logger    *logger.Logger
	router    *mux.Router
}

// NewServer builds the route table.
func NewServer(st *store.Store, sc *scanner.Scanner, lc *lifecycle.Service, runner *backtest.JobRunner, registry strategy.Registry, prices PriceSource, log *logger.Logger) *Server {
	s := &Server{
		store:     st,
		scanner:   sc,
		lifecycle: lc,
		runner:    runner,
		registry:  registry,
		prices:    prices,
		logger:    log,
		router:    mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signals", s.handleListSignals).Methods(http.MethodGet)
	api.HandleFunc("/signals/{id}/action", s.handleSignalAction).Methods(http.MethodPost)
	api.HandleFunc("/positions", s.handleListPositions).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings/strategy", s.handleSetStrategy).Methods(http.MethodPost)
	api.HandleFunc("/settings/auto-trade", s.handleSetAutoTrade).Methods(http.MethodPost)
	api.HandleFunc("/scanner/latest", s.handleScannerLatest).Methods(http.MethodGet)
	api.HandleFunc("/scanner/start", s.handleScannerStart).Methods(http.MethodPost)
	api.HandleFunc("/scanner/stop", s.handleScannerStop).Methods(http.MethodPost)
	api.HandleFunc("/scanner/scan-now", s.handleScanNow).Methods(http.MethodPost)
	api.HandleFunc("/backtests", s.handleSubmitBacktest).Methods(http.MethodPost)
	api.HandleFunc("/backtests", s.handleListBacktests).Methods(http.MethodGet)
	api.HandleFunc("/backtests/schema", s.handleBacktestSchema).Methods(http.MethodGet)
	api.HandleFunc("/backtests/{id}", s.handleGetBacktest).Methods(http.MethodGet)

	return s
}

// Router returns the HTTP handler for mounting or testing.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe serves the API on addr until ctx is cancelled, then
// drains in-flight requests before returning.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	s.logger.Info("api server listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		s.logger.Info("api server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	case err := <-serveErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	s.logger.Warn("request failed",
		zap.Int("code", int(code)),
		zap.Error(err),
	)

	s.writeJSON(w, httpStatus(code), map[string]any{
		"error": err.Error(),
		"code":  int(code),
	})
}

// httpStatus maps internal error categories onto HTTP statuses.
func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeNotFound, errors.ErrCodeBacktestJobNotFound, errors.ErrCodeStrategyNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAlreadyResolved, errors.ErrCodePositionClosed:
		return http.StatusConflict
	case errors.ErrCodeInvalidParameter, errors.ErrCodeMissingParameter,
		errors.ErrCodeInvalidConfiguration, errors.ErrCodeInvalidSide:
		return http.StatusBadRequest
	case errors.ErrCodeNotImplemented:
		return http.StatusNotImplemented
	case errors.ErrCodeDataUnavailable, errors.ErrCodePriceUnavailable,
		errors.ErrCodeInsufficientHistory:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
