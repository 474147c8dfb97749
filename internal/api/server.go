package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ammswap/internal/swap"
	"ammswap/internal/trade"
	"ammswap/internal/txbuilder"
)

type Config struct {
	Listen    string
	AuthToken string
}

type Server struct {
	cfg     Config
	logger  *slog.Logger
	trade   *trade.Service
	journal Journal
}

// Journal is optional; without it GET /swaps/unconfirmed returns 404.
type Journal interface {
	Unconfirmed() ([]swap.Report, error)
	Last() (swap.Report, bool)
}

func NewServer(cfg Config, logger *slog.Logger, tradeSvc *trade.Service, journal Journal) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger, trade: tradeSvc, journal: journal}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.withAuth(s.handleHealth))
	mux.HandleFunc("/balance", s.withAuth(s.handleBalance))
	mux.HandleFunc("/swap/buy", s.withAuth(s.handleBuy))
	mux.HandleFunc("/swap/sell", s.withAuth(s.handleSell))
	mux.HandleFunc("/swaps/unconfirmed", s.withAuth(s.handleUnconfirmed))
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxTimeout)
	}()
	s.logger.Info("api listening", "addr", s.cfg.Listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken != "" {
			token := r.Header.Get("X-API-Key")
			if token == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
					token = strings.TrimSpace(auth[7:])
				}
			}
			if token != s.cfg.AuthToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok", "account": s.trade.Account().Hex()}
	if s.journal != nil {
		if last, ok := s.journal.Last(); ok {
			body["last_swap"] = last
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	bal, err := s.trade.Balance(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req trade.BuyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.trade.Buy(r.Context(), req)
	s.writeSwap(w, rep, err)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req trade.SellRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.trade.Sell(r.Context(), req)
	s.writeSwap(w, rep, err)
}

func (s *Server) handleUnconfirmed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	reps, err := s.journal.Unconfirmed()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reps == nil {
		reps = []swap.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"swaps": reps})
}

// writeSwap returns the report even for failures so callers keep the
// transaction hash of a timed-out swap.
func (s *Server) writeSwap(w http.ResponseWriter, rep *swap.Report, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, rep)
		return
	}
	if rep == nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, statusFor(err), rep)
}

func statusFor(err error) int {
	if errors.Is(err, trade.ErrBadRequest) {
		return http.StatusBadRequest
	}
	switch txbuilder.KindOf(err) {
	case txbuilder.KindConnectivity, txbuilder.KindFeeDataUnavailable:
		return http.StatusBadGateway
	case txbuilder.KindInvalidAmount:
		return http.StatusBadRequest
	case txbuilder.KindGasEstimationFailed, txbuilder.KindSubmissionRejected, txbuilder.KindOnChainRevert:
		return http.StatusUnprocessableEntity
	case txbuilder.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(b, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
