package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tonkeeper/tongo/ton"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
	"github.com/suspectuso/tariff-ledger/internal/ledger"
	"github.com/suspectuso/tariff-ledger/internal/storage"
)

// maxBodySize bounds request bodies; base64 payloads are ~4/3 of MaxPayloadSize
const maxBodySize = 8 << 10

// Server exposes the ledger over HTTP
type Server struct {
	ledger *ledger.Ledger
	log    *slog.Logger

	server *http.Server
}

// New creates a new HTTP server for the ledger
func New(l *ledger.Ledger, log *slog.Logger) *Server {
	return &Server{
		ledger: l,
		log:    log,
	}
}

// Handler returns the HTTP routes.
//
// POST /payments charges the client named in the request body and does not
// authenticate it: anyone reaching the endpoint can spend a client's open
// allowance. Run it behind a gateway that checks the caller owns that address.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ledger", s.handleLedgerInfo)
	mux.HandleFunc("GET /tariffs", s.handleTariffs)
	mux.HandleFunc("GET /tariffs/{id}", s.handleTariff)
	mux.HandleFunc("POST /payments", s.handlePay)
	mux.HandleFunc("GET /clients/{address}/payments", s.handlePaymentCount)
	mux.HandleFunc("GET /clients/{address}/payments/{index}", s.handleClientRecord)
	return mux
}

// Start starts the HTTP server and shuts it down when ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Info("starting http server", "port", port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	return s.server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLedgerInfo(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.CustodialBalance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LedgerInfo{
		Owner:          s.ledger.Owner().ToRaw(),
		Address:        s.ledger.Address().ToRaw(),
		Token:          s.ledger.TokenAddress().ToRaw(),
		OwnerPublicKey: hex.EncodeToString(s.ledger.OwnerPublicKey()),
		Balance:        balance,
	})
}

func (s *Server) handleTariffs(w http.ResponseWriter, r *http.Request) {
	tariffs := s.ledger.Tariffs()
	resp := make([]Tariff, 0, len(tariffs))
	for _, t := range tariffs {
		resp = append(resp, toTariff(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTariff(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %s", ledger.ErrInvalidTariff, r.PathValue("id")))
		return
	}

	t, err := s.ledger.GetTariff(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTariff(t))
}

// handlePay trusts the body's client address; see Handler
func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, &requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"})
			return
		}
		s.writeError(w, badRequest("invalid body: %v", err))
		return
	}

	client, err := ton.ParseAccountID(req.Client)
	if err != nil {
		s.writeError(w, badRequest("invalid client address: %v", err))
		return
	}

	rec, err := s.ledger.PayForService(r.Context(), client, req.TariffID, req.EncryptedData)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecord(rec))
}

func (s *Server) handlePaymentCount(w http.ResponseWriter, r *http.Request) {
	client, err := ton.ParseAccountID(r.PathValue("address"))
	if err != nil {
		s.writeError(w, badRequest("invalid address: %v", err))
		return
	}

	count, err := s.ledger.GetPaymentCount(r.Context(), client)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentCount{Client: client.ToRaw(), Count: count})
}

func (s *Server) handleClientRecord(w http.ResponseWriter, r *http.Request) {
	client, err := ton.ParseAccountID(r.PathValue("address"))
	if err != nil {
		s.writeError(w, badRequest("invalid address: %v", err))
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeError(w, badRequest("invalid index: %v", err))
		return
	}

	rec, err := s.ledger.ClientRecord(r.Context(), client, index)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecord(rec))
}

// requestError is a malformed request rejected before reaching the ledger
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status
	}

	switch {
	case errors.Is(err, ledger.ErrZeroAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInvalidTariff), errors.Is(err, ledger.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ledger.ErrAllowanceNotSet), errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientContractBalance), errors.Is(err, ledger.ErrReentrantCall):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func toTariff(t catalog.Tariff) Tariff {
	return Tariff{
		ID:            t.ID,
		Price:         t.Price,
		TradingPairs:  t.TradingPairs,
		DurationWeeks: t.DurationWeeks,
	}
}

func toRecord(rec *storage.PaymentRecord) PaymentRecord {
	return PaymentRecord{
		Client:        rec.Client.ToRaw(),
		Index:         rec.Index,
		TariffID:      rec.TariffID,
		Amount:        rec.Amount,
		EncryptedData: rec.EncryptedData,
		Timestamp:     rec.Timestamp.Unix(),
		Paid:          rec.Paid,
	}
}
