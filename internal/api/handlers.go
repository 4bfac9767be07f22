// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/backup"
	"github.com/ledgerlock/ledgerlock/internal/keys"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// actorHeader carries the caller identity for submissions and audited
// operations. Upstream authentication is expected to set it.
const actorHeader = "X-Actor-ID"

const maxRequestBody = 1 << 20 // 1 MB

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	ingestor   *ledger.Ingestor
	ledger     ledger.Store
	alertStore alerts.Store
	snapshots  backup.SnapshotStore
	scheduler  *backup.Scheduler
	ready      func() error
}

// NewHandler creates the handler set. ready is polled by the readiness
// probe; nil means always ready.
func NewHandler(
	ingestor *ledger.Ingestor,
	ledgerStore ledger.Store,
	alertStore alerts.Store,
	snapshots backup.SnapshotStore,
	scheduler *backup.Scheduler,
	ready func() error,
) *Handler {
	return &Handler{
		ingestor:   ingestor,
		ledger:     ledgerStore,
		alertStore: alertStore,
		snapshots:  snapshots,
		scheduler:  scheduler,
		ready:      ready,
	}
}

// apiResponse is the uniform response envelope.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// transactionView is the client-facing transaction shape. The encrypted
// payload is never included; reveal is a separate audited operation.
type transactionView struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"ownerId"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Status        ledger.Status     `json:"status"`
	PaymentMethod string            `json:"paymentMethod"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func toTransactionView(txn *ledger.Transaction) transactionView {
	return transactionView{
		ID:            txn.ID,
		OwnerID:       txn.OwnerID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Status:        txn.Status,
		PaymentMethod: txn.PaymentMethod,
		Metadata:      txn.Metadata,
		CreatedAt:     txn.CreatedAt,
	}
}

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data}); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError writes an error envelope. message must already be safe
// for clients.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message}); err != nil {
		logging.Error().Err(err).Msg("failed to encode error response")
	}
}

// respondSubmitError maps ingestion errors to HTTP status codes without
// leaking internal detail.
func respondSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, keys.ErrKeyNotConfigured):
		respondError(w, http.StatusServiceUnavailable, "encryption key not configured")
	case errors.Is(err, ledger.ErrNotFound):
		respondError(w, http.StatusNotFound, "transaction not found")
	default:
		respondError(w, http.StatusInternalServerError, "transaction processing failed")
	}
}

// SubmitTransaction handles POST /api/v1/transactions.
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		respondError(w, http.StatusBadRequest, "missing "+actorHeader+" header")
		return
	}

	var req ledger.SubmitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.ingestor.Submit(r.Context(), &req, actor)
	if err != nil {
		respondSubmitError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// ListTransactions handles GET /api/v1/transactions. Returns the
// client-facing view only; encrypted payloads never leave the store here.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	txns, err := h.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	views := make([]transactionView, 0, len(txns))
	for i := range txns {
		views = append(views, toTransactionView(&txns[i]))
	}

	respondJSON(w, http.StatusOK, views)
}

// GetTransaction handles GET /api/v1/transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	txn, err := h.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}

	respondJSON(w, http.StatusOK, toTransactionView(txn))
}

// UpdateTransactionStatus handles PUT /api/v1/transactions/{id}/status.
func (h *Handler) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		respondError(w, http.StatusBadRequest, "missing "+actorHeader+" header")
		return
	}

	var req struct {
		Status ledger.Status `json:"status"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.ingestor.UpdateStatus(r.Context(), id, req.Status, actor); err != nil {
		switch {
		case errors.Is(err, ledger.ErrValidation):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrNotFound):
			respondError(w, http.StatusNotFound, "transaction not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

// RevealTransaction handles POST /api/v1/transactions/{id}/reveal.
// Returns the decrypted payload; the access is written to the security
// log before anything leaves the server.
func (h *Handler) RevealTransaction(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		respondError(w, http.StatusBadRequest, "missing "+actorHeader+" header")
		return
	}

	id := chi.URLParam(r, "id")
	payload, err := h.ingestor.Reveal(r.Context(), id, actor)
	if err != nil {
		respondSubmitError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payload)
}

// ListAlerts handles GET /api/v1/alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.alertStore.ListAlerts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if list == nil {
		list = []alerts.AdminAlert{}
	}

	respondJSON(w, http.StatusOK, list)
}

// ListBackups handles GET /api/v1/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if snaps == nil {
		snaps = []backup.Snapshot{}
	}

	respondJSON(w, http.StatusOK, snaps)
}

// TriggerBackup handles POST /api/v1/backups/run. A run already in
// flight is reported as skipped rather than queued.
func (h *Handler) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}

	snap, err := h.scheduler.RunOnce(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "backup run failed")
		return
	}
	if snap == nil {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "skipped"})
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			respondError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// parseTransactionFilter reads transaction list query parameters.
func parseTransactionFilter(r *http.Request) (ledger.TransactionFilter, error) {
	var filter ledger.TransactionFilter
	q := r.URL.Query()

	filter.OwnerID = strings.TrimSpace(q.Get("owner"))

	if raw := q.Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid since timestamp, want RFC 3339")
		}
		filter.Since = &ts
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = n
	}

	return filter, nil
}

// parseAlertFilter reads alert list query parameters.
func parseAlertFilter(r *http.Request) (alerts.AlertFilter, error) {
	var filter alerts.AlertFilter
	q := r.URL.Query()

	if raw := q.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				filter.Types = append(filter.Types, alerts.AlertType(t))
			}
		}
	}

	if raw := q.Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid since timestamp, want RFC 3339")
		}
		filter.Since = &ts
	}

	if raw := q.Get("until"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid until timestamp, want RFC 3339")
		}
		filter.Until = &ts
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = n
	}

	return filter, nil
}
