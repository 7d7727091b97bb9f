package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/splitledger/splitledger/internal/currency"
	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/money"
	"github.com/splitledger/splitledger/internal/service"
	"github.com/splitledger/splitledger/internal/settle"
	"github.com/splitledger/splitledger/internal/storage"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	svc             *service.LedgerService
	defaultCurrency string
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses: missing
// entities are 404, lost version races are 409, rejected inputs are 422,
// and broken ledger invariants surface as 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrScopeNotFound),
		errors.Is(err, ledger.ErrExpenseNotFound),
		errors.Is(err, settle.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrEmptyParticipants),
		errors.Is(err, ledger.ErrPayerNotParticipant),
		errors.Is(err, ledger.ErrInvalidSplit),
		errors.Is(err, ledger.ErrSplitMismatch),
		errors.Is(err, settle.ErrOverpayment),
		errors.Is(err, settle.ErrInvalidPayment),
		errors.Is(err, settle.ErrNotPayable),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, currency.ErrNoRate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// version interprets an optional caller-supplied version stamp. Absent
// means "do not check".
func version(v *int64) int64 {
	if v == nil {
		return storage.NoVersionCheck
	}
	return *v
}

func (h *Handlers) reportingCurrency(r *http.Request) string {
	if c := r.URL.Query().Get("currency"); c != "" {
		return c
	}
	return h.defaultCurrency
}

// --- scopes ---

type createScopeRequest struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Members []string `json:"members"`
}

func (h *Handlers) CreateScope(w http.ResponseWriter, r *http.Request) {
	var req createScopeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	kind := ledger.ScopeKind(req.Kind)
	if kind == "" {
		kind = ledger.ScopeGroup
	}
	if kind != ledger.ScopeGroup && kind != ledger.ScopePair {
		writeError(w, http.StatusBadRequest, "kind must be group or pair")
		return
	}

	scope, err := h.svc.CreateScope(r.Context(), req.Name, kind, req.Members)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scope)
}

func (h *Handlers) GetScope(w http.ResponseWriter, r *http.Request) {
	scope, err := h.svc.GetScope(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scope)
}

// --- expenses ---

type expenseRequest struct {
	PayerID      string             `json:"payer_id"`
	Total        money.Money        `json:"total"`
	Method       ledger.SplitMethod `json:"method"`
	Participants []string           `json:"participants"`
	Note         string             `json:"note"`
	Version      *int64             `json:"version"`
}

func (h *Handlers) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	exp, err := h.svc.RecordExpense(r.Context(), service.RecordExpenseInput{
		ScopeID:      chi.URLParam(r, "id"),
		PayerID:      req.PayerID,
		Total:        req.Total,
		Method:       req.Method,
		Participants: req.Participants,
		Note:         req.Note,
		Version:      version(req.Version),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.svc.ListExpenses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (h *Handlers) EditExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	exp, err := h.svc.EditExpense(r.Context(), chi.URLParam(r, "id"), service.RecordExpenseInput{
		PayerID:      req.PayerID,
		Total:        req.Total,
		Method:       req.Method,
		Participants: req.Participants,
		Note:         req.Note,
		Version:      version(req.Version),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (h *Handlers) RemoveExpense(w http.ResponseWriter, r *http.Request) {
	ver := storage.NoVersionCheck
	var req struct {
		Version *int64 `json:"version"`
	}
	// DELETE bodies are optional.
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		ver = version(req.Version)
	}

	if err := h.svc.RemoveExpense(r.Context(), chi.URLParam(r, "id"), ver); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- balances and settlement ---

func (h *Handlers) GetBalances(w http.ResponseWriter, r *http.Request) {
	cur := h.reportingCurrency(r)
	balances, err := h.svc.ComputeBalances(r.Context(), chi.URLParam(r, "id"), cur)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currency": cur,
		"balances": balances,
	})
}

func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	cur := h.reportingCurrency(r)
	plan, ver, err := h.svc.PlanSettlement(r.Context(), chi.URLParam(r, "id"), cur)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if plan == nil {
		plan = []settle.Payment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currency": cur,
		"version":  ver,
		"payments": plan,
	})
}

func (h *Handlers) ListSettlements(w http.ResponseWriter, r *http.Request) {
	txns, err := h.svc.ListSettlements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": txns})
}

type recordPaymentRequest struct {
	TransactionID  string          `json:"transaction_id"`
	Proposal       *settle.Payment `json:"proposal"`
	Paid           money.Money     `json:"paid"`
	IdempotencyKey string          `json:"idempotency_key"`
	Version        *int64          `json:"version"`
}

func (h *Handlers) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	txn, err := h.svc.RecordPayment(r.Context(), service.RecordPaymentInput{
		ScopeID:        chi.URLParam(r, "id"),
		TransactionID:  req.TransactionID,
		Proposal:       req.Proposal,
		Paid:           req.Paid,
		IdempotencyKey: req.IdempotencyKey,
		Version:        version(req.Version),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handlers) CancelSettlement(w http.ResponseWriter, r *http.Request) {
	ver := storage.NoVersionCheck
	var req struct {
		Version *int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		ver = version(req.Version)
	}

	txn, err := h.svc.CancelSettlement(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "txnID"), ver)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// --- health ---

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
