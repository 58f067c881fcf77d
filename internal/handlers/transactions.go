package handlers

import (
	"net/http"
	"strings"

	"spendy/internal/models"
	"spendy/internal/store"
)

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePage(query)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.TransactionFilter{Limit: limit, Offset: offset, Query: query.Get("q")}
	if filter.AccountID, err = parseOptionalID(query.Get("account_id")); err != nil {
		respondError(w, http.StatusBadRequest, "account_id: "+err.Error())
		return
	}
	if filter.CardID, err = parseOptionalID(query.Get("card_id")); err != nil {
		respondError(w, http.StatusBadRequest, "card_id: "+err.Error())
		return
	}
	dateFrom := query.Get("date_from")
	if filter.DateFrom, err = parseOptionalTime(&dateFrom); err != nil {
		respondError(w, http.StatusBadRequest, "date_from: "+err.Error())
		return
	}
	dateTo := query.Get("date_to")
	if filter.DateTo, err = parseOptionalTime(&dateTo); err != nil {
		respondError(w, http.StatusBadRequest, "date_to: "+err.Error())
		return
	}
	kind := query.Get("kind")
	if filter.Kind, err = parseOptionalKind(&kind); err != nil {
		respondError(w, http.StatusBadRequest, "kind: "+err.Error())
		return
	}
	currency := query.Get("currency")
	if filter.Currency, err = parseOptionalCurrency(&currency); err != nil {
		respondError(w, http.StatusBadRequest, "currency: "+err.Error())
		return
	}
	minAmount := query.Get("min_amount")
	if filter.MinAmount, err = parseOptionalAmount(&minAmount); err != nil {
		respondError(w, http.StatusBadRequest, "min_amount: "+err.Error())
		return
	}
	maxAmount := query.Get("max_amount")
	if filter.MaxAmount, err = parseOptionalAmount(&maxAmount); err != nil {
		respondError(w, http.StatusBadRequest, "max_amount: "+err.Error())
		return
	}
	switch direction := strings.ToLower(query.Get("direction")); direction {
	case "", "in", "out":
		filter.Direction = direction
	default:
		respondError(w, http.StatusBadRequest, "direction must be in or out")
		return
	}

	transactions, total, err := h.transactions.ListTransactions(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":  transactions,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	in, err := req.overrides()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ActorID = actorID(r)
	transaction, err := h.transactions.CreateTransaction(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, transaction)
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	patch, err := req.overrides()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch.ActorID = actorID(r)
	transaction, err := h.transactions.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transaction)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	transaction, err := h.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transaction)
}

func (h *Handler) GetTransactionSources(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	sources, err := h.transactions.GetTransactionSources(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if sources == nil {
		sources = []models.LinkedSource{}
	}
	respondJSON(w, http.StatusOK, sources)
}

type primarySourceRequest struct {
	SourceEventID int64 `json:"source_event_id"`
}

func (h *Handler) SetPrimarySource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req primarySourceRequest
	if err := decodeJSON(r, &req); err != nil || req.SourceEventID <= 0 {
		respondError(w, http.StatusBadRequest, "source_event_id is required")
		return
	}
	if err := h.transactions.SetPrimarySource(r.Context(), id, req.SourceEventID, actorID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transaction_id":  id,
		"source_event_id": req.SourceEventID,
		"is_primary":      true,
	})
}

func (h *Handler) CanonicalizeTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	transaction, err := h.transactions.Canonicalize(r.Context(), id, actorID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transaction)
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := h.transactions.DeleteTransaction(r.Context(), id, actorID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
