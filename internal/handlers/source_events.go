package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"spendy/internal/filestore"
	"spendy/internal/models"
	"spendy/internal/services"
	"spendy/internal/store"
	"spendy/internal/validator"
)

const maxUploadBytes = 20 << 20

type textSourceEventRequest struct {
	SourceType          string  `json:"source_type"`
	RawText             string  `json:"raw_text"`
	AccountID           *int64  `json:"account_id"`
	CardID              *int64  `json:"card_id"`
	TransactionDatetime *string `json:"transaction_datetime"`
}

func (h *Handler) CreateSourceEventFromText(w http.ResponseWriter, r *http.Request) {
	var req textSourceEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	sourceType, err := validator.ValidateSourceType(req.SourceType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	transactionDatetime, err := parseOptionalTime(req.TransactionDatetime)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.ingestion.CreateFromText(r.Context(), services.TextInput{
		SourceType:          sourceType,
		RawText:             req.RawText,
		AccountID:           req.AccountID,
		CardID:              req.CardID,
		TransactionDatetime: transactionDatetime,
		ActorID:             actorID(r),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) UploadSourceEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	sourceType, err := validator.ValidateSourceType(r.FormValue("source_type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	accountID, err := parseOptionalID(r.FormValue("account_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account_id")
		return
	}
	cardID, err := parseOptionalID(r.FormValue("card_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid card_id")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read file")
		return
	}
	result, err := h.ingestion.CreateFromFile(r.Context(), services.FileInput{
		SourceType: sourceType,
		Filename:   header.Filename,
		Data:       data,
		AccountID:  accountID,
		CardID:     cardID,
		ActorID:    actorID(r),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListSourceEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePage(query)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.SourceEventFilter{Limit: limit, Offset: offset}
	if raw := query.Get("source_type"); raw != "" {
		sourceType, err := validator.ValidateSourceType(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.SourceType = &sourceType
	}
	if raw := query.Get("parse_status"); raw != "" {
		status := models.ParseStatus(raw)
		switch status {
		case models.ParseStatusNew, models.ParseStatusParsed, models.ParseStatusSkipped, models.ParseStatusFailed:
			filter.ParseStatus = &status
		default:
			respondError(w, http.StatusBadRequest, "invalid parse_status")
			return
		}
	}
	receivedFrom := query.Get("received_from")
	if filter.ReceivedFrom, err = parseOptionalTime(&receivedFrom); err != nil {
		respondError(w, http.StatusBadRequest, "received_from: "+err.Error())
		return
	}
	receivedTo := query.Get("received_to")
	if filter.ReceivedTo, err = parseOptionalTime(&receivedTo); err != nil {
		respondError(w, http.StatusBadRequest, "received_to: "+err.Error())
		return
	}
	if filter.HasTransaction, err = parseOptionalBool(query.Get("has_transaction")); err != nil {
		respondError(w, http.StatusBadRequest, "has_transaction: "+err.Error())
		return
	}

	events, total, err := h.ingestion.ListSourceEvents(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []models.SourceEvent{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":  events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetSourceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid source event id")
		return
	}
	event, err := h.ingestion.GetSourceEvent(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (h *Handler) DeleteSourceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid source event id")
		return
	}
	if err := h.ingestion.DeleteSourceEvent(r.Context(), id, actorID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DownloadSourceEventFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid source event id")
		return
	}
	data, event, err := h.ingestion.GetSourceEventFile(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	name := downloadName(event)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// downloadName strips the hash prefix that ObjectName put in front of the
// client filename.
func downloadName(event models.SourceEvent) string {
	if event.FilePath == nil {
		return "upload"
	}
	name := filepath.Base(*event.FilePath)
	if _, rest, found := strings.Cut(name, "_"); found && rest != "" {
		return filestore.SanitizeFilename(rest)
	}
	return filestore.SanitizeFilename(name)
}

func (h *Handler) ReprocessSourceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid source event id")
		return
	}
	result, err := h.ingestion.Reprocess(r.Context(), id, actorID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type linkRequest struct {
	TransactionID int64 `json:"transaction_id"`
}

func (h *Handler) LinkSourceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid source event id")
		return
	}
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil || req.TransactionID <= 0 {
		respondError(w, http.StatusBadRequest, "transaction_id is required")
		return
	}
	link, err := h.ingestion.LinkSourceToTransaction(r.Context(), id, req.TransactionID, actorID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, link)
}

func (h *Handler) UnlinkSourceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid source event id")
		return
	}
	transactionID, ok := parseIDParam(r, "transactionID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := h.ingestion.UnlinkSourceFromTransaction(r.Context(), id, transactionID, actorID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createTransactionRequest struct {
	CardID              *int64  `json:"card_id"`
	Amount              *string `json:"amount"`
	Currency            *string `json:"currency"`
	Description         *string `json:"description"`
	TransactionDatetime *string `json:"transaction_datetime"`
	PostingDatetime     *string `json:"posting_datetime"`
	Location            *string `json:"location"`
	Kind                *string `json:"kind"`
	OriginalAmount      *string `json:"original_amount"`
	OriginalCurrency    *string `json:"original_currency"`
	FXRate              *string `json:"fx_rate"`
	FXFee               *string `json:"fx_fee"`
}

func (req createTransactionRequest) overrides() (services.TransactionOverrides, error) {
	var out services.TransactionOverrides
	var err error
	out.CardID = req.CardID
	out.Description = req.Description
	out.Location = req.Location
	if out.Amount, err = parseOptionalAmount(req.Amount); err != nil {
		return out, fmt.Errorf("amount: %w", err)
	}
	if out.Currency, err = parseOptionalCurrency(req.Currency); err != nil {
		return out, fmt.Errorf("currency: %w", err)
	}
	if out.TransactionDatetime, err = parseOptionalTime(req.TransactionDatetime); err != nil {
		return out, fmt.Errorf("transaction_datetime: %w", err)
	}
	if out.PostingDatetime, err = parseOptionalTime(req.PostingDatetime); err != nil {
		return out, fmt.Errorf("posting_datetime: %w", err)
	}
	if out.Kind, err = parseOptionalKind(req.Kind); err != nil {
		return out, fmt.Errorf("kind: %w", err)
	}
	if out.OriginalAmount, err = parseOptionalAmount(req.OriginalAmount); err != nil {
		return out, fmt.Errorf("original_amount: %w", err)
	}
	if out.OriginalCurrency, err = parseOptionalCurrency(req.OriginalCurrency); err != nil {
		return out, fmt.Errorf("original_currency: %w", err)
	}
	if out.FXRate, err = parseOptionalRate(req.FXRate); err != nil {
		return out, fmt.Errorf("fx_rate: %w", err)
	}
	if out.FXFee, err = parseOptionalAmount(req.FXFee); err != nil {
		return out, fmt.Errorf("fx_fee: %w", err)
	}
	return out, nil
}

func (h *Handler) CreateTransactionFromSourceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid source event id")
		return
	}
	var req createTransactionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	overrides, err := req.overrides()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	overrides.ActorID = actorID(r)
	transaction, link, err := h.ingestion.CreateTransactionAndLink(r.Context(), id, overrides)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"transaction": transaction,
		"link":        link,
	})
}
