package handlers

import (
	"errors"
	"net/http"
	"strings"

	"spendy/internal/models"
	"spendy/internal/store"
	"spendy/internal/validator"

	"github.com/jmoiron/sqlx"
)

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

type createAccountRequest struct {
	Institution     string `json:"institution"`
	Name            string `json:"name"`
	AccountCurrency string `json:"account_currency"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Institution) == "" || strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "institution and name are required")
		return
	}
	currency, err := validator.ValidateCurrency(req.AccountCurrency)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	account := models.Account{
		Institution:     strings.TrimSpace(req.Institution),
		Name:            strings.TrimSpace(req.Name),
		AccountCurrency: currency,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		id, err := h.accounts.Create(r.Context(), tx, account)
		account.ID = id
		return err
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if stored, err := h.accounts.GetByID(r.Context(), account.ID); err == nil {
		account = stored
	}
	respondJSON(w, http.StatusCreated, account)
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseOptionalID(r.URL.Query().Get("account_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account_id")
		return
	}
	cards, err := h.cards.List(r.Context(), accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cards")
		return
	}
	if cards == nil {
		cards = []models.Card{}
	}
	respondJSON(w, http.StatusOK, cards)
}

type createCardRequest struct {
	AccountID        int64   `json:"account_id"`
	CardMaskedNumber string  `json:"card_masked_number"`
	CardType         *string `json:"card_type"`
	Name             *string `json:"name"`
}

func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := decodeJSON(r, &req); err != nil || req.AccountID <= 0 {
		respondError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	if err := validator.ValidateLastFour(store.MaskedSuffix(req.CardMaskedNumber)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.accounts.GetByID(r.Context(), req.AccountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		respondServiceError(w, r, err)
		return
	}
	card := models.Card{
		AccountID:        req.AccountID,
		CardMaskedNumber: strings.TrimSpace(req.CardMaskedNumber),
		CardType:         req.CardType,
		Name:             req.Name,
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		id, err := h.cards.Create(r.Context(), tx, card)
		card.ID = id
		return err
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if stored, err := h.cards.GetByID(r.Context(), card.ID); err == nil {
		card = stored
	}
	respondJSON(w, http.StatusCreated, card)
}
