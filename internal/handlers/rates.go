package handlers

import (
	"net/http"

	"spendy/internal/validator"

	"github.com/go-chi/chi/v5"
)

// GetExchangeRate returns the cached rate converting one unit of from into
// to. Same-currency pairs are always 1.
func (h *Handler) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	from, err := validator.ValidateCurrency(chi.URLParam(r, "from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := validator.ValidateCurrency(chi.URLParam(r, "to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rate, err := h.rates.Rate(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"from": from,
		"to":   to,
		"rate": rate.String(),
	})
}
