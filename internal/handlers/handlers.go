package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"spendy/internal/fx"
	"spendy/internal/logger"
	"spendy/internal/middleware"
	"spendy/internal/services"
	"spendy/internal/store"

	"github.com/go-chi/chi/v5"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service and store sentinels onto HTTP statuses.
// Anything unrecognised is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrSourceEventNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrLinkNotFound),
		errors.Is(err, services.ErrCardNotFound),
		errors.Is(err, services.ErrNoFile),
		errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateContent),
		errors.Is(err, services.ErrLinkExists),
		errors.Is(err, store.ErrDuplicate):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidSourceType),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrCardRequired),
		errors.Is(err, services.ErrAmountRequired),
		errors.Is(err, services.ErrCurrencyRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fx.ErrUnavailable):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// actorID is the token subject, or "" for unauthenticated callers such as
// tests that invoke handlers directly.
func actorID(r *http.Request) string {
	userID, _ := middleware.UserIDFromContext(r.Context())
	return userID
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}
