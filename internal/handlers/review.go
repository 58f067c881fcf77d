package handlers

import (
	"net/http"

	"spendy/internal/auth"
	"spendy/internal/middleware"
	"spendy/internal/models"
	"spendy/internal/websocket"
)

func (h *Handler) ListReviewItems(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.ingestion.ListReviewItems(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.ReviewItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

// WSReview upgrades to a websocket that streams ingestion events. Browsers
// cannot set headers on the upgrade, so the token may come as ?token=.
func (h *Handler) WSReview(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if !claims.HasScope(reviewScope) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
