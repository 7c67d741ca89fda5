package handlers

import (
	"net/http"

	"achievements/internal/auth"
	"achievements/internal/middleware"
	"achievements/internal/websocket"
)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load events")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// WSEvents streams events touching the authenticated account. The
// authority receives every event.
func (h *Handler) WSEvents(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r, true)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	subscription := claims.UserID
	if h.cfg.AuthorityID != "" && subscription == h.cfg.AuthorityID {
		subscription = websocket.Wildcard
	}
	websocket.ServeWS(w, r, h.hub, subscription)
}
