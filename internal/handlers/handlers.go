package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"achievements/internal/logger"
	"achievements/internal/services"

	"github.com/sirupsen/logrus"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidReward),
		errors.Is(err, services.ErrInvalidAccount),
		errors.Is(err, services.ErrInvalidRecipient),
		errors.Is(err, services.ErrInvalidReference),
		errors.Is(err, services.ErrEmptyName),
		errors.Is(err, services.ErrEmptyList):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrNotOwner):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusConflict, err.Error())
	default:
		logger.WithFields(logrus.Fields{"op": op, "path": r.URL.Path, "error": err}).Error("request failed")
		respondError(w, http.StatusInternalServerError, op+" failed")
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), defaultLimit)
	if limit > 200 {
		limit = 200
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}
