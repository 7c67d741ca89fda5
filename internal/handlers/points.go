package handlers

import (
	"encoding/json"
	"net/http"

	"achievements/internal/middleware"
	"achievements/internal/services"
	"achievements/internal/validator"
)

type burnRequest struct {
	Amount json.Number `json:"amount"`
	Reason string      `json:"reason"`
}

type transferRequest struct {
	To     string      `json:"to"`
	Amount json.Number `json:"amount"`
}

func (h *Handler) GetSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := h.points.Supply(r.Context())
	if err != nil {
		respondServiceError(w, r, "supply", err)
		return
	}
	respondJSON(w, http.StatusOK, supply)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := h.points.Summary(r.Context(), account)
	if err != nil {
		respondServiceError(w, r, "balance", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id": account,
		"balance":    summary.Balance,
	})
}

func (h *Handler) GetPointsSummary(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := h.points.Summary(r.Context(), account)
	if err != nil {
		respondServiceError(w, r, "summary", err)
		return
	}
	summary.AccountID = account
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset := pagination(r, 50)
	entries, err := h.entries.ListByAccount(r.Context(), account, limit, offset)
	if err != nil {
		respondServiceError(w, r, "entries", err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) Burn(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req burnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.points.BurnSelf(r.Context(), services.BurnRequest{Caller: accountID, Account: accountID, Amount: amount, Reason: req.Reason}); err != nil {
		respondServiceError(w, r, "burn", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"burned": amount})
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateAccountID(req.To); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	done, err := h.points.Transfer(r.Context(), services.TransferRequest{Caller: accountID, To: req.To, Amount: amount})
	if err != nil {
		respondServiceError(w, r, "transfer", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": done, "to": req.To, "amount": amount})
}
