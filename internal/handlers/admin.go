package handlers

import (
	"encoding/json"
	"net/http"

	"achievements/internal/middleware"
	"achievements/internal/services"
	"achievements/internal/validator"
)

type mintRequest struct {
	Account string      `json:"account"`
	Amount  json.Number `json:"amount"`
	Reason  string      `json:"reason"`
}

type collaboratorRequest struct {
	Principal string `json:"principal"`
}

type issueRequest struct {
	Recipient string `json:"recipient"`
	credentialFields
}

type batchIssueRequest struct {
	Recipients []string `json:"recipients"`
	credentialFields
}

// Every admin handler forwards the caller; the services decide whether the
// caller is the authority or the collaborator.

func (h *Handler) AdminMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.points.Mint(r.Context(), services.MintRequest{Caller: caller, Account: req.Account, Amount: amount, Reason: req.Reason}); err != nil {
		respondServiceError(w, r, "mint", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"account": req.Account, "minted": amount})
}

func (h *Handler) AdminBurnFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.points.BurnFrom(r.Context(), services.BurnRequest{Caller: caller, Account: req.Account, Amount: amount, Reason: req.Reason}); err != nil {
		respondServiceError(w, r, "burn_from", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"account": req.Account, "burned": amount})
}

func (h *Handler) AdminSetCollaborator(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req collaboratorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.points.SetCollaborator(r.Context(), caller, req.Principal); err != nil {
		respondServiceError(w, r, "set_collaborator", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"collaborator": req.Principal})
}

func (h *Handler) AdminIssue(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Recipient != "" {
		if err := validator.ValidateAccountID(req.Recipient); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	reward, err := req.validate()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.credentials.Issue(r.Context(), services.IssueRequest{
		Caller:       caller,
		Recipient:    req.Recipient,
		TrackID:      req.TrackID,
		Name:         req.Name,
		Description:  req.Description,
		ImageRef:     req.ImageRef,
		RewardAmount: reward,
	})
	if err != nil {
		respondServiceError(w, r, "issue", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"credential_id": id})
}

// AdminIssueBatch reports the ids issued before a failure alongside the
// error so the caller can resume with the remaining recipients.
func (h *Handler) AdminIssueBatch(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req batchIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	for _, recipient := range req.Recipients {
		if recipient == "" {
			continue
		}
		if err := validator.ValidateAccountID(recipient); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	reward, err := req.validate()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids, err := h.credentials.IssueBatch(r.Context(), services.BatchIssueRequest{
		Caller:       caller,
		Recipients:   req.Recipients,
		TrackID:      req.TrackID,
		Name:         req.Name,
		Description:  req.Description,
		ImageRef:     req.ImageRef,
		RewardAmount: reward,
	})
	if err != nil && len(ids) > 0 {
		respondJSON(w, http.StatusMultiStatus, map[string]any{
			"credential_ids": ids,
			"error":          err.Error(),
		})
		return
	}
	if err != nil {
		respondServiceError(w, r, "issue_batch", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"credential_ids": ids})
}

func (h *Handler) AdminConfigureLedger(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.credentials.ConfigureLedger(r.Context(), caller, h.ledger); err != nil {
		respondServiceError(w, r, "configure_ledger", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ledger_configured": true})
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountIDFromContext(r.Context())
	if !ok || caller != h.cfg.AuthorityID {
		respondError(w, http.StatusForbidden, services.ErrUnauthorized.Error())
		return
	}
	mismatches, err := h.points.Reconcile(r.Context())
	if err != nil {
		respondServiceError(w, r, "reconcile", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": len(mismatches) == 0,
		"mismatches": mismatches,
	})
}
