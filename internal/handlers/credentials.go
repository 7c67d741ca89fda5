package handlers

import (
	"net/http"

	"achievements/internal/middleware"
	"achievements/internal/services"
	"achievements/internal/validator"
)

type exitRequest struct {
	To            string  `json:"to"`
	CredentialIDs []int64 `json:"credential_ids"`
}

func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cred, err := h.credentials.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, "credential", err)
		return
	}
	respondJSON(w, http.StatusOK, cred)
}

// GetMetadata serves the metadata document, or its base64 data URI when
// called with ?format=uri.
func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	metadata, err := h.credentials.Metadata(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, "metadata", err)
		return
	}
	if r.URL.Query().Get("format") == "uri" {
		uri, err := metadata.TokenURI()
		if err != nil {
			respondServiceError(w, r, "metadata", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"token_uri": uri})
		return
	}
	respondJSON(w, http.StatusOK, metadata)
}

func (h *Handler) ListOwned(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids, err := h.credentials.OwnedBy(r.Context(), account)
	if err != nil {
		respondServiceError(w, r, "owned credentials", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":     account,
		"credential_ids": ids,
	})
}

func (h *Handler) GetCredentialSummary(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := h.credentials.Summary(r.Context(), account)
	if err != nil {
		respondServiceError(w, r, "credential summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ExitOnce hands the caller's credentials to another account.
func (h *Handler) ExitOnce(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req exitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.To != "" {
		if err := validator.ValidateAccountID(req.To); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	result, err := h.credentials.ExitOnce(r.Context(), services.ExitRequest{
		Caller:        accountID,
		NewOwner:      req.To,
		CredentialIDs: req.CredentialIDs,
	})
	if err != nil {
		respondServiceError(w, r, "exit", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
