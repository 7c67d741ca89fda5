package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"achievements/internal/points"
	"achievements/internal/validator"

	"github.com/go-chi/chi/v5"
)

var (
	errInvalidAmount       = errors.New("invalid amount")
	errInvalidCredentialID = errors.New("invalid credential id")
)

// parseAmount accepts a JSON number or a numeric string of whole points.
func parseAmount(raw json.Number) (int64, error) {
	amount, err := points.ParseAmount(raw.String())
	if err != nil {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func credentialIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidCredentialID
	}
	return id, nil
}

func accountParam(r *http.Request) (string, error) {
	account := chi.URLParam(r, "account")
	if err := validator.ValidateAccountID(account); err != nil {
		return "", err
	}
	return account, nil
}

type credentialFields struct {
	TrackID      int64       `json:"track_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	ImageRef     string      `json:"image_ref"`
	RewardAmount json.Number `json:"reward_amount"`
}

// validate checks the record fields and returns the parsed reward. A name
// or reward that is missing is left to the service to reject.
func (f credentialFields) validate() (int64, error) {
	if f.Name != "" {
		if err := validator.ValidateCredentialName(f.Name); err != nil {
			return 0, err
		}
	}
	if err := validator.ValidateDescription(f.Description); err != nil {
		return 0, err
	}
	if err := validator.ValidateImageRef(f.ImageRef); err != nil {
		return 0, err
	}
	if f.RewardAmount == "" {
		return 0, nil
	}
	reward, err := parseAmount(f.RewardAmount)
	if err != nil {
		return 0, errors.New("invalid reward amount")
	}
	return reward, nil
}
