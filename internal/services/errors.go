package services

import "errors"

var (
	ErrUnauthorized        = errors.New("caller lacks the required privilege")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidReward       = errors.New("invalid reward amount")
	ErrInvalidAccount      = errors.New("invalid account")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrInvalidReference    = errors.New("invalid reference")
	ErrEmptyName           = errors.New("name is required")
	ErrEmptyList           = errors.New("credential list is empty")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotOwner            = errors.New("caller does not own the credential")
	ErrNotFound            = errors.New("credential not found")
)
