package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidAccountID   = errors.New("invalid account id")
	ErrInvalidName        = errors.New("credential name must be 1-120 characters")
	ErrInvalidDescription = errors.New("credential description is too long")
	ErrInvalidImageRef    = errors.New("invalid image reference")
)

const (
	maxNameLength        = 120
	maxDescriptionLength = 2000
	maxImageRefLength    = 512
	maxAccountIDLength   = 128
)

var (
	emailRegex     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex  = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	accountIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
	imageRefRegex  = regexp.MustCompile(`^(https?|ipfs|ar)://\S+$`)
)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

// ValidateAccountID accepts user ids and service principals.
func ValidateAccountID(accountID string) error {
	if accountID == "" || len(accountID) > maxAccountIDLength || !accountIDRegex.MatchString(accountID) {
		return ErrInvalidAccountID
	}
	return nil
}

func ValidateCredentialName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return ErrInvalidName
	}
	return nil
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return ErrInvalidDescription
	}
	return nil
}

// ValidateImageRef allows an empty reference.
func ValidateImageRef(ref string) error {
	if ref == "" {
		return nil
	}
	if len(ref) > maxImageRefLength || !imageRefRegex.MatchString(ref) {
		return ErrInvalidImageRef
	}
	return nil
}
