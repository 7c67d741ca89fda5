package points

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrFractional    = errors.New("points are whole numbers")
)

// ParseAmount parses a positive whole number of points. Accepts JSON
// numbers rendered as strings, e.g. "150" or "150.0".
func ParseAmount(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	whole, frac, hasFrac := strings.Cut(trimmed, ".")
	if whole == "" || !isDigits(whole) {
		return 0, ErrInvalidAmount
	}
	if hasFrac {
		if !isDigits(frac) {
			return 0, ErrInvalidAmount
		}
		if strings.Trim(frac, "0") != "" {
			return 0, ErrFractional
		}
	}
	value, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || value <= 0 {
		return 0, ErrInvalidAmount
	}
	return value, nil
}

// CheckedAdd adds two non-negative amounts, reporting overflow.
func CheckedAdd(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// BurnRate is burned / minted rounded to four places, "0.0000" before
// anything was minted.
func BurnRate(minted, burned int64) string {
	if minted <= 0 {
		return decimal.Zero.StringFixed(4)
	}
	return decimal.NewFromInt(burned).Div(decimal.NewFromInt(minted)).StringFixedBank(4)
}

// Circulating is the share of minted points still held, as a percentage.
func Circulating(minted, supply int64) string {
	if minted <= 0 {
		return decimal.Zero.StringFixed(2)
	}
	return decimal.NewFromInt(supply).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(minted)).StringFixedBank(2)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
