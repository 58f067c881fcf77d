package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// ParseAmount parses a notification amount such as "34,678.55". Thousands
// separators are dropped before parsing.
func ParseAmount(input string) (decimal.Decimal, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(input), ",", "")
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, input)
	}
	return value, nil
}

// ParseUserAmount parses an amount entered by a person. At most two
// decimal places are accepted.
func ParseUserAmount(input string) (decimal.Decimal, error) {
	value, err := ParseAmount(input)
	if err != nil {
		return decimal.Zero, err
	}
	if value.Exponent() < -2 && !value.Equal(value.Round(2)) {
		return decimal.Zero, ErrTooManyDecimals
	}
	return value, nil
}

// Quantize rounds to cents, half away from zero.
func Quantize(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func FormatNull(value decimal.NullDecimal) string {
	if !value.Valid {
		return ""
	}
	return Format(value.Decimal)
}

func Null(value decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: value, Valid: true}
}
