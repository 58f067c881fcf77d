package validator

import (
	"errors"
	"regexp"
	"strings"

	"spendy/internal/models"
)

var (
	ErrInvalidSourceType = errors.New("invalid source type")
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidLastFour   = errors.New("card suffix must be exactly 4 digits")
	ErrInvalidPage       = errors.New("invalid pagination")
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	lastFourRegex = regexp.MustCompile(`^[0-9]{4}$`)
)

const MaxPageSize = 500

func ValidateSourceType(value string) (models.SourceType, error) {
	sourceType := models.SourceType(strings.TrimSpace(value))
	if !sourceType.Valid() {
		return "", ErrInvalidSourceType
	}
	return sourceType, nil
}

// ValidateCurrency upper-cases code and checks it has the ISO 4217 shape.
func ValidateCurrency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !currencyRegex.MatchString(normalized) {
		return "", ErrInvalidCurrency
	}
	return normalized, nil
}

func ValidateKind(value string) (models.Kind, error) {
	kind := models.Kind(strings.TrimSpace(value))
	if !kind.Valid() {
		return "", ErrInvalidKind
	}
	return kind, nil
}

func ValidateLastFour(value string) error {
	if !lastFourRegex.MatchString(value) {
		return ErrInvalidLastFour
	}
	return nil
}

func ValidatePage(limit, offset int) error {
	if limit <= 0 || limit > MaxPageSize || offset < 0 {
		return ErrInvalidPage
	}
	return nil
}
