package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendy/internal/models"
	"spendy/internal/money"
	"spendy/internal/validator"

	"github.com/shopspring/decimal"
)

var (
	errInvalidAmount   = errors.New("invalid amount")
	errInvalidRate     = errors.New("invalid rate")
	errInvalidDatetime = errors.New("datetime must be RFC 3339")
	errInvalidID       = errors.New("invalid id")
	errInvalidBool     = errors.New("invalid boolean")
)

func parseOptionalAmount(raw *string) (decimal.NullDecimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	amount, err := money.ParseUserAmount(*raw)
	if err != nil {
		return decimal.NullDecimal{}, errInvalidAmount
	}
	return money.Null(amount), nil
}

func parseOptionalRate(raw *string) (decimal.NullDecimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil || rate.LessThanOrEqual(decimal.Zero) || rate.Exponent() < -6 {
		return decimal.NullDecimal{}, errInvalidRate
	}
	return money.Null(rate), nil
}

func parseOptionalTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, errInvalidDatetime
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func parseOptionalCurrency(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	currency, err := validator.ValidateCurrency(*raw)
	if err != nil {
		return nil, err
	}
	return &currency, nil
}

func parseOptionalKind(raw *string) (*models.Kind, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	kind, err := validator.ValidateKind(*raw)
	if err != nil {
		return nil, err
	}
	return &kind, nil
}

func parseOptionalID(raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, errInvalidID
	}
	return &id, nil
}

// parsePage reads limit and offset, defaulting to 100 and 0.
func parsePage(query url.Values) (int, int, error) {
	limit, offset := 100, 0
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, validator.ErrInvalidPage
		}
		limit = value
	}
	if raw := query.Get("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, validator.ErrInvalidPage
		}
		offset = value
	}
	if err := validator.ValidatePage(limit, offset); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errInvalidBool
	}
	return &value, nil
}
