package fx

import (
	"context"
	"strings"

	"spendy/internal/money"

	"github.com/shopspring/decimal"
)

type RateLookup interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Resolution is an amount expressed in the account's currency. The Original
// fields and Rate are only set when a conversion happened.
type Resolution struct {
	Amount           decimal.Decimal
	Currency         string
	OriginalAmount   decimal.NullDecimal
	OriginalCurrency *string
	Rate             decimal.NullDecimal
}

func (r Resolution) Converted() bool {
	return r.Rate.Valid
}

type Resolver struct {
	rates RateLookup
}

func NewResolver(rates RateLookup) *Resolver {
	return &Resolver{rates: rates}
}

func Passthrough(amount decimal.Decimal, currency string) Resolution {
	return Resolution{Amount: amount, Currency: currency}
}

// Resolve converts amount into accountCurrency. An empty accountCurrency
// means the owning account is unknown and the amount passes through.
func (r *Resolver) Resolve(ctx context.Context, amount decimal.Decimal, sourceCurrency, accountCurrency string) (Resolution, error) {
	if sourceCurrency == "" || accountCurrency == "" || strings.EqualFold(sourceCurrency, accountCurrency) {
		return Passthrough(amount, sourceCurrency), nil
	}
	rate, err := r.rates.Rate(ctx, sourceCurrency, accountCurrency)
	if err != nil {
		return Resolution{}, err
	}
	original := sourceCurrency
	return Resolution{
		Amount:           money.Quantize(amount.Mul(rate)),
		Currency:         accountCurrency,
		OriginalAmount:   money.Null(amount),
		OriginalCurrency: &original,
		Rate:             money.Null(rate),
	}, nil
}
