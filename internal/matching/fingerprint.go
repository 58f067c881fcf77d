package matching

import (
	"strconv"
	"strings"
	"time"

	"spendy/internal/money"

	"github.com/shopspring/decimal"
)

const unknownDate = "unknown"

type FingerprintInput struct {
	CardID              int64
	Amount              decimal.Decimal
	Currency            string
	PostingDatetime     *time.Time
	TransactionDatetime *time.Time
	MerchantNorm        string
	// Original amount and currency are accepted for callers that have them
	// but are not part of the key.
	OriginalAmount   decimal.NullDecimal
	OriginalCurrency *string
}

// Fingerprint builds card_id|date|amount|currency|merchant_norm. The date is
// the posting day when known, else the transaction day, else "unknown".
func Fingerprint(in FingerprintInput) string {
	date := unknownDate
	if day, ok := EffectiveDate(in.PostingDatetime, in.TransactionDatetime); ok {
		date = day.Format(time.DateOnly)
	}
	return strings.Join([]string{
		strconv.FormatInt(in.CardID, 10),
		date,
		money.Format(in.Amount),
		in.Currency,
		in.MerchantNorm,
	}, "|")
}

// EffectiveDate returns the posting time if set, otherwise the transaction
// time, in UTC.
func EffectiveDate(posting, transaction *time.Time) (time.Time, bool) {
	switch {
	case posting != nil:
		return posting.UTC(), true
	case transaction != nil:
		return transaction.UTC(), true
	default:
		return time.Time{}, false
	}
}

// DayWindow returns [start of day, start of next day) in UTC around t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	utc := t.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
