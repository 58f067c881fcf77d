package matching

import (
	"context"
	"time"

	"spendy/internal/models"

	"github.com/shopspring/decimal"
)

// CandidateFilter is the storage-level query for plausible duplicates. A
// candidate's own date is its posting time when set, else its transaction
// time, and must fall in [DayStart, DayEnd).
type CandidateFilter struct {
	CardID       int64
	Amount       decimal.Decimal
	Currency     string
	DayStart     time.Time
	DayEnd       time.Time
	MerchantNorm string
}

// CandidateFinder runs a CandidateFilter against storage, usually bound to
// the caller's database transaction.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]models.Transaction, error)
}

type CandidateFinderFunc func(ctx context.Context, filter CandidateFilter) ([]models.Transaction, error)

func (f CandidateFinderFunc) FindCandidates(ctx context.Context, filter CandidateFilter) ([]models.Transaction, error) {
	return f(ctx, filter)
}

type Query struct {
	CardID              int64
	Amount              decimal.Decimal
	Currency            string
	PostingDatetime     *time.Time
	TransactionDatetime *time.Time
	MerchantNorm        string
}

type Outcome string

const (
	OutcomeNone      Outcome = "none"
	OutcomeSingle    Outcome = "single"
	OutcomeAmbiguous Outcome = "ambiguous"
)

func Classify(candidates []models.Transaction) Outcome {
	switch len(candidates) {
	case 0:
		return OutcomeNone
	case 1:
		return OutcomeSingle
	default:
		return OutcomeAmbiguous
	}
}

// FindCandidates returns stored transactions on the same card with the same
// amount, currency and calendar day. Without any incoming date nothing is
// matched.
func FindCandidates(ctx context.Context, finder CandidateFinder, q Query) ([]models.Transaction, error) {
	filter, ok := BuildFilter(q)
	if !ok {
		return nil, nil
	}
	return finder.FindCandidates(ctx, filter)
}

func BuildFilter(q Query) (CandidateFilter, bool) {
	day, ok := EffectiveDate(q.PostingDatetime, q.TransactionDatetime)
	if !ok {
		return CandidateFilter{}, false
	}
	start, end := DayWindow(day)
	return CandidateFilter{
		CardID:       q.CardID,
		Amount:       q.Amount,
		Currency:     q.Currency,
		DayStart:     start,
		DayEnd:       end,
		MerchantNorm: q.MerchantNorm,
	}, true
}
