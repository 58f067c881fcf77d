package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendy/internal/matching"
	"spendy/internal/models"
)

const transactionColumns = `
	id, card_id, amount, currency, transaction_datetime, posting_datetime, description,
	location, kind, original_amount, original_currency, fx_rate, fx_fee, merchant_norm,
	fingerprint, created_at, updated_at`

// TransactionFilter narrows List. Dates compare against the posting time,
// falling back to the transaction time. Direction is "in", "out" or empty.
type TransactionFilter struct {
	AccountID *int64
	CardID    *int64
	DateFrom  *time.Time
	DateTo    *time.Time
	Query     string
	Kind      *models.Kind
	Direction string
	Currency  *string
	MinAmount decimal.NullDecimal
	MaxAmount decimal.NullDecimal
	Limit     int
	Offset    int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx Getter, t models.Transaction) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO transactions (
			card_id, amount, currency, transaction_datetime, posting_datetime, description,
			location, kind, original_amount, original_currency, fx_rate, fx_fee, merchant_norm, fingerprint
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`,
		t.CardID, t.Amount, t.Currency, t.TransactionDatetime, t.PostingDatetime, t.Description,
		t.Location, t.Kind, t.OriginalAmount, t.OriginalCurrency, t.FXRate, t.FXFee, t.MerchantNorm, t.Fingerprint,
	)
	return id, err
}

func (s *TransactionStore) GetByID(ctx context.Context, id int64) (models.Transaction, error) {
	var t models.Transaction
	err := s.db.GetContext(ctx, &t, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return t, mapNotFound(err)
}

func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, id int64) (models.Transaction, error) {
	var t models.Transaction
	err := tx.GetContext(ctx, &t, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	return t, mapNotFound(err)
}

// Update writes every mutable column of t.
func (s *TransactionStore) Update(ctx context.Context, tx Execer, t models.Transaction) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET card_id = $2,
		    amount = $3,
		    currency = $4,
		    transaction_datetime = $5,
		    posting_datetime = $6,
		    description = $7,
		    location = $8,
		    kind = $9,
		    original_amount = $10,
		    original_currency = $11,
		    fx_rate = $12,
		    fx_fee = $13,
		    merchant_norm = $14,
		    fingerprint = $15,
		    updated_at = now()
		WHERE id = $1
	`,
		t.ID, t.CardID, t.Amount, t.Currency, t.TransactionDatetime, t.PostingDatetime, t.Description,
		t.Location, t.Kind, t.OriginalAmount, t.OriginalCurrency, t.FXRate, t.FXFee, t.MerchantNorm, t.Fingerprint,
	)
	if err != nil {
		return err
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindCandidates returns transactions on the filter's card with the exact
// amount and currency whose own date (posting, else transaction) lies in the
// filter's day window.
func (s *TransactionStore) FindCandidates(ctx context.Context, q Selecter, filter matching.CandidateFilter) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE card_id = $1
		  AND amount = $2
		  AND currency = $3
		  AND COALESCE(posting_datetime, transaction_datetime) >= $4
		  AND COALESCE(posting_datetime, transaction_datetime) < $5`
	args := []any{filter.CardID, filter.Amount, filter.Currency, filter.DayStart, filter.DayEnd}
	if filter.MerchantNorm != "" {
		query += ` AND merchant_norm = $6`
		args = append(args, filter.MerchantNorm)
	}
	query += ` ORDER BY id`
	var candidates []models.Transaction
	if err := q.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *TransactionStore) Delete(ctx context.Context, tx Execer, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of transactions, newest first, and the number of rows
// matching filter overall.
func (s *TransactionStore) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int, error) {
	var conditions []string
	var args []any
	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, strings.ReplaceAll(condition, "?", fmt.Sprintf("$%d", len(args))))
	}
	if filter.CardID != nil {
		add("card_id = ?", *filter.CardID)
	}
	if filter.AccountID != nil {
		add("card_id IN (SELECT id FROM cards WHERE account_id = ?)", *filter.AccountID)
	}
	if filter.DateFrom != nil {
		add("COALESCE(posting_datetime, transaction_datetime) >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("COALESCE(posting_datetime, transaction_datetime) <= ?", *filter.DateTo)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add("description ILIKE ?", "%"+likeEscaper.Replace(q)+"%")
	}
	if filter.Kind != nil {
		add("kind = ?", *filter.Kind)
	}
	switch filter.Direction {
	case "out":
		conditions = append(conditions, "amount < 0")
	case "in":
		conditions = append(conditions, "amount > 0")
	}
	if filter.Currency != nil {
		add("currency = ?", *filter.Currency)
	}
	if filter.MinAmount.Valid {
		add("amount >= ?", filter.MinAmount.Decimal)
	}
	if filter.MaxAmount.Valid {
		add("amount <= ?", filter.MaxAmount.Decimal)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY posting_datetime DESC NULLS LAST, transaction_datetime DESC NULLS LAST, id DESC` +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)
	var transactions []models.Transaction
	if err := s.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}
