package store

import (
	"context"

	"spendy/internal/models"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Getter, account models.Account) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO accounts (institution, name, account_currency)
		VALUES ($1, $2, $3)
		RETURNING id
	`, account.Institution, account.Name, account.AccountCurrency)
	return id, err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID int64) (models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, `
		SELECT id, institution, name, account_currency, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	return account, mapNotFound(err)
}

func (s *AccountStore) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := s.db.SelectContext(ctx, &accounts, `
		SELECT id, institution, name, account_currency, created_at
		FROM accounts
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetByCard returns the account owning cardID.
func (s *AccountStore) GetByCard(ctx context.Context, cardID int64) (models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, `
		SELECT a.id, a.institution, a.name, a.account_currency, a.created_at
		FROM accounts a
		JOIN cards c ON c.account_id = a.id
		WHERE c.id = $1
	`, cardID)
	return account, mapNotFound(err)
}
