package store

import (
	"context"
	"strings"
	"unicode"

	"spendy/internal/models"
)

type CardStore struct {
	db DB
}

func NewCardStore(db DB) *CardStore {
	return &CardStore{db: db}
}

func (s *CardStore) Create(ctx context.Context, tx Getter, card models.Card) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO cards (account_id, card_masked_number, card_type, name)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, card.AccountID, card.CardMaskedNumber, card.CardType, card.Name)
	return id, err
}

func (s *CardStore) GetByID(ctx context.Context, cardID int64) (models.Card, error) {
	var card models.Card
	err := s.db.GetContext(ctx, &card, `
		SELECT id, account_id, card_masked_number, card_type, name, created_at
		FROM cards
		WHERE id = $1
	`, cardID)
	return card, mapNotFound(err)
}

// List returns cards in id order, optionally only those of one account.
func (s *CardStore) List(ctx context.Context, accountID *int64) ([]models.Card, error) {
	query := `
		SELECT id, account_id, card_masked_number, card_type, name, created_at
		FROM cards`
	var args []any
	if accountID != nil {
		query += ` WHERE account_id = $1`
		args = append(args, *accountID)
	}
	query += ` ORDER BY id`
	var cards []models.Card
	if err := s.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, err
	}
	return cards, nil
}

// FindByLastFour returns the first card, in id order, whose masked number
// ends in lastFour once non-digits are removed. lastFour must be exactly four
// digits.
func (s *CardStore) FindByLastFour(ctx context.Context, lastFour string, accountID *int64) (models.Card, error) {
	if len(lastFour) != 4 || strings.IndexFunc(lastFour, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return models.Card{}, ErrNotFound
	}
	cards, err := s.List(ctx, accountID)
	if err != nil {
		return models.Card{}, err
	}
	for _, card := range cards {
		if MaskedSuffix(card.CardMaskedNumber) == lastFour {
			return card, nil
		}
	}
	return models.Card{}, ErrNotFound
}

// MaskedSuffix returns the last four digits of a masked card number such as
// "4111 XXXX XXXX 3278", or "" when it has fewer than four digits.
func MaskedSuffix(masked string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, masked)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}
