package store

import (
	"context"
	"fmt"
	"time"

	"spendy/internal/models"

	"github.com/shopspring/decimal"
)

var ErrDuplicateLink = fmt.Errorf("%w: link", ErrDuplicate)

type LinkStore struct {
	db DB
}

func NewLinkStore(db DB) *LinkStore {
	return &LinkStore{db: db}
}

type linkedSourceRow struct {
	models.SourceEvent
	LinkTransactionID   int64           `db:"link_transaction_id"`
	LinkSourceEventID   int64           `db:"link_source_event_id"`
	LinkMatchConfidence decimal.Decimal `db:"link_match_confidence"`
	LinkIsPrimary       bool            `db:"link_is_primary"`
	LinkCreatedAt       time.Time       `db:"link_created_at"`
}

// Create inserts link. A primary link first clears any other primary on the
// same transaction.
func (s *LinkStore) Create(ctx context.Context, tx Execer, link models.TransactionSourceLink) error {
	if link.IsPrimary {
		if err := s.ClearPrimary(ctx, tx, link.TransactionID); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transaction_source_links (transaction_id, source_event_id, match_confidence, is_primary)
		VALUES ($1, $2, $3, $4)
	`, link.TransactionID, link.SourceEventID, link.MatchConfidence, link.IsPrimary)
	if isUniqueViolation(err, "transaction_source_links_pkey") {
		return ErrDuplicateLink
	}
	return err
}

func (s *LinkStore) Get(ctx context.Context, q Getter, transactionID, sourceEventID int64) (models.TransactionSourceLink, error) {
	var link models.TransactionSourceLink
	err := q.GetContext(ctx, &link, `
		SELECT transaction_id, source_event_id, match_confidence, is_primary, created_at
		FROM transaction_source_links
		WHERE transaction_id = $1 AND source_event_id = $2
	`, transactionID, sourceEventID)
	return link, mapNotFound(err)
}

func (s *LinkStore) Delete(ctx context.Context, tx Execer, transactionID, sourceEventID int64) error {
	result, err := tx.ExecContext(ctx, `
		DELETE FROM transaction_source_links WHERE transaction_id = $1 AND source_event_id = $2
	`, transactionID, sourceEventID)
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

func (s *LinkStore) DeleteBySource(ctx context.Context, tx Execer, sourceEventID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM transaction_source_links WHERE source_event_id = $1`, sourceEventID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result)
}

func (s *LinkStore) DeleteByTransaction(ctx context.Context, tx Execer, transactionID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM transaction_source_links WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result)
}

func (s *LinkStore) ClearPrimary(ctx context.Context, tx Execer, transactionID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transaction_source_links SET is_primary = false WHERE transaction_id = $1 AND is_primary
	`, transactionID)
	return err
}

// SetPrimary makes the given link the only primary one of its transaction.
// Others are cleared first so the one-primary index never sees two rows.
func (s *LinkStore) SetPrimary(ctx context.Context, tx Execer, transactionID, sourceEventID int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE transaction_source_links
		SET is_primary = false
		WHERE transaction_id = $1 AND source_event_id <> $2 AND is_primary
	`, transactionID, sourceEventID); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE transaction_source_links
		SET is_primary = true
		WHERE transaction_id = $1 AND source_event_id = $2
	`, transactionID, sourceEventID)
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

// ListByTransaction returns the transaction's links with their source events,
// earliest-created source first.
func (s *LinkStore) ListByTransaction(ctx context.Context, q Selecter, transactionID int64) ([]models.LinkedSource, error) {
	var rows []linkedSourceRow
	err := q.SelectContext(ctx, &rows, `
		SELECT se.id, se.source_type, se.raw_text, se.file_path, se.content_hash, se.received_at,
		       se.parsed_amount, se.parsed_currency, se.parsed_transaction_datetime, se.parsed_posting_datetime,
		       se.parsed_description, se.parsed_card_number, se.parsed_kind, se.parsed_location, se.parsed_sender,
		       se.parsed_recipients, se.account_id, se.card_id, se.parse_status, se.parse_error, se.match_error,
		       se.created_at, se.updated_at,
		       l.transaction_id AS link_transaction_id,
		       l.source_event_id AS link_source_event_id,
		       l.match_confidence AS link_match_confidence,
		       l.is_primary AS link_is_primary,
		       l.created_at AS link_created_at
		FROM transaction_source_links l
		JOIN source_events se ON se.id = l.source_event_id
		WHERE l.transaction_id = $1
		ORDER BY se.created_at, se.id
	`, transactionID)
	if err != nil {
		return nil, err
	}
	linked := make([]models.LinkedSource, 0, len(rows))
	for _, row := range rows {
		link := models.TransactionSourceLink{
			TransactionID:   row.LinkTransactionID,
			SourceEventID:   row.LinkSourceEventID,
			MatchConfidence: row.LinkMatchConfidence,
			IsPrimary:       row.LinkIsPrimary,
			CreatedAt:       row.LinkCreatedAt,
		}
		linked = append(linked, models.LinkedSource{Link: link, Source: row.SourceEvent})
	}
	return linked, nil
}

func (s *LinkStore) ListBySource(ctx context.Context, q Selecter, sourceEventID int64) ([]models.TransactionSourceLink, error) {
	var links []models.TransactionSourceLink
	err := q.SelectContext(ctx, &links, `
		SELECT transaction_id, source_event_id, match_confidence, is_primary, created_at
		FROM transaction_source_links
		WHERE source_event_id = $1
		ORDER BY transaction_id
	`, sourceEventID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Sources is ListByTransaction outside any database transaction.
func (s *LinkStore) Sources(ctx context.Context, transactionID int64) ([]models.LinkedSource, error) {
	return s.ListByTransaction(ctx, s.db, transactionID)
}
