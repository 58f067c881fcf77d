package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spendy/internal/models"
)

var ErrDuplicateContentHash = fmt.Errorf("%w: content hash", ErrDuplicate)

const sourceEventColumns = `
	id, source_type, raw_text, file_path, content_hash, received_at,
	parsed_amount, parsed_currency, parsed_transaction_datetime, parsed_posting_datetime,
	parsed_description, parsed_card_number, parsed_kind, parsed_location, parsed_sender,
	parsed_recipients, account_id, card_id, parse_status, parse_error, match_error,
	created_at, updated_at`

type SourceEventStore struct {
	db DB
}

func NewSourceEventStore(db DB) *SourceEventStore {
	return &SourceEventStore{db: db}
}

type SourceEventFilter struct {
	SourceType     *models.SourceType
	ParseStatus    *models.ParseStatus
	ReceivedFrom   *time.Time
	ReceivedTo     *time.Time
	HasTransaction *bool
	Limit          int
	Offset         int
}

// Create inserts event and returns its id. A second event with the same
// content hash fails with ErrDuplicateContentHash.
func (s *SourceEventStore) Create(ctx context.Context, tx Getter, event models.SourceEvent) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO source_events (
			source_type, raw_text, file_path, content_hash, received_at,
			parsed_amount, parsed_currency, parsed_transaction_datetime, parsed_posting_datetime,
			parsed_description, parsed_card_number, parsed_kind, parsed_location, parsed_sender,
			parsed_recipients, account_id, card_id, parse_status, parse_error, match_error
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id
	`,
		event.SourceType, event.RawText, event.FilePath, event.ContentHash, event.ReceivedAt,
		event.ParsedAmount, event.ParsedCurrency, event.ParsedTransactionDatetime, event.ParsedPostingDatetime,
		event.ParsedDescription, event.ParsedCardNumber, event.ParsedKind, event.ParsedLocation, event.ParsedSender,
		event.ParsedRecipients, event.AccountID, event.CardID, event.ParseStatus, event.ParseError, event.MatchError,
	)
	if err != nil {
		if isUniqueViolation(err, "source_events_content_hash_key") {
			return 0, ErrDuplicateContentHash
		}
		return 0, err
	}
	return id, nil
}

func (s *SourceEventStore) GetByID(ctx context.Context, id int64) (models.SourceEvent, error) {
	var event models.SourceEvent
	err := s.db.GetContext(ctx, &event, `SELECT `+sourceEventColumns+` FROM source_events WHERE id = $1`, id)
	return event, mapNotFound(err)
}

// GetForUpdate locks the row until tx ends.
func (s *SourceEventStore) GetForUpdate(ctx context.Context, tx Getter, id int64) (models.SourceEvent, error) {
	var event models.SourceEvent
	err := tx.GetContext(ctx, &event, `SELECT `+sourceEventColumns+` FROM source_events WHERE id = $1 FOR UPDATE`, id)
	return event, mapNotFound(err)
}

func (s *SourceEventStore) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM source_events WHERE content_hash = $1)`, contentHash)
	return exists, err
}

// UpdateParsed replaces the parse output, associations and status of event.
func (s *SourceEventStore) UpdateParsed(ctx context.Context, tx Execer, event models.SourceEvent) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE source_events
		SET received_at = $2,
		    parsed_amount = $3,
		    parsed_currency = $4,
		    parsed_transaction_datetime = $5,
		    parsed_posting_datetime = $6,
		    parsed_description = $7,
		    parsed_card_number = $8,
		    parsed_kind = $9,
		    parsed_location = $10,
		    account_id = $11,
		    card_id = $12,
		    parse_status = $13,
		    parse_error = $14,
		    match_error = $15,
		    updated_at = now()
		WHERE id = $1
	`,
		event.ID, event.ReceivedAt, event.ParsedAmount, event.ParsedCurrency,
		event.ParsedTransactionDatetime, event.ParsedPostingDatetime, event.ParsedDescription,
		event.ParsedCardNumber, event.ParsedKind, event.ParsedLocation, event.AccountID, event.CardID,
		event.ParseStatus, event.ParseError, event.MatchError,
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

func (s *SourceEventStore) SetMatchError(ctx context.Context, tx Execer, id int64, message *string) error {
	_, err := tx.ExecContext(ctx, `UPDATE source_events SET match_error = $2, updated_at = now() WHERE id = $1`, id, message)
	return err
}

// List returns one page of events, newest received first, and the total
// number of events matching filter.
func (s *SourceEventStore) List(ctx context.Context, filter SourceEventFilter) ([]models.SourceEvent, int, error) {
	var conditions []string
	var args []any
	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, strings.ReplaceAll(condition, "?", fmt.Sprintf("$%d", len(args))))
	}
	if filter.SourceType != nil {
		add("source_type = ?", *filter.SourceType)
	}
	if filter.ParseStatus != nil {
		add("parse_status = ?", *filter.ParseStatus)
	}
	if filter.ReceivedFrom != nil {
		add("received_at >= ?", *filter.ReceivedFrom)
	}
	if filter.ReceivedTo != nil {
		add("received_at <= ?", *filter.ReceivedTo)
	}
	if filter.HasTransaction != nil {
		linked := "EXISTS (SELECT 1 FROM transaction_source_links l WHERE l.source_event_id = source_events.id)"
		if !*filter.HasTransaction {
			linked = "NOT " + linked
		}
		conditions = append(conditions, linked)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM source_events`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + sourceEventColumns + ` FROM source_events` + where +
		fmt.Sprintf(" ORDER BY received_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)
	var events []models.SourceEvent
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *SourceEventStore) Delete(ctx context.Context, tx Execer, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM source_events WHERE id = $1`, id)
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
