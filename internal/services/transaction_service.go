package services

import (
	"context"
	"errors"

	"spendy/internal/canonical"
	"spendy/internal/db"
	"spendy/internal/logger"
	"spendy/internal/matching"
	"spendy/internal/models"
	"spendy/internal/store"

	"github.com/jmoiron/sqlx"
)

const (
	actionSetPrimarySource  = "set_primary_source"
	actionCanonicalize      = "canonicalize_transaction"
	actionDeleteTransaction = "delete_transaction"
	actionCreateTransaction = "create_transaction"
	actionUpdateTransaction = "update_transaction"
)

type TransactionService struct {
	txRunner     db.TxRunner
	transactions TransactionStore
	links        LinkStore
	cards        CardStore
	audit        AuditStore
}

func NewTransactionService(txRunner db.TxRunner, transactions TransactionStore, links LinkStore, cards CardStore, audit AuditStore) *TransactionService {
	return &TransactionService{
		txRunner:     txRunner,
		transactions: transactions,
		links:        links,
		cards:        cards,
		audit:        audit,
	}
}

func (s *TransactionService) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.transactions.List(ctx, filter)
}

func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// GetTransactionSources lists linked sources in link order.
func (s *TransactionService) GetTransactionSources(ctx context.Context, id int64) ([]models.LinkedSource, error) {
	if _, err := s.GetTransaction(ctx, id); err != nil {
		return nil, err
	}
	return s.links.Sources(ctx, id)
}

// SetPrimarySource makes one linked source the primary and demotes the rest.
func (s *TransactionService) SetPrimarySource(ctx context.Context, transactionID, sourceEventID int64, actorID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.links.SetPrimary(ctx, tx, transactionID, sourceEventID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, actionSetPrimarySource, "transaction", idString(transactionID), linkAuditData(transactionID, sourceEventID))
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrLinkNotFound
	}
	return err
}

// Canonicalize rebuilds a transaction from its linked sources and refreshes
// the merchant key and fingerprint to match.
func (s *TransactionService) Canonicalize(ctx context.Context, id int64, actorID string) (models.Transaction, error) {
	var updated models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.transactions.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		linked, err := s.links.ListByTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		sources := make([]models.SourceEvent, 0, len(linked))
		for _, item := range linked {
			sources = append(sources, item.Source)
		}
		updated = canonical.Canonicalize(current, sources)
		updated.MerchantNorm = optionalString(matching.NormalizeMerchant(updated.Description))
		updated.Fingerprint = fingerprintOf(updated)
		if err := s.transactions.Update(ctx, tx, updated); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, actionCanonicalize, "transaction", idString(id), "{}")
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	log := logger.FromContext(ctx)
	log.Info().Int64("transaction_id", id).Msg("transaction canonicalized")
	return updated, nil
}

// DeleteTransaction removes a transaction together with its links. The
// source events stay.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64, actorID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.links.DeleteByTransaction(ctx, tx, id); err != nil {
			return err
		}
		if err := s.transactions.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, actionDeleteTransaction, "transaction", idString(id), "{}")
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrTransactionNotFound
	}
	return err
}

// CreateTransaction stores a hand-entered transaction with no linked sources.
// Amounts are kept as given; no conversion happens here.
func (s *TransactionService) CreateTransaction(ctx context.Context, in TransactionOverrides) (models.Transaction, error) {
	switch {
	case in.CardID == nil:
		return models.Transaction{}, ErrCardRequired
	case !in.Amount.Valid:
		return models.Transaction{}, ErrAmountRequired
	case deref(in.Currency) == "":
		return models.Transaction{}, ErrCurrencyRequired
	}
	if err := s.checkCard(ctx, *in.CardID); err != nil {
		return models.Transaction{}, err
	}

	t := models.Transaction{
		CardID:              *in.CardID,
		Amount:              in.Amount.Decimal,
		Currency:            *in.Currency,
		TransactionDatetime: in.TransactionDatetime,
		PostingDatetime:     in.PostingDatetime,
		Description:         deref(in.Description),
		Location:            in.Location,
		Kind:                models.KindOther,
		OriginalAmount:      in.OriginalAmount,
		OriginalCurrency:    in.OriginalCurrency,
		FXRate:              in.FXRate,
		FXFee:               in.FXFee,
	}
	if in.Kind != nil {
		t.Kind = *in.Kind
	}
	t.MerchantNorm = optionalString(matching.NormalizeMerchant(t.Description))
	t.Fingerprint = fingerprintOf(t)

	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.transactions.Create(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		return s.audit.Log(ctx, tx, in.ActorID, actionCreateTransaction, "transaction", idString(id), "{}")
	})
	if err != nil {
		return models.Transaction{}, err
	}
	if stored, err := s.transactions.GetByID(ctx, t.ID); err == nil {
		t = stored
	}
	log := logger.FromContext(ctx)
	log.Info().Int64("transaction_id", t.ID).Msg("transaction created")
	return t, nil
}

// UpdateTransaction applies the non-nil fields of patch. The merchant key is
// rebuilt when the description changes and the fingerprint is always rebuilt.
func (s *TransactionService) UpdateTransaction(ctx context.Context, id int64, patch TransactionOverrides) (models.Transaction, error) {
	if patch.CardID != nil {
		if err := s.checkCard(ctx, *patch.CardID); err != nil {
			return models.Transaction{}, err
		}
	}
	var updated models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.transactions.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = applyPatch(current, patch)
		if updated.Description != current.Description || updated.MerchantNorm == nil {
			updated.MerchantNorm = optionalString(matching.NormalizeMerchant(updated.Description))
		}
		updated.Fingerprint = fingerprintOf(updated)
		if err := s.transactions.Update(ctx, tx, updated); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, patch.ActorID, actionUpdateTransaction, "transaction", idString(id), "{}")
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if stored, err := s.transactions.GetByID(ctx, id); err == nil {
		updated = stored
	}
	log := logger.FromContext(ctx)
	log.Info().Int64("transaction_id", id).Msg("transaction updated")
	return updated, nil
}

func (s *TransactionService) checkCard(ctx context.Context, cardID int64) error {
	_, err := s.cards.GetByID(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrCardNotFound
	}
	return err
}

func applyPatch(t models.Transaction, patch TransactionOverrides) models.Transaction {
	if patch.CardID != nil {
		t.CardID = *patch.CardID
	}
	if patch.Amount.Valid {
		t.Amount = patch.Amount.Decimal
	}
	if patch.Currency != nil {
		t.Currency = *patch.Currency
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.TransactionDatetime != nil {
		t.TransactionDatetime = patch.TransactionDatetime
	}
	if patch.PostingDatetime != nil {
		t.PostingDatetime = patch.PostingDatetime
	}
	if patch.Location != nil {
		t.Location = patch.Location
	}
	if patch.Kind != nil {
		t.Kind = *patch.Kind
	}
	if patch.OriginalAmount.Valid {
		t.OriginalAmount = patch.OriginalAmount
	}
	if patch.OriginalCurrency != nil {
		t.OriginalCurrency = patch.OriginalCurrency
	}
	if patch.FXRate.Valid {
		t.FXRate = patch.FXRate
	}
	if patch.FXFee.Valid {
		t.FXFee = patch.FXFee
	}
	return t
}
