package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendy/internal/canonical"
	"spendy/internal/clock"
	"spendy/internal/db"
	"spendy/internal/filestore"
	"spendy/internal/fx"
	"spendy/internal/logger"
	"spendy/internal/matching"
	"spendy/internal/models"
	"spendy/internal/money"
	"spendy/internal/parser"
	"spendy/internal/store"
	"spendy/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	actionAmbiguousMatch           = "ambiguous_match"
	actionLinkSource               = "link_source"
	actionUnlinkSource             = "unlink_source"
	actionCreateTransactionAndLink = "create_transaction_and_link"
	actionDeleteSourceEvent        = "delete_source_event"

	defaultListLimit = 100
)

// Outcome describes what an ingestion did beyond recording the source event.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeLinked    Outcome = "linked"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeDeferred  Outcome = "fx_deferred"
	OutcomeStored    Outcome = "stored"
)

type IngestResult struct {
	SourceEvent   models.SourceEvent `json:"source_event"`
	Outcome       Outcome            `json:"outcome"`
	TransactionID *int64             `json:"transaction_id,omitempty"`
	CandidateIDs  []int64            `json:"candidate_ids,omitempty"`
}

type TextInput struct {
	SourceType          models.SourceType
	RawText             string
	AccountID           *int64
	CardID              *int64
	TransactionDatetime *time.Time
	ActorID             string
}

type FileInput struct {
	SourceType models.SourceType
	Filename   string
	Data       []byte
	AccountID  *int64
	CardID     *int64
	ActorID    string
}

// TransactionOverrides replace values taken from the source event when a
// transaction is built by hand. Setting OriginalAmount or FXRate turns off
// automatic conversion. On update, nil fields stay untouched.
type TransactionOverrides struct {
	CardID              *int64
	Amount              decimal.NullDecimal
	Currency            *string
	Description         *string
	TransactionDatetime *time.Time
	PostingDatetime     *time.Time
	Location            *string
	Kind                *models.Kind
	OriginalAmount      decimal.NullDecimal
	OriginalCurrency    *string
	FXRate              decimal.NullDecimal
	FXFee               decimal.NullDecimal
	ActorID             string
}

type IngestionService struct {
	txRunner     db.TxRunner
	sourceEvents SourceEventStore
	transactions TransactionStore
	links        LinkStore
	cards        CardStore
	accounts     AccountStore
	audit        AuditStore
	currency     CurrencyResolver
	files        filestore.Store
	hub          ReviewHub
	clock        clock.Clock
}

func NewIngestionService(txRunner db.TxRunner, sourceEvents SourceEventStore, transactions TransactionStore, links LinkStore, cards CardStore, accounts AccountStore, audit AuditStore, currency CurrencyResolver, files filestore.Store, hub ReviewHub, clk clock.Clock) *IngestionService {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &IngestionService{
		txRunner:     txRunner,
		sourceEvents: sourceEvents,
		transactions: transactions,
		links:        links,
		cards:        cards,
		accounts:     accounts,
		audit:        audit,
		currency:     currency,
		files:        files,
		hub:          hub,
		clock:        clk,
	}
}

// matchPlan holds everything matching needs that must be computed before
// the database transaction opens, the FX lookup in particular.
type matchPlan struct {
	cardID       int64
	resolution   fx.Resolution
	merchantNorm string
}

type matchResult struct {
	outcome       Outcome
	transactionID *int64
	candidateIDs  []int64
}

type matchStepError struct {
	err error
}

func (e *matchStepError) Error() string {
	return "match: " + e.err.Error()
}

func (e *matchStepError) Unwrap() error {
	return e.err
}

// CreateFromText records raw notification text as a source event, parses it
// and reconciles it against existing transactions. Identical text is only
// ever accepted once.
func (s *IngestionService) CreateFromText(ctx context.Context, in TextInput) (IngestResult, error) {
	if !in.SourceType.Valid() {
		return IngestResult{}, ErrInvalidSourceType
	}
	if strings.TrimSpace(in.RawText) == "" {
		return IngestResult{}, ErrEmptyContent
	}
	hash := contentHash([]byte(in.RawText))
	exists, err := s.sourceEvents.ExistsByHash(ctx, hash)
	if err != nil {
		return IngestResult{}, err
	}
	if exists {
		return IngestResult{}, ErrDuplicateContent
	}

	raw := in.RawText
	event := models.SourceEvent{
		SourceType:  in.SourceType,
		RawText:     &raw,
		ContentHash: hash,
		AccountID:   in.AccountID,
	}
	parsed := parser.Parse(raw)
	applyParsed(&event, parsed)
	if event.ParsedTransactionDatetime == nil {
		event.ParsedTransactionDatetime = in.TransactionDatetime
	}
	cardID, err := s.resolveCard(ctx, in.CardID, parsed.CardNumber, in.AccountID)
	if err != nil {
		return IngestResult{}, err
	}
	event.CardID = cardID
	event.ReceivedAt = s.receivedAt(event.ParsedTransactionDatetime)

	return s.ingest(ctx, event, in.ActorID)
}

// CreateFromFile stores an uploaded file and records it as an unparsed
// source event.
func (s *IngestionService) CreateFromFile(ctx context.Context, in FileInput) (IngestResult, error) {
	if !in.SourceType.Valid() {
		return IngestResult{}, ErrInvalidSourceType
	}
	if len(in.Data) == 0 {
		return IngestResult{}, ErrEmptyContent
	}
	hash := contentHash(in.Data)
	exists, err := s.sourceEvents.ExistsByHash(ctx, hash)
	if err != nil {
		return IngestResult{}, err
	}
	if exists {
		return IngestResult{}, ErrDuplicateContent
	}
	if in.CardID != nil {
		if _, err := s.resolveCard(ctx, in.CardID, nil, in.AccountID); err != nil {
			return IngestResult{}, err
		}
	}

	ref, err := s.files.Save(ctx, filestore.ObjectName(hash, in.Filename), in.Data)
	if err != nil {
		return IngestResult{}, fmt.Errorf("store upload: %w", err)
	}
	event := models.SourceEvent{
		SourceType:  in.SourceType,
		FilePath:    &ref,
		ContentHash: hash,
		ReceivedAt:  s.clock.Now().UTC(),
		AccountID:   in.AccountID,
		CardID:      in.CardID,
		ParseStatus: models.ParseStatusNew,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.sourceEvents.Create(ctx, tx, event)
		if err != nil {
			return err
		}
		event.ID = id
		return nil
	})
	if errors.Is(err, store.ErrDuplicateContentHash) {
		return IngestResult{}, ErrDuplicateContent
	}
	if err != nil {
		return IngestResult{}, err
	}
	result := IngestResult{SourceEvent: s.refresh(ctx, event), Outcome: OutcomeStored}
	s.announce(ctx, result)
	return result, nil
}

// Reprocess re-parses a stored event, drops every link it has and matches it
// again. A link to a transaction the event used to be primary for comes back
// as primary. When conversion or matching fails the links are dropped anyway
// and the event keeps the error in match_error.
func (s *IngestionService) Reprocess(ctx context.Context, sourceEventID int64, actorID string) (IngestResult, error) {
	event, err := s.sourceEvents.GetByID(ctx, sourceEventID)
	if errors.Is(err, store.ErrNotFound) {
		return IngestResult{}, ErrSourceEventNotFound
	}
	if err != nil {
		return IngestResult{}, err
	}

	if event.RawText != nil {
		previousDatetime := event.ParsedTransactionDatetime
		parsed := parser.Parse(*event.RawText)
		applyParsed(&event, parsed)
		if event.ParsedTransactionDatetime == nil {
			event.ParsedTransactionDatetime = previousDatetime
		}
		if event.CardID == nil {
			cardID, err := s.resolveCard(ctx, nil, parsed.CardNumber, event.AccountID)
			if err != nil {
				return IngestResult{}, err
			}
			event.CardID = cardID
		}
		if event.ParsedTransactionDatetime != nil {
			event.ReceivedAt = event.ParsedTransactionDatetime.UTC()
		}
	}
	event.MatchError = nil

	plan, matchable, err := s.planMatch(ctx, event)
	if err != nil {
		return s.reprocessWithMatchError(ctx, event, err)
	}

	var result IngestResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		restorePrimary, err := s.discardLinks(ctx, tx, sourceEventID)
		if err != nil {
			return err
		}
		if err := s.sourceEvents.UpdateParsed(ctx, tx, event); err != nil {
			return err
		}
		result = IngestResult{SourceEvent: event, Outcome: outcomeForStatus(event.ParseStatus)}
		if !matchable {
			return nil
		}
		matched, err := s.applyMatch(ctx, tx, event, plan, actorID, restorePrimary)
		if err != nil {
			return &matchStepError{err: err}
		}
		result.Outcome, result.TransactionID, result.CandidateIDs = matched.outcome, matched.transactionID, matched.candidateIDs
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return IngestResult{}, ErrSourceEventNotFound
	}
	var stepErr *matchStepError
	if errors.As(err, &stepErr) {
		return s.reprocessWithMatchError(ctx, event, stepErr.err)
	}
	if err != nil {
		return IngestResult{}, err
	}
	result.SourceEvent = s.refresh(ctx, result.SourceEvent)
	s.announce(ctx, result)
	return result, nil
}

// reprocessWithMatchError still drops the event's links and stores the new
// parse, recording why matching did not happen.
func (s *IngestionService) reprocessWithMatchError(ctx context.Context, event models.SourceEvent, cause error) (IngestResult, error) {
	message := cause.Error()
	event.MatchError = &message
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.discardLinks(ctx, tx, event.ID); err != nil {
			return err
		}
		return s.sourceEvents.UpdateParsed(ctx, tx, event)
	})
	if errors.Is(err, store.ErrNotFound) {
		return IngestResult{}, ErrSourceEventNotFound
	}
	if err != nil {
		return IngestResult{}, err
	}
	result := IngestResult{SourceEvent: s.refresh(ctx, event), Outcome: OutcomeDeferred}
	s.announce(ctx, result)
	return result, nil
}

// discardLinks locks the event and deletes its links. The returned set holds
// the transactions it was primary for.
func (s *IngestionService) discardLinks(ctx context.Context, tx *sqlx.Tx, sourceEventID int64) (map[int64]bool, error) {
	if _, err := s.sourceEvents.GetForUpdate(ctx, tx, sourceEventID); err != nil {
		return nil, err
	}
	previous, err := s.links.ListBySource(ctx, tx, sourceEventID)
	if err != nil {
		return nil, err
	}
	restorePrimary := make(map[int64]bool, len(previous))
	for _, link := range previous {
		if link.IsPrimary {
			restorePrimary[link.TransactionID] = true
		}
	}
	if _, err := s.links.DeleteBySource(ctx, tx, sourceEventID); err != nil {
		return nil, err
	}
	return restorePrimary, nil
}

func (s *IngestionService) GetSourceEvent(ctx context.Context, id int64) (models.SourceEvent, error) {
	event, err := s.sourceEvents.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.SourceEvent{}, ErrSourceEventNotFound
	}
	return event, err
}

func (s *IngestionService) ListSourceEvents(ctx context.Context, filter store.SourceEventFilter) ([]models.SourceEvent, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.sourceEvents.List(ctx, filter)
}

// GetSourceEventFile returns the stored bytes behind a file-based event.
func (s *IngestionService) GetSourceEventFile(ctx context.Context, id int64) ([]byte, models.SourceEvent, error) {
	event, err := s.GetSourceEvent(ctx, id)
	if err != nil {
		return nil, models.SourceEvent{}, err
	}
	if event.FilePath == nil {
		return nil, event, ErrNoFile
	}
	data, err := s.files.Open(ctx, *event.FilePath)
	if errors.Is(err, filestore.ErrNotFound) {
		return nil, event, ErrNoFile
	}
	if err != nil {
		return nil, event, err
	}
	return data, event, nil
}

// LinkSourceToTransaction adds a non-primary link chosen by a person.
func (s *IngestionService) LinkSourceToTransaction(ctx context.Context, sourceEventID, transactionID int64, actorID string) (models.TransactionSourceLink, error) {
	if _, err := s.GetSourceEvent(ctx, sourceEventID); err != nil {
		return models.TransactionSourceLink{}, err
	}
	if _, err := s.transactions.GetByID(ctx, transactionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.TransactionSourceLink{}, ErrTransactionNotFound
		}
		return models.TransactionSourceLink{}, err
	}
	link := models.TransactionSourceLink{
		TransactionID:   transactionID,
		SourceEventID:   sourceEventID,
		MatchConfidence: decimal.NewFromInt(1),
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.links.Create(ctx, tx, link); err != nil {
			return err
		}
		created, err := s.links.Get(ctx, tx, transactionID, sourceEventID)
		if err != nil {
			return err
		}
		link = created
		return s.audit.Log(ctx, tx, actorID, actionLinkSource, "transaction", idString(transactionID), linkAuditData(transactionID, sourceEventID))
	})
	if errors.Is(err, store.ErrDuplicateLink) {
		return models.TransactionSourceLink{}, ErrLinkExists
	}
	if err != nil {
		return models.TransactionSourceLink{}, err
	}
	return link, nil
}

func (s *IngestionService) UnlinkSourceFromTransaction(ctx context.Context, sourceEventID, transactionID int64, actorID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.links.Delete(ctx, tx, transactionID, sourceEventID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, actionUnlinkSource, "transaction", idString(transactionID), linkAuditData(transactionID, sourceEventID))
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrLinkNotFound
	}
	return err
}

// CreateTransactionAndLink builds a transaction from a source event's parsed
// fields and overrides, then links the event as its primary source. A failed
// currency conversion fails the call.
func (s *IngestionService) CreateTransactionAndLink(ctx context.Context, sourceEventID int64, overrides TransactionOverrides) (models.Transaction, models.TransactionSourceLink, error) {
	event, err := s.GetSourceEvent(ctx, sourceEventID)
	if err != nil {
		return models.Transaction{}, models.TransactionSourceLink{}, err
	}

	cardID := overrides.CardID
	if cardID == nil {
		cardID = event.CardID
	}
	if cardID == nil {
		return models.Transaction{}, models.TransactionSourceLink{}, ErrCardRequired
	}
	if overrides.CardID != nil {
		if _, err := s.resolveCard(ctx, overrides.CardID, nil, nil); err != nil {
			return models.Transaction{}, models.TransactionSourceLink{}, err
		}
	}
	amount := overrides.Amount
	if !amount.Valid {
		amount = event.ParsedAmount
	}
	if !amount.Valid {
		return models.Transaction{}, models.TransactionSourceLink{}, ErrAmountRequired
	}
	currency := deref(overrides.Currency)
	if currency == "" {
		currency = deref(event.ParsedCurrency)
	}
	if currency == "" {
		return models.Transaction{}, models.TransactionSourceLink{}, ErrCurrencyRequired
	}

	description := firstText(overrides.Description, event.ParsedDescription, event.RawText)
	if description == "" {
		description = "No description"
	}
	transactionDatetime := overrides.TransactionDatetime
	if transactionDatetime == nil {
		transactionDatetime = event.ParsedTransactionDatetime
	}
	postingDatetime := overrides.PostingDatetime
	if postingDatetime == nil {
		postingDatetime = event.ParsedPostingDatetime
	}
	location := overrides.Location
	if !hasText(location) {
		location = event.ParsedLocation
	}
	kind := models.KindOther
	switch {
	case overrides.Kind != nil:
		kind = *overrides.Kind
	case event.ParsedKind != nil:
		kind = *event.ParsedKind
	}

	t := models.Transaction{
		CardID:              *cardID,
		TransactionDatetime: transactionDatetime,
		PostingDatetime:     postingDatetime,
		Description:         description,
		Location:            location,
		Kind:                kind,
	}
	if !overrides.OriginalAmount.Valid && !overrides.FXRate.Valid {
		resolution, err := s.resolveForCard(ctx, *cardID, amount.Decimal, currency)
		if err != nil {
			return models.Transaction{}, models.TransactionSourceLink{}, err
		}
		t.Amount = resolution.Amount
		t.Currency = resolution.Currency
		t.OriginalAmount = resolution.OriginalAmount
		t.OriginalCurrency = resolution.OriginalCurrency
		t.FXRate = resolution.Rate
	} else {
		t.Amount = amount.Decimal
		t.Currency = currency
		t.OriginalAmount = overrides.OriginalAmount
		t.OriginalCurrency = overrides.OriginalCurrency
		t.FXRate = overrides.FXRate
		t.FXFee = overrides.FXFee
	}
	t.MerchantNorm = optionalString(matching.NormalizeMerchant(description))
	t.Fingerprint = fingerprintOf(t)

	link := models.TransactionSourceLink{
		SourceEventID:   sourceEventID,
		MatchConfidence: decimal.NewFromInt(1),
		IsPrimary:       true,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.transactions.Create(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		link.TransactionID = id
		if err := s.links.Create(ctx, tx, link); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, overrides.ActorID, actionCreateTransactionAndLink, "transaction", idString(id), linkAuditData(id, sourceEventID))
	})
	if err != nil {
		return models.Transaction{}, models.TransactionSourceLink{}, err
	}
	if stored, err := s.transactions.GetByID(ctx, t.ID); err == nil {
		t = stored
	}
	log := logger.FromContext(ctx)
	log.Info().
		Int64("transaction_id", t.ID).
		Int64("source_event_id", sourceEventID).
		Msg("transaction created from source event")
	return t, link, nil
}

// DeleteSourceEvent removes an event and every link it owns.
func (s *IngestionService) DeleteSourceEvent(ctx context.Context, id int64, actorID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.links.DeleteBySource(ctx, tx, id); err != nil {
			return err
		}
		if err := s.sourceEvents.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, actionDeleteSourceEvent, "source_event", idString(id), "{}")
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrSourceEventNotFound
	}
	return err
}

// ListReviewItems returns ambiguous matches waiting for a person, newest
// first.
func (s *IngestionService) ListReviewItems(ctx context.Context, limit, offset int) ([]models.ReviewItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.audit.ListByAction(ctx, actionAmbiguousMatch, limit, offset)
}

func (s *IngestionService) ingest(ctx context.Context, event models.SourceEvent, actorID string) (IngestResult, error) {
	plan, matchable, err := s.planMatch(ctx, event)
	if err != nil {
		return s.persistWithMatchError(ctx, event, err)
	}

	var result IngestResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.sourceEvents.Create(ctx, tx, event)
		if err != nil {
			return err
		}
		event.ID = id
		result = IngestResult{SourceEvent: event, Outcome: outcomeForStatus(event.ParseStatus)}
		if !matchable {
			return nil
		}
		matched, err := s.applyMatch(ctx, tx, event, plan, actorID, nil)
		if err != nil {
			return &matchStepError{err: err}
		}
		result.Outcome, result.TransactionID, result.CandidateIDs = matched.outcome, matched.transactionID, matched.candidateIDs
		return nil
	})
	if errors.Is(err, store.ErrDuplicateContentHash) {
		return IngestResult{}, ErrDuplicateContent
	}
	var stepErr *matchStepError
	if errors.As(err, &stepErr) {
		return s.persistWithMatchError(ctx, event, stepErr.err)
	}
	if err != nil {
		return IngestResult{}, err
	}
	result.SourceEvent = s.refresh(ctx, result.SourceEvent)
	s.announce(ctx, result)
	return result, nil
}

// persistWithMatchError records the event alone, carrying the reason it could
// not be matched.
func (s *IngestionService) persistWithMatchError(ctx context.Context, event models.SourceEvent, cause error) (IngestResult, error) {
	message := cause.Error()
	event.MatchError = &message
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.sourceEvents.Create(ctx, tx, event)
		if err != nil {
			return err
		}
		event.ID = id
		return nil
	})
	if errors.Is(err, store.ErrDuplicateContentHash) {
		return IngestResult{}, ErrDuplicateContent
	}
	if err != nil {
		return IngestResult{}, err
	}
	result := IngestResult{SourceEvent: s.refresh(ctx, event), Outcome: OutcomeDeferred}
	s.announce(ctx, result)
	return result, nil
}

func (s *IngestionService) planMatch(ctx context.Context, event models.SourceEvent) (matchPlan, bool, error) {
	if !event.ParsedAmount.Valid || deref(event.ParsedCurrency) == "" || event.CardID == nil {
		return matchPlan{}, false, nil
	}
	resolution, err := s.resolveForCard(ctx, *event.CardID, event.ParsedAmount.Decimal, *event.ParsedCurrency)
	if err != nil {
		return matchPlan{}, false, err
	}
	return matchPlan{
		cardID:       *event.CardID,
		resolution:   resolution,
		merchantNorm: matching.NormalizeMerchant(deref(event.ParsedDescription)),
	}, true, nil
}

// resolveForCard converts into the currency of the card's account. A card
// without a resolvable account keeps the source amount.
func (s *IngestionService) resolveForCard(ctx context.Context, cardID int64, amount decimal.Decimal, currency string) (fx.Resolution, error) {
	account, err := s.accounts.GetByCard(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) {
		return fx.Passthrough(amount, currency), nil
	}
	if err != nil {
		return fx.Resolution{}, err
	}
	resolution, err := s.currency.Resolve(ctx, amount, currency, account.AccountCurrency)
	if err != nil {
		return fx.Resolution{}, fmt.Errorf("convert %s to %s: %w", currency, account.AccountCurrency, err)
	}
	return resolution, nil
}

// applyMatch links event to its candidate. A single match is non-primary
// unless restorePrimary marks it as a transaction the event was primary for
// before a reprocess.
func (s *IngestionService) applyMatch(ctx context.Context, tx *sqlx.Tx, event models.SourceEvent, plan matchPlan, actorID string, restorePrimary map[int64]bool) (matchResult, error) {
	finder := matching.CandidateFinderFunc(func(ctx context.Context, filter matching.CandidateFilter) ([]models.Transaction, error) {
		return s.transactions.FindCandidates(ctx, tx, filter)
	})
	candidates, err := matching.FindCandidates(ctx, finder, matching.Query{
		CardID:              plan.cardID,
		Amount:              plan.resolution.Amount,
		Currency:            plan.resolution.Currency,
		PostingDatetime:     event.ParsedPostingDatetime,
		TransactionDatetime: event.ParsedTransactionDatetime,
		MerchantNorm:        plan.merchantNorm,
	})
	if err != nil {
		return matchResult{}, fmt.Errorf("find candidates: %w", err)
	}

	switch matching.Classify(candidates) {
	case matching.OutcomeNone:
		t := newTransactionFromEvent(event, plan)
		id, err := s.transactions.Create(ctx, tx, t)
		if err != nil {
			return matchResult{}, fmt.Errorf("create transaction: %w", err)
		}
		err = s.links.Create(ctx, tx, models.TransactionSourceLink{
			TransactionID:   id,
			SourceEventID:   event.ID,
			MatchConfidence: decimal.NewFromInt(1),
			IsPrimary:       true,
		})
		if err != nil {
			return matchResult{}, fmt.Errorf("link new transaction: %w", err)
		}
		return matchResult{outcome: OutcomeCreated, transactionID: &id}, nil

	case matching.OutcomeSingle:
		found := candidates[0]
		err := s.links.Create(ctx, tx, models.TransactionSourceLink{
			TransactionID:   found.ID,
			SourceEventID:   event.ID,
			MatchConfidence: decimal.NewFromInt(1),
			IsPrimary:       restorePrimary[found.ID],
		})
		if err != nil {
			return matchResult{}, fmt.Errorf("link matched transaction: %w", err)
		}
		if enriched, changed := canonical.Enrich(found, event); changed {
			if err := s.transactions.Update(ctx, tx, enriched); err != nil {
				return matchResult{}, fmt.Errorf("enrich transaction: %w", err)
			}
		}
		id := found.ID
		return matchResult{outcome: OutcomeLinked, transactionID: &id}, nil

	default:
		ids := candidateIDs(candidates)
		data, err := json.Marshal(map[string]any{
			"candidate_ids": ids,
			"card_id":       plan.cardID,
			"amount":        money.Format(plan.resolution.Amount),
			"currency":      plan.resolution.Currency,
		})
		if err != nil {
			return matchResult{}, err
		}
		if err := s.audit.Log(ctx, tx, actorID, actionAmbiguousMatch, "source_event", idString(event.ID), string(data)); err != nil {
			return matchResult{}, fmt.Errorf("record ambiguous match: %w", err)
		}
		return matchResult{outcome: OutcomeAmbiguous, candidateIDs: ids}, nil
	}
}

func newTransactionFromEvent(event models.SourceEvent, plan matchPlan) models.Transaction {
	description := deref(event.ParsedDescription)
	if description == "" {
		description = deref(event.RawText)
	}
	kind := models.KindOther
	if event.ParsedKind != nil {
		kind = *event.ParsedKind
	}
	t := models.Transaction{
		CardID:              plan.cardID,
		Amount:              plan.resolution.Amount,
		Currency:            plan.resolution.Currency,
		TransactionDatetime: event.ParsedTransactionDatetime,
		PostingDatetime:     event.ParsedPostingDatetime,
		Description:         description,
		Location:            event.ParsedLocation,
		Kind:                kind,
		OriginalAmount:      plan.resolution.OriginalAmount,
		OriginalCurrency:    plan.resolution.OriginalCurrency,
		FXRate:              plan.resolution.Rate,
		MerchantNorm:        optionalString(plan.merchantNorm),
	}
	t.Fingerprint = fingerprintOf(t)
	return t
}

// resolveCard checks an explicit card, or finds one by the parsed suffix. An
// unknown suffix is not an error; the event is simply left without a card.
func (s *IngestionService) resolveCard(ctx context.Context, explicit *int64, suffix *string, accountID *int64) (*int64, error) {
	if explicit != nil {
		if _, err := s.cards.GetByID(ctx, *explicit); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrCardNotFound
			}
			return nil, err
		}
		return explicit, nil
	}
	if suffix == nil {
		return nil, nil
	}
	card, err := s.cards.FindByLastFour(ctx, *suffix, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card.ID, nil
}

func (s *IngestionService) receivedAt(transactionDatetime *time.Time) time.Time {
	if transactionDatetime != nil {
		return transactionDatetime.UTC()
	}
	return s.clock.Now().UTC()
}

// refresh re-reads event so database defaults are visible to callers. The
// in-memory copy is kept if the read fails.
func (s *IngestionService) refresh(ctx context.Context, event models.SourceEvent) models.SourceEvent {
	stored, err := s.sourceEvents.GetByID(ctx, event.ID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Debug().Err(err).Int64("source_event_id", event.ID).Msg("refresh source event failed")
		return event
	}
	return stored
}

func (s *IngestionService) announce(ctx context.Context, result IngestResult) {
	log := logger.FromContext(ctx)
	entry := log.Info()
	eventType := websocket.EventIngested
	if result.Outcome == OutcomeAmbiguous {
		entry = log.Warn()
		eventType = websocket.EventAmbiguousMatch
	}
	if result.Outcome == OutcomeDeferred {
		entry = log.Warn().Str("match_error", deref(result.SourceEvent.MatchError))
	}
	entry = entry.
		Int64("source_event_id", result.SourceEvent.ID).
		Str("content_hash", shortHash(result.SourceEvent.ContentHash)).
		Str("outcome", string(result.Outcome))
	if result.TransactionID != nil {
		entry = entry.Int64("transaction_id", *result.TransactionID)
	}
	if len(result.CandidateIDs) > 0 {
		entry = entry.Ints64("candidate_ids", result.CandidateIDs)
	}
	entry.Msg("source event ingested")

	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocket.ReviewEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		SourceEventID: result.SourceEvent.ID,
		TransactionID: result.TransactionID,
		CandidateIDs:  result.CandidateIDs,
		Outcome:       string(result.Outcome),
		OccurredAt:    s.clock.Now().UTC(),
	})
}

func outcomeForStatus(status models.ParseStatus) Outcome {
	switch status {
	case models.ParseStatusSkipped:
		return OutcomeSkipped
	case models.ParseStatusFailed:
		return OutcomeFailed
	case models.ParseStatusNew:
		return OutcomeStored
	default:
		return OutcomeUnmatched
	}
}

func firstText(values ...*string) string {
	for _, value := range values {
		if hasText(value) {
			return *value
		}
	}
	return ""
}

func linkAuditData(transactionID, sourceEventID int64) string {
	data, _ := json.Marshal(map[string]int64{
		"transaction_id":  transactionID,
		"source_event_id": sourceEventID,
	})
	return string(data)
}
