package services

import (
	"context"

	"spendy/internal/filestore"
	"spendy/internal/fx"
	"spendy/internal/matching"
	"spendy/internal/models"
	"spendy/internal/store"
	"spendy/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubSourceEventStore struct {
	createFn       func(ctx context.Context, tx store.Getter, event models.SourceEvent) (int64, error)
	getByIDFn      func(ctx context.Context, id int64) (models.SourceEvent, error)
	getForUpdateFn func(ctx context.Context, tx store.Getter, id int64) (models.SourceEvent, error)
	existsFn       func(ctx context.Context, contentHash string) (bool, error)
	updateParsedFn func(ctx context.Context, tx store.Execer, event models.SourceEvent) error
	listFn         func(ctx context.Context, filter store.SourceEventFilter) ([]models.SourceEvent, int, error)
	deleteFn       func(ctx context.Context, tx store.Execer, id int64) error
}

func (s stubSourceEventStore) Create(ctx context.Context, tx store.Getter, event models.SourceEvent) (int64, error) {
	if s.createFn == nil {
		return 1, nil
	}
	return s.createFn(ctx, tx, event)
}

func (s stubSourceEventStore) GetByID(ctx context.Context, id int64) (models.SourceEvent, error) {
	if s.getByIDFn == nil {
		return models.SourceEvent{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, id)
}

func (s stubSourceEventStore) GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.SourceEvent, error) {
	if s.getForUpdateFn == nil {
		return models.SourceEvent{ID: id}, nil
	}
	return s.getForUpdateFn(ctx, tx, id)
}

func (s stubSourceEventStore) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	if s.existsFn == nil {
		return false, nil
	}
	return s.existsFn(ctx, contentHash)
}

func (s stubSourceEventStore) UpdateParsed(ctx context.Context, tx store.Execer, event models.SourceEvent) error {
	if s.updateParsedFn == nil {
		return nil
	}
	return s.updateParsedFn(ctx, tx, event)
}

func (s stubSourceEventStore) List(ctx context.Context, filter store.SourceEventFilter) ([]models.SourceEvent, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubSourceEventStore) Delete(ctx context.Context, tx store.Execer, id int64) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, id)
}

type stubTransactionStore struct {
	createFn       func(ctx context.Context, tx store.Getter, t models.Transaction) (int64, error)
	getByIDFn      func(ctx context.Context, id int64) (models.Transaction, error)
	getForUpdateFn func(ctx context.Context, tx store.Getter, id int64) (models.Transaction, error)
	updateFn       func(ctx context.Context, tx store.Execer, t models.Transaction) error
	findFn         func(ctx context.Context, q store.Selecter, filter matching.CandidateFilter) ([]models.Transaction, error)
	deleteFn       func(ctx context.Context, tx store.Execer, id int64) error
	listFn         func(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, int, error)
}

func (s stubTransactionStore) Create(ctx context.Context, tx store.Getter, t models.Transaction) (int64, error) {
	if s.createFn == nil {
		return 100, nil
	}
	return s.createFn(ctx, tx, t)
}

func (s stubTransactionStore) GetByID(ctx context.Context, id int64) (models.Transaction, error) {
	if s.getByIDFn == nil {
		return models.Transaction{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, id)
}

func (s stubTransactionStore) GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Transaction, error) {
	return s.getForUpdateFn(ctx, tx, id)
}

func (s stubTransactionStore) Update(ctx context.Context, tx store.Execer, t models.Transaction) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, tx, t)
}

func (s stubTransactionStore) FindCandidates(ctx context.Context, q store.Selecter, filter matching.CandidateFilter) ([]models.Transaction, error) {
	if s.findFn == nil {
		return nil, nil
	}
	return s.findFn(ctx, q, filter)
}

func (s stubTransactionStore) Delete(ctx context.Context, tx store.Execer, id int64) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, id)
}

func (s stubTransactionStore) List(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

type stubLinkStore struct {
	createFn              func(ctx context.Context, tx store.Execer, link models.TransactionSourceLink) error
	getFn                 func(ctx context.Context, q store.Getter, transactionID, sourceEventID int64) (models.TransactionSourceLink, error)
	deleteFn              func(ctx context.Context, tx store.Execer, transactionID, sourceEventID int64) error
	deleteBySourceFn      func(ctx context.Context, tx store.Execer, sourceEventID int64) (int64, error)
	deleteByTransactionFn func(ctx context.Context, tx store.Execer, transactionID int64) (int64, error)
	setPrimaryFn          func(ctx context.Context, tx store.Execer, transactionID, sourceEventID int64) error
	listByTransactionFn   func(ctx context.Context, q store.Selecter, transactionID int64) ([]models.LinkedSource, error)
	listBySourceFn        func(ctx context.Context, q store.Selecter, sourceEventID int64) ([]models.TransactionSourceLink, error)
	sourcesFn             func(ctx context.Context, transactionID int64) ([]models.LinkedSource, error)
}

func (s stubLinkStore) Create(ctx context.Context, tx store.Execer, link models.TransactionSourceLink) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, link)
}

func (s stubLinkStore) Get(ctx context.Context, q store.Getter, transactionID, sourceEventID int64) (models.TransactionSourceLink, error) {
	if s.getFn == nil {
		return models.TransactionSourceLink{TransactionID: transactionID, SourceEventID: sourceEventID}, nil
	}
	return s.getFn(ctx, q, transactionID, sourceEventID)
}

func (s stubLinkStore) Delete(ctx context.Context, tx store.Execer, transactionID, sourceEventID int64) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, transactionID, sourceEventID)
}

func (s stubLinkStore) DeleteBySource(ctx context.Context, tx store.Execer, sourceEventID int64) (int64, error) {
	if s.deleteBySourceFn == nil {
		return 0, nil
	}
	return s.deleteBySourceFn(ctx, tx, sourceEventID)
}

func (s stubLinkStore) DeleteByTransaction(ctx context.Context, tx store.Execer, transactionID int64) (int64, error) {
	if s.deleteByTransactionFn == nil {
		return 0, nil
	}
	return s.deleteByTransactionFn(ctx, tx, transactionID)
}

func (s stubLinkStore) SetPrimary(ctx context.Context, tx store.Execer, transactionID, sourceEventID int64) error {
	if s.setPrimaryFn == nil {
		return nil
	}
	return s.setPrimaryFn(ctx, tx, transactionID, sourceEventID)
}

func (s stubLinkStore) ListByTransaction(ctx context.Context, q store.Selecter, transactionID int64) ([]models.LinkedSource, error) {
	if s.listByTransactionFn == nil {
		return nil, nil
	}
	return s.listByTransactionFn(ctx, q, transactionID)
}

func (s stubLinkStore) ListBySource(ctx context.Context, q store.Selecter, sourceEventID int64) ([]models.TransactionSourceLink, error) {
	if s.listBySourceFn == nil {
		return nil, nil
	}
	return s.listBySourceFn(ctx, q, sourceEventID)
}

func (s stubLinkStore) Sources(ctx context.Context, transactionID int64) ([]models.LinkedSource, error) {
	if s.sourcesFn == nil {
		return nil, nil
	}
	return s.sourcesFn(ctx, transactionID)
}

type stubCardStore struct {
	getByIDFn        func(ctx context.Context, cardID int64) (models.Card, error)
	findByLastFourFn func(ctx context.Context, lastFour string, accountID *int64) (models.Card, error)
}

func (s stubCardStore) GetByID(ctx context.Context, cardID int64) (models.Card, error) {
	if s.getByIDFn == nil {
		return models.Card{ID: cardID}, nil
	}
	return s.getByIDFn(ctx, cardID)
}

func (s stubCardStore) FindByLastFour(ctx context.Context, lastFour string, accountID *int64) (models.Card, error) {
	if s.findByLastFourFn == nil {
		return models.Card{}, store.ErrNotFound
	}
	return s.findByLastFourFn(ctx, lastFour, accountID)
}

type stubAccountStore struct {
	getByCardFn func(ctx context.Context, cardID int64) (models.Account, error)
}

func (s stubAccountStore) GetByCard(ctx context.Context, cardID int64) (models.Account, error) {
	if s.getByCardFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getByCardFn(ctx, cardID)
}

type auditCall struct {
	actorID    string
	action     string
	entityType string
	entityID   string
	data       string
}

type stubAuditStore struct {
	calls *[]auditCall
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	// listFn serves ListByAction.
	listFn func(ctx context.Context, action string, limit, offset int) ([]models.ReviewItem, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.calls != nil {
		*s.calls = append(*s.calls, auditCall{actorID: actorID, action: action, entityType: entityType, entityID: entityID, data: data})
	}
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) ListByAction(ctx context.Context, action string, limit, offset int) ([]models.ReviewItem, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, action, limit, offset)
}

type stubResolver struct {
	resolveFn func(ctx context.Context, amount decimal.Decimal, sourceCurrency, accountCurrency string) (fx.Resolution, error)
}

func (s stubResolver) Resolve(ctx context.Context, amount decimal.Decimal, sourceCurrency, accountCurrency string) (fx.Resolution, error) {
	if s.resolveFn == nil {
		return fx.Passthrough(amount, sourceCurrency), nil
	}
	return s.resolveFn(ctx, amount, sourceCurrency, accountCurrency)
}

type stubFileStore struct {
	saved map[string][]byte
	err   error
}

func (s *stubFileStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return "mem://" + name, nil
}

func (s *stubFileStore) Open(_ context.Context, ref string) ([]byte, error) {
	for name, data := range s.saved {
		if "mem://"+name == ref {
			return data, nil
		}
	}
	return nil, filestore.ErrNotFound
}

type stubHub struct {
	events []websocket.ReviewEvent
}

func (s *stubHub) Broadcast(event websocket.ReviewEvent) {
	s.events = append(s.events, event)
}

func int64Ptr(value int64) *int64 {
	return &value
}

func stringPtr(value string) *string {
	return &value
}
