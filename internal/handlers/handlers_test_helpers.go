package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"spendy/internal/auth"
	"spendy/internal/config"
	"spendy/internal/db"
	"spendy/internal/models"
	"spendy/internal/services"
	"spendy/internal/store"
	"spendy/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubIngestion struct {
	createFromTextFn func(ctx context.Context, in services.TextInput) (services.IngestResult, error)
	createFromFileFn func(ctx context.Context, in services.FileInput) (services.IngestResult, error)
	reprocessFn      func(ctx context.Context, id int64, actorID string) (services.IngestResult, error)
	getFn            func(ctx context.Context, id int64) (models.SourceEvent, error)
	listFn           func(ctx context.Context, filter store.SourceEventFilter) ([]models.SourceEvent, int, error)
	fileFn           func(ctx context.Context, id int64) ([]byte, models.SourceEvent, error)
	linkFn           func(ctx context.Context, sourceEventID, transactionID int64, actorID string) (models.TransactionSourceLink, error)
	unlinkFn         func(ctx context.Context, sourceEventID, transactionID int64, actorID string) error
	createAndLinkFn  func(ctx context.Context, id int64, overrides services.TransactionOverrides) (models.Transaction, models.TransactionSourceLink, error)
	deleteFn         func(ctx context.Context, id int64, actorID string) error
	reviewFn         func(ctx context.Context, limit, offset int) ([]models.ReviewItem, error)
}

func (s stubIngestion) CreateFromText(ctx context.Context, in services.TextInput) (services.IngestResult, error) {
	if s.createFromTextFn == nil {
		return services.IngestResult{}, nil
	}
	return s.createFromTextFn(ctx, in)
}

func (s stubIngestion) CreateFromFile(ctx context.Context, in services.FileInput) (services.IngestResult, error) {
	if s.createFromFileFn == nil {
		return services.IngestResult{}, nil
	}
	return s.createFromFileFn(ctx, in)
}

func (s stubIngestion) Reprocess(ctx context.Context, id int64, actorID string) (services.IngestResult, error) {
	if s.reprocessFn == nil {
		return services.IngestResult{}, nil
	}
	return s.reprocessFn(ctx, id, actorID)
}

func (s stubIngestion) GetSourceEvent(ctx context.Context, id int64) (models.SourceEvent, error) {
	if s.getFn == nil {
		return models.SourceEvent{ID: id}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubIngestion) ListSourceEvents(ctx context.Context, filter store.SourceEventFilter) ([]models.SourceEvent, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubIngestion) GetSourceEventFile(ctx context.Context, id int64) ([]byte, models.SourceEvent, error) {
	if s.fileFn == nil {
		return nil, models.SourceEvent{}, services.ErrNoFile
	}
	return s.fileFn(ctx, id)
}

func (s stubIngestion) LinkSourceToTransaction(ctx context.Context, sourceEventID, transactionID int64, actorID string) (models.TransactionSourceLink, error) {
	if s.linkFn == nil {
		return models.TransactionSourceLink{TransactionID: transactionID, SourceEventID: sourceEventID}, nil
	}
	return s.linkFn(ctx, sourceEventID, transactionID, actorID)
}

func (s stubIngestion) UnlinkSourceFromTransaction(ctx context.Context, sourceEventID, transactionID int64, actorID string) error {
	if s.unlinkFn == nil {
		return nil
	}
	return s.unlinkFn(ctx, sourceEventID, transactionID, actorID)
}

func (s stubIngestion) CreateTransactionAndLink(ctx context.Context, id int64, overrides services.TransactionOverrides) (models.Transaction, models.TransactionSourceLink, error) {
	if s.createAndLinkFn == nil {
		return models.Transaction{}, models.TransactionSourceLink{}, nil
	}
	return s.createAndLinkFn(ctx, id, overrides)
}

func (s stubIngestion) DeleteSourceEvent(ctx context.Context, id int64, actorID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id, actorID)
}

func (s stubIngestion) ListReviewItems(ctx context.Context, limit, offset int) ([]models.ReviewItem, error) {
	if s.reviewFn == nil {
		return nil, nil
	}
	return s.reviewFn(ctx, limit, offset)
}

type stubTransactions struct {
	listFn         func(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, int, error)
	createFn       func(ctx context.Context, in services.TransactionOverrides) (models.Transaction, error)
	updateFn       func(ctx context.Context, id int64, patch services.TransactionOverrides) (models.Transaction, error)
	getFn          func(ctx context.Context, id int64) (models.Transaction, error)
	sourcesFn      func(ctx context.Context, id int64) ([]models.LinkedSource, error)
	setPrimaryFn   func(ctx context.Context, transactionID, sourceEventID int64, actorID string) error
	canonicalizeFn func(ctx context.Context, id int64, actorID string) (models.Transaction, error)
	deleteFn       func(ctx context.Context, id int64, actorID string) error
}

func (s stubTransactions) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubTransactions) CreateTransaction(ctx context.Context, in services.TransactionOverrides) (models.Transaction, error) {
	if s.createFn == nil {
		return models.Transaction{ID: 1}, nil
	}
	return s.createFn(ctx, in)
}

func (s stubTransactions) UpdateTransaction(ctx context.Context, id int64, patch services.TransactionOverrides) (models.Transaction, error) {
	if s.updateFn == nil {
		return models.Transaction{ID: id}, nil
	}
	return s.updateFn(ctx, id, patch)
}

func (s stubTransactions) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	if s.getFn == nil {
		return models.Transaction{ID: id}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubTransactions) GetTransactionSources(ctx context.Context, id int64) ([]models.LinkedSource, error) {
	if s.sourcesFn == nil {
		return nil, nil
	}
	return s.sourcesFn(ctx, id)
}

func (s stubTransactions) SetPrimarySource(ctx context.Context, transactionID, sourceEventID int64, actorID string) error {
	if s.setPrimaryFn == nil {
		return nil
	}
	return s.setPrimaryFn(ctx, transactionID, sourceEventID, actorID)
}

func (s stubTransactions) Canonicalize(ctx context.Context, id int64, actorID string) (models.Transaction, error) {
	if s.canonicalizeFn == nil {
		return models.Transaction{ID: id}, nil
	}
	return s.canonicalizeFn(ctx, id, actorID)
}

func (s stubTransactions) DeleteTransaction(ctx context.Context, id int64, actorID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id, actorID)
}

type stubAccountStore struct {
	createFn  func(ctx context.Context, tx store.Getter, account models.Account) (int64, error)
	getByIDFn func(ctx context.Context, accountID int64) (models.Account, error)
	listFn    func(ctx context.Context) ([]models.Account, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Getter, account models.Account) (int64, error) {
	if s.createFn == nil {
		return 1, nil
	}
	return s.createFn(ctx, tx, account)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID int64) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{ID: accountID}, nil
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) List(ctx context.Context) ([]models.Account, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubCardStore struct {
	createFn  func(ctx context.Context, tx store.Getter, card models.Card) (int64, error)
	getByIDFn func(ctx context.Context, cardID int64) (models.Card, error)
	listFn    func(ctx context.Context, accountID *int64) ([]models.Card, error)
}

func (s stubCardStore) Create(ctx context.Context, tx store.Getter, card models.Card) (int64, error) {
	if s.createFn == nil {
		return 1, nil
	}
	return s.createFn(ctx, tx, card)
}

func (s stubCardStore) GetByID(ctx context.Context, cardID int64) (models.Card, error) {
	if s.getByIDFn == nil {
		return models.Card{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, cardID)
}

func (s stubCardStore) List(ctx context.Context, accountID *int64) ([]models.Card, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, accountID)
}

type stubRates struct {
	rateFn func(ctx context.Context, from, to string) (decimal.Decimal, error)
}

func (s stubRates) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if s.rateFn == nil {
		return decimal.NewFromInt(1), nil
	}
	return s.rateFn(ctx, from, to)
}

type testDeps struct {
	txRunner     db.TxRunner
	ingestion    stubIngestion
	transactions stubTransactions
	accounts     stubAccountStore
	cards        stubCardStore
	rates        stubRates
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		AllowedOrigins: "*",
	}
	txRunner := deps.txRunner
	if txRunner == nil {
		txRunner = fakeTxRunner{}
	}
	return New(txRunner, cfg, zerolog.Nop(), deps.ingestion, deps.transactions, deps.accounts, deps.cards, deps.rates, websocket.NewHub())
}

func testToken(t *testing.T, userID string, scopes ...string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, time.Minute, scopes...)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// serveRoute sends a request through the full router as userID.
func serveRoute(t *testing.T, handler *Handler, method, path string, body []byte, userID string, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+testToken(t, userID, scopes...))
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func int64Ptr(value int64) *int64 {
	return &value
}

func stringPtr(value string) *string {
	return &value
}
