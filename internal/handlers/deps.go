package handlers

import (
	"context"

	"spendy/internal/models"
	"spendy/internal/services"
	"spendy/internal/store"

	"github.com/shopspring/decimal"
)

type IngestionService interface {
	CreateFromText(ctx context.Context, in services.TextInput) (services.IngestResult, error)
	CreateFromFile(ctx context.Context, in services.FileInput) (services.IngestResult, error)
	Reprocess(ctx context.Context, sourceEventID int64, actorID string) (services.IngestResult, error)
	GetSourceEvent(ctx context.Context, id int64) (models.SourceEvent, error)
	ListSourceEvents(ctx context.Context, filter store.SourceEventFilter) ([]models.SourceEvent, int, error)
	GetSourceEventFile(ctx context.Context, id int64) ([]byte, models.SourceEvent, error)
	LinkSourceToTransaction(ctx context.Context, sourceEventID, transactionID int64, actorID string) (models.TransactionSourceLink, error)
	UnlinkSourceFromTransaction(ctx context.Context, sourceEventID, transactionID int64, actorID string) error
	CreateTransactionAndLink(ctx context.Context, sourceEventID int64, overrides services.TransactionOverrides) (models.Transaction, models.TransactionSourceLink, error)
	DeleteSourceEvent(ctx context.Context, id int64, actorID string) error
	ListReviewItems(ctx context.Context, limit, offset int) ([]models.ReviewItem, error)
}

type TransactionService interface {
	ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, int, error)
	CreateTransaction(ctx context.Context, in services.TransactionOverrides) (models.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, patch services.TransactionOverrides) (models.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (models.Transaction, error)
	GetTransactionSources(ctx context.Context, id int64) ([]models.LinkedSource, error)
	SetPrimarySource(ctx context.Context, transactionID, sourceEventID int64, actorID string) error
	Canonicalize(ctx context.Context, id int64, actorID string) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64, actorID string) error
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Getter, account models.Account) (int64, error)
	GetByID(ctx context.Context, accountID int64) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
}

type CardStore interface {
	Create(ctx context.Context, tx store.Getter, card models.Card) (int64, error)
	GetByID(ctx context.Context, cardID int64) (models.Card, error)
	List(ctx context.Context, accountID *int64) ([]models.Card, error)
}

type RateLookup interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
