package services

import (
	"context"

	"spendy/internal/fx"
	"spendy/internal/matching"
	"spendy/internal/models"
	"spendy/internal/store"
	"spendy/internal/websocket"

	"github.com/shopspring/decimal"
)

type SourceEventStore interface {
	Create(ctx context.Context, tx store.Getter, event models.SourceEvent) (int64, error)
	GetByID(ctx context.Context, id int64) (models.SourceEvent, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.SourceEvent, error)
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
	UpdateParsed(ctx context.Context, tx store.Execer, event models.SourceEvent) error
	List(ctx context.Context, filter store.SourceEventFilter) ([]models.SourceEvent, int, error)
	Delete(ctx context.Context, tx store.Execer, id int64) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Getter, t models.Transaction) (int64, error)
	GetByID(ctx context.Context, id int64) (models.Transaction, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Transaction, error)
	Update(ctx context.Context, tx store.Execer, t models.Transaction) error
	FindCandidates(ctx context.Context, q store.Selecter, filter matching.CandidateFilter) ([]models.Transaction, error)
	Delete(ctx context.Context, tx store.Execer, id int64) error
	List(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, int, error)
}

type LinkStore interface {
	Create(ctx context.Context, tx store.Execer, link models.TransactionSourceLink) error
	Get(ctx context.Context, q store.Getter, transactionID, sourceEventID int64) (models.TransactionSourceLink, error)
	Delete(ctx context.Context, tx store.Execer, transactionID, sourceEventID int64) error
	DeleteBySource(ctx context.Context, tx store.Execer, sourceEventID int64) (int64, error)
	DeleteByTransaction(ctx context.Context, tx store.Execer, transactionID int64) (int64, error)
	SetPrimary(ctx context.Context, tx store.Execer, transactionID, sourceEventID int64) error
	ListByTransaction(ctx context.Context, q store.Selecter, transactionID int64) ([]models.LinkedSource, error)
	ListBySource(ctx context.Context, q store.Selecter, sourceEventID int64) ([]models.TransactionSourceLink, error)
	Sources(ctx context.Context, transactionID int64) ([]models.LinkedSource, error)
}

type CardStore interface {
	GetByID(ctx context.Context, cardID int64) (models.Card, error)
	FindByLastFour(ctx context.Context, lastFour string, accountID *int64) (models.Card, error)
}

type AccountStore interface {
	GetByCard(ctx context.Context, cardID int64) (models.Account, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	ListByAction(ctx context.Context, action string, limit, offset int) ([]models.ReviewItem, error)
}

type CurrencyResolver interface {
	Resolve(ctx context.Context, amount decimal.Decimal, sourceCurrency, accountCurrency string) (fx.Resolution, error)
}

type ReviewHub interface {
	Broadcast(event websocket.ReviewEvent)
}
