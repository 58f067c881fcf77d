// Package app wires stores, rate lookups and services for the binaries.
package app

import (
	"context"
	"fmt"

	"spendy/internal/clock"
	"spendy/internal/config"
	"spendy/internal/db"
	"spendy/internal/filestore"
	"spendy/internal/fx"
	"spendy/internal/services"
	"spendy/internal/store"
	"spendy/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type App struct {
	DB           *sqlx.DB
	TxRunner     db.TxRunner
	Accounts     *store.AccountStore
	Cards        *store.CardStore
	Rates        *fx.Cache
	Hub          *websocket.Hub
	Ingestion    *services.IngestionService
	Transactions *services.TransactionService

	closers []func() error
}

// NewRates builds the cached exchange-rate lookup from cfg.
func NewRates(cfg config.Config) *fx.Cache {
	provider := fx.NewHTTPProvider(cfg.ExchangeRateAPIBaseURL, cfg.ExchangeRateTimeout)
	return fx.NewCache(provider, cfg.ExchangeRateCacheTTL, clock.NewReal())
}

// NewFileStore picks GCS when a bucket is configured, local disk otherwise.
// The returned close func is never nil.
func NewFileStore(ctx context.Context, cfg config.Config) (filestore.Store, func() error, error) {
	if cfg.GCSBucket == "" {
		return filestore.NewLocal(cfg.UploadDir), func() error { return nil }, nil
	}
	gcs, err := filestore.NewGCS(ctx, cfg.GCSBucket, "uploads")
	if err != nil {
		return nil, nil, fmt.Errorf("open gcs bucket %s: %w", cfg.GCSBucket, err)
	}
	return gcs, gcs.Close, nil
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	files, closeFiles, err := NewFileStore(ctx, cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	sourceEvents := store.NewSourceEventStore(database)
	transactions := store.NewTransactionStore(database)
	links := store.NewLinkStore(database)
	cards := store.NewCardStore(database)
	accounts := store.NewAccountStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	rates := NewRates(cfg)
	hub := websocket.NewHub()

	log.Info().
		Str("rates_url", cfg.ExchangeRateAPIBaseURL).
		Dur("rates_ttl", cfg.ExchangeRateCacheTTL).
		Bool("gcs", cfg.GCSBucket != "").
		Msg("dependencies ready")

	return &App{
		DB:           database,
		TxRunner:     txRunner,
		Accounts:     accounts,
		Cards:        cards,
		Rates:        rates,
		Hub:          hub,
		Ingestion:    services.NewIngestionService(txRunner, sourceEvents, transactions, links, cards, accounts, audit, fx.NewResolver(rates), files, hub, clock.NewReal()),
		Transactions: services.NewTransactionService(txRunner, transactions, links, cards, audit),
		closers:      []func() error{closeFiles, database.Close},
	}, nil
}

func (a *App) Close() error {
	var first error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
