package handlers

import (
	"net/http"
	"strings"

	"spendy/internal/config"
	"spendy/internal/db"
	"spendy/internal/logger"
	"spendy/internal/middleware"
	"spendy/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const reviewScope = "review"

type Handler struct {
	txRunner     db.TxRunner
	cfg          config.Config
	log          zerolog.Logger
	ingestion    IngestionService
	transactions TransactionService
	accounts     AccountStore
	cards        CardStore
	rates        RateLookup
	hub          *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, log zerolog.Logger, ingestion IngestionService, transactions TransactionService, accounts AccountStore, cards CardStore, rates RateLookup, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:     txRunner,
		cfg:          cfg,
		log:          log,
		ingestion:    ingestion,
		transactions: transactions,
		accounts:     accounts,
		cards:        cards,
		rates:        rates,
		hub:          hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(logger.Middleware(h.log))
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Route("/source-events", func(r chi.Router) {
			r.Get("/", h.ListSourceEvents)
			r.Post("/text", h.CreateSourceEventFromText)
			r.Post("/upload", h.UploadSourceEvent)
			r.Get("/{id}", h.GetSourceEvent)
			r.Delete("/{id}", h.DeleteSourceEvent)
			r.Get("/{id}/file", h.DownloadSourceEventFile)
			r.Post("/{id}/reprocess", h.ReprocessSourceEvent)
			r.Post("/{id}/link", h.LinkSourceEvent)
			r.Delete("/{id}/link/{transactionID}", h.UnlinkSourceEvent)
			r.Post("/{id}/transaction", h.CreateTransactionFromSourceEvent)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Patch("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
			r.Get("/{id}/sources", h.GetTransactionSources)
			r.Post("/{id}/primary-source", h.SetPrimarySource)
			r.Post("/{id}/canonicalize", h.CanonicalizeTransaction)
		})

		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.CreateAccount)
		r.Get("/cards", h.ListCards)
		r.Post("/cards", h.CreateCard)
		r.Get("/exchange-rates/{from}/{to}", h.GetExchangeRate)

		r.With(middleware.RequireScope(reviewScope)).Get("/review", h.ListReviewItems)
	})
	router.Get("/ws/review", h.WSReview)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "reviewers": h.hub.ClientCount()})
	})
	return router
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
