package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"spendy/internal/models"

	"github.com/lib/pq"
)

func TestSourceEventStoreCreate(t *testing.T) {
	ctx := context.Background()
	raw := "Purchase of AED 2.50"
	tx := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "INSERT INTO source_events") || !strings.Contains(query, "RETURNING id") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 20 || args[0] != models.SourceSMSText || args[3] != "hash-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int64) = 42
			return nil
		},
	}
	store := NewSourceEventStore(stubDB{})
	id, err := store.Create(ctx, tx, models.SourceEvent{
		SourceType:  models.SourceSMSText,
		RawText:     &raw,
		ContentHash: "hash-1",
		ParseStatus: models.ParseStatusParsed,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected id 42, got %d", id)
	}
}

func TestSourceEventStoreCreateDuplicateHash(t *testing.T) {
	tx := stubGetter{
		getFn: func(context.Context, any, string, ...any) error {
			return &pq.Error{Code: "23505", Constraint: "source_events_content_hash_key"}
		},
	}
	_, err := NewSourceEventStore(stubDB{}).Create(context.Background(), tx, models.SourceEvent{})
	if err != ErrDuplicateContentHash {
		t.Fatalf("expected ErrDuplicateContentHash, got %v", err)
	}
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate to wrap ErrDuplicate")
	}
}

func TestSourceEventStoreGetByIDNotFound(t *testing.T) {
	store := NewSourceEventStore(stubDB{
		getFn: func(_ context.Context, _ any, query string, args ...any) error {
			if !strings.Contains(query, "FROM source_events WHERE id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			return sql.ErrNoRows
		},
	})
	if _, err := store.GetByID(context.Background(), 7); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceEventStoreGetForUpdateLocks(t *testing.T) {
	tx := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			dest.(*models.SourceEvent).ID = args[0].(int64)
			return nil
		},
	}
	event, err := NewSourceEventStore(stubDB{}).GetForUpdate(context.Background(), tx, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != 9 {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestSourceEventStoreExistsByHash(t *testing.T) {
	store := NewSourceEventStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "content_hash = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*bool) = true
			return nil
		},
	})
	exists, err := store.ExistsByHash(context.Background(), "hash-1")
	if err != nil || !exists {
		t.Fatalf("expected exists, got %v (%v)", exists, err)
	}
}

func TestSourceEventStoreUpdateParsedMissing(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE source_events") || !strings.Contains(query, "updated_at = now()") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 15 || args[0] != int64(3) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 0}, nil
		},
	}
	err := NewSourceEventStore(stubDB{}).UpdateParsed(context.Background(), execer, models.SourceEvent{ID: 3})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceEventStoreListFilters(t *testing.T) {
	sourceType := models.SourceSMSText
	status := models.ParseStatusParsed
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	hasTransaction := false
	store := NewSourceEventStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "SELECT COUNT(*) FROM source_events WHERE source_type = $1 AND parse_status = $2 AND received_at >= $3 AND NOT EXISTS") {
				t.Fatalf("unexpected count query: %s", query)
			}
			if len(args) != 3 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int) = 12
			return nil
		},
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY received_at DESC, id DESC LIMIT $4 OFFSET $5") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[3] != 10 || args[4] != 20 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.SourceEvent) = []models.SourceEvent{{ID: 1}, {ID: 2}}
			return nil
		},
	})
	events, total, err := store.List(context.Background(), SourceEventFilter{
		SourceType:     &sourceType,
		ParseStatus:    &status,
		ReceivedFrom:   &from,
		HasTransaction: &hasTransaction,
		Limit:          10,
		Offset:         20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 12 || len(events) != 2 {
		t.Fatalf("unexpected result: %d %#v", total, events)
	}
}

func TestSourceEventStoreListNoFilters(t *testing.T) {
	store := NewSourceEventStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if strings.Contains(query, "WHERE") || len(args) != 0 {
				t.Fatalf("unexpected count query: %s %#v", query, args)
			}
			return nil
		},
		selectFn: func(_ context.Context, _ any, query string, args ...any) error {
			if !strings.Contains(query, "LIMIT $1 OFFSET $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			return nil
		},
	})
	if _, _, err := store.List(context.Background(), SourceEventFilter{Limit: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSourceEventStoreDelete(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM source_events") {
				t.Fatalf("unexpected query: %s", query)
			}
			return stubResult{rows: 1}, nil
		},
	}
	if err := NewSourceEventStore(stubDB{}).Delete(context.Background(), execer, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
