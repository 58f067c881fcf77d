package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"spendy/internal/models"
	"spendy/internal/store"
)

func TestCreateAccount(t *testing.T) {
	var created models.Account
	handler := newTestHandler(testDeps{accounts: stubAccountStore{
		createFn: func(_ context.Context, _ store.Getter, account models.Account) (int64, error) {
			created = account
			return 5, nil
		},
	}})
	body := []byte(`{"institution":"Emirates NBD","name":"Credit","account_currency":"aed"}`)
	rr := serveRoute(t, handler, http.MethodPost, "/accounts", body, "operator-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created.AccountCurrency != "AED" || created.Institution != "Emirates NBD" {
		t.Fatalf("unexpected account %+v", created)
	}
	if !strings.Contains(rr.Body.String(), `"id":5`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	rr = serveRoute(t, handler, http.MethodPost, "/accounts", []byte(`{"institution":"x","name":"y","account_currency":"dirham"}`), "operator-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateCard(t *testing.T) {
	handler := newTestHandler(testDeps{
		accounts: stubAccountStore{
			getByIDFn: func(_ context.Context, id int64) (models.Account, error) {
				if id != 1 {
					return models.Account{}, store.ErrNotFound
				}
				return models.Account{ID: 1}, nil
			},
		},
		cards: stubCardStore{
			createFn: func(_ context.Context, _ store.Getter, card models.Card) (int64, error) {
				if card.CardMaskedNumber != "4111 XXXX XXXX 3278" {
					t.Fatalf("unexpected card %+v", card)
				}
				return 3, nil
			},
		},
	})
	rr := serveRoute(t, handler, http.MethodPost, "/cards", []byte(`{"account_id":1,"card_masked_number":"4111 XXXX XXXX 3278"}`), "operator-1")
	if rr.Code != http.StatusCreated || !strings.Contains(rr.Body.String(), `"id":3`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
	rr = serveRoute(t, handler, http.MethodPost, "/cards", []byte(`{"account_id":1,"card_masked_number":"XXXX 78"}`), "operator-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = serveRoute(t, handler, http.MethodPost, "/cards", []byte(`{"account_id":2,"card_masked_number":"****3278"}`), "operator-1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestListCardsScopedToAccount(t *testing.T) {
	handler := newTestHandler(testDeps{cards: stubCardStore{
		listFn: func(_ context.Context, accountID *int64) ([]models.Card, error) {
			if accountID == nil || *accountID != 2 {
				t.Fatalf("unexpected account filter %v", accountID)
			}
			return []models.Card{{ID: 3, AccountID: 2}}, nil
		},
	}})
	rr := serveRoute(t, handler, http.MethodGet, "/cards?account_id=2", nil, "operator-1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"account_id":2`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
	rr = serveRoute(t, handler, http.MethodGet, "/cards?account_id=x", nil, "operator-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
