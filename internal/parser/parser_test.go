package parser

import (
	"testing"

	"spendy/internal/models"
	"spendy/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expectation struct {
	amount      string
	currency    string
	description string
	location    string
	card        string
	kind        models.Kind
}

func TestParseNotificationShapes(t *testing.T) {
	cases := []struct {
		name string
		text string
		want expectation
	}{
		{
			name: "purchase with location",
			text: "Purchase of AED 2.50 with Credit Card ending 3278 at EKFC DELI 2 GO 599995, DUBAI. Avl Cr. Limit is AED 34,678.55",
			want: expectation{amount: "-2.50", currency: "AED", description: "EKFC DELI 2 GO 599995", location: "DUBAI", card: "3278", kind: models.KindPurchase},
		},
		{
			name: "purchase standard",
			text: "Purchase of AED 980.00 with Credit Card ending 3278 at MASSIMO DUTTI, DUBAI. Avl Cr. Limit is AED 39,989.58",
			want: expectation{amount: "-980.00", currency: "AED", description: "MASSIMO DUTTI", location: "DUBAI", card: "3278", kind: models.KindPurchase},
		},
		{
			name: "foreign purchase",
			text: "Purchase of USD 21.00 with Credit Card ending 3278 at OPENAI *CHATGPT SUBSCR, SAN FRANCISCO. Avl Cr. Limit is AED 36,397.91. Pls refer stmt for exact amt",
			want: expectation{amount: "-21.00", currency: "USD", description: "OPENAI *CHATGPT SUBSCR", location: "SAN FRANCISCO", card: "3278", kind: models.KindPurchase},
		},
		{
			name: "merchant name containing a comma",
			text: "Purchase of USD 20.00 with Credit Card ending 3278 at CURSOR, AI POWERED IDE, NEW YORK. Avl Cr. Limit is AED 36,977.49. Pls refer stmt for exact amt",
			want: expectation{amount: "-20.00", currency: "USD", description: "CURSOR, AI POWERED IDE", location: "NEW YORK", card: "3278", kind: models.KindPurchase},
		},
		{
			name: "domain in merchant name",
			text: "Purchase of AED 87.20 with Credit Card ending 3278 at carrefouruae.com, Dubai. Avl Cr. Limit is AED 37,201.47",
			want: expectation{amount: "-87.20", currency: "AED", description: "carrefouruae.com", location: "Dubai", card: "3278", kind: models.KindPurchase},
		},
		{
			name: "refund at merchant",
			text: "Purchase amount of AED 1.00 at EMIRATES LEISURE RETAI on your Credit Card ending 3278 has been refunded to your card account. Avl Limit is AED 39,557.93.",
			want: expectation{amount: "1.00", currency: "AED", description: "EMIRATES LEISURE RETAI", card: "3278", kind: models.KindRefund},
		},
		{
			name: "merchant credit",
			text: "Amount of AED 149.00 from PAN EMIRATES FURNITURE has been credited to your card ending with 3278. Available limit is AED 39,959.58.",
			want: expectation{amount: "149.00", currency: "AED", description: "PAN EMIRATES FURNITURE", card: "3278", kind: models.KindRefund},
		},
		{
			name: "payment to merchant",
			text: "Payment of AED 1,493.10 to AL FUTTAIM TRANSPORT with Credit Card ending 3278. Avl Cr. Limit is AED 34,681.05.",
			want: expectation{amount: "-1493.10", currency: "AED", description: "AL FUTTAIM TRANSPORT", card: "3278", kind: models.KindPurchase},
		},
		{
			name: "bill payment",
			text: "AED 23,406.00 has been deducted from your account 101XXX20XXX01 towards payment of your Credit Card ending 3278.",
			want: expectation{amount: "23406.00", currency: "AED", description: "Credit Card Bill Payment", card: "3278", kind: models.KindTopup},
		},
		{
			name: "fallback assumes expense",
			text: "Txn AED 15.75 done at KIOSK",
			want: expectation{amount: "-15.75", currency: "AED", description: "KIOSK", kind: models.KindOther},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text)
			require.Equal(t, models.ParseStatusParsed, got.Status)
			require.Nil(t, got.Error)
			require.True(t, got.Amount.Valid)
			assert.Equal(t, tc.want.amount, money.Format(got.Amount.Decimal))
			require.NotNil(t, got.Currency)
			assert.Equal(t, tc.want.currency, *got.Currency)
			require.NotNil(t, got.Description)
			assert.Equal(t, tc.want.description, *got.Description)
			if tc.want.location == "" {
				assert.Nil(t, got.Location)
			} else {
				require.NotNil(t, got.Location)
				assert.Equal(t, tc.want.location, *got.Location)
			}
			if tc.want.card == "" {
				assert.Nil(t, got.CardNumber)
			} else {
				require.NotNil(t, got.CardNumber)
				assert.Equal(t, tc.want.card, *got.CardNumber)
			}
			require.NotNil(t, got.Kind)
			assert.Equal(t, tc.want.kind, *got.Kind)
			assert.Nil(t, got.TransactionDatetime)
			assert.Nil(t, got.PostingDatetime)
		})
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n\t"} {
		got := Parse(input)
		assert.Equal(t, models.ParseStatusParsed, got.Status)
		assert.False(t, got.Amount.Valid)
		assert.Nil(t, got.Currency)
		assert.Nil(t, got.Description)
		assert.Nil(t, got.Kind)
		assert.Nil(t, got.Error)
	}
}

func TestParseSkipsNonTransactionMessages(t *testing.T) {
	cases := map[string]string{
		"Emirates NBD Credit Card Mini Stmt for Card ending 3278: Statement date 25/12/25. Total Amt Due AED 12368.30": "Non-transaction message (statement)",
		"Your statement date is 25/12. Total due AED 100.00":                                                           "Non-transaction message (statement)",
		"This is to remind you that AED 500.00 is due on your card":                                                    "Non-transaction message (reminder)",
		"Upcoming payment of AED 99.00 scheduled":                                                                      "Non-transaction message (reminder)",
		"Your newly added beneficiary: Vijay Shanmugam has been activated successfully. Call 600540000 within UAE.":    "Non-transaction message (beneficiary)",
	}
	for text, reason := range cases {
		got := Parse(text)
		assert.Equal(t, models.ParseStatusSkipped, got.Status, text)
		require.NotNil(t, got.Error, text)
		assert.Equal(t, reason, *got.Error)
		assert.False(t, got.Amount.Valid, text)
		assert.Nil(t, got.Description, text)
		assert.Nil(t, got.Kind, text)
	}
}

func TestParseUnparsableAmountFails(t *testing.T) {
	got := Parse("Purchase of AED , with Credit Card ending 3278 at SHOP, DUBAI")
	assert.Equal(t, models.ParseStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "Invalid amount format: ", *got.Error)
	assert.False(t, got.Amount.Valid)
	assert.Nil(t, got.CardNumber)
	assert.Nil(t, got.Description)
}

func TestParseFirstStructuralMatchWins(t *testing.T) {
	got := Parse("Purchase of AED 10.00 with Credit Card ending 1111 at SHOP. Avl Cr. Limit is AED 5,000.00")
	require.True(t, got.Amount.Valid)
	assert.Equal(t, "-10.00", money.Format(got.Amount.Decimal))
	assert.Equal(t, "SHOP", *got.Description)
}

func TestParseWithoutAmountDefaultsToOther(t *testing.T) {
	text := "Hello, your card is ready for collection"
	got := Parse(text)
	assert.Equal(t, models.ParseStatusParsed, got.Status)
	assert.False(t, got.Amount.Valid)
	require.NotNil(t, got.Description)
	assert.Equal(t, text, *got.Description)
	require.NotNil(t, got.Kind)
	assert.Equal(t, models.KindOther, *got.Kind)
}

func TestParseLowercaseTailStaysInMerchant(t *testing.T) {
	got := Parse("Purchase of AED 5.00 with Credit Card ending 3278 at FOO, bar baz. Avl Cr. Limit is AED 1.00")
	require.NotNil(t, got.Description)
	assert.Equal(t, "FOO, bar baz", *got.Description)
	assert.Nil(t, got.Location)
}

func TestParseKnownPlaceInLowercase(t *testing.T) {
	got := Parse("Purchase of AED 5.00 with Credit Card ending 3278 at shop, abu dhabi. Avl Cr. Limit is AED 1.00")
	require.NotNil(t, got.Location)
	assert.Equal(t, "abu dhabi", *got.Location)
	assert.Equal(t, "shop", *got.Description)
}

func TestParseCollapsesWhitespaceInMerchant(t *testing.T) {
	got := Parse("Payment of AED 12.00 to BIG    STORE   LLC with Credit Card ending 9999.")
	require.NotNil(t, got.Description)
	assert.Equal(t, "BIG STORE LLC", *got.Description)
	assert.Equal(t, "9999", *got.CardNumber)
}
