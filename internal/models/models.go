package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SourceType string

const (
	SourceTelegramText   SourceType = "telegram_text"
	SourceSMSText        SourceType = "sms_text"
	SourceSMSScreenshot  SourceType = "sms_screenshot"
	SourceBankScreenshot SourceType = "bank_screenshot"
	SourcePDFStatement   SourceType = "pdf_statement"
	SourceManual         SourceType = "manual"
)

var SourceTypes = []SourceType{
	SourceTelegramText,
	SourceSMSText,
	SourceSMSScreenshot,
	SourceBankScreenshot,
	SourcePDFStatement,
	SourceManual,
}

func (t SourceType) Valid() bool {
	for _, known := range SourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsMessage reports whether the source belongs to the SMS/screenshot family.
func (t SourceType) IsMessage() bool {
	switch t {
	case SourceSMSText, SourceSMSScreenshot, SourceBankScreenshot, SourceTelegramText:
		return true
	default:
		return false
	}
}

type ParseStatus string

const (
	ParseStatusNew     ParseStatus = "new"
	ParseStatusParsed  ParseStatus = "parsed"
	ParseStatusSkipped ParseStatus = "skipped"
	ParseStatusFailed  ParseStatus = "failed"
)

type Kind string

const (
	KindPurchase Kind = "purchase"
	KindTopup    Kind = "topup"
	KindRefund   Kind = "refund"
	KindOther    Kind = "other"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindTopup, KindRefund, KindOther:
		return true
	default:
		return false
	}
}

type Account struct {
	ID              int64     `db:"id" json:"id"`
	Institution     string    `db:"institution" json:"institution"`
	Name            string    `db:"name" json:"name"`
	AccountCurrency string    `db:"account_currency" json:"account_currency"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Card struct {
	ID               int64     `db:"id" json:"id"`
	AccountID        int64     `db:"account_id" json:"account_id"`
	CardMaskedNumber string    `db:"card_masked_number" json:"card_masked_number"`
	CardType         *string   `db:"card_type" json:"card_type,omitempty"`
	Name             *string   `db:"name" json:"name,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type SourceEvent struct {
	ID                        int64               `db:"id" json:"id"`
	SourceType                SourceType          `db:"source_type" json:"source_type"`
	RawText                   *string             `db:"raw_text" json:"raw_text,omitempty"`
	FilePath                  *string             `db:"file_path" json:"file_path,omitempty"`
	ContentHash               string              `db:"content_hash" json:"content_hash"`
	ReceivedAt                time.Time           `db:"received_at" json:"received_at"`
	ParsedAmount              decimal.NullDecimal `db:"parsed_amount" json:"parsed_amount"`
	ParsedCurrency            *string             `db:"parsed_currency" json:"parsed_currency,omitempty"`
	ParsedTransactionDatetime *time.Time          `db:"parsed_transaction_datetime" json:"parsed_transaction_datetime,omitempty"`
	ParsedPostingDatetime     *time.Time          `db:"parsed_posting_datetime" json:"parsed_posting_datetime,omitempty"`
	ParsedDescription         *string             `db:"parsed_description" json:"parsed_description,omitempty"`
	ParsedCardNumber          *string             `db:"parsed_card_number" json:"parsed_card_number,omitempty"`
	ParsedKind                *Kind               `db:"parsed_kind" json:"parsed_kind,omitempty"`
	ParsedLocation            *string             `db:"parsed_location" json:"parsed_location,omitempty"`
	ParsedSender              *string             `db:"parsed_sender" json:"parsed_sender,omitempty"`
	ParsedRecipients          *string             `db:"parsed_recipients" json:"parsed_recipients,omitempty"`
	AccountID                 *int64              `db:"account_id" json:"account_id,omitempty"`
	CardID                    *int64              `db:"card_id" json:"card_id,omitempty"`
	ParseStatus               ParseStatus         `db:"parse_status" json:"parse_status"`
	ParseError                *string             `db:"parse_error" json:"parse_error,omitempty"`
	MatchError                *string             `db:"match_error" json:"match_error,omitempty"`
	CreatedAt                 time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time           `db:"updated_at" json:"updated_at"`
}

type Transaction struct {
	ID                  int64               `db:"id" json:"id"`
	CardID              int64               `db:"card_id" json:"card_id"`
	Amount              decimal.Decimal     `db:"amount" json:"amount"`
	Currency            string              `db:"currency" json:"currency"`
	TransactionDatetime *time.Time          `db:"transaction_datetime" json:"transaction_datetime,omitempty"`
	PostingDatetime     *time.Time          `db:"posting_datetime" json:"posting_datetime,omitempty"`
	Description         string              `db:"description" json:"description"`
	Location            *string             `db:"location" json:"location,omitempty"`
	Kind                Kind                `db:"kind" json:"kind"`
	OriginalAmount      decimal.NullDecimal `db:"original_amount" json:"original_amount"`
	OriginalCurrency    *string             `db:"original_currency" json:"original_currency,omitempty"`
	FXRate              decimal.NullDecimal `db:"fx_rate" json:"fx_rate"`
	FXFee               decimal.NullDecimal `db:"fx_fee" json:"fx_fee"`
	MerchantNorm        *string             `db:"merchant_norm" json:"merchant_norm,omitempty"`
	Fingerprint         *string             `db:"fingerprint" json:"fingerprint,omitempty"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

type TransactionSourceLink struct {
	TransactionID   int64           `db:"transaction_id" json:"transaction_id"`
	SourceEventID   int64           `db:"source_event_id" json:"source_event_id"`
	MatchConfidence decimal.Decimal `db:"match_confidence" json:"match_confidence"`
	IsPrimary       bool            `db:"is_primary" json:"is_primary"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// LinkedSource pairs a link with the source event it points at.
type LinkedSource struct {
	Link   TransactionSourceLink `json:"link"`
	Source SourceEvent           `json:"source_event"`
}

// ReviewItem is an audit entry that needs a person to look at it, such as an
// ambiguous match.
type ReviewItem struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
