package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"spendy/internal/matching"
	"spendy/internal/models"
	"spendy/internal/parser"
)

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// applyParsed replaces every parser-owned field of event with result.
func applyParsed(event *models.SourceEvent, result parser.Result) {
	event.ParsedAmount = result.Amount
	event.ParsedCurrency = result.Currency
	event.ParsedTransactionDatetime = result.TransactionDatetime
	event.ParsedPostingDatetime = result.PostingDatetime
	event.ParsedDescription = result.Description
	event.ParsedCardNumber = result.CardNumber
	event.ParsedKind = result.Kind
	event.ParsedLocation = result.Location
	event.ParseStatus = result.Status
	event.ParseError = result.Error
}

func candidateIDs(candidates []models.Transaction) []int64 {
	ids := make([]int64, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	return ids
}

func hasText(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}

// fingerprintOf hashes the dedup fields of t. MerchantNorm must already be set.
func fingerprintOf(t models.Transaction) *string {
	fingerprint := matching.Fingerprint(matching.FingerprintInput{
		CardID:              t.CardID,
		Amount:              t.Amount,
		Currency:            t.Currency,
		PostingDatetime:     t.PostingDatetime,
		TransactionDatetime: t.TransactionDatetime,
		MerchantNorm:        deref(t.MerchantNorm),
		OriginalAmount:      t.OriginalAmount,
		OriginalCurrency:    t.OriginalCurrency,
	})
	return &fingerprint
}
